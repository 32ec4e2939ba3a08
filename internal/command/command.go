// Package command turns one validated request into exactly one store
// operation and classifies the outcome.
package command

import (
	"fmt"
	"net/http"

	ncerr "piapi/internal/errors"
)

// Verb names a positional operation on the message.
type Verb int

const (
	GetChar Verb = iota
	GetAll
	Insert
	ReplaceChar
	ReplaceAll
	DeleteChar
	DeleteAll
)

var verbNames = [...]string{
	GetChar:     "get_char",
	GetAll:      "get_all",
	Insert:      "insert",
	ReplaceChar: "replace_char",
	ReplaceAll:  "replace_all",
	DeleteChar:  "delete_char",
	DeleteAll:   "delete_all",
}

func (v Verb) String() string {
	if v >= 0 && int(v) < len(verbNames) {
		return verbNames[v]
	}
	return fmt.Sprintf("Verb(%d)", int(v))
}

// needsIndex reports whether the verb addresses a single position.
func (v Verb) needsIndex() bool {
	switch v {
	case GetChar, Insert, ReplaceChar, DeleteChar:
		return true
	}
	return false
}

// needsPayload reports whether the verb carries text.
func (v Verb) needsPayload() bool {
	switch v {
	case Insert, ReplaceChar, ReplaceAll:
		return true
	}
	return false
}

// PayloadField is the request body field that carries the verb's
// payload, or "" when the verb takes none.
func (v Verb) PayloadField() string {
	switch v {
	case Insert:
		return "word"
	case ReplaceChar:
		return "letter"
	case ReplaceAll:
		return "sentence"
	}
	return ""
}

// Command is one requested operation.  HasIndex and HasPayload
// distinguish an absent field from a zero value.
type Command struct {
	Verb       Verb
	Index      int
	HasIndex   bool
	Payload    string
	HasPayload bool
}

// WithIndex returns a copy of c addressing index i.
func (c Command) WithIndex(i int) Command {
	c.Index, c.HasIndex = i, true
	return c
}

// WithPayload returns a copy of c carrying payload p.
func (c Command) WithPayload(p string) Command {
	c.Payload, c.HasPayload = p, true
	return c
}

// Validate checks that every field the verb requires is present.  It is
// structural only: ranges depend on the current length and are checked
// by the store atomically with the operation.
func (c Command) Validate() error {
	if c.Verb < GetChar || c.Verb > DeleteAll {
		return &ncerr.CommandError{Verb: c.Verb.String(), Reason: "unknown verb"}
	}
	if c.Verb.needsIndex() && !c.HasIndex {
		return &ncerr.CommandError{Verb: c.Verb.String(), Reason: "index is required"}
	}
	if c.Verb.needsPayload() && !c.HasPayload {
		return &ncerr.CommandError{
			Verb:   c.Verb.String(),
			Reason: fmt.Sprintf("field %q is required", c.Verb.PayloadField()),
		}
	}
	return nil
}

// ── Status ───────────────────────────────────────────────────────────

// Status classifies a Result.
type Status int

const (
	OK Status = iota
	Created
	NoContent
	BadRequest
)

func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case Created:
		return "created"
	case NoContent:
		return "no_content"
	case BadRequest:
		return "bad_request"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// HTTPCode maps the status onto an HTTP status code.
func (s Status) HTTPCode() int {
	switch s {
	case Created:
		return http.StatusCreated
	case NoContent:
		return http.StatusNoContent
	case BadRequest:
		return http.StatusBadRequest
	}
	return http.StatusOK
}

// Result is the outcome of executing one Command.
type Result struct {
	Command Command
	Status  Status
	Value   string // message after the operation (or as read)
	Char    rune   // GetChar only
	HasChar bool
	Version uint64
	Err     error
}

// ClassifyError maps an error onto the status it is reported with.
func ClassifyError(err error) Status {
	switch {
	case err == nil:
		return OK
	case ncerr.Is(err, ncerr.ErrInvalidCommand):
		return NoContent
	default:
		return BadRequest
	}
}
