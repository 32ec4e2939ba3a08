package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"piapi/internal/command"
	ncerr "piapi/internal/errors"
)

// payload is the union of the write bodies.  A nil field was absent.
type payload struct {
	Sentence *string `json:"sentence"`
	Word     *string `json:"word"`
	Letter   *string `json:"letter"`
}

// field returns the payload field for verb.
func (p *payload) field(v command.Verb) *string {
	switch v {
	case command.ReplaceAll:
		return p.Sentence
	case command.Insert:
		return p.Word
	case command.ReplaceChar:
		return p.Letter
	}
	return nil
}

var (
	errEmptyBody    = errors.New("request body is empty")
	errTrailingData = errors.New("unexpected data after JSON value")
)

// decodeCommand builds the Command for verb from the {x} selector and,
// for write verbs, the JSON body.  Malformed input is a
// *errors.DecodeError; absent fields are left for Validate.
func decodeCommand(r *http.Request, verb command.Verb) (command.Command, error) {
	cmd := command.Command{Verb: verb}

	if raw, ok := mux.Vars(r)["x"]; ok {
		x, err := strconv.Atoi(raw)
		if err != nil {
			return cmd, &ncerr.DecodeError{Field: "x", Err: err}
		}
		cmd = cmd.WithIndex(x)
	}

	if verb.PayloadField() == "" {
		return cmd, nil
	}

	p, err := decodePayload(r)
	if err != nil {
		return cmd, err
	}
	if v := p.field(verb); v != nil {
		cmd = cmd.WithPayload(*v)
	}
	return cmd, nil
}

func decodePayload(r *http.Request) (*payload, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, &ncerr.DecodeError{Err: err}
	}
	if len(body) > maxBodyBytes {
		return nil, &ncerr.DecodeError{Err: errors.New("request body too large")}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &ncerr.DecodeError{Err: errEmptyBody}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	var p payload
	if err := dec.Decode(&p); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, &ncerr.DecodeError{Field: typeErr.Field, Err: err}
		}
		return nil, &ncerr.DecodeError{Err: err}
	}
	if dec.More() {
		return nil, &ncerr.DecodeError{Err: errTrailingData}
	}
	return &p, nil
}

// decodeAny reads an optional JSON body for the echo endpoint.  Bodies
// that are not JSON come back as nil.
func decodeAny(r *http.Request) interface{} {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return nil
	}
	return v
}
