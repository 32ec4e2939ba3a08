package command

import (
	"unicode/utf8"

	ncerr "piapi/internal/errors"
	"piapi/internal/metrics"
	"piapi/internal/store"
	"piapi/util"
)

// Router executes Commands against one Store.  It is safe for
// concurrent use; all serialisation happens inside the store.
type Router struct {
	store   *store.Store
	logger  *util.Logger
	metrics *metrics.Collector
}

// NewRouter returns a Router over s.  logger and m may be nil.
func NewRouter(s *store.Store, logger *util.Logger, m *metrics.Collector) *Router {
	if logger == nil {
		logger = util.NewLogger(0)
	}
	return &Router{store: s, logger: logger.With("router"), metrics: m}
}

// Store returns the underlying store.
func (r *Router) Store() *store.Store { return r.store }

// Execute validates cmd and runs exactly one store operation.  It never
// retries: every failure is local and deterministic.
func (r *Router) Execute(cmd Command) Result {
	res := r.execute(cmd)
	res.Command = cmd
	res.Status = ClassifyError(res.Err)
	if res.Err == nil && cmd.Verb == ReplaceAll {
		res.Status = Created
	}

	switch res.Status {
	case NoContent:
		r.metrics.NoContent()
		r.logger.Verbose("%s: %v", cmd.Verb, res.Err)
	case BadRequest:
		r.metrics.BadRequest()
		r.logger.Verbose("%s: %v", cmd.Verb, res.Err)
	default:
		if cmd.Verb != GetChar && cmd.Verb != GetAll {
			r.metrics.Mutation()
		}
		r.logger.Debug("%s ok, version %d", cmd.Verb, res.Version)
	}
	return res
}

func (r *Router) execute(cmd Command) Result {
	if err := cmd.Validate(); err != nil {
		return Result{Err: err}
	}

	var (
		snap store.Snapshot
		err  error
	)
	switch cmd.Verb {
	case GetChar:
		c, snap, err := r.store.Lookup(cmd.Index)
		if err != nil {
			return Result{Err: err}
		}
		return Result{Value: snap.Value, Version: snap.Version, Char: c, HasChar: true}

	case GetAll:
		snap = r.store.Snapshot()

	case Insert:
		snap, err = r.store.Insert(cmd.Index, cmd.Payload)

	case ReplaceChar:
		c, cerr := singleChar(cmd.Payload)
		if cerr != nil {
			return Result{Err: cerr}
		}
		snap, err = r.store.ReplaceChar(cmd.Index, c)

	case ReplaceAll:
		snap = r.store.ReplaceAll(cmd.Payload)

	case DeleteChar:
		snap, err = r.store.DeleteChar(cmd.Index)

	case DeleteAll:
		snap = r.store.Clear()
	}
	if err != nil {
		return Result{Err: err}
	}
	return Result{Value: snap.Value, Version: snap.Version}
}

// singleChar decodes a payload that must hold exactly one character.
func singleChar(s string) (rune, error) {
	c, size := utf8.DecodeRuneInString(s)
	if size == 0 || size != len(s) || c == utf8.RuneError && size == 1 {
		return 0, &ncerr.DecodeError{Field: "letter", Err: errNotOneChar}
	}
	return c, nil
}

var errNotOneChar = ncerr.New("must be exactly one character")
