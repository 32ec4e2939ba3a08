package capability

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"piapi/internal/duplex"
	ncerr "piapi/internal/errors"
	"piapi/internal/session"
)

// Prompt is written before each operator line when Console.Prompt is set.
const Prompt = "> "

// Console reads operator lines from the session's stdin and sends each
// one.  Empty lines are skipped.  A failed send is reported on stdout
// and the loop carries on.
type Console struct {
	Prompt bool // show a prompt; set only when stdin is a terminal
}

type scanResult struct {
	line string
	err  error
	eof  bool
}

// Handle returns nil on ctx cancellation or once the transport has been
// closed.  Stdin EOF only stops sending; inbound lines keep flowing to
// the frame handler until shutdown.
func (c *Console) Handle(ctx context.Context, sess *session.Session) error {
	out := sess.Stdout
	logger := sess.Logger.With("console")

	lines := make(chan scanResult)
	go scanLines(sess.Stdin, lines, ctx.Done())

	for {
		if c.Prompt {
			fmt.Fprint(out, Prompt)
		}

		var r scanResult
		select {
		case <-ctx.Done():
			return nil
		case <-sess.Transport.Done():
			return nil
		case r = <-lines:
		}

		if r.eof {
			if r.err != nil {
				logger.Warn("read stdin: %v", r.err)
			}
			logger.Verbose("stdin closed")
			select {
			case <-ctx.Done():
			case <-sess.Transport.Done():
			}
			return nil
		}

		line := strings.TrimRight(r.line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if _, err := sess.Transport.Send(line); err != nil {
			if ncerr.Is(err, ncerr.ErrTransportClosed) {
				return nil
			}
			fmt.Fprintf(out, "send failed: %v\n", err)
		}
	}
}

// scanLines feeds stdin into out until EOF or done.  The goroutine may
// stay blocked in Read after done if stdin never returns; that only
// happens at process exit.
func scanLines(r io.Reader, out chan<- scanResult, done <-chan struct{}) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), duplex.MaxLineLength)
	for sc.Scan() {
		select {
		case out <- scanResult{line: sc.Text()}:
		case <-done:
			return
		}
	}
	select {
	case out <- scanResult{eof: true, err: sc.Err()}:
	case <-done:
	}
}

// PrintHandler returns a duplex.Handler that writes each inbound line
// to w as "< line".  Share w with the console through
// session.SyncWriter.
func PrintHandler(w io.Writer) duplex.Handler {
	return func(f duplex.Frame) {
		fmt.Fprintf(w, "< %s\n", f.Text)
	}
}
