package duplex

import (
	"bytes"
	"strings"
	"time"
)

// Direction tags a Frame with the side that produced it.
type Direction int

const (
	Inbound Direction = iota
	Outbound
)

func (d Direction) String() string {
	if d == Outbound {
		return "outbound"
	}
	return "inbound"
}

// Frame is one complete line exchanged over the channel.
type Frame struct {
	Direction Direction
	Raw       []byte // bytes as they crossed the channel, terminator included
	Text      string // decoded line with terminators and padding removed
	At        time.Time
}

// MaxLineLength bounds a line that never sees a terminator.  Longer
// input is delivered in pieces of this size.
const MaxLineLength = 16 * 1024

// lineCutset is stripped from both ends of an inbound line.  The device
// shell answers with "\n\r" followed by NUL padding.
const lineCutset = "\r\n\x00"

// assembler accumulates channel reads and cuts them into lines on '\n'.
// It is owned by the receive loop and never shared.
type assembler struct {
	pending []byte
}

// feed appends p and returns every line completed by it.  Returned
// slices are fresh copies.
func (a *assembler) feed(p []byte) [][]byte {
	a.pending = append(a.pending, p...)

	var out [][]byte
	for {
		i := bytes.IndexByte(a.pending, '\n')
		if i < 0 {
			break
		}
		out = append(out, clone(a.pending[:i+1]))
		a.pending = a.pending[i+1:]
	}
	for len(a.pending) >= MaxLineLength {
		out = append(out, clone(a.pending[:MaxLineLength]))
		a.pending = a.pending[MaxLineLength:]
	}
	if len(a.pending) == 0 {
		a.pending = nil
	}
	return out
}

// decode trims terminators and padding and replaces invalid UTF-8.
func decode(raw []byte) string {
	return strings.ToValidUTF8(strings.Trim(string(raw), lineCutset), "\uFFFD")
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
