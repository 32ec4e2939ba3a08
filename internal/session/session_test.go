package session

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func TestNew_DefaultsLogger(t *testing.T) {
	s := New(nil, strings.NewReader(""), &bytes.Buffer{}, nil)
	if s.Logger == nil {
		t.Fatal("logger should default to a quiet logger")
	}
}

func TestSyncWriter_Idempotent(t *testing.T) {
	w := SyncWriter(&bytes.Buffer{})
	if SyncWriter(w) != w {
		t.Error("wrapping a SyncWriter again should return it unchanged")
	}
}

func TestSyncWriter_WholeWrites(t *testing.T) {
	var buf bytes.Buffer
	w := SyncWriter(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Write([]byte("< line\n"))
		}()
	}
	wg.Wait()

	if got := buf.String(); got != strings.Repeat("< line\n", 50) {
		t.Errorf("interleaved output: %q", got)
	}
}
