package util

import "sync"

// ReadBufSize is the size of the buffers used for channel reads.  UART
// lines are short; one buffer holds many of them at 115200 baud.
const ReadBufSize = 4 * 1024

// BufPool provides reusable read buffers for line channels.
var BufPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, ReadBufSize)
		return &buf
	},
}

// GetBuf retrieves a buffer from the pool.  Callers must return it
// with [PutBuf] when finished.
func GetBuf() *[]byte {
	return BufPool.Get().(*[]byte)
}

// PutBuf returns a buffer to the pool for reuse.
func PutBuf(buf *[]byte) {
	if buf == nil {
		return
	}
	BufPool.Put(buf)
}
