package hwiconn

import (
	"io"

	"github.com/arloliu/go-homeworks/hwi"
)

const readChunkSize = 512

// lineReader reads logical processor lines from a byte stream.
//
// Bytes are accumulated in a hwi.PacketBuffer until it reports a complete chunk, which
// is then split into lines. A single read may yield zero, one or many lines; extra lines
// are kept for the following ReadLine calls.
//
// lineReader is NOT goroutine-safe. The login handshake and the session reader use it
// one after the other, never concurrently.
type lineReader struct {
	r       io.Reader
	buf     *hwi.PacketBuffer
	chunk   []byte
	pending [][]byte
	err     error
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{
		r:     r,
		buf:   hwi.NewPacketBuffer(),
		chunk: make([]byte, readChunkSize),
	}
}

// ReadLine returns the next trimmed, non-empty line.
//
// Lines that were framed before a read error are returned first; the error is returned
// once they are drained. Bytes of an incomplete trailing line are discarded on error.
func (lr *lineReader) ReadLine() ([]byte, error) {
	for len(lr.pending) == 0 {
		if lr.err != nil {
			return nil, lr.err
		}

		n, err := lr.r.Read(lr.chunk)
		if n > 0 {
			lr.buf.Append(lr.chunk[:n])
			if lr.buf.IsComplete() {
				lr.pending = append(lr.pending, hwi.SplitLines(lr.buf.Flush())...)
			}
		}

		if err != nil {
			lr.err = err
		}
	}

	line := lr.pending[0]
	lr.pending[0] = nil
	lr.pending = lr.pending[1:]

	return line, nil
}
