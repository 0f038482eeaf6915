package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
)

// LineReader yields the non-blank lines of a reader, one frame each.
type LineReader struct {
	reader *bufio.Reader
	done   bool
}

// Lines reads JSONL frames from r.
func Lines(r io.Reader) *LineReader {
	return &LineReader{reader: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next frame, or io.EOF at the end of r. A line longer
// than MaxFrameSize is dropped and reported as ErrFrameTooLong; the lines
// after it are still read.
func (l *LineReader) Next(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if l.done {
			return nil, io.EOF
		}
		line, tooLong, err := l.readLine()
		switch {
		case errors.Is(err, io.EOF):
			l.done = true
		case err != nil:
			return nil, err
		}
		if tooLong {
			return nil, ErrFrameTooLong
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		return line, nil
	}
}

// readLine reads through the next newline. Once a line outgrows
// MaxFrameSize the rest of it is read and discarded.
func (l *LineReader) readLine() ([]byte, bool, error) {
	var line []byte
	tooLong := false
	for {
		chunk, err := l.reader.ReadSlice('\n')
		if !tooLong {
			line = append(line, chunk...)
			if len(line) > MaxFrameSize+2 {
				line, tooLong = nil, true
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		line = bytes.TrimRight(line, "\r\n")
		if len(line) > MaxFrameSize {
			line, tooLong = nil, true
		}
		return line, tooLong, err
	}
}
