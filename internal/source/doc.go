// Package source provides the stream inputs a Stream consumes: a JSONL
// reader, a file follower for generators that append to a file, and a NATS
// subject subscriber.
//
// Every source yields one frame per Next call and returns io.EOF once the
// stream has ended. A frame over MaxFrameSize is dropped and reported as
// ErrFrameTooLong, which Stream.Consume treats as a malformed frame. Any
// other source error is a transport failure; Stream.Consume aborts with
// CodeTransport on it.
package source

import (
	"context"

	"github.com/roach88/uispec/internal/engine"
)

// Source yields raw patch frames. It is engine.FrameSource.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
}

// MaxFrameSize bounds one frame.
const MaxFrameSize = 1 << 20

// ErrFrameTooLong is returned for a frame over MaxFrameSize. The source
// skips it and stays usable.
var ErrFrameTooLong = engine.ErrFrameTooLong
