package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Follower tails a JSONL file that a generator is still appending to. It
// yields complete lines only; a line without its newline is held until the
// rest arrives or the follower ends.
type Follower struct {
	path    string
	file    *os.File
	reader  *bufio.Reader
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	idle    time.Duration

	partial    []byte
	discarding bool // dropping the rest of an oversized line
	ended      bool

	closeOnce sync.Once
	closed    chan struct{}
}

// FollowOption configures a Follower.
type FollowOption func(*Follower)

// WithIdleTimeout ends the stream once no data has arrived for d. Zero
// (the default) follows until Close or context cancellation.
func WithIdleTimeout(d time.Duration) FollowOption {
	return func(f *Follower) { f.idle = d }
}

// WithLogger sets the follower's logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) FollowOption {
	return func(f *Follower) {
		if l != nil {
			f.logger = l
		}
	}
}

// Follow opens path and watches it for appends. The parent directory is
// watched rather than the file so that the watch survives editors and
// generators that replace the file.
func Follow(path string, opts ...FollowOption) (*Follower, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("follow %s: %w", path, err)
	}
	file, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("follow: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("follow: create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		file.Close()
		return nil, fmt.Errorf("follow: watch %s: %w", filepath.Dir(abs), err)
	}

	f := &Follower{
		path:    abs,
		file:    file,
		reader:  bufio.NewReader(file),
		watcher: w,
		logger:  slog.Default(),
		closed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger.Info("following stream file", "path", abs, "idle_timeout", f.idle)
	return f, nil
}

// errEnd signals that the followed stream is over.
var errEnd = errors.New("follow: end of stream")

// Next returns the next complete line. It blocks until one is appended,
// the follower is closed or goes idle (io.EOF), or ctx is done.
func (f *Follower) Next(ctx context.Context) ([]byte, error) {
	for {
		if f.ended {
			return f.finish()
		}
		chunk, err := f.reader.ReadBytes('\n')
		if !f.discarding {
			f.partial = append(f.partial, chunk...)
		}
		if err == nil {
			frame := bytes.TrimRight(f.partial, "\r\n")
			f.partial = nil
			if f.discarding {
				f.discarding = false
				continue
			}
			if len(frame) > MaxFrameSize {
				return nil, ErrFrameTooLong
			}
			if len(bytes.TrimSpace(frame)) == 0 {
				continue
			}
			return frame, nil
		}
		if errors.Is(err, os.ErrClosed) {
			f.ended = true
			continue
		}
		if !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("follow %s: %w", f.path, err)
		}
		if len(f.partial) > MaxFrameSize {
			f.partial = nil
			f.discarding = true
			return nil, ErrFrameTooLong
		}

		switch err := f.wait(ctx); {
		case errors.Is(err, errEnd):
			f.ended = true
		case err != nil:
			return nil, err
		}
	}
}

// finish returns a trailing line that never got its newline, then io.EOF.
func (f *Follower) finish() ([]byte, error) {
	if frame := bytes.TrimSpace(f.partial); len(frame) > 0 {
		f.partial = nil
		return frame, nil
	}
	return nil, io.EOF
}

// wait blocks until the file is written to.
func (f *Follower) wait(ctx context.Context) error {
	var idle <-chan time.Time
	if f.idle > 0 {
		t := time.NewTimer(f.idle)
		defer t.Stop()
		idle = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.closed:
			return errEnd
		case <-idle:
			f.logger.Info("stream file idle, ending", "path", f.path, "idle_timeout", f.idle)
			return errEnd
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return errEnd
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			switch {
			case ev.Has(fsnotify.Write):
				return nil
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				f.logger.Warn("stream file went away, ending", "path", f.path, "op", ev.Op.String())
				return errEnd
			}
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return errEnd
			}
			return fmt.Errorf("follow %s: watcher: %w", f.path, err)
		}
	}
}

// Close stops following. A pending Next returns the remaining data, then
// io.EOF.
func (f *Follower) Close() error {
	var err error
	f.closeOnce.Do(func() {
		close(f.closed)
		err = errors.Join(f.watcher.Close(), f.file.Close())
	})
	return err
}
