package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/nats-io/nats.go"
)

// msgBuffer bounds how many undelivered frames a subscription holds.
const msgBuffer = 256

// Messages reads frames published on a NATS subject. Each message carries
// one JSON patch. A message with an empty payload, a closed channel or a
// call to Close ends the stream.
type Messages struct {
	ch  <-chan *nats.Msg
	sub *nats.Subscription

	mu    sync.Mutex
	ended bool

	closeOnce sync.Once
	closed    chan struct{}
}

// FromChannel wraps a channel of NATS messages, as delivered by a channel
// subscription.
func FromChannel(ch <-chan *nats.Msg) *Messages {
	return &Messages{ch: ch, closed: make(chan struct{})}
}

// Subscribe creates a channel subscription to subject on nc.
func Subscribe(nc *nats.Conn, subject string) (*Messages, error) {
	ch := make(chan *nats.Msg, msgBuffer)
	sub, err := nc.ChanSubscribe(subject, ch)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	m := FromChannel(ch)
	m.sub = sub
	return m, nil
}

// Connect dials url and subscribes to subject. Closing the returned
// Messages also closes the connection.
func Connect(url, subject string, opts ...nats.Option) (*Messages, func(), error) {
	opts = append([]nats.Option{nats.Name("uispec")}, opts...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}
	m, err := Subscribe(nc, subject)
	if err != nil {
		nc.Close()
		return nil, nil, err
	}
	closer := func() {
		_ = m.Close()
		nc.Close()
	}
	return m, closer, nil
}

// Next returns the next message payload.
func (m *Messages) Next(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	ended := m.ended
	m.mu.Unlock()
	if ended {
		return nil, io.EOF
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.closed:
		return nil, io.EOF
	case msg, ok := <-m.ch:
		if !ok || len(msg.Data) == 0 {
			m.end()
			return nil, io.EOF
		}
		if len(msg.Data) > MaxFrameSize {
			return nil, fmt.Errorf("nats frame on %s: %d bytes: %w", msg.Subject, len(msg.Data), ErrFrameTooLong)
		}
		frame := make([]byte, len(msg.Data))
		copy(frame, msg.Data)
		return frame, nil
	}
}

func (m *Messages) end() {
	m.mu.Lock()
	m.ended = true
	m.mu.Unlock()
}

// Close ends the stream and drops the subscription, if there is one. A
// blocked Next returns io.EOF.
func (m *Messages) Close() error {
	m.end()
	m.closeOnce.Do(func() { close(m.closed) })
	if m.sub == nil {
		return nil
	}
	if err := m.sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) && !errors.Is(err, nats.ErrBadSubscription) {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	return nil
}
