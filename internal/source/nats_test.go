package source

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/uispec/internal/engine"
)

func natsFrames(frames ...string) chan *nats.Msg {
	ch := make(chan *nats.Msg, len(frames)+1)
	for _, f := range frames {
		ch <- &nats.Msg{Subject: "ui.patches", Data: []byte(f)}
	}
	return ch
}

func TestMessages_EmptyPayloadEnds(t *testing.T) {
	ch := natsFrames(`{"op":"set","path":"/root","value":"a"}`, "")
	m := FromChannel(ch)

	frame, err := m.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"op":"set","path":"/root","value":"a"}`, string(frame))

	_, err = m.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)

	ch <- &nats.Msg{Data: []byte(`{"late":true}`)}
	_, err = m.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF, "nothing is read after the end marker")
}

func TestMessages_ClosedChannelEnds(t *testing.T) {
	ch := natsFrames(`{"a":1}`)
	close(ch)

	frames := drain(t, FromChannel(ch))
	assert.Equal(t, []string{`{"a":1}`}, frames)
}

func TestMessages_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := FromChannel(make(chan *nats.Msg)).Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMessages_CloseWithoutSubscription(t *testing.T) {
	m := FromChannel(natsFrames(`{"a":1}`))
	require.NoError(t, m.Close())
	_, err := m.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestMessages_DrivesStream(t *testing.T) {
	ch := natsFrames(
		`{"op":"set","path":"/root","value":"t"}`,
		`{"op":"add","path":"/elements/t","value":{"type":"Text","props":{"text":"hi"}}}`,
		"",
	)
	tree := engine.NewTree(0)
	s := engine.NewStream(tree)
	require.NoError(t, s.Consume(context.Background(), FromChannel(ch)))

	assert.Equal(t, engine.StateSettled, s.State())
	assert.Equal(t, int64(2), tree.Snapshot().Seq)
}

func TestMessages_OversizedPayloadIsSkipped(t *testing.T) {
	m := FromChannel(natsFrames(strings.Repeat("x", MaxFrameSize+1), `{"a":1}`))

	_, err := m.Next(context.Background())
	assert.ErrorIs(t, err, ErrFrameTooLong)

	frame, err := m.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(frame))
}

func TestMessages_CloseWakesBlockedNext(t *testing.T) {
	m := FromChannel(make(chan *nats.Msg))
	errs := make(chan error, 1)
	go func() {
		_, err := m.Next(context.Background())
		errs <- err
	}()

	require.NoError(t, m.Close())
	assert.ErrorIs(t, <-errs, io.EOF)
	require.NoError(t, m.Close(), "idempotent")
}
