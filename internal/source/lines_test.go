package source

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/uispec/internal/engine"
)

var _ engine.FrameSource = (*LineReader)(nil)

const cardJSONL = `{"op":"set","path":"/root","value":"card"}

{"op":"add","path":"/elements/card","value":{"type":"Card","props":{"title":"Hello"},"children":["body"]}}
   
{"op":"add","path":"/elements/body","value":{"type":"Text","props":{"text":"World"}}}
`

func drain(t *testing.T, src Source) []string {
	t.Helper()
	var frames []string
	for {
		frame, err := src.Next(context.Background())
		if err == io.EOF {
			return frames
		}
		require.NoError(t, err)
		frames = append(frames, string(frame))
	}
}

func TestLines_SkipsBlankLines(t *testing.T) {
	frames := drain(t, Lines(strings.NewReader(cardJSONL)))
	require.Len(t, frames, 3)
	assert.Equal(t, `{"op":"set","path":"/root","value":"card"}`, frames[0])
}

func TestLines_NoTrailingNewline(t *testing.T) {
	frames := drain(t, Lines(strings.NewReader(`{"op":"remove","path":"/elements/x"}`)))
	assert.Equal(t, []string{`{"op":"remove","path":"/elements/x"}`}, frames)
}

func TestLines_FrameTooLongIsSkipped(t *testing.T) {
	input := `{"op":"set","path":"/root","value":"card"}` + "\n" +
		strings.Repeat("x", MaxFrameSize+1) + "\n" +
		`{"op":"add","path":"/elements/card","value":{"type":"Card","props":{}}}` + "\n"
	r := Lines(strings.NewReader(input))
	ctx := context.Background()

	frame, err := r.Next(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(frame), `"/root"`)

	_, err = r.Next(ctx)
	assert.ErrorIs(t, err, ErrFrameTooLong)

	frame, err = r.Next(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(frame), `"/elements/card"`)

	_, err = r.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestLines_FrameAtLimit(t *testing.T) {
	exact := strings.Repeat("x", MaxFrameSize)
	frames := drain(t, Lines(strings.NewReader(exact+"\r\n")))
	require.Len(t, frames, 1)
	assert.Len(t, frames[0], MaxFrameSize)

	_, err := Lines(strings.NewReader(exact + "x")).Next(context.Background())
	assert.ErrorIs(t, err, ErrFrameTooLong, "an unterminated last line is bounded too")
}

func TestLines_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Lines(strings.NewReader(cardJSONL)).Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLines_DrivesStream(t *testing.T) {
	tree := engine.NewTree(0)
	s := engine.NewStream(tree)
	require.NoError(t, s.Consume(context.Background(), Lines(strings.NewReader(cardJSONL))))

	assert.Equal(t, engine.StateSettled, s.State())
	spec := tree.Snapshot().Spec
	assert.Equal(t, "card", spec.Root)
	assert.Len(t, spec.Elements, 2)
}

func TestLines_OversizedFrameDoesNotAbortStream(t *testing.T) {
	input := `{"op":"set","path":"/root","value":"card"}` + "\n" +
		strings.Repeat("x", MaxFrameSize+1) + "\n" +
		`{"op":"add","path":"/elements/card","value":{"type":"Card","props":{}}}` + "\n"
	tree := engine.NewTree(0)
	s := engine.NewStream(tree)

	require.NoError(t, s.Consume(context.Background(), Lines(strings.NewReader(input))))
	assert.Equal(t, engine.StateSettled, s.State())
	assert.Equal(t, 1, tree.Len())
	require.Len(t, s.Diagnostics(), 1)
	assert.Equal(t, engine.CodeMalformedPatch, s.Diagnostics()[0].Code)
}
