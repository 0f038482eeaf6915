package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogBuffer(t *testing.T) {
	buf, log := NewLogBuffer()
	log.Debug("stream settled", "seq", 3)

	assert.Contains(t, buf.String(), `"msg":"stream settled"`)
	assert.Contains(t, buf.String(), `"seq":3`)
}

func TestDiscardLogger(t *testing.T) {
	assert.NotPanics(t, func() { DiscardLogger().Error("dropped") })
}
