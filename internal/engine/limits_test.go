package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitEnforcer_PatchCap(t *testing.T) {
	l := NewLimitEnforcer(0, 2)

	require.NoError(t, l.CheckPatch())
	require.NoError(t, l.CheckPatch())

	err := l.CheckPatch()
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeLimitExceeded))
	assert.Equal(t, 3, l.Patches())

	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "patches", ee.Details["limit"])
	assert.Equal(t, "2", ee.Details["max"])
}

func TestLimitEnforcer_ElementCap(t *testing.T) {
	l := NewLimitEnforcer(3, 0)

	assert.NoError(t, l.CheckElements(3))
	err := l.CheckElements(4)
	assert.True(t, IsCode(err, CodeLimitExceeded))
}

func TestLimitEnforcer_ZeroDisables(t *testing.T) {
	l := NewLimitEnforcer(0, 0)
	for i := 0; i < 1000; i++ {
		require.NoError(t, l.CheckPatch())
	}
	assert.NoError(t, l.CheckElements(1<<20))
}

func TestLimitEnforcer_Reset(t *testing.T) {
	l := NewLimitEnforcer(0, 1)
	require.NoError(t, l.CheckPatch())
	l.Reset()
	assert.Equal(t, 0, l.Patches())
	assert.NoError(t, l.CheckPatch())
}
