package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/uispec/internal/engine"
	"github.com/roach88/uispec/internal/ir"
)

func TestCollectors_StreamActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	s := engine.NewStream(engine.NewTree(0), engine.WithMetrics(c))
	ctx := context.Background()
	require.NoError(t, s.ApplyLine(ctx, []byte(`{"op":"set","path":"/root","value":"a"}`)))
	require.NoError(t, s.ApplyLine(ctx, []byte(`{"op":"add","path":"/elements/a","value":{"type":"Text","props":{}}}`)))
	_ = s.ApplyLine(ctx, []byte(`not json`))
	s.Settle()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.PatchesApplied.WithLabelValues("set")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.PatchesApplied.WithLabelValues("add")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.PatchesMalformed))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Diagnostics.WithLabelValues(string(engine.CodeMalformedPatch))))
	assert.Equal(t, float64(engine.StateSettled), testutil.ToFloat64(c.State))
}

func TestCollectors_ActionOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := MustNew(reg)

	sess := engine.NewSession(engine.WithMetrics(c))
	sess.Register("save", func(context.Context, ir.Object) (ir.Value, error) { return nil, nil })
	sess.Register("fail", func(context.Context, ir.Object) (ir.Value, error) { return nil, errors.New("nope") })

	ctx := context.Background()
	_, err := sess.Dispatch(ctx, ir.Action{Name: "save"}, nil)
	require.NoError(t, err)
	_, err = sess.Dispatch(ctx, ir.Action{Name: "save"}, nil)
	require.NoError(t, err)
	_, _ = sess.Dispatch(ctx, ir.Action{Name: "fail"}, nil)

	expected := `
# HELP uispec_actions_total Resolved action invocations, by action name and outcome.
# TYPE uispec_actions_total counter
uispec_actions_total{name="fail",outcome="error"} 1
uispec_actions_total{name="save",outcome="success"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "uispec_actions_total"))
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestNew_Unregistered(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)
	c.Diagnostic("")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Diagnostics.WithLabelValues("UNKNOWN")))
}
