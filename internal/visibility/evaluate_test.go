package visibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/uispec/internal/ir"
)

func doc(t *testing.T, s string) ir.Value {
	t.Helper()
	v, err := ir.UnmarshalValue([]byte(s))
	require.NoError(t, err)
	return v
}

func evalDoc(t *testing.T, cond string, ctx Context) bool {
	t.Helper()
	c, err := Parse(doc(t, cond))
	require.NoError(t, err)
	return Evaluate(c, ctx)
}

func TestEvaluateNilIsVisible(t *testing.T) {
	assert.True(t, Evaluate(nil, Context{}))

	c, err := Parse(nil)
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = Parse(ir.Null{})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestEvaluateLiterals(t *testing.T) {
	assert.True(t, evalDoc(t, `true`, Context{}))
	assert.False(t, evalDoc(t, `false`, Context{}))
}

func TestEvaluatePathTruthiness(t *testing.T) {
	truthy := Context{Data: doc(t, `{"isAdmin":true,"count":5,"name":"x","list":[]}`)}
	falsy := Context{Data: doc(t, `{"isAdmin":false,"count":0,"name":"","nothing":null}`)}

	for _, p := range []string{"/isAdmin", "/count", "/name", "/list"} {
		assert.True(t, evalDoc(t, `{"path":"`+p+`"}`, truthy), p)
	}
	for _, p := range []string{"/isAdmin", "/count", "/name", "/nothing", "/nonexistent"} {
		assert.False(t, evalDoc(t, `{"path":"`+p+`"}`, falsy), p)
	}
	assert.False(t, evalDoc(t, `{"path":"/anything"}`, Context{}))
}

func TestEvaluateAuth(t *testing.T) {
	in := Context{Auth: &AuthState{SignedIn: true}}
	out := Context{Auth: &AuthState{SignedIn: false}}
	none := Context{}

	assert.True(t, evalDoc(t, `{"auth":"signedIn"}`, in))
	assert.False(t, evalDoc(t, `{"auth":"signedIn"}`, out))
	assert.False(t, evalDoc(t, `{"auth":"signedIn"}`, none))

	assert.False(t, evalDoc(t, `{"auth":"signedOut"}`, in))
	assert.True(t, evalDoc(t, `{"auth":"signedOut"}`, out))
	assert.True(t, evalDoc(t, `{"auth":"signedOut"}`, none))
}

func TestEvaluateCombinators(t *testing.T) {
	ctx := Context{Data: doc(t, `{"a":true,"b":false}`)}

	assert.True(t, evalDoc(t, `{"and":[]}`, ctx))
	assert.False(t, evalDoc(t, `{"or":[]}`, ctx))
	assert.True(t, evalDoc(t, `{"and":[{"path":"/a"},true]}`, ctx))
	assert.False(t, evalDoc(t, `{"and":[{"path":"/a"},{"path":"/b"}]}`, ctx))
	assert.True(t, evalDoc(t, `{"or":[{"path":"/b"},{"path":"/a"}]}`, ctx))
	assert.False(t, evalDoc(t, `{"not":{"path":"/a"}}`, ctx))
	assert.True(t, evalDoc(t, `{"not":{"path":"/missing"}}`, ctx))
}

func TestDoubleNegation(t *testing.T) {
	ctx := Context{Data: doc(t, `{"a":1,"s":"x"}`), Auth: &AuthState{SignedIn: true}}
	conds := []Condition{
		Always, Never, SignedIn, SignedOut,
		When("/a"), When("/missing"),
		AllOf(), AnyOf(),
		Lt(Ref("/a"), Num(2)), Gt(Ref("/s"), Num(0)),
		Eq(Ref("/s"), Str("x")),
	}
	for _, c := range conds {
		assert.Equal(t, Evaluate(c, ctx), Evaluate(Negate(Negate(c)), ctx), "%#v", c)
	}
}

func TestEvaluateComparisons(t *testing.T) {
	tests := []struct {
		cond string
		want bool
	}{
		{`{"gt":[5,3]}`, true},
		{`{"gt":[3,5]}`, false},
		{`{"gt":[5,5]}`, false},
		{`{"gte":[5,5]}`, true},
		{`{"gte":[4,5]}`, false},
		{`{"lt":[3,5]}`, true},
		{`{"lt":[5,5]}`, false},
		{`{"lte":[5,5]}`, true},
		{`{"lte":[6,5]}`, false},
		{`{"eq":[1,1]}`, true},
		{`{"eq":["a","a"]}`, true},
		{`{"eq":[1,"1"]}`, false},
		{`{"eq":[null,null]}`, true},
		{`{"eq":[{"a":[1]},{"a":[1]}]}`, true},
		{`{"neq":[1,2]}`, true},
		{`{"neq":["x","x"]}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.cond, func(t *testing.T) {
			assert.Equal(t, tt.want, evalDoc(t, tt.cond, Context{}))
		})
	}
}

func TestEvaluatePathOperands(t *testing.T) {
	ctx := Context{Data: doc(t, `{"count":5,"limit":10}`)}

	assert.True(t, evalDoc(t, `{"lt":[{"path":"/count"},{"path":"/limit"}]}`, ctx))
	assert.True(t, evalDoc(t, `{"eq":[{"path":"/count"},5]}`, ctx))
	assert.False(t, evalDoc(t, `{"eq":[{"path":"/count"},{"path":"/missing"}]}`, ctx))
	assert.True(t, evalDoc(t, `{"eq":[{"path":"/nope"},{"path":"/missing"}]}`, ctx))
}

func TestExplainOrderedMismatch(t *testing.T) {
	ctx := Context{Data: doc(t, `{"name":"ada"}`)}
	c := MustParse(doc(t, `{"or":[{"gt":[{"path":"/name"},1]},{"lt":["a","b"]}]}`))

	result, err := Explain(c, ctx)
	assert.False(t, result)
	require.Error(t, err)

	var mismatch *MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, OpGt, mismatch.Op)
	assert.Equal(t, "string", mismatch.Left)
	assert.Equal(t, "number", mismatch.Right)
	assert.Contains(t, err.Error(), "lt: cannot order string against string")

	assert.Equal(t, result, Evaluate(c, ctx))
}

func TestExplainMissingOperand(t *testing.T) {
	_, err := Explain(Gt(Ref("/missing"), Num(1)), Context{})
	var mismatch *MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "undefined", mismatch.Left)
}

func TestExplainNoErrors(t *testing.T) {
	ok, err := Explain(Gt(Num(2), Num(1)), Context{})
	assert.True(t, ok)
	assert.NoError(t, err)
}

func TestEvaluateValue(t *testing.T) {
	ok, err := EvaluateValue(doc(t, `{"path":"/x"}`), Context{Data: doc(t, `{"x":1}`)})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = EvaluateValue(doc(t, `{"bogus":1}`), Context{})
	assert.False(t, ok)
	var pe *ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestEvaluateDoesNotMutateContext(t *testing.T) {
	data := doc(t, `{"a":{"b":1}}`)
	before := doc(t, `{"a":{"b":1}}`)
	auth := &AuthState{SignedIn: true}

	Evaluate(MustParse(doc(t, `{"and":[{"path":"/a/b"},{"auth":"signedIn"},{"gte":[{"path":"/a/b"},1]}]}`)), Context{Data: data, Auth: auth})

	assert.Equal(t, before, data)
	assert.True(t, auth.SignedIn)
}
