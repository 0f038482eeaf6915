package visibility

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/uispec/internal/ir"
)

func TestParseShapes(t *testing.T) {
	tests := []struct {
		input string
		want  Condition
	}{
		{`true`, Literal(true)},
		{`{"path":"/a"}`, Path{Path: "/a"}},
		{`{"auth":"signedOut"}`, SignedOut},
		{`{"and":[true,{"path":"/x"}]}`, And{Conditions: []Condition{Literal(true), Path{Path: "/x"}}}},
		{`{"or":[]}`, Or{Conditions: []Condition{}}},
		{`{"not":{"not":false}}`, Not{Condition: Not{Condition: Literal(false)}}},
		{`{"lte":[{"path":"/n"},3]}`, Compare{Op: OpLte, Left: Ref("/n"), Right: Num(3)}},
		{`{"eq":[{"path":"/n","x":1},"s"]}`, Compare{Op: OpEq, Left: Val(ir.Object{"path": ir.String("/n"), "x": ir.Number(1)}), Right: Str("s")}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(doc(t, tt.input))
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		path  string
	}{
		{`"visible"`, ""},
		{`3`, ""},
		{`{}`, ""},
		{`{"path":"/a","auth":"signedIn"}`, ""},
		{`{"path":1}`, "path"},
		{`{"auth":"admin"}`, "auth"},
		{`{"and":{"path":"/a"}}`, "and"},
		{`{"or":[true,{"nope":1}]}`, "or[1]"},
		{`{"not":{"eq":[1]}}`, "not.eq"},
		{`{"between":[1,2]}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := Parse(doc(t, tt.input))
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.path, pe.Path)
		})
	}
}

func TestToValueRoundTrip(t *testing.T) {
	inputs := []string{
		`true`,
		`{"path":"/a"}`,
		`{"auth":"signedIn"}`,
		`{"and":[{"or":[{"path":"/a"},false]},{"not":{"auth":"signedOut"}}]}`,
		`{"gt":[{"path":"/count"},{"path":"/limit"}]}`,
		`{"neq":[null,"x"]}`,
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			v := doc(t, in)
			assert.Equal(t, v, ToValue(MustParse(v)))
		})
	}
	assert.Nil(t, ToValue(nil))
}

func TestBuildersMatchDocuments(t *testing.T) {
	assert.Equal(t, doc(t, `{"path":"/user/isAdmin"}`), ToValue(When("/user/isAdmin")))
	assert.Equal(t, doc(t, `{"auth":"signedIn"}`), ToValue(SignedIn))
	assert.Equal(t, doc(t, `{"eq":[{"path":"/a"},{"path":"/b"}]}`), ToValue(Eq(Ref("/a"), Ref("/b"))))
	assert.Equal(t, doc(t, `{"gt":[5,3]}`), ToValue(Gt(Num(5), Num(3))))
	assert.Equal(t, doc(t, `{"gte":[5,5]}`), ToValue(Gte(Num(5), Num(5))))
	assert.Equal(t, doc(t, `{"lt":[3,5]}`), ToValue(Lt(Num(3), Num(5))))
	assert.Equal(t, doc(t, `{"lte":[5,5]}`), ToValue(Lte(Num(5), Num(5))))
	assert.Equal(t, doc(t, `{"neq":["a","b"]}`), ToValue(Neq(Str("a"), Str("b"))))
	assert.Equal(t, doc(t, `{"and":[true,false]}`), ToValue(AllOf(Always, Never)))
	assert.Equal(t, doc(t, `{"or":[{"auth":"signedOut"}]}`), ToValue(AnyOf(SignedOut)))
}

func TestPaths(t *testing.T) {
	c := MustParse(doc(t, `{"and":[{"path":"/a"},{"not":{"lt":[{"path":"/b"},{"path":"/c"}]}},{"auth":"signedIn"},{"eq":[1,2]}]}`))
	assert.Equal(t, []string{"/a", "/b", "/c"}, Paths(c))
	assert.Empty(t, Paths(nil))
}
