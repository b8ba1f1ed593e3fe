package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formmatic/formmatic/internal/formdoc"
)

type fakeFlags map[string]bool

func (f fakeFlags) ScenarioActive(name string) bool    { return f[name] }
func (f fakeFlags) SubOptionActive(option string) bool { return f[option] }

func TestHelpers(t *testing.T) {
	doc := formdoc.Document{
		"vehicleTransactionDetails": map[string]any{"withTitle": true},
		"owners":                    []any{map[string]any{"state": "CA"}, map[string]any{"state": "NV"}},
	}
	facts := NewFacts(doc, "Simple Transfer", fakeFlags{"Gift": true, "Duplicate Stickers-Month": true})

	cases := []struct {
		expr string
		want bool
	}{
		{``, true},
		{`flag("vehicleTransactionDetails.withTitle")`, true},
		{`!flag("vehicleTransactionDetails.currentLienholder")`, true},
		{`text("owners.1.state") == "NV"`, true},
		{`count("owners") == 2`, true},
		{`count("sellerInfo.sellers") > 0`, false},
		{`scenario("Gift") && !scenario("Family Transfer")`, true},
		{`subOption("Duplicate Stickers-Month")`, true},
		{`transactionType == "Simple Transfer"`, true},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			r, err := Compile(tc.expr)
			require.NoError(t, err)
			got, err := r.Eval(facts)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNilFlags(t *testing.T) {
	r := MustCompile(`scenario("Gift")`)
	ok, err := r.Eval(NewFacts(nil, "", nil))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompileErrors(t *testing.T) {
	_, err := Compile(`flag(`)
	assert.Error(t, err)

	_, err = Compile(`count("owners")`)
	assert.Error(t, err, "rules must be boolean")

	var r Rule
	assert.Error(t, r.UnmarshalText([]byte(`nosuch("x")`)))
	require.NoError(t, r.UnmarshalText([]byte(`flag("a")`)))
	assert.Equal(t, `flag("a")`, r.String())
}

func TestCompileReusesPrograms(t *testing.T) {
	a, err := Compile(`scenario("Gift") && count("owners") > 1`)
	require.NoError(t, err)
	b, err := Compile(`scenario("Gift") && count("owners") > 1`)
	require.NoError(t, err)
	assert.Same(t, a.program, b.program)

	c := MustCompile(`scenario("Gift")`)
	assert.NotSame(t, a.program, c.program)

	ok, err := b.Eval(NewFacts(formdoc.Document{"owners": []any{1, 2}}, "", fakeFlags{"Gift": true}))
	require.NoError(t, err)
	assert.True(t, ok)
}
