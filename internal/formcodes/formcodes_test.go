package formcodes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formmatic/formmatic/internal/formdoc"
	"github.com/formmatic/formmatic/internal/formdoc/formdoctest"
	"github.com/formmatic/formmatic/internal/scenario"
)

func codes(t *testing.T, tt scenario.TransactionType, doc formdoc.Document, sel *scenario.Selection) []string {
	t.Helper()
	var forms []Form
	var err error
	if sel == nil {
		forms, err = Default().Codes(tt, doc, nil)
	} else {
		forms, err = Default().Codes(tt, doc, sel)
	}
	require.NoError(t, err)
	return CodeList(forms)
}

func TestSimpleTransfer(t *testing.T) {
	doc := formdoctest.SimpleTransfer()
	assert.Equal(t, []string{"DMVREG262", "Reg138"}, codes(t, scenario.SimpleTransfer, doc, nil))

	doc["vehicleTransactionDetails"] = map[string]any{"withTitle": false, "isOutOfStateTitle": true}
	assert.Equal(t, []string{"Reg227", "DMVREG262", "Reg343", "Reg138"}, codes(t, scenario.SimpleTransfer, doc, nil))
}

func TestOutOfStateFlagAddsReg343(t *testing.T) {
	for _, tt := range []scenario.TransactionType{scenario.SimpleTransfer, scenario.InheritanceTransfer, scenario.DuplicateTitleTransfer} {
		doc := formdoc.Document{"vehicleTransactionDetails": map[string]any{"withTitle": true}}
		assert.NotContains(t, codes(t, tt, doc, nil), "Reg343", tt)

		doc["vehicleTransactionDetails"] = map[string]any{"withTitle": true, "isOutOfStateTitle": true}
		assert.Contains(t, codes(t, tt, doc, nil), "Reg343", tt)
	}
}

func TestDeterministicAndDeduplicated(t *testing.T) {
	sel := scenario.NewSelection(scenario.Default())
	require.NoError(t, sel.ToggleScenario("Statement of Facts", true))
	require.NoError(t, sel.ToggleScenario("Gift", true))
	doc := formdoctest.SimpleTransfer()

	first := codes(t, scenario.SimpleTransfer, doc, sel)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, codes(t, scenario.SimpleTransfer, doc, sel))
	}
	n := 0
	for _, c := range first {
		if c == "Reg256" {
			n++
		}
	}
	assert.Equal(t, 1, n)
}

func TestCommonForms(t *testing.T) {
	sel := scenario.NewSelection(scenario.Default())
	require.NoError(t, sel.ToggleScenario("Power of Attorney", true))
	require.NoError(t, sel.ToggleScenario("Mailing Address", true))

	got := codes(t, scenario.DuplicateRegistration, nil, sel)
	assert.Equal(t, []string{"Reg156", "Reg260", "DMV14"}, got)
}

func TestEveryTransactionPrintsSomething(t *testing.T) {
	table := Default()
	for _, tt := range scenario.TransactionTypes {
		assert.NotEmpty(t, table.Possible(tt), tt)
	}
	assert.Equal(t, "Statement of Facts", table.Title("Reg256"))
	assert.Equal(t, "Nope", table.Title("Nope"))
}

func TestUnknownTransaction(t *testing.T) {
	_, err := Default().Codes("Teleport", nil, nil)
	assert.ErrorIs(t, err, scenario.ErrUnknownTransactionType)
}

func TestParseChecksTable(t *testing.T) {
	_, err := Parse([]byte("forms: {A: a}\ntransactions:\n  Name Change:\n    - code: B\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("forms: {A: a}\ntransactions:\n  Name Change:\n    - code: A\n"))
	assert.ErrorContains(t, err, "no forms for")
}

func TestKnownAndTitle(t *testing.T) {
	table := Default()
	assert.True(t, table.Known("Reg343"))
	assert.Equal(t, "Application for Title or Registration", table.Title("Reg343"))
	assert.False(t, table.Known("Reg999"))
	assert.Equal(t, "Reg999", table.Title("Reg999"))
}
