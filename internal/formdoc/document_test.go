package formdoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathReads(t *testing.T) {
	doc, err := Parse([]byte(`{
		"_id": 12,
		"owners": [{"firstName": "Ana", "lastName": "Ruiz"}, {"firstName": ""}],
		"vehicleTransactionDetails": {"isOutOfStateTitle": true, "currentLienholder": false}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "12", doc.ID())
	assert.Equal(t, "Ana", doc.String("owners.0.firstName"))
	assert.Equal(t, "", doc.String("owners.1.firstName"))
	assert.Equal(t, "", doc.String("owners.5.firstName"))
	assert.Equal(t, 2, doc.Len("owners"))
	assert.Equal(t, 0, doc.Len("sellerInfo"))
	assert.True(t, doc.Bool("vehicleTransactionDetails.isOutOfStateTitle"))
	assert.False(t, doc.Bool("vehicleTransactionDetails.currentLienholder"))
	assert.False(t, doc.Bool("vehicleTransactionDetails.missing"))
}

func TestCloneIsDeep(t *testing.T) {
	doc := Document{"owners": []any{map[string]any{"firstName": "Ana"}}}
	cp := doc.Clone()
	cp["owners"].([]any)[0].(map[string]any)["firstName"] = "Bea"

	assert.Equal(t, "Ana", doc.String("owners.0.firstName"))
	assert.Equal(t, "Bea", cp.String("owners.0.firstName"))
}

func TestSetIDAndNormalize(t *testing.T) {
	doc := Document{}
	assert.Equal(t, "", doc.ID())
	doc.SetID("abc")
	assert.Equal(t, "abc", doc.ID())

	type rec struct {
		Year int `json:"year"`
	}
	v, err := Normalize(rec{Year: 2004})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"year": float64(2004)}, v)
}
