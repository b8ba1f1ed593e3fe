package formstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetMultipleTransferGrowsAndShrinks(t *testing.T) {
	s := New(nil, nil)
	assert.False(t, s.IsMultipleTransfer())
	assert.Nil(t, s.TransferIDs())

	s.SetMultipleTransfer(1)
	require.NoError(t, s.UpdateTransferField(0, "vehicleInformation", map[string]any{"hullId": "1HGCM82633A004352", "make": "Honda", "model": "Accord"}))

	s.SetMultipleTransfer(3)
	transfers := s.Transfers()
	require.Len(t, transfers, 3)
	assert.Equal(t, "Honda", transfers[2].String("vehicleInformation.make"))
	assert.Empty(t, transfers[2].String("vehicleInformation.model"), "only synced fields are copied")

	s.SetMultipleTransfer(2)
	assert.Equal(t, 2, s.TransferCount())

	s.SetMultipleTransfer(0)
	assert.False(t, s.IsMultipleTransfer())
}

func TestVehicleFieldsStaySynced(t *testing.T) {
	s := New(nil, nil)
	s.SetMultipleTransfer(3)

	require.NoError(t, s.UpdateTransferField(1, "vehicleInformation", map[string]any{"hullId": "ABC123", "make": "Bayliner", "year": "2004", "color": "white"}))
	for i, doc := range s.Transfers() {
		assert.Equal(t, "ABC123", doc.String("vehicleInformation.hullId"), "transfer %d", i)
		assert.Equal(t, "2004", doc.String("vehicleInformation.year"), "transfer %d", i)
	}
	assert.Empty(t, s.Transfers()[0].String("vehicleInformation.color"))

	require.NoError(t, s.SyncVehicleField("year", "2005"))
	for _, doc := range s.Transfers() {
		assert.Equal(t, "2005", doc.String("vehicleInformation.year"))
	}

	assert.Error(t, s.SyncVehicleField("color", "red"))
}

func TestTransferIDs(t *testing.T) {
	s := New(nil, nil)
	assert.ErrorIs(t, s.SetTransferID(0, "x"), ErrNotMultiple)

	s.SetMultipleTransfer(2)
	require.NoError(t, s.SetTransferID(1, "tx-2"))
	assert.Equal(t, []string{"", "tx-2"}, s.TransferIDs())
	assert.ErrorIs(t, s.SetTransferID(2, "tx-3"), ErrTransferIndex)
	assert.ErrorIs(t, s.UpdateTransferField(-1, "address", nil), ErrTransferIndex)
	assert.ErrorIs(t, s.UpdateTransferField(0, "address", map[string]any{"bogus": 1}), ErrSchemaMismatch)
}
