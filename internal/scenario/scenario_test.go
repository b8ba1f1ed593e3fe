package scenario

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formmatic/formmatic/internal/persist"
)

func TestDefaultCatalog(t *testing.T) {
	r := Default()

	groups := r.Catalog()
	require.NotEmpty(t, groups)
	assert.Equal(t, "Transfer", groups[0].TransactionType)
	assert.Equal(t, "Simple Transfer", groups[0].Subsections[0].Name)

	stickers, ok := r.Lookup("Duplicate Stickers")
	require.True(t, ok)
	assert.Equal(t, []string{"Duplicate Stickers-Month", "Duplicate Stickers-Year"}, stickers.SubOptions)

	gift, ok := r.Lookup("Gift")
	require.True(t, ok, "plain labels decode as subsections")
	assert.Empty(t, gift.Opens)

	// Every transaction type is reachable from the catalog.
	opened := map[TransactionType]bool{}
	for _, g := range groups {
		for _, s := range g.Subsections {
			if s.Opens != "" {
				opened[s.Opens] = true
			}
		}
	}
	for _, tt := range TransactionTypes {
		assert.True(t, opened[tt], "transaction type %q has no catalog entry", tt)
	}
}

func TestParseRejectsBadCatalogs(t *testing.T) {
	_, err := Parse([]byte("- transactionType: X\n  subsections:\n    - name: A\n      opens: Teleport\n"))
	assert.ErrorIs(t, err, ErrUnknownTransactionType)

	_, err = Parse([]byte("- transactionType: X\n  subsections: [A, A]\n"))
	assert.Error(t, err)
}

func TestOpenReplacesTransaction(t *testing.T) {
	s := NewSelection(Default())

	tt, err := s.Open("Lien Holder Removal")
	require.NoError(t, err)
	assert.Equal(t, LienHolderRemoval, tt)

	tt, err = s.Open("Duplicate Title")
	require.NoError(t, err)
	assert.Equal(t, DuplicateTitleTransfer, tt)
	assert.False(t, s.ScenarioActive("Lien Holder Removal"))
	assert.True(t, s.ScenarioActive("Duplicate Title"))

	_, err = s.Open("Gift")
	assert.Error(t, err, "add-on scenarios do not open a transaction")
}

func TestSubOptionsNeedActiveParent(t *testing.T) {
	s := NewSelection(Default())

	err := s.SetSubOption("Duplicate Stickers-Month", true)
	assert.ErrorIs(t, err, ErrParentInactive)

	require.NoError(t, s.ToggleScenario("Duplicate Stickers", true))
	require.NoError(t, s.SetSubOption("Duplicate Stickers-Month", true))
	assert.True(t, s.SubOptionActive("Duplicate Stickers-Month"))
	assert.False(t, s.SubOptionActive("Duplicate Stickers-Year"))

	require.NoError(t, s.ToggleScenario("Duplicate Stickers", false))
	assert.False(t, s.SubOptionActive("Duplicate Stickers-Month"))
	assert.Empty(t, s.ActiveSubOptions())

	assert.ErrorIs(t, s.ToggleScenario("Teleport", true), ErrUnknownScenario)
	assert.ErrorIs(t, s.SetSubOption("Teleport-Now", true), ErrUnknownScenario)
}

func TestPersistRestoreClear(t *testing.T) {
	ctx := context.Background()
	store := persist.NewMemory()

	s := NewSelection(Default())
	_, err := s.Open("Duplicate Stickers")
	require.NoError(t, err)
	require.NoError(t, s.SetSubOption("Duplicate Stickers-Year", true))
	require.NoError(t, s.ToggleScenario("Power of Attorney", true))
	require.NoError(t, s.Persist(ctx, store))

	restored := NewSelection(Default())
	require.NoError(t, restored.Restore(ctx, store))
	assert.Equal(t, DuplicateStickers, restored.TransactionType())
	assert.Equal(t, "Duplicate Stickers", restored.SelectedSubsection())
	assert.Equal(t, []string{"Duplicate Stickers", "Power of Attorney"}, restored.ActiveNames())
	assert.True(t, restored.SubOptionActive("Duplicate Stickers-Year"))

	require.NoError(t, restored.ClearPersisted(ctx, store))
	assert.Empty(t, restored.ActiveScenarios())
	assert.Equal(t, TransactionType(""), restored.TransactionType())
	assert.Equal(t, 0, store.Len())
}

func TestRestoreDropsOrphanedSubOptions(t *testing.T) {
	ctx := context.Background()
	store := persist.NewMemory()
	require.NoError(t, store.Set(ctx, persist.KeyActiveScenarios, []byte(`{"Gift":true,"Bogus":true}`)))
	require.NoError(t, store.Set(ctx, persist.KeyActiveSubOptions, []byte(`{"Duplicate Stickers-Month":true}`)))

	s := NewSelection(Default())
	require.NoError(t, s.Restore(ctx, store))
	assert.Equal(t, []string{"Gift"}, s.ActiveNames())
	assert.Empty(t, s.ActiveSubOptions())
}
