package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavecrate/presetstore/internal/models"
	"github.com/wavecrate/presetstore/internal/testutil"
)

func TestLedger_Record_AppendsOnlyOnChange(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	var ledger Ledger
	presetID := uuid.New()

	entry, err := ledger.Record(ctx, db, models.PriceOwnerPreset, presetID, 10.00)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 10.00, entry.Price)

	// Same price again is a no-op.
	entry, err = ledger.Record(ctx, db, models.PriceOwnerPreset, presetID, 10.00)
	require.NoError(t, err)
	assert.Nil(t, entry)

	entry, err = ledger.Record(ctx, db, models.PriceOwnerPreset, presetID, 12.00)
	require.NoError(t, err)
	require.NotNil(t, entry)

	var count int64
	require.NoError(t, db.Model(&models.PriceHistory{}).
		Where("owner_id = ?", presetID).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestLedger_Record_IgnoresFloatNoise(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	var ledger Ledger
	presetID := uuid.New()

	_, err := ledger.Record(ctx, db, models.PriceOwnerPreset, presetID, 19.99)
	require.NoError(t, err)

	entry, err := ledger.Record(ctx, db, models.PriceOwnerPreset, presetID, 19.990000000001)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestLedger_History_MostRecentFirst(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	var ledger Ledger
	presetID := uuid.New()
	lineID := uuid.New()

	now := time.Now().UTC()
	for i, p := range []struct {
		kind  models.PriceOwnerKind
		id    uuid.UUID
		price float64
	}{
		{models.PriceOwnerPreset, presetID, 10.00},
		{models.PriceOwnerCartItem, lineID, 10.00},
		{models.PriceOwnerPreset, presetID, 12.00},
	} {
		entry := models.PriceHistory{
			OwnerKind: p.kind,
			OwnerID:   p.id,
			Price:     p.price,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, db.Create(&entry).Error)
	}

	history, err := ledger.History(ctx, db,
		Owner{Kind: models.PriceOwnerPreset, ID: presetID},
		Owner{Kind: models.PriceOwnerCartItem, ID: lineID},
	)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 12.00, history[0].Price)
}

func TestLedger_DeleteFor_RemovesOnlyOwnedEntries(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	var ledger Ledger
	presetID := uuid.New()
	lineID := uuid.New()

	_, err := ledger.Record(ctx, db, models.PriceOwnerPreset, presetID, 5.00)
	require.NoError(t, err)
	_, err = ledger.Record(ctx, db, models.PriceOwnerCartItem, lineID, 5.00)
	require.NoError(t, err)

	require.NoError(t, ledger.DeleteFor(ctx, db, models.PriceOwnerCartItem, lineID))

	var count int64
	require.NoError(t, db.Model(&models.PriceHistory{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	entries := func(prices ...float64) []models.PriceHistory {
		out := make([]models.PriceHistory, 0, len(prices))
		for _, p := range prices {
			out = append(out, models.PriceHistory{Price: p})
		}
		return out
	}

	t.Run("twenty percent up", func(t *testing.T) {
		change := Summarize(entries(12.00, 10.00))
		require.NotNil(t, change)
		assert.Equal(t, 10.00, change.OldPrice)
		require.NotNil(t, change.PercentChange)
		assert.InDelta(t, 20.0, *change.PercentChange, 0.0001)
	})

	t.Run("skips repeated prices", func(t *testing.T) {
		change := Summarize(entries(12.00, 12.00, 10.00))
		require.NotNil(t, change)
		assert.Equal(t, 10.00, change.OldPrice)
	})

	t.Run("no distinct previous price", func(t *testing.T) {
		assert.Nil(t, Summarize(entries(10.00, 10.00)))
		assert.Nil(t, Summarize(entries(10.00)))
		assert.Nil(t, Summarize(nil))
	})

	t.Run("previous price zero has no percentage", func(t *testing.T) {
		change := Summarize(entries(5.00, 0.00))
		require.NotNil(t, change)
		assert.Equal(t, 0.00, change.OldPrice)
		assert.Nil(t, change.PercentChange)
	})
}
