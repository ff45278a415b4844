package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/wavecrate/presetstore/internal/events"
	"github.com/wavecrate/presetstore/internal/models"
	"github.com/wavecrate/presetstore/internal/search"
	"github.com/wavecrate/presetstore/internal/testutil"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.OpenDB(t)
	return &Service{
		Repo:      &GormRepo{DB: db},
		Indexer:   search.Noop{},
		Publisher: events.Noop{},
	}, db
}

func TestCreateItem(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	ownerID := uuid.New()

	item, err := svc.CreateItem(ctx, ownerID, models.ItemPreset, CreateItemInput{
		Name:  "supersaw lead",
		Price: 4.99,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ItemPreset, item.Kind)
	assert.Equal(t, ownerID, item.OwnerID)

	// Creation seeds the ledger with the initial price.
	var history []models.PriceHistory
	require.NoError(t, db.Where("owner_kind = ? AND owner_id = ?",
		models.PriceOwnerPreset, item.ID).Find(&history).Error)
	require.Len(t, history, 1)
	assert.Equal(t, 4.99, history[0].Price)
}

func TestCreateItem_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateItem(ctx, uuid.New(), models.ItemPreset, CreateItemInput{Price: 1.00})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateItem(ctx, uuid.New(), models.ItemPreset, CreateItemInput{Name: "x", Price: -1.00})
	require.ErrorIs(t, err, ErrValidation)
}

func TestUpdatePrice_AppendsLedgerEntry(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	ownerID := uuid.New()

	item, err := svc.CreateItem(ctx, ownerID, models.ItemPack, CreateItemInput{
		Name:  "trance essentials",
		Price: 20.00,
	})
	require.NoError(t, err)

	updated, affected, err := svc.UpdatePrice(ctx, ownerID, item.Ref(), 25.00)
	require.NoError(t, err)
	assert.Equal(t, 25.00, updated.Price)
	assert.Zero(t, affected)

	var pack models.PresetPack
	require.NoError(t, db.First(&pack, "id = ?", item.ID).Error)
	assert.Equal(t, 25.00, pack.Price)

	var count int64
	require.NoError(t, db.Model(&models.PriceHistory{}).
		Where("owner_kind = ? AND owner_id = ?", models.PriceOwnerPack, item.ID).
		Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestUpdatePrice_SamePriceIsNoOp(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	ownerID := uuid.New()

	item, err := svc.CreateItem(ctx, ownerID, models.ItemPreset, CreateItemInput{
		Name:  "pluck",
		Price: 3.00,
	})
	require.NoError(t, err)

	_, _, err = svc.UpdatePrice(ctx, ownerID, item.Ref(), 3.00)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.PriceHistory{}).
		Where("owner_id = ?", item.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestUpdatePrice_FansOutToCartLines(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	ownerID := uuid.New()

	item, err := svc.CreateItem(ctx, ownerID, models.ItemPreset, CreateItemInput{
		Name:  "wobble bass",
		Price: 10.00,
	})
	require.NoError(t, err)

	// Two buyers hold the item in a cart, one more in a wishlist.
	var lineIDs []uuid.UUID
	for range 3 {
		c := models.Cart{UserID: uuid.New(), Kind: models.ListCart}
		require.NoError(t, db.Create(&c).Error)
		line := models.CartItem{CartID: c.ID, ItemKind: item.Kind, ItemID: item.ID, Quantity: 1}
		require.NoError(t, db.Create(&line).Error)
		_, err := svc.Ledger.Record(ctx, db, models.PriceOwnerCartItem, line.ID, 10.00)
		require.NoError(t, err)
		lineIDs = append(lineIDs, line.ID)
	}

	_, affected, err := svc.UpdatePrice(ctx, ownerID, item.Ref(), 12.00)
	require.NoError(t, err)
	assert.Equal(t, 3, affected)

	for _, id := range lineIDs {
		var latest models.PriceHistory
		require.NoError(t, db.Where("owner_kind = ? AND owner_id = ?",
			models.PriceOwnerCartItem, id).
			Order("created_at DESC").First(&latest).Error)
		assert.Equal(t, 12.00, latest.Price)
	}
}

func TestUpdatePrice_OnlyOwner(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, uuid.New(), models.ItemPreset, CreateItemInput{
		Name:  "arp",
		Price: 6.00,
	})
	require.NoError(t, err)

	_, _, err = svc.UpdatePrice(ctx, uuid.New(), item.Ref(), 7.00)
	require.ErrorIs(t, err, ErrForbidden)

	got, err := svc.GetItem(ctx, item.Ref())
	require.NoError(t, err)
	assert.Equal(t, 6.00, got.Price)
}

func TestUpdatePrice_UnknownItem(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.UpdatePrice(context.Background(), uuid.New(),
		ItemRef{Kind: models.ItemPack, ID: uuid.New()}, 5.00)
	require.ErrorIs(t, err, ErrNotFound)
}
