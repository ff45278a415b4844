package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/wavecrate/presetstore/internal/cart"
	"github.com/wavecrate/presetstore/internal/catalog"
	"github.com/wavecrate/presetstore/internal/checkout"
	"github.com/wavecrate/presetstore/internal/events"
	"github.com/wavecrate/presetstore/internal/models"
	"github.com/wavecrate/presetstore/internal/payments/stripe"
	"github.com/wavecrate/presetstore/internal/testutil"
)

const testSecret = "whsec_test"

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.OpenDB(t)
	return &Service{
		DB:            db,
		Carts:         &cart.Service{Repo: &cart.GormRepo{DB: db}},
		Publisher:     events.Noop{},
		WebhookSecret: testSecret,
	}, db
}

func seedPreset(t *testing.T, db *gorm.DB, price float64) catalog.ItemRef {
	t.Helper()
	preset := models.Preset{OwnerID: uuid.New(), Name: "riser", Price: price}
	require.NoError(t, db.Create(&preset).Error)
	return catalog.ItemRef{Kind: models.ItemPreset, ID: preset.ID}
}

// completedPayload builds a signed checkout.session.completed delivery.
func completedPayload(t *testing.T, eventID, sessionID string, amountTotal int64, metadata map[string]string) (payload []byte, sigHeader string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":      eventID,
		"type":    stripe.EventCheckoutCompleted,
		"created": time.Now().Unix(),
		"data": map[string]any{
			"object": map[string]any{
				"id":           sessionID,
				"amount_total": amountTotal,
				"currency":     "usd",
				"metadata":     metadata,
			},
		},
	})
	require.NoError(t, err)
	return payload, stripe.SignPayload(payload, testSecret, time.Now())
}

func metadataFor(t *testing.T, userID uuid.UUID, entries ...checkout.ManifestEntry) map[string]string {
	t.Helper()
	manifest, err := json.Marshal(entries)
	require.NoError(t, err)
	return map[string]string{
		checkout.MetadataUserID: userID.String(),
		checkout.MetadataCart:   string(manifest),
	}
}

func TestHandleEvent_RejectsBadSignature(t *testing.T) {
	svc, db := newTestService(t)
	userID := uuid.New()
	ref := seedPreset(t, db, 9.99)

	payload, _ := completedPayload(t, "evt_1", "cs_1", 999, metadataFor(t, userID,
		checkout.ManifestEntry{ID: ref.ID, Type: ref.Kind, Price: 9.99}))

	err := svc.HandleEvent(context.Background(), payload,
		stripe.SignPayload(payload, "whsec_other", time.Now()))
	require.ErrorIs(t, err, stripe.ErrInvalidSignature)

	err = svc.HandleEvent(context.Background(), payload, "")
	require.ErrorIs(t, err, stripe.ErrInvalidSignature)

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestHandleEvent_MaterializesOrder(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	presetRef := seedPreset(t, db, 9.99)

	pack := models.PresetPack{OwnerID: uuid.New(), Name: "house pack", Price: 30.00}
	require.NoError(t, db.Create(&pack).Error)

	for _, ref := range []catalog.ItemRef{presetRef, {Kind: models.ItemPack, ID: pack.ID}} {
		_, err := svc.Carts.AddItem(ctx, userID, models.ListCart, ref)
		require.NoError(t, err)
	}

	payload, sig := completedPayload(t, "evt_1", "cs_1", 3999, metadataFor(t, userID,
		checkout.ManifestEntry{ID: presetRef.ID, Type: models.ItemPreset, Price: 9.99},
		checkout.ManifestEntry{ID: pack.ID, Type: models.ItemPack, Price: 30.00},
	))
	require.NoError(t, svc.HandleEvent(ctx, payload, sig))

	var order models.Order
	require.NoError(t, db.First(&order, "provider_session_id = ?", "cs_1").Error)
	assert.Equal(t, userID, order.UserID)
	assert.Equal(t, "evt_1", order.ProviderEventID)
	assert.EqualValues(t, 3999, order.Total)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)

	var items []models.OrderItem
	require.NoError(t, db.Where("order_id = ?", order.ID).Find(&items).Error)
	require.Len(t, items, 2)

	var presetDownloads, packDownloads int64
	require.NoError(t, db.Model(&models.PresetDownload{}).
		Where("user_id = ? AND preset_id = ?", userID, presetRef.ID).
		Count(&presetDownloads).Error)
	require.NoError(t, db.Model(&models.PresetPackDownload{}).
		Where("user_id = ? AND pack_id = ?", userID, pack.ID).
		Count(&packDownloads).Error)
	assert.EqualValues(t, 1, presetDownloads)
	assert.EqualValues(t, 1, packDownloads)

	// The purchased cart is emptied.
	views, err := svc.Carts.ListItems(ctx, userID, models.ListCart)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestHandleEvent_ReplayIsIdempotent(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	ref := seedPreset(t, db, 9.99)

	metadata := metadataFor(t, userID,
		checkout.ManifestEntry{ID: ref.ID, Type: ref.Kind, Price: 9.99})

	payload, sig := completedPayload(t, "evt_1", "cs_1", 999, metadata)
	require.NoError(t, svc.HandleEvent(ctx, payload, sig))

	// Same session delivered again, even under a new event id.
	require.NoError(t, svc.HandleEvent(ctx, payload, sig))
	replay, replaySig := completedPayload(t, "evt_2", "cs_1", 999, metadata)
	require.NoError(t, svc.HandleEvent(ctx, replay, replaySig))

	var orders, items, downloads int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orders).Error)
	require.NoError(t, db.Model(&models.OrderItem{}).Count(&items).Error)
	require.NoError(t, db.Model(&models.PresetDownload{}).Count(&downloads).Error)
	assert.EqualValues(t, 1, orders)
	assert.EqualValues(t, 1, items)
	assert.EqualValues(t, 1, downloads)
}

func TestHandleEvent_UsesFrozenManifestPrices(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	ref := seedPreset(t, db, 10.00)

	metadata := metadataFor(t, userID,
		checkout.ManifestEntry{ID: ref.ID, Type: ref.Kind, Price: 10.00})

	// The seller raises the price between session creation and delivery. The
	// order must reflect the price the buyer saw at checkout.
	require.NoError(t, db.Model(&models.Preset{}).
		Where("id = ?", ref.ID).Update("price", 99.00).Error)

	// amount_total of 0 forces the fallback to summed manifest prices.
	payload, sig := completedPayload(t, "evt_1", "cs_1", 0, metadata)
	require.NoError(t, svc.HandleEvent(ctx, payload, sig))

	var order models.Order
	require.NoError(t, db.First(&order, "provider_session_id = ?", "cs_1").Error)
	assert.EqualValues(t, 1000, order.Total)

	var item models.OrderItem
	require.NoError(t, db.First(&item, "order_id = ?", order.ID).Error)
	assert.EqualValues(t, 1000, item.UnitAmount)
}

func TestHandleEvent_IgnoresOtherEventTypes(t *testing.T) {
	svc, db := newTestService(t)

	payload, err := json.Marshal(map[string]any{
		"id":   "evt_1",
		"type": "payment_intent.created",
		"data": map[string]any{"object": map[string]any{}},
	})
	require.NoError(t, err)

	err = svc.HandleEvent(context.Background(), payload,
		stripe.SignPayload(payload, testSecret, time.Now()))
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestHandleEvent_CorruptMetadata(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		metadata map[string]string
	}{
		{"missing user id", map[string]string{
			checkout.MetadataCart: `[{"id":"` + uuid.NewString() + `","type":"preset","price":1}]`,
		}},
		{"bad user id", map[string]string{
			checkout.MetadataUserID: "not-a-uuid",
			checkout.MetadataCart:   `[{"id":"` + uuid.NewString() + `","type":"preset","price":1}]`,
		}},
		{"missing manifest", map[string]string{
			checkout.MetadataUserID: uuid.NewString(),
		}},
		{"unparseable manifest", map[string]string{
			checkout.MetadataUserID: uuid.NewString(),
			checkout.MetadataCart:   "{not json",
		}},
		{"empty manifest", map[string]string{
			checkout.MetadataUserID: uuid.NewString(),
			checkout.MetadataCart:   "[]",
		}},
		{"unknown item kind", map[string]string{
			checkout.MetadataUserID: uuid.NewString(),
			checkout.MetadataCart:   `[{"id":"` + uuid.NewString() + `","type":"sample","price":1}]`,
		}},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload, sig := completedPayload(t, fmt.Sprintf("evt_%d", i),
				fmt.Sprintf("cs_%d", i), 100, tc.metadata)
			err := svc.HandleEvent(ctx, payload, sig)
			require.ErrorIs(t, err, ErrMetadataCorrupt)
		})
	}
}

func TestHandleEvent_PriorFreeDownloadSurvivesPurchase(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	ref := seedPreset(t, db, 9.99)

	// The buyer grabbed the item earlier while it was free.
	require.NoError(t, db.Create(&models.PresetDownload{
		UserID:   userID,
		PresetID: ref.ID,
	}).Error)

	payload, sig := completedPayload(t, "evt_1", "cs_1", 999, metadataFor(t, userID,
		checkout.ManifestEntry{ID: ref.ID, Type: ref.Kind, Price: 9.99}))
	require.NoError(t, svc.HandleEvent(ctx, payload, sig))

	var orders, downloads int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orders).Error)
	require.NoError(t, db.Model(&models.PresetDownload{}).Count(&downloads).Error)
	assert.EqualValues(t, 1, orders)
	assert.EqualValues(t, 1, downloads)
}
