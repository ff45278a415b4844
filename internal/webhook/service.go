package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wavecrate/presetstore/internal/cart"
	"github.com/wavecrate/presetstore/internal/checkout"
	"github.com/wavecrate/presetstore/internal/events"
	"github.com/wavecrate/presetstore/internal/logging"
	"github.com/wavecrate/presetstore/internal/models"
	"github.com/wavecrate/presetstore/internal/payments/stripe"
)

// ErrMetadataCorrupt means the session metadata cannot be replayed into an
// order. Retrying never helps; the event is acknowledged and an operator alert
// goes out instead.
var ErrMetadataCorrupt = errors.New("metadata corrupt")

type Service struct {
	DB            *gorm.DB
	Carts         *cart.Service
	Publisher     events.Publisher
	WebhookSecret string
}

type completedSession struct {
	ID          string            `json:"id"`
	AmountTotal int64             `json:"amount_total"`
	Currency    string            `json:"currency"`
	Metadata    map[string]string `json:"metadata"`
}

// HandleEvent runs the reconciliation state machine for one delivery: verify,
// filter, extract, materialize, clear. Reprocessing a session that already has
// an order is a successful no-op.
func (s *Service) HandleEvent(ctx context.Context, payload []byte, sigHeader string) error {
	l := logging.FromContext(ctx)

	if err := stripe.VerifySignature(payload, sigHeader, s.WebhookSecret, time.Now()); err != nil {
		return err
	}

	event, err := stripe.ParseEvent(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMetadataCorrupt, err)
	}
	if event.Type != stripe.EventCheckoutCompleted {
		l.Info("webhook event ignored", "event_type", event.Type, "event_id", event.ID)
		return nil
	}

	var session completedSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil || session.ID == "" {
		return fmt.Errorf("%w: malformed session object in event %s", ErrMetadataCorrupt, event.ID)
	}

	userID, manifest, err := extractManifest(session.Metadata)
	if err != nil {
		return fmt.Errorf("event %s session %s: %w", event.ID, session.ID, err)
	}

	order, replay, err := s.materialize(ctx, event.ID, session, userID, manifest)
	if err != nil {
		return err
	}
	if replay {
		l.Info("webhook replay ignored", "event_id", event.ID, "session_id", session.ID)
		return nil
	}

	// Best-effort from here on. The order is durable; a stale cart is cosmetic
	// and must never roll the purchase back.
	if err := s.Carts.ClearForUser(ctx, userID, models.ListCart); err != nil {
		l.Warn("cart_clear_error", "user_id", userID, "order_id", order.ID, "error", err)
	}

	if err := s.Publisher.Publish(ctx, events.TopicOrders, userID.String(), map[string]any{
		"type":     "order_created",
		"user_id":  userID,
		"order_id": order.ID,
		"total":    order.Total,
		"currency": order.Currency,
	}); err != nil {
		l.Warn("event_publish_error", "topic", events.TopicOrders, "error", err)
	}

	l.Info("order materialized", "order_id", order.ID, "session_id", session.ID, "total", order.Total)
	return nil
}

func extractManifest(metadata map[string]string) (uuid.UUID, []checkout.ManifestEntry, error) {
	rawUser, ok := metadata[checkout.MetadataUserID]
	if !ok {
		return uuid.Nil, nil, fmt.Errorf("%w: missing user id", ErrMetadataCorrupt)
	}
	userID, err := uuid.Parse(rawUser)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("%w: bad user id %q", ErrMetadataCorrupt, rawUser)
	}

	rawCart, ok := metadata[checkout.MetadataCart]
	if !ok {
		return uuid.Nil, nil, fmt.Errorf("%w: missing cart manifest", ErrMetadataCorrupt)
	}
	var manifest []checkout.ManifestEntry
	if err := json.Unmarshal([]byte(rawCart), &manifest); err != nil {
		return uuid.Nil, nil, fmt.Errorf("%w: bad cart manifest: %v", ErrMetadataCorrupt, err)
	}
	if len(manifest) == 0 {
		return uuid.Nil, nil, fmt.Errorf("%w: empty cart manifest", ErrMetadataCorrupt)
	}
	for _, entry := range manifest {
		if entry.ID == uuid.Nil {
			return uuid.Nil, nil, fmt.Errorf("%w: manifest entry without id", ErrMetadataCorrupt)
		}
		if _, err := models.ParseItemKind(string(entry.Type)); err != nil {
			return uuid.Nil, nil, fmt.Errorf("%w: %v", ErrMetadataCorrupt, err)
		}
	}
	return userID, manifest, nil
}

// materialize writes Order, OrderItems, and Downloads in one transaction,
// keyed by the provider session id. Duplicate deliveries short-circuit on the
// existing order, or lose the insert race on the unique index; both count as
// replays.
func (s *Service) materialize(ctx context.Context, eventID string, session completedSession, userID uuid.UUID, manifest []checkout.ManifestEntry) (*models.Order, bool, error) {
	var order models.Order

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Order
		err := tx.Where("provider_session_id = ?", session.ID).First(&existing).Error
		if err == nil {
			order = existing
			return errAlreadyProcessed
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		order = models.Order{
			UserID:            userID,
			ProviderSessionID: session.ID,
			ProviderEventID:   eventID,
			Total:             session.AmountTotal,
			Currency:          session.Currency,
			Status:            models.OrderStatusCompleted,
		}
		if order.Total == 0 {
			for _, entry := range manifest {
				order.Total += checkout.MinorUnits(entry.Price)
			}
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		for _, entry := range manifest {
			amount := checkout.MinorUnits(entry.Price)
			item := models.OrderItem{
				OrderID:    order.ID,
				ItemKind:   entry.Type,
				ItemID:     entry.ID,
				UnitAmount: amount,
				Quantity:   1,
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}

			if err := createDownload(tx, userID, entry.Type, entry.ID, amount); err != nil {
				return err
			}
		}
		return nil
	})

	if errors.Is(err, errAlreadyProcessed) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return &order, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &order, false, nil
}

var errAlreadyProcessed = errors.New("session already processed")

// createDownload grants the entitlement. OnConflict DoNothing keeps a prior
// download record (a free grab before purchase) from failing the transaction.
func createDownload(tx *gorm.DB, userID uuid.UUID, kind models.ItemKind, itemID uuid.UUID, amount int64) error {
	switch kind {
	case models.ItemPack:
		record := models.PresetPackDownload{UserID: userID, PackID: itemID, AmountPaid: amount}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error
	default:
		record := models.PresetDownload{UserID: userID, PresetID: itemID, AmountPaid: amount}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error
	}
}
