package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/wavecrate/presetstore/internal/cart"
	"github.com/wavecrate/presetstore/internal/models"
	"github.com/wavecrate/presetstore/internal/payments/stripe"
)

var ErrEmptyCart = errors.New("empty cart")

// Metadata keys the reconciler reads back from the completed session.
const (
	MetadataUserID = "user_id"
	MetadataCart   = "cart"
)

type PaymentClient interface {
	CreateCheckoutSession(ctx context.Context, params stripe.SessionParams) (*stripe.Session, error)
}

type Service struct {
	Carts      *cart.Service
	Payments   PaymentClient
	Currency   string
	SuccessURL string
	CancelURL  string
}

// ManifestEntry is one frozen cart line. The manifest embedded in session
// metadata is the only input reconciliation trusts; the live cart may be
// mutated or cleared before the webhook arrives.
type ManifestEntry struct {
	ID    uuid.UUID       `json:"id"`
	Type  models.ItemKind `json:"type"`
	Price float64         `json:"price"`
}

// MinorUnits converts a decimal price to the amount the processor charges.
func MinorUnits(price float64) int64 {
	return int64(math.Round(price * 100))
}

// CreateSession snapshots the user's cart into a hosted checkout session and
// returns its URL. No local state changes; the cart stays untouched until the
// completion webhook is reconciled.
func (s *Service) CreateSession(ctx context.Context, userID uuid.UUID) (string, error) {
	views, err := s.Carts.ListItems(ctx, userID, models.ListCart)
	if err != nil {
		return "", err
	}
	if len(views) == 0 {
		return "", ErrEmptyCart
	}

	lineItems := make([]stripe.LineItem, 0, len(views))
	manifest := make([]ManifestEntry, 0, len(views))
	for _, v := range views {
		lineItems = append(lineItems, stripe.LineItem{
			Name:        v.Item.Name,
			Description: v.Item.Description,
			UnitAmount:  MinorUnits(v.Item.Price),
			Quantity:    int64(v.Line.Quantity),
		})
		manifest = append(manifest, ManifestEntry{
			ID:    v.Item.ID,
			Type:  v.Item.Kind,
			Price: v.Item.Price,
		})
	}

	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}

	session, err := s.Payments.CreateCheckoutSession(ctx, stripe.SessionParams{
		Currency:   s.Currency,
		SuccessURL: s.SuccessURL,
		CancelURL:  s.CancelURL,
		LineItems:  lineItems,
		Metadata: map[string]string{
			MetadataUserID: userID.String(),
			MetadataCart:   string(manifestJSON),
		},
	})
	if err != nil {
		return "", err
	}
	return session.URL, nil
}
