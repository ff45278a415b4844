package pricing

import (
	"context"
	"errors"
	"math"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wavecrate/presetstore/internal/models"
)

// Ledger appends price points for catalog items and cart lines. Methods take
// the *gorm.DB so callers can run them inside their own transactions.
type Ledger struct{}

// minorUnits collapses a decimal price to cents so float noise does not count
// as a price change.
func minorUnits(price float64) int64 {
	return int64(math.Round(price * 100))
}

// Record appends a new entry unless the most recent one already carries the
// same price. Returns nil on the no-op path.
func (Ledger) Record(ctx context.Context, tx *gorm.DB, ownerKind models.PriceOwnerKind, ownerID uuid.UUID, price float64) (*models.PriceHistory, error) {
	latest, err := latestEntry(ctx, tx, ownerKind, ownerID)
	if err != nil {
		return nil, err
	}
	if latest != nil && minorUnits(latest.Price) == minorUnits(price) {
		return nil, nil
	}

	entry := models.PriceHistory{
		OwnerKind: ownerKind,
		OwnerID:   ownerID,
		Price:     price,
	}
	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func latestEntry(ctx context.Context, tx *gorm.DB, ownerKind models.PriceOwnerKind, ownerID uuid.UUID) (*models.PriceHistory, error) {
	var entry models.PriceHistory
	err := tx.WithContext(ctx).
		Where("owner_kind = ? AND owner_id = ?", ownerKind, ownerID).
		Order("created_at DESC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// History loads all entries for the given owners, most recent first.
func (Ledger) History(ctx context.Context, tx *gorm.DB, owners ...Owner) ([]models.PriceHistory, error) {
	if len(owners) == 0 {
		return nil, nil
	}

	scoped := tx.Session(&gorm.Session{NewDB: true})
	cond := scoped.Where("owner_kind = ? AND owner_id = ?", owners[0].Kind, owners[0].ID)
	for _, o := range owners[1:] {
		cond = cond.Or("owner_kind = ? AND owner_id = ?", o.Kind, o.ID)
	}

	var entries []models.PriceHistory
	if err := tx.WithContext(ctx).Where(cond).Order("created_at DESC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// DeleteFor removes every entry scoped to the owner. Only cart-line history is
// ever deleted, and only together with its cart line.
func (Ledger) DeleteFor(ctx context.Context, tx *gorm.DB, ownerKind models.PriceOwnerKind, ownerID uuid.UUID) error {
	return tx.WithContext(ctx).
		Where("owner_kind = ? AND owner_id = ?", ownerKind, ownerID).
		Delete(&models.PriceHistory{}).Error
}

type Owner struct {
	Kind models.PriceOwnerKind
	ID   uuid.UUID
}

// Change is the "price moved since you added this" signal for one cart line.
type Change struct {
	OldPrice      float64  `json:"old_price"`
	PercentChange *float64 `json:"percentage_change,omitempty"`
}

// Summarize derives the change from the two most recent distinct prices in a
// history sorted most recent first. Returns nil when the history holds fewer
// than two distinct prices. PercentChange stays nil when the previous price
// was zero.
func Summarize(entries []models.PriceHistory) *Change {
	if len(entries) == 0 {
		return nil
	}

	current := entries[0].Price
	for _, e := range entries[1:] {
		if minorUnits(e.Price) == minorUnits(current) {
			continue
		}
		change := &Change{OldPrice: e.Price}
		if minorUnits(e.Price) != 0 {
			pct := (current - e.Price) / e.Price * 100
			change.PercentChange = &pct
		}
		return change
	}
	return nil
}
