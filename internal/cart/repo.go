package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wavecrate/presetstore/internal/models"
)

type GormRepo struct {
	DB *gorm.DB
}

// getOrCreateCart is an idempotent upsert on (user, kind). A concurrent create
// loses the insert race against the unique index and falls back to the winner's
// row.
func getOrCreateCart(ctx context.Context, tx *gorm.DB, userID uuid.UUID, kind models.ListKind) (*models.Cart, error) {
	var cart models.Cart
	err := tx.WithContext(ctx).Where("user_id = ? AND kind = ?", userID, kind).First(&cart).Error
	if err == nil {
		return &cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cart = models.Cart{UserID: userID, Kind: kind}
	err = tx.WithContext(ctx).Create(&cart).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		if err := tx.WithContext(ctx).Where("user_id = ? AND kind = ?", userID, kind).First(&cart).Error; err != nil {
			return nil, err
		}
		return &cart, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *GormRepo) GetOrCreateCart(ctx context.Context, userID uuid.UUID, kind models.ListKind) (*models.Cart, error) {
	return getOrCreateCart(ctx, r.DB, userID, kind)
}

// getCart returns nil without error when the user never created this list.
func getCart(ctx context.Context, tx *gorm.DB, userID uuid.UUID, kind models.ListKind) (*models.Cart, error) {
	var cart models.Cart
	err := tx.WithContext(ctx).Where("user_id = ? AND kind = ?", userID, kind).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func listLines(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) ([]models.CartItem, error) {
	var lines []models.CartItem
	err := tx.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("created_at ASC").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func findLine(ctx context.Context, tx *gorm.DB, cartID uuid.UUID, kind models.ItemKind, itemID uuid.UUID) (*models.CartItem, error) {
	var line models.CartItem
	err := tx.WithContext(ctx).
		Where("cart_id = ? AND item_kind = ? AND item_id = ?", cartID, kind, itemID).
		First(&line).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &line, nil
}
