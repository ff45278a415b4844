package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wavecrate/presetstore/internal/catalog"
	"github.com/wavecrate/presetstore/internal/models"
	"github.com/wavecrate/presetstore/internal/pricing"
)

var (
	ErrValidation = errors.New("validation")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

type Service struct {
	Repo   *GormRepo
	Ledger pricing.Ledger
}

// LineView is one cart line with the catalog item resolved to its current
// state and the price movement since the line was created.
type LineView struct {
	Line   models.CartItem `json:"line"`
	Item   catalog.Item    `json:"item"`
	Change *pricing.Change `json:"price_change,omitempty"`
}

// AddItem creates the line and its first ledger entry in one transaction. The
// unique index on (cart, item) decides the winner when two adds race; the
// loser gets ErrConflict.
func (s *Service) AddItem(ctx context.Context, userID uuid.UUID, kind models.ListKind, ref catalog.ItemRef) (*LineView, error) {
	var view LineView
	err := s.Repo.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := catalog.GetItemTx(ctx, tx, ref)
		if catalog.IsNotFound(err) {
			return fmt.Errorf("item %s/%s: %w", ref.Kind, ref.ID, ErrNotFound)
		}
		if err != nil {
			return err
		}

		cart, err := getOrCreateCart(ctx, tx, userID, kind)
		if err != nil {
			return err
		}

		line := models.CartItem{
			CartID:   cart.ID,
			ItemKind: ref.Kind,
			ItemID:   ref.ID,
			Quantity: 1,
		}
		if err := tx.Create(&line).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("item already in %s: %w", kind, ErrConflict)
			}
			return err
		}

		if _, err := s.Ledger.Record(ctx, tx, models.PriceOwnerCartItem, line.ID, item.Price); err != nil {
			return err
		}

		view = LineView{Line: line, Item: *item}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// MoveItem reparents a line between the user's two lists. The move is rejected
// with ErrConflict when the destination already holds the same catalog item,
// leaving the source line untouched.
func (s *Service) MoveItem(ctx context.Context, userID uuid.UUID, ref catalog.ItemRef, from, to models.ListKind) (*models.CartItem, error) {
	if from == to {
		return nil, fmt.Errorf("source and destination are the same list: %w", ErrValidation)
	}

	var moved models.CartItem
	err := s.Repo.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fromCart, err := getCart(ctx, tx, userID, from)
		if err != nil {
			return err
		}
		if fromCart == nil {
			return fmt.Errorf("item not in %s: %w", from, ErrNotFound)
		}

		line, err := findLine(ctx, tx, fromCart.ID, ref.Kind, ref.ID)
		if err != nil {
			return err
		}
		if line == nil {
			return fmt.Errorf("item not in %s: %w", from, ErrNotFound)
		}

		toCart, err := getOrCreateCart(ctx, tx, userID, to)
		if err != nil {
			return err
		}

		existing, err := findLine(ctx, tx, toCart.ID, ref.Kind, ref.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("item already in %s: %w", to, ErrConflict)
		}

		res := tx.Model(&models.CartItem{}).
			Where("id = ?", line.ID).
			Update("cart_id", toCart.ID)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("item already in %s: %w", to, ErrConflict)
			}
			return res.Error
		}

		line.CartID = toCart.ID
		moved = *line
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &moved, nil
}

// DeleteItem removes the line and its scoped price history as one unit.
// Deleting a line that is already gone is a no-op.
func (s *Service) DeleteItem(ctx context.Context, userID uuid.UUID, kind models.ListKind, lineID uuid.UUID) error {
	return s.Repo.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := getCart(ctx, tx, userID, kind)
		if err != nil {
			return err
		}
		if cart == nil {
			return nil
		}

		var line models.CartItem
		err = tx.Where("id = ? AND cart_id = ?", lineID, cart.ID).First(&line).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := s.Ledger.DeleteFor(ctx, tx, models.PriceOwnerCartItem, line.ID); err != nil {
			return err
		}
		return tx.Delete(&line).Error
	})
}

// ListItems resolves each line against the catalog and merges the item's own
// ledger with the line's ledger, most recent first, to derive the price-change
// summary.
func (s *Service) ListItems(ctx context.Context, userID uuid.UUID, kind models.ListKind) ([]LineView, error) {
	cart, err := getCart(ctx, s.Repo.DB, userID, kind)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return []LineView{}, nil
	}

	lines, err := listLines(ctx, s.Repo.DB, cart.ID)
	if err != nil {
		return nil, err
	}

	views := make([]LineView, 0, len(lines))
	for _, line := range lines {
		item, err := catalog.GetItemTx(ctx, s.Repo.DB, catalog.ItemRef{Kind: line.ItemKind, ID: line.ItemID})
		if catalog.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}

		history, err := s.Ledger.History(ctx, s.Repo.DB,
			pricing.Owner{Kind: models.PriceOwnerForItem(line.ItemKind), ID: line.ItemID},
			pricing.Owner{Kind: models.PriceOwnerCartItem, ID: line.ID},
		)
		if err != nil {
			return nil, err
		}

		views = append(views, LineView{
			Line:   line,
			Item:   *item,
			Change: pricing.Summarize(history),
		})
	}
	return views, nil
}

// ClearForUser empties the user's cart after a completed checkout, removing
// line history with each line. Used by webhook reconciliation, best-effort.
func (s *Service) ClearForUser(ctx context.Context, userID uuid.UUID, kind models.ListKind) error {
	return s.Repo.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := getCart(ctx, tx, userID, kind)
		if err != nil || cart == nil {
			return err
		}

		lines, err := listLines(ctx, tx, cart.ID)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if err := s.Ledger.DeleteFor(ctx, tx, models.PriceOwnerCartItem, line.ID); err != nil {
				return err
			}
		}
		if err := tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(cart).Error
	})
}
