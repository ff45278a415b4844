package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wavecrate/presetstore/internal/events"
	"github.com/wavecrate/presetstore/internal/logging"
	"github.com/wavecrate/presetstore/internal/models"
	"github.com/wavecrate/presetstore/internal/pricing"
	"github.com/wavecrate/presetstore/internal/search"
)

var (
	ErrValidation = errors.New("validation")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
)

type Service struct {
	Repo      *GormRepo
	Ledger    pricing.Ledger
	Indexer   search.Indexer
	Publisher events.Publisher
}

type CreateItemInput struct {
	Name        string
	Description string
	Price       float64
	FileKey     string
}

func (s *Service) CreateItem(ctx context.Context, ownerID uuid.UUID, kind models.ItemKind, in CreateItemInput) (*Item, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("name required: %w", ErrValidation)
	}
	if in.Price < 0 {
		return nil, fmt.Errorf("price must be >= 0: %w", ErrValidation)
	}

	var item *Item
	err := s.Repo.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch kind {
		case models.ItemPack:
			pack := models.PresetPack{
				OwnerID:     ownerID,
				Name:        in.Name,
				Description: in.Description,
				Price:       in.Price,
				FileKey:     in.FileKey,
			}
			if err := tx.Create(&pack).Error; err != nil {
				return err
			}
			item = &Item{Kind: kind, ID: pack.ID, OwnerID: ownerID, Name: pack.Name, Description: pack.Description, Price: pack.Price}
		default:
			preset := models.Preset{
				OwnerID:     ownerID,
				Name:        in.Name,
				Description: in.Description,
				Price:       in.Price,
				FileKey:     in.FileKey,
			}
			if err := tx.Create(&preset).Error; err != nil {
				return err
			}
			item = &Item{Kind: kind, ID: preset.ID, OwnerID: ownerID, Name: preset.Name, Description: preset.Description, Price: preset.Price}
		}

		_, err := s.Ledger.Record(ctx, tx, models.PriceOwnerForItem(kind), item.ID, in.Price)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.project(ctx, *item)
	return item, nil
}

func (s *Service) GetItem(ctx context.Context, ref ItemRef) (*Item, error) {
	item, err := s.Repo.GetItem(ctx, ref)
	if IsNotFound(err) {
		return nil, fmt.Errorf("item %s/%s: %w", ref.Kind, ref.ID, ErrNotFound)
	}
	return item, err
}

// UpdatePrice sets the canonical price, appends to the item's ledger, and fans
// the new price out to every cart line referencing the item so buyers see the
// price they will actually be charged. One transaction.
func (s *Service) UpdatePrice(ctx context.Context, ownerID uuid.UUID, ref ItemRef, price float64) (*Item, int, error) {
	if price < 0 {
		return nil, 0, fmt.Errorf("price must be >= 0: %w", ErrValidation)
	}

	var (
		item     *Item
		affected int
	)
	err := s.Repo.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := getItem(ctx, tx, ref)
		if IsNotFound(err) {
			return fmt.Errorf("item %s/%s: %w", ref.Kind, ref.ID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if current.OwnerID != ownerID {
			return fmt.Errorf("item %s/%s: %w", ref.Kind, ref.ID, ErrForbidden)
		}

		if err := updatePrice(ctx, tx, ref, price); err != nil {
			return err
		}

		if _, err := s.Ledger.Record(ctx, tx, models.PriceOwnerForItem(ref.Kind), ref.ID, price); err != nil {
			return err
		}

		lines, err := cartLinesFor(ctx, tx, ref)
		if err != nil {
			return err
		}
		for _, line := range lines {
			entry, err := s.Ledger.Record(ctx, tx, models.PriceOwnerCartItem, line.ID, price)
			if err != nil {
				return err
			}
			if entry != nil {
				affected++
			}
		}

		current.Price = price
		item = current
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	s.project(ctx, *item)
	s.publish(ctx, events.TopicCart, item.ID.String(), map[string]any{
		"type":      "item_price_changed",
		"item_kind": item.Kind,
		"item_id":   item.ID,
		"price":     price,
	})
	return item, affected, nil
}

// project mirrors the item into the search index, best-effort.
func (s *Service) project(ctx context.Context, item Item) {
	doc := search.ItemDoc{
		Kind:        item.Kind,
		Name:        item.Name,
		Description: item.Description,
		Price:       item.Price,
		OwnerID:     item.OwnerID.String(),
	}
	if err := s.Indexer.IndexItem(ctx, item.Kind, item.ID.String(), doc); err != nil {
		logging.FromContext(ctx).Warn("search_index_error", "item_id", item.ID, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, topic, key string, event map[string]any) {
	if err := s.Publisher.Publish(ctx, topic, key, event); err != nil {
		logging.FromContext(ctx).Warn("event_publish_error", "topic", topic, "error", err)
	}
}
