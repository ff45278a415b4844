package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wavecrate/presetstore/internal/models"
)

// Item is the kind-agnostic view of a sellable catalog entry.
type Item struct {
	Kind        models.ItemKind `json:"kind"`
	ID          uuid.UUID       `json:"id"`
	OwnerID     uuid.UUID       `json:"owner_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       float64         `json:"price"`
	FileKey     string          `json:"-"`
}

func (i Item) IsFree() bool { return i.Price <= 0 }

type ItemRef struct {
	Kind models.ItemKind
	ID   uuid.UUID
}

func (i Item) Ref() ItemRef { return ItemRef{Kind: i.Kind, ID: i.ID} }

type GormRepo struct {
	DB *gorm.DB
}

// GetItem resolves either catalog table through the shared Item view.
func (r *GormRepo) GetItem(ctx context.Context, ref ItemRef) (*Item, error) {
	return getItem(ctx, r.DB, ref)
}

// GetItemTx is GetItem inside a caller-owned transaction.
func GetItemTx(ctx context.Context, tx *gorm.DB, ref ItemRef) (*Item, error) {
	return getItem(ctx, tx, ref)
}

func getItem(ctx context.Context, tx *gorm.DB, ref ItemRef) (*Item, error) {
	switch ref.Kind {
	case models.ItemPack:
		var pack models.PresetPack
		if err := tx.WithContext(ctx).First(&pack, "id = ?", ref.ID).Error; err != nil {
			return nil, err
		}
		return &Item{
			Kind:        models.ItemPack,
			ID:          pack.ID,
			OwnerID:     pack.OwnerID,
			Name:        pack.Name,
			Description: pack.Description,
			Price:       pack.Price,
			FileKey:     pack.FileKey,
		}, nil
	default:
		var preset models.Preset
		if err := tx.WithContext(ctx).First(&preset, "id = ?", ref.ID).Error; err != nil {
			return nil, err
		}
		return &Item{
			Kind:        models.ItemPreset,
			ID:          preset.ID,
			OwnerID:     preset.OwnerID,
			Name:        preset.Name,
			Description: preset.Description,
			Price:       preset.Price,
			FileKey:     preset.FileKey,
		}, nil
	}
}

func (r *GormRepo) CreatePreset(ctx context.Context, preset *models.Preset) error {
	return r.DB.WithContext(ctx).Create(preset).Error
}

func (r *GormRepo) CreatePack(ctx context.Context, pack *models.PresetPack) error {
	return r.DB.WithContext(ctx).Create(pack).Error
}

func (r *GormRepo) ListPresets(ctx context.Context, offset, limit int) ([]models.Preset, int64, error) {
	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.Preset{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []models.Preset
	err := r.DB.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *GormRepo) ListPacks(ctx context.Context, offset, limit int) ([]models.PresetPack, int64, error) {
	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.PresetPack{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []models.PresetPack
	err := r.DB.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func updatePrice(ctx context.Context, tx *gorm.DB, ref ItemRef, price float64) error {
	var res *gorm.DB
	switch ref.Kind {
	case models.ItemPack:
		res = tx.WithContext(ctx).Model(&models.PresetPack{}).Where("id = ?", ref.ID).Update("price", price)
	default:
		res = tx.WithContext(ctx).Model(&models.Preset{}).Where("id = ?", ref.ID).Update("price", price)
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// cartLinesFor finds every cart line in any user's list that references the item.
func cartLinesFor(ctx context.Context, tx *gorm.DB, ref ItemRef) ([]models.CartItem, error) {
	var lines []models.CartItem
	err := tx.WithContext(ctx).
		Where("item_kind = ? AND item_id = ?", ref.Kind, ref.ID).
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
