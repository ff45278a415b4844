package entitlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wavecrate/presetstore/internal/catalog"
	"github.com/wavecrate/presetstore/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

type Service struct {
	DB      *gorm.DB
	Catalog *catalog.GormRepo
}

// CanDownload is a pure read: ownership, an existing download record, or a
// free item each grant access. Writing the download record is a separate step
// taken by the download endpoint, not here.
func (s *Service) CanDownload(ctx context.Context, userID uuid.UUID, item *catalog.Item) (bool, error) {
	if item.OwnerID == userID {
		return true, nil
	}
	if item.IsFree() {
		return true, nil
	}
	return s.hasDownloadRecord(ctx, userID, item.Ref())
}

func (s *Service) hasDownloadRecord(ctx context.Context, userID uuid.UUID, ref catalog.ItemRef) (bool, error) {
	var count int64
	var err error
	switch ref.Kind {
	case models.ItemPack:
		err = s.DB.WithContext(ctx).Model(&models.PresetPackDownload{}).
			Where("user_id = ? AND pack_id = ?", userID, ref.ID).
			Count(&count).Error
	default:
		err = s.DB.WithContext(ctx).Model(&models.PresetDownload{}).
			Where("user_id = ? AND preset_id = ?", userID, ref.ID).
			Count(&count).Error
	}
	return count > 0, err
}

// Authorize resolves the item and gates the download. For free items a
// download record is written lazily on the first successful request; repeat
// requests are no-ops against the unique index.
func (s *Service) Authorize(ctx context.Context, userID uuid.UUID, ref catalog.ItemRef) (*catalog.Item, error) {
	item, err := s.Catalog.GetItem(ctx, ref)
	if catalog.IsNotFound(err) {
		return nil, fmt.Errorf("item %s/%s: %w", ref.Kind, ref.ID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	allowed, err := s.CanDownload(ctx, userID, item)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("item %s/%s: %w", ref.Kind, ref.ID, ErrForbidden)
	}

	if item.IsFree() && item.OwnerID != userID {
		if err := s.ensureDownloadRecord(ctx, userID, ref); err != nil {
			return nil, err
		}
	}
	return item, nil
}

func (s *Service) ensureDownloadRecord(ctx context.Context, userID uuid.UUID, ref catalog.ItemRef) error {
	switch ref.Kind {
	case models.ItemPack:
		record := models.PresetPackDownload{UserID: userID, PackID: ref.ID}
		return s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error
	default:
		record := models.PresetDownload{UserID: userID, PresetID: ref.ID}
		return s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error
	}
}
