package repository

import (
	"context"

	"inkwell-go/internal/model"

	"gorm.io/gorm"
)

// MediaRepository 记录上传文件的元数据。
type MediaRepository interface {
	Create(ctx context.Context, m *model.MediaObject) error
	ListByOwner(ctx context.Context, ownerID uint, offset, limit int) ([]model.MediaObject, int64, error)
}

type mediaRepository struct {
	db *gorm.DB
}

func NewMediaRepository(db *gorm.DB) MediaRepository {
	return &mediaRepository{db: db}
}

func (r *mediaRepository) Create(ctx context.Context, m *model.MediaObject) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *mediaRepository) ListByOwner(ctx context.Context, ownerID uint, offset, limit int) ([]model.MediaObject, int64, error) {
	var (
		items []model.MediaObject
		total int64
	)
	q := r.db.WithContext(ctx).Model(&model.MediaObject{}).Where("owner_id = ?", ownerID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("id DESC").Offset(offset).Limit(limit).Find(&items).Error
	return items, total, err
}
