package repository

import (
	"context"

	"inkwell-go/internal/model"

	"gorm.io/gorm"
)

// HoldingRepository 定义持仓的持久化操作，按 owner 过滤。
type HoldingRepository interface {
	Create(ctx context.Context, h *model.Holding) error
	FindByID(ctx context.Context, id, ownerID uint) (*model.Holding, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]model.Holding, error)
	Update(ctx context.Context, h *model.Holding) error
	Delete(ctx context.Context, id, ownerID uint) error
}

type holdingRepository struct {
	db *gorm.DB
}

func NewHoldingRepository(db *gorm.DB) HoldingRepository {
	return &holdingRepository{db: db}
}

// Create 同一用户重复的 symbol 返回 ErrDuplicate。
func (r *holdingRepository) Create(ctx context.Context, h *model.Holding) error {
	return translate(r.db.WithContext(ctx).Create(h).Error)
}

func (r *holdingRepository) FindByID(ctx context.Context, id, ownerID uint) (*model.Holding, error) {
	var h model.Holding
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).First(&h).Error; err != nil {
		return nil, translate(err)
	}
	return &h, nil
}

func (r *holdingRepository) ListByOwner(ctx context.Context, ownerID uint) ([]model.Holding, error) {
	var hs []model.Holding
	err := r.db.WithContext(ctx).Where("user_id = ?", ownerID).Order("symbol ASC").Find(&hs).Error
	return hs, err
}

func (r *holdingRepository) Update(ctx context.Context, h *model.Holding) error {
	return translate(r.db.WithContext(ctx).Save(h).Error)
}

func (r *holdingRepository) Delete(ctx context.Context, id, ownerID uint) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).Delete(&model.Holding{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
