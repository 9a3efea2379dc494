package repository

import (
	"context"

	"inkwell-go/internal/model"

	"gorm.io/gorm"
)

// CommentRepository 定义评论的持久化操作。创建和删除会同步维护帖子的 comment_count。
type CommentRepository interface {
	Create(ctx context.Context, c *model.Comment) error
	FindByID(ctx context.Context, id uint) (*model.Comment, error)
	ListByPost(ctx context.Context, postID uint, offset, limit int) ([]model.Comment, int64, error)
	Delete(ctx context.Context, c *model.Comment) error
}

type commentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, c *model.Comment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		return tx.Model(&model.Post{}).Where("id = ?", c.PostID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + 1")).Error
	})
}

func (r *commentRepository) FindByID(ctx context.Context, id uint) (*model.Comment, error) {
	var c model.Comment
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *commentRepository) ListByPost(ctx context.Context, postID uint, offset, limit int) ([]model.Comment, int64, error) {
	var (
		comments []model.Comment
		total    int64
	)
	q := r.db.WithContext(ctx).Model(&model.Comment{}).Where("post_id = ?", postID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Preload("Author").Order("created_at ASC").Order("id ASC").Offset(offset).Limit(limit).Find(&comments).Error; err != nil {
		return nil, 0, err
	}
	return comments, total, nil
}

func (r *commentRepository) Delete(ctx context.Context, c *model.Comment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(c)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&model.Post{}).Where("id = ? AND comment_count > 0", c.PostID).
			UpdateColumn("comment_count", gorm.Expr("comment_count - 1")).Error
	})
}
