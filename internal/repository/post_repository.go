package repository

import (
	"context"
	"strings"

	"inkwell-go/internal/model"

	"gorm.io/gorm"
)

// PostFilter 是帖子列表的过滤条件。
type PostFilter struct {
	AuthorID      uint
	OnlyPublished bool
	Offset        int
	Limit         int
}

// PostRepository 定义帖子的持久化操作。
type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	FindByID(ctx context.Context, id uint) (*model.Post, error)
	List(ctx context.Context, f PostFilter) ([]model.Post, int64, error)
	Update(ctx context.Context, post *model.Post) error
	Delete(ctx context.Context, id uint) error
	// Search 是搜索引擎不可用时的降级实现，只匹配已发布帖子的标题和正文。
	Search(ctx context.Context, keyword string, offset, limit int) ([]model.Post, int64, error)
}

type postRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *postRepository) FindByID(ctx context.Context, id uint) (*model.Post, error) {
	var post model.Post
	if err := r.db.WithContext(ctx).Preload("Author").First(&post, id).Error; err != nil {
		return nil, translate(err)
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, f PostFilter) ([]model.Post, int64, error) {
	var (
		posts []model.Post
		total int64
	)
	q := r.db.WithContext(ctx).Model(&model.Post{})
	if f.AuthorID != 0 {
		q = q.Where("author_id = ?", f.AuthorID)
	}
	if f.OnlyPublished {
		q = q.Where("published = ?", true)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Preload("Author").Order("created_at DESC").Order("id DESC").
		Offset(f.Offset).Limit(f.Limit).Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *postRepository) Update(ctx context.Context, post *model.Post) error {
	return r.db.WithContext(ctx).Model(post).Select("title", "content", "cover_key", "published").Updates(post).Error
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.Post{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postRepository) Search(ctx context.Context, keyword string, offset, limit int) ([]model.Post, int64, error) {
	var (
		posts []model.Post
		total int64
	)
	like := "%" + escapeLike(keyword) + "%"
	q := r.db.WithContext(ctx).Model(&model.Post{}).
		Where("published = ?", true).
		Where("(title LIKE ? ESCAPE '!' OR content LIKE ? ESCAPE '!')", like, like)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Preload("Author").Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
