package repository

import (
	"context"

	"inkwell-go/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SocialRepository 管理点赞、收藏与关注。所有写操作都是幂等的。
type SocialRepository interface {
	// Like 返回是否新增了点赞；新增时 like_count 加一。
	Like(ctx context.Context, postID, userID uint) (bool, error)
	Unlike(ctx context.Context, postID, userID uint) (bool, error)
	HasLiked(ctx context.Context, postID, userID uint) (bool, error)

	AddBookmark(ctx context.Context, postID, userID uint) error
	RemoveBookmark(ctx context.Context, postID, userID uint) error
	ListBookmarks(ctx context.Context, userID uint, offset, limit int) ([]model.Bookmark, int64, error)

	Follow(ctx context.Context, followerID, followeeID uint) error
	Unfollow(ctx context.Context, followerID, followeeID uint) error
	ListFollowers(ctx context.Context, userID uint, offset, limit int) ([]model.User, int64, error)
	ListFollowing(ctx context.Context, userID uint, offset, limit int) ([]model.User, int64, error)
	CountFollows(ctx context.Context, userID uint) (followers, following int64, err error)
}

type socialRepository struct {
	db *gorm.DB
}

func NewSocialRepository(db *gorm.DB) SocialRepository {
	return &socialRepository{db: db}
}

func (r *socialRepository) Like(ctx context.Context, postID, userID uint) (bool, error) {
	var created bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.PostLike{PostID: postID, UserID: userID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true
		return tx.Model(&model.Post{}).Where("id = ?", postID).
			UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error
	})
	return created, err
}

func (r *socialRepository) Unlike(ctx context.Context, postID, userID uint) (bool, error) {
	var removed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&model.PostLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		removed = true
		return tx.Model(&model.Post{}).Where("id = ? AND like_count > 0", postID).
			UpdateColumn("like_count", gorm.Expr("like_count - 1")).Error
	})
	return removed, err
}

func (r *socialRepository) HasLiked(ctx context.Context, postID, userID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.PostLike{}).Where("post_id = ? AND user_id = ?", postID, userID).Count(&n).Error
	return n > 0, err
}

func (r *socialRepository) AddBookmark(ctx context.Context, postID, userID uint) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.Bookmark{PostID: postID, UserID: userID}).Error
}

func (r *socialRepository) RemoveBookmark(ctx context.Context, postID, userID uint) error {
	return r.db.WithContext(ctx).Where("post_id = ? AND user_id = ?", postID, userID).Delete(&model.Bookmark{}).Error
}

func (r *socialRepository) ListBookmarks(ctx context.Context, userID uint, offset, limit int) ([]model.Bookmark, int64, error) {
	var (
		items []model.Bookmark
		total int64
	)
	// 已删除帖子的收藏不返回
	q := r.db.WithContext(ctx).Model(&model.Bookmark{}).
		Joins("JOIN posts ON posts.id = bookmarks.post_id AND posts.deleted_at IS NULL").
		Where("bookmarks.user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Preload("Post").Preload("Post.Author").
		Order("bookmarks.created_at DESC").Offset(offset).Limit(limit).Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *socialRepository) Follow(ctx context.Context, followerID, followeeID uint) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.Follow{FollowerID: followerID, FolloweeID: followeeID}).Error
}

func (r *socialRepository) Unfollow(ctx context.Context, followerID, followeeID uint) error {
	return r.db.WithContext(ctx).Where("follower_id = ? AND followee_id = ?", followerID, followeeID).Delete(&model.Follow{}).Error
}

func (r *socialRepository) listUsers(ctx context.Context, joinOn, where string, userID uint, offset, limit int) ([]model.User, int64, error) {
	var (
		users []model.User
		total int64
	)
	q := r.db.WithContext(ctx).Model(&model.User{}).
		Joins("JOIN follows ON "+joinOn).
		Where(where, userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Order("follows.created_at DESC").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *socialRepository) ListFollowers(ctx context.Context, userID uint, offset, limit int) ([]model.User, int64, error) {
	return r.listUsers(ctx, "follows.follower_id = users.id", "follows.followee_id = ?", userID, offset, limit)
}

func (r *socialRepository) ListFollowing(ctx context.Context, userID uint, offset, limit int) ([]model.User, int64, error) {
	return r.listUsers(ctx, "follows.followee_id = users.id", "follows.follower_id = ?", userID, offset, limit)
}

func (r *socialRepository) CountFollows(ctx context.Context, userID uint) (followers, following int64, err error) {
	db := r.db.WithContext(ctx).Model(&model.Follow{})
	if err = db.Where("followee_id = ?", userID).Count(&followers).Error; err != nil {
		return 0, 0, err
	}
	err = r.db.WithContext(ctx).Model(&model.Follow{}).Where("follower_id = ?", userID).Count(&following).Error
	return followers, following, err
}
