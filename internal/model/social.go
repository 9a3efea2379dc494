package model

import "time"

// PostLike 记录用户对帖子的点赞，(post_id, user_id) 唯一。
type PostLike struct {
	PostID    uint      `gorm:"primaryKey;autoIncrement:false" json:"postId"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (PostLike) TableName() string {
	return "post_likes"
}

// Bookmark 记录用户收藏的帖子。
type Bookmark struct {
	PostID    uint      `gorm:"primaryKey;autoIncrement:false" json:"postId"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"userId"`
	Post      *Post     `gorm:"foreignKey:PostID" json:"post,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Bookmark) TableName() string {
	return "bookmarks"
}

// Follow 记录关注关系，不允许关注自己。
type Follow struct {
	FollowerID uint      `gorm:"primaryKey;autoIncrement:false" json:"followerId"`
	FolloweeID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"followeeId"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (Follow) TableName() string {
	return "follows"
}
