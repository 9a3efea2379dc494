package model

import (
	"time"

	"gorm.io/gorm"
)

// Post 对应 posts 表。LikeCount / CommentCount 是冗余计数，随点赞和评论增减。
type Post struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	AuthorID     uint           `gorm:"index;not null" json:"authorId"`
	Author       *User          `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Title        string         `gorm:"type:varchar(200);not null" json:"title"`
	Content      string         `gorm:"type:text;not null" json:"content"`
	CoverKey     string         `gorm:"type:varchar(255)" json:"coverKey"`
	Published    bool           `gorm:"not null" json:"published"`
	LikeCount    int64          `gorm:"not null;default:0" json:"likeCount"`
	CommentCount int64          `gorm:"not null;default:0" json:"commentCount"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Post) TableName() string {
	return "posts"
}

// Comment 对应 comments 表，ParentID 只允许指向顶层评论。
type Comment struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	PostID    uint           `gorm:"index;not null" json:"postId"`
	AuthorID  uint           `gorm:"index;not null" json:"authorId"`
	Author    *User          `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	ParentID  *uint          `gorm:"index" json:"parentId"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Comment) TableName() string {
	return "comments"
}
