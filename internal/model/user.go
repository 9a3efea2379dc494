// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User 对应 users 表。Password 为 bcrypt 哈希，不会序列化到响应中。
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Username    string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	Password    string    `gorm:"type:varchar(255);not null" json:"-"`
	Role        string    `gorm:"type:varchar(16);not null;default:USER" json:"role"`
	DisplayName string    `gorm:"type:varchar(100)" json:"displayName"`
	Bio         string    `gorm:"type:text" json:"bio"`
	AvatarKey   string    `gorm:"type:varchar(255)" json:"avatarKey"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (User) TableName() string {
	return "users"
}

// IsAdmin 判断是否为管理员。
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserProfile 是公开资料，附带关注数。
type UserProfile struct {
	ID             uint      `json:"id"`
	Username       string    `json:"username"`
	DisplayName    string    `json:"displayName"`
	Bio            string    `json:"bio"`
	AvatarKey      string    `json:"avatarKey"`
	FollowerCount  int64     `json:"followerCount"`
	FollowingCount int64     `json:"followingCount"`
	CreatedAt      time.Time `json:"createdAt"`
}
