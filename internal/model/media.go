package model

import "time"

// MediaObject 记录上传到对象存储的文件。
type MediaObject struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OwnerID     uint      `gorm:"index;not null" json:"ownerId"`
	ObjectKey   string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"objectKey"`
	FileName    string    `gorm:"type:varchar(255)" json:"fileName"`
	ContentType string    `gorm:"type:varchar(100)" json:"contentType"`
	Size        int64     `gorm:"not null" json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (MediaObject) TableName() string {
	return "media_objects"
}
