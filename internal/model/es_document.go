// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// PostDocument 是帖子在 Elasticsearch 中的文档结构。
type PostDocument struct {
	PostID     uint      `json:"post_id"`
	AuthorID   uint      `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// PostSearchHit 定义了返回给前端的搜索结果结构。
type PostSearchHit struct {
	PostID     uint      `json:"postId"`
	AuthorID   uint      `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Title      string    `json:"title"`
	Snippet    string    `json:"snippet"`
	Score      float64   `json:"score"`
	CreatedAt  time.Time `json:"createdAt"`
}
