// Package service 提供了搜索相关的业务逻辑。
package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"inkwell-go/internal/model"
	"inkwell-go/internal/repository"
	"inkwell-go/pkg/log"
)

const snippetRunes = 200

// PostSearcher 是帖子全文检索的后端，由 pkg/es.PostIndex 实现。
type PostSearcher interface {
	SearchPosts(ctx context.Context, query string, from, size int) ([]model.PostSearchHit, int64, error)
}

// SearchService 接口定义了搜索操作。
type SearchService interface {
	SearchPosts(ctx context.Context, query string, page, size int) (*Page[model.PostSearchHit], error)
}

type searchService struct {
	searcher PostSearcher
	posts    repository.PostRepository
}

// NewSearchService 创建 SearchService。searcher 为 nil 或查询失败时退化为数据库 LIKE 查询。
func NewSearchService(searcher PostSearcher, posts repository.PostRepository) SearchService {
	return &searchService{searcher: searcher, posts: posts}
}

func (s *searchService) SearchPosts(ctx context.Context, query string, page, size int) (*Page[model.PostSearchHit], error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, invalidf("query must not be blank")
	}
	page, size, offset := normalizePage(page, size)

	if s.searcher != nil {
		hits, total, err := s.searcher.SearchPosts(ctx, query, offset, size)
		if err == nil {
			return newPage(hits, total, page, size), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warnf("[SearchService] Elasticsearch 查询失败，改用数据库查询, query=%q: %v", query, err)
	}

	posts, total, err := s.posts.Search(ctx, query, offset, size)
	if err != nil {
		return nil, err
	}
	hits := make([]model.PostSearchHit, 0, len(posts))
	for _, p := range posts {
		hit := model.PostSearchHit{
			PostID:    p.ID,
			AuthorID:  p.AuthorID,
			Title:     p.Title,
			Snippet:   truncateRunes(p.Content, snippetRunes),
			CreatedAt: p.CreatedAt,
		}
		if p.Author != nil {
			hit.AuthorName = authorName(p.Author)
		}
		hits = append(hits, hit)
	}
	return newPage(hits, total, page, size), nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}

// authorName 优先使用昵称。
func authorName(u *model.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
