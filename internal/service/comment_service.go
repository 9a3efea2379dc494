package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"inkwell-go/internal/model"
	"inkwell-go/internal/repository"
)

const maxCommentRunes = 2000

// CommentService 管理帖子评论。评论只支持两层：顶层评论与对顶层评论的回复。
type CommentService interface {
	Create(ctx context.Context, actor Actor, postID uint, parentID *uint, content string) (*model.Comment, error)
	List(ctx context.Context, viewer Actor, postID uint, page, size int) (*Page[model.Comment], error)
	Delete(ctx context.Context, actor Actor, commentID uint) error
}

type commentService struct {
	posts    PostService
	comments repository.CommentRepository
}

func NewCommentService(posts PostService, comments repository.CommentRepository) CommentService {
	return &commentService{posts: posts, comments: comments}
}

func (s *commentService) Create(ctx context.Context, actor Actor, postID uint, parentID *uint, content string) (*model.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalidf("content must not be blank")
	}
	if utf8.RuneCountInString(content) > maxCommentRunes {
		return nil, invalidf("content must be at most %d characters", maxCommentRunes)
	}
	if _, err := s.posts.Get(ctx, actor, postID); err != nil {
		return nil, err
	}
	if parentID != nil {
		parent, err := s.comments.FindByID(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		if parent.PostID != postID {
			return nil, invalidf("parent comment belongs to another post")
		}
		if parent.ParentID != nil {
			return nil, invalidf("replies can only target top-level comments")
		}
	}
	c := &model.Comment{PostID: postID, AuthorID: actor.ID, ParentID: parentID, Content: content}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *commentService) List(ctx context.Context, viewer Actor, postID uint, page, size int) (*Page[model.Comment], error) {
	if _, err := s.posts.Get(ctx, viewer, postID); err != nil {
		return nil, err
	}
	page, size, offset := normalizePage(page, size)
	comments, total, err := s.comments.ListByPost(ctx, postID, offset, size)
	if err != nil {
		return nil, err
	}
	return newPage(comments, total, page, size), nil
}

// Delete 允许评论作者、帖子作者和管理员删除评论。
func (s *commentService) Delete(ctx context.Context, actor Actor, commentID uint) error {
	c, err := s.comments.FindByID(ctx, commentID)
	if err != nil {
		return err
	}
	if c.AuthorID != actor.ID && !actor.Admin {
		post, err := s.posts.Get(ctx, actor, c.PostID)
		if err != nil {
			return err
		}
		if post.AuthorID != actor.ID {
			return ErrForbidden
		}
	}
	return s.comments.Delete(ctx, c)
}
