package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"inkwell-go/internal/model"
	"inkwell-go/internal/repository"
	"inkwell-go/pkg/kafka"
	"inkwell-go/pkg/log"
	"inkwell-go/pkg/tasks"
)

const maxPostTitleRunes = 200

// Actor 是发起操作的用户，匿名访问时 ID 为 0。
type Actor struct {
	ID    uint
	Admin bool
}

// PostInput 是创建帖子的参数。
type PostInput struct {
	Title     string
	Content   string
	CoverKey  string
	Published *bool
}

// PostPatch 是修改帖子的参数，nil 表示不修改。
type PostPatch struct {
	Title     *string
	Content   *string
	CoverKey  *string
	Published *bool
}

// PostService 管理帖子，并把变更同步到搜索索引。
type PostService interface {
	Create(ctx context.Context, authorID uint, in PostInput) (*model.Post, error)
	// Get 返回帖子；未发布的帖子只有作者本人可见。
	Get(ctx context.Context, viewer Actor, postID uint) (*model.Post, error)
	List(ctx context.Context, viewer Actor, authorID uint, page, size int) (*Page[model.Post], error)
	Update(ctx context.Context, actor Actor, postID uint, patch PostPatch) (*model.Post, error)
	Delete(ctx context.Context, actor Actor, postID uint) error
}

type postService struct {
	repo      repository.PostRepository
	publisher kafka.Publisher
}

// NewPostService 创建 PostService。publisher 为 nil 时不同步搜索索引。
func NewPostService(repo repository.PostRepository, publisher kafka.Publisher) PostService {
	return &postService{repo: repo, publisher: publisher}
}

func validatePost(title, content string) error {
	if title == "" {
		return invalidf("title must not be blank")
	}
	if utf8.RuneCountInString(title) > maxPostTitleRunes {
		return invalidf("title must be at most %d characters", maxPostTitleRunes)
	}
	if strings.TrimSpace(content) == "" {
		return invalidf("content must not be blank")
	}
	return nil
}

func (s *postService) Create(ctx context.Context, authorID uint, in PostInput) (*model.Post, error) {
	post := &model.Post{
		AuthorID:  authorID,
		Title:     strings.TrimSpace(in.Title),
		Content:   in.Content,
		CoverKey:  strings.TrimSpace(in.CoverKey),
		Published: true,
	}
	if in.Published != nil {
		post.Published = *in.Published
	}
	if err := validatePost(post.Title, post.Content); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, post); err != nil {
		return nil, err
	}
	if post.Published {
		s.enqueue(ctx, tasks.TypeIndexPost, post.ID)
	}
	return post, nil
}

func (s *postService) Get(ctx context.Context, viewer Actor, postID uint) (*model.Post, error) {
	post, err := s.repo.FindByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !post.Published && post.AuthorID != viewer.ID {
		return nil, ErrNotFound
	}
	return post, nil
}

func (s *postService) List(ctx context.Context, viewer Actor, authorID uint, page, size int) (*Page[model.Post], error) {
	page, size, offset := normalizePage(page, size)
	filter := repository.PostFilter{
		AuthorID:      authorID,
		OnlyPublished: authorID == 0 || authorID != viewer.ID,
		Offset:        offset,
		Limit:         size,
	}
	posts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return newPage(posts, total, page, size), nil
}

// loadForWrite 读取帖子并校验作者身份，管理员可以操作任何帖子。
func (s *postService) loadForWrite(ctx context.Context, actor Actor, postID uint) (*model.Post, error) {
	post, err := s.repo.FindByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != actor.ID && !actor.Admin {
		if !post.Published {
			return nil, ErrNotFound
		}
		return nil, ErrForbidden
	}
	return post, nil
}

func (s *postService) Update(ctx context.Context, actor Actor, postID uint, patch PostPatch) (*model.Post, error) {
	post, err := s.loadForWrite(ctx, actor, postID)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		post.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Content != nil {
		post.Content = *patch.Content
	}
	if patch.CoverKey != nil {
		post.CoverKey = strings.TrimSpace(*patch.CoverKey)
	}
	if patch.Published != nil {
		post.Published = *patch.Published
	}
	if err := validatePost(post.Title, post.Content); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, post); err != nil {
		return nil, err
	}
	if post.Published {
		s.enqueue(ctx, tasks.TypeIndexPost, post.ID)
	} else {
		s.enqueue(ctx, tasks.TypeDeletePost, post.ID)
	}
	return post, nil
}

func (s *postService) Delete(ctx context.Context, actor Actor, postID uint) error {
	if _, err := s.loadForWrite(ctx, actor, postID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, postID); err != nil {
		return err
	}
	s.enqueue(ctx, tasks.TypeDeletePost, postID)
	return nil
}

// enqueue 投递索引任务。失败只记录日志，帖子本身已经写入成功。
func (s *postService) enqueue(ctx context.Context, taskType string, postID uint) {
	if s.publisher == nil {
		return
	}
	task, err := tasks.New(taskType, tasks.PostPayload{PostID: postID})
	if err == nil {
		err = s.publisher.Publish(ctx, task)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warnf("[PostService] 投递 %s 任务失败, post=%d: %v", taskType, postID, err)
	}
}
