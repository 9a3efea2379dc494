package service

import (
	"context"

	"inkwell-go/internal/model"
	"inkwell-go/internal/repository"
)

// LikeState 是点赞操作后的状态。
type LikeState struct {
	Liked     bool  `json:"liked"`
	LikeCount int64 `json:"likeCount"`
}

// SocialService 负责点赞、收藏和关注，所有写操作都是幂等的。
type SocialService interface {
	Like(ctx context.Context, actor Actor, postID uint) (*LikeState, error)
	Unlike(ctx context.Context, actor Actor, postID uint) (*LikeState, error)
	Bookmark(ctx context.Context, actor Actor, postID uint) error
	RemoveBookmark(ctx context.Context, actor Actor, postID uint) error
	ListBookmarks(ctx context.Context, userID uint, page, size int) (*Page[model.Bookmark], error)
	Follow(ctx context.Context, followerID, followeeID uint) error
	Unfollow(ctx context.Context, followerID, followeeID uint) error
	Followers(ctx context.Context, userID uint, page, size int) (*Page[model.User], error)
	Following(ctx context.Context, userID uint, page, size int) (*Page[model.User], error)
}

type socialService struct {
	posts  PostService
	users  repository.UserRepository
	social repository.SocialRepository
}

func NewSocialService(posts PostService, users repository.UserRepository, social repository.SocialRepository) SocialService {
	return &socialService{posts: posts, users: users, social: social}
}

func (s *socialService) likeState(ctx context.Context, actor Actor, postID uint) (*LikeState, error) {
	post, err := s.posts.Get(ctx, actor, postID)
	if err != nil {
		return nil, err
	}
	liked, err := s.social.HasLiked(ctx, postID, actor.ID)
	if err != nil {
		return nil, err
	}
	return &LikeState{Liked: liked, LikeCount: post.LikeCount}, nil
}

func (s *socialService) Like(ctx context.Context, actor Actor, postID uint) (*LikeState, error) {
	if _, err := s.posts.Get(ctx, actor, postID); err != nil {
		return nil, err
	}
	if _, err := s.social.Like(ctx, postID, actor.ID); err != nil {
		return nil, err
	}
	return s.likeState(ctx, actor, postID)
}

func (s *socialService) Unlike(ctx context.Context, actor Actor, postID uint) (*LikeState, error) {
	if _, err := s.posts.Get(ctx, actor, postID); err != nil {
		return nil, err
	}
	if _, err := s.social.Unlike(ctx, postID, actor.ID); err != nil {
		return nil, err
	}
	return s.likeState(ctx, actor, postID)
}

func (s *socialService) Bookmark(ctx context.Context, actor Actor, postID uint) error {
	if _, err := s.posts.Get(ctx, actor, postID); err != nil {
		return err
	}
	return s.social.AddBookmark(ctx, postID, actor.ID)
}

func (s *socialService) RemoveBookmark(ctx context.Context, actor Actor, postID uint) error {
	return s.social.RemoveBookmark(ctx, postID, actor.ID)
}

func (s *socialService) ListBookmarks(ctx context.Context, userID uint, page, size int) (*Page[model.Bookmark], error) {
	page, size, offset := normalizePage(page, size)
	items, total, err := s.social.ListBookmarks(ctx, userID, offset, size)
	if err != nil {
		return nil, err
	}
	return newPage(items, total, page, size), nil
}

func (s *socialService) Follow(ctx context.Context, followerID, followeeID uint) error {
	if followerID == followeeID {
		return invalidf("cannot follow yourself")
	}
	if _, err := s.users.FindByID(ctx, followeeID); err != nil {
		return err
	}
	return s.social.Follow(ctx, followerID, followeeID)
}

func (s *socialService) Unfollow(ctx context.Context, followerID, followeeID uint) error {
	return s.social.Unfollow(ctx, followerID, followeeID)
}

func (s *socialService) Followers(ctx context.Context, userID uint, page, size int) (*Page[model.User], error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, err
	}
	page, size, offset := normalizePage(page, size)
	users, total, err := s.social.ListFollowers(ctx, userID, offset, size)
	if err != nil {
		return nil, err
	}
	return newPage(users, total, page, size), nil
}

func (s *socialService) Following(ctx context.Context, userID uint, page, size int) (*Page[model.User], error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, err
	}
	page, size, offset := normalizePage(page, size)
	users, total, err := s.social.ListFollowing(ctx, userID, offset, size)
	if err != nil {
		return nil, err
	}
	return newPage(users, total, page, size), nil
}
