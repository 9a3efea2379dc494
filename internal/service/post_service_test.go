package service

import (
	"context"
	"testing"

	"inkwell-go/internal/model"
	"inkwell-go/internal/repository"
	"inkwell-go/internal/testutil"
	"inkwell-go/pkg/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type postFixture struct {
	*fixture
	pub      *testutil.RecordingPublisher
	posts    PostService
	comments CommentService
	social   SocialService
	author   *model.User
	reader   *model.User
}

func newPostFixture(t *testing.T) *postFixture {
	t.Helper()
	f := newFixture(t)
	pub := &testutil.RecordingPublisher{}
	posts := NewPostService(repository.NewPostRepository(f.db), pub)
	return &postFixture{
		fixture:  f,
		pub:      pub,
		posts:    posts,
		comments: NewCommentService(posts, repository.NewCommentRepository(f.db)),
		social:   NewSocialService(posts, repository.NewUserRepository(f.db), repository.NewSocialRepository(f.db)),
		author:   f.user(t, "author", model.RoleUser),
		reader:   f.user(t, "reader", model.RoleUser),
	}
}

func TestPostService_CreatePublishesIndexTask(t *testing.T) {
	pf := newPostFixture(t)
	ctx := context.Background()

	post, err := pf.posts.Create(ctx, pf.author.ID, PostInput{Title: " Hello ", Content: "world"})
	require.NoError(t, err)
	assert.Equal(t, "Hello", post.Title)
	assert.True(t, post.Published)

	published := pf.pub.Published()
	require.Len(t, published, 1)
	assert.Equal(t, tasks.TypeIndexPost, published[0].Type)
	var payload tasks.PostPayload
	require.NoError(t, published[0].Decode(&payload))
	assert.Equal(t, post.ID, payload.PostID)

	_, err = pf.posts.Create(ctx, pf.author.ID, PostInput{Title: "", Content: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPostService_DraftsVisibleOnlyToAuthor(t *testing.T) {
	pf := newPostFixture(t)
	ctx := context.Background()
	draft := false

	post, err := pf.posts.Create(ctx, pf.author.ID, PostInput{Title: "Draft", Content: "wip", Published: &draft})
	require.NoError(t, err)
	assert.Empty(t, pf.pub.Published())

	_, err = pf.posts.Get(ctx, Actor{ID: pf.reader.ID}, post.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := pf.posts.Get(ctx, Actor{ID: pf.author.ID}, post.ID)
	require.NoError(t, err)
	assert.False(t, got.Published)

	page, err := pf.posts.List(ctx, Actor{ID: pf.reader.ID}, pf.author.ID, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, page.TotalElements)
	page, err = pf.posts.List(ctx, Actor{ID: pf.author.ID}, pf.author.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.TotalElements)
}

func TestPostService_OnlyAuthorOrAdminMayEdit(t *testing.T) {
	pf := newPostFixture(t)
	ctx := context.Background()
	post, err := pf.posts.Create(ctx, pf.author.ID, PostInput{Title: "T", Content: "C"})
	require.NoError(t, err)

	title := "Hijacked"
	_, err = pf.posts.Update(ctx, Actor{ID: pf.reader.ID}, post.ID, PostPatch{Title: &title})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, pf.posts.Delete(ctx, Actor{ID: pf.reader.ID}, post.ID), ErrForbidden)

	title = "Edited"
	updated, err := pf.posts.Update(ctx, Actor{ID: pf.author.ID}, post.ID, PostPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Edited", updated.Title)

	require.NoError(t, pf.posts.Delete(ctx, Actor{ID: 999, Admin: true}, post.ID))
	_, err = pf.posts.Get(ctx, Actor{}, post.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	published := pf.pub.Published()
	assert.Equal(t, tasks.TypeDeletePost, published[len(published)-1].Type)
}

func TestCommentService_Threading(t *testing.T) {
	pf := newPostFixture(t)
	ctx := context.Background()
	post, err := pf.posts.Create(ctx, pf.author.ID, PostInput{Title: "T", Content: "C"})
	require.NoError(t, err)
	other, err := pf.posts.Create(ctx, pf.author.ID, PostInput{Title: "T2", Content: "C2"})
	require.NoError(t, err)

	top, err := pf.comments.Create(ctx, Actor{ID: pf.reader.ID}, post.ID, nil, "nice")
	require.NoError(t, err)
	reply, err := pf.comments.Create(ctx, Actor{ID: pf.author.ID}, post.ID, &top.ID, "thanks")
	require.NoError(t, err)

	_, err = pf.comments.Create(ctx, Actor{ID: pf.reader.ID}, post.ID, &reply.ID, "too deep")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = pf.comments.Create(ctx, Actor{ID: pf.reader.ID}, other.ID, &top.ID, "wrong post")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = pf.comments.Create(ctx, Actor{ID: pf.reader.ID}, post.ID, nil, "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	got, err := pf.posts.Get(ctx, Actor{}, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.CommentCount)

	stranger := pf.user(t, "stranger", model.RoleUser)
	assert.ErrorIs(t, pf.comments.Delete(ctx, Actor{ID: stranger.ID}, top.ID), ErrForbidden)
	// 帖子作者可以删除别人的评论
	require.NoError(t, pf.comments.Delete(ctx, Actor{ID: pf.author.ID}, top.ID))

	page, err := pf.comments.List(ctx, Actor{}, post.ID, 1, 20)
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	assert.Equal(t, reply.ID, page.Content[0].ID)
}

func TestSocialService_LikesAndBookmarks(t *testing.T) {
	pf := newPostFixture(t)
	ctx := context.Background()
	post, err := pf.posts.Create(ctx, pf.author.ID, PostInput{Title: "T", Content: "C"})
	require.NoError(t, err)
	reader := Actor{ID: pf.reader.ID}

	state, err := pf.social.Like(ctx, reader, post.ID)
	require.NoError(t, err)
	assert.Equal(t, &LikeState{Liked: true, LikeCount: 1}, state)
	state, err = pf.social.Like(ctx, reader, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), state.LikeCount)

	state, err = pf.social.Unlike(ctx, reader, post.ID)
	require.NoError(t, err)
	assert.Equal(t, &LikeState{Liked: false, LikeCount: 0}, state)

	_, err = pf.social.Like(ctx, reader, 4242)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, pf.social.Bookmark(ctx, reader, post.ID))
	require.NoError(t, pf.social.Bookmark(ctx, reader, post.ID))
	page, err := pf.social.ListBookmarks(ctx, reader.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.TotalElements)
	require.NoError(t, pf.social.RemoveBookmark(ctx, reader, post.ID))
	page, err = pf.social.ListBookmarks(ctx, reader.ID, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Content)
}
