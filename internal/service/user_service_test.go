package service

import (
	"context"
	"testing"

	"inkwell-go/internal/repository"
	"inkwell-go/internal/testutil"
	"inkwell-go/pkg/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService(t *testing.T) (UserService, *fixture, *token.JWTManager) {
	t.Helper()
	f := newFixture(t)
	jwt := token.NewJWTManager("test-secret", 1, 7)
	svc := NewUserService(repository.NewUserRepository(f.db), repository.NewSocialRepository(f.db), testutil.NewMemBlacklist(), jwt)
	return svc, f, jwt
}

func TestUserService_RegisterAndLogin(t *testing.T) {
	svc, _, jwt := newUserService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "  alice ", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.NotEqual(t, "s3cret!", u.Password)

	_, err = svc.Register(ctx, "alice", "another")
	assert.ErrorIs(t, err, ErrConflict)

	pair, err := svc.Login(ctx, "alice", "s3cret!")
	require.NoError(t, err)
	claims, err := jwt.VerifyToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)

	_, err = svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.Login(ctx, "nobody", "whatever")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestUserService_RegisterValidation(t *testing.T) {
	svc, _, _ := newUserService(t)
	_, err := svc.Register(context.Background(), "ab", "s3cret!")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Register(context.Background(), "alice", "123")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUserService_RefreshRotatesAndLogoutRevokes(t *testing.T) {
	svc, _, jwt := newUserService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "bob", "password")
	require.NoError(t, err)
	pair, err := svc.Login(ctx, "bob", "password")
	require.NoError(t, err)

	rotated, err := svc.RefreshToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	_, err = svc.RefreshToken(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized, "old refresh token must be single use")

	_, err = svc.RefreshToken(ctx, rotated.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized, "access token cannot refresh")

	claims, err := jwt.VerifyToken(rotated.AccessToken)
	require.NoError(t, err)
	revoked, err := svc.IsRevoked(ctx, claims)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, svc.Logout(ctx, claims, rotated.RefreshToken))
	revoked, err = svc.IsRevoked(ctx, claims)
	require.NoError(t, err)
	assert.True(t, revoked)
	_, err = svc.RefreshToken(ctx, rotated.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestUserService_ProfileAndFollowCounts(t *testing.T) {
	svc, f, _ := newUserService(t)
	ctx := context.Background()
	alice, err := svc.Register(ctx, "alice", "password")
	require.NoError(t, err)
	bob, err := svc.Register(ctx, "bob", "password")
	require.NoError(t, err)

	social := NewSocialService(NewPostService(repository.NewPostRepository(f.db), nil), repository.NewUserRepository(f.db), repository.NewSocialRepository(f.db))
	require.NoError(t, social.Follow(ctx, bob.ID, alice.ID))
	require.NoError(t, social.Follow(ctx, bob.ID, alice.ID))
	assert.ErrorIs(t, social.Follow(ctx, alice.ID, alice.ID), ErrInvalidInput)
	assert.ErrorIs(t, social.Follow(ctx, alice.ID, 999), ErrNotFound)

	name, bio := "Alice A.", "writes about markets"
	updated, err := svc.UpdateProfile(ctx, alice.ID, ProfileUpdate{DisplayName: &name, Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, name, updated.DisplayName)

	profile, err := svc.PublicProfile(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", profile.DisplayName)
	assert.Equal(t, int64(1), profile.FollowerCount)
	assert.Equal(t, int64(0), profile.FollowingCount)

	blank := "  "
	_, err = svc.UpdateProfile(ctx, alice.ID, ProfileUpdate{DisplayName: &blank})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.PublicProfile(ctx, 12345)
	assert.ErrorIs(t, err, ErrNotFound)
}
