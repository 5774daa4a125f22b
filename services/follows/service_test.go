package follows

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filmlog/internal/testutil"
)

func TestFollowLifecycle(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")

	f, err := svc.Follow(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, alice, f.FollowerID)
	assert.Equal(t, bob, f.FollowedID)

	ok, err := svc.IsFollowing(ctx, alice, bob)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.IsFollowing(ctx, bob, alice)
	require.NoError(t, err)
	assert.False(t, ok, "edges are directed")

	_, err = svc.Follow(ctx, alice, bob)
	require.ErrorIs(t, err, ErrAlreadyFollowing)

	require.NoError(t, svc.Unfollow(ctx, alice, bob))
	require.ErrorIs(t, svc.Unfollow(ctx, alice, bob), ErrNotFollowing)
}

func TestFollowRejectsInvalidEdges(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")

	_, err := svc.Follow(ctx, alice, alice)
	require.ErrorIs(t, err, ErrSelfFollow)
	_, err = svc.Follow(ctx, alice, "nobody")
	require.ErrorIs(t, err, ErrUserNotFound)
	_, err = svc.Follow(ctx, "", alice)
	require.ErrorIs(t, err, ErrUserIDRequired)
}

func TestSelfFollowConstraint(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")

	_, err := db.ExecContext(context.Background(),
		`INSERT INTO follows (follower_id, followed_id, created_at) VALUES (?, ?, ?)`, alice, alice, time.Now().UTC())
	require.Error(t, err)
}

func TestFollowingAndFollowers(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	carol := testutil.CreateUser(t, db, "carol")

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	_, err := svc.Follow(ctx, alice, bob)
	require.NoError(t, err)
	svc.now = func() time.Time { return base.Add(time.Minute) }
	_, err = svc.Follow(ctx, alice, carol)
	require.NoError(t, err)
	_, err = svc.Follow(ctx, carol, bob)
	require.NoError(t, err)

	following, err := svc.Following(ctx, alice)
	require.NoError(t, err)
	require.Len(t, following, 2)
	assert.Equal(t, carol, following[0].FollowedID)
	assert.Equal(t, bob, following[1].FollowedID)

	followers, err := svc.Followers(ctx, bob)
	require.NoError(t, err)
	assert.Len(t, followers, 2)

	none, err := svc.Followers(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, none)
}
