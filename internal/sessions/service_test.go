package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateAndValidateSession(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	r, err := svc.CreateSession(ctx, "user-1", "curl/8", time.Hour)
	require.NoError(t, err)
	require.Len(t, r, 64)

	sess, err := svc.ValidateRefresh(ctx, r)
	require.NoError(t, err)
	require.NotNil(t, sess)
	require.Equal(t, "user-1", sess.UserID)
	require.Equal(t, "curl/8", sess.UserAgent)

	require.NoError(t, svc.DeleteRefresh(ctx, r))
	sess, err = svc.ValidateRefresh(ctx, r)
	require.NoError(t, err)
	require.Nil(t, sess)
}

func TestValidateRefresh_Expired(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)
	ctx := context.Background()

	r, err := svc.CreateSession(ctx, "user-1", "", time.Minute)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	sess, err := svc.ValidateRefresh(ctx, r)
	require.NoError(t, err)
	require.Nil(t, sess)

	stored, _ := repo.GetByRefresh(ctx, r)
	require.Nil(t, stored, "expired session is purged on lookup")
}

func TestRotate(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	old, err := svc.CreateSession(ctx, "user-2", "", time.Hour)
	require.NoError(t, err)

	sess, next, err := svc.Rotate(ctx, old, time.Hour)
	require.NoError(t, err)
	require.Equal(t, "user-2", sess.UserID)
	require.NotEqual(t, old, next)

	gone, err := svc.ValidateRefresh(ctx, old)
	require.NoError(t, err)
	require.Nil(t, gone)

	fresh, err := svc.ValidateRefresh(ctx, next)
	require.NoError(t, err)
	require.Equal(t, "user-2", fresh.UserID)

	sess, next, err = svc.Rotate(ctx, "unknown", time.Hour)
	require.NoError(t, err)
	require.Nil(t, sess)
	require.Empty(t, next)
}

func TestRevokeAll(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	a, err := svc.CreateSession(ctx, "user-3", "laptop", time.Hour)
	require.NoError(t, err)
	b, err := svc.CreateSession(ctx, "user-3", "phone", time.Hour)
	require.NoError(t, err)
	other, err := svc.CreateSession(ctx, "user-4", "", time.Hour)
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAll(ctx, "user-3"))
	for _, r := range []string{a, b} {
		sess, err := svc.ValidateRefresh(ctx, r)
		require.NoError(t, err)
		require.Nil(t, sess)
	}
	sess, err := svc.ValidateRefresh(ctx, other)
	require.NoError(t, err)
	require.NotNil(t, sess)
}
