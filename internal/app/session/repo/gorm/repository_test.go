//go:build testutil

package gorm

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/66gu1/authsession/internal/app/session"
	"github.com/66gu1/authsession/internal/infrastructure/db"
	"github.com/66gu1/authsession/internal/infrastructure/system"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var shared *db.TestDB

func TestMain(m *testing.M) {
	var stop func()
	shared, stop = db.StartPostgres()
	code := m.Run()
	stop()
	os.Exit(code)
}

func newRepo(t *testing.T) (*gormRepo, func()) {
	gdb, _, cleanup := shared.CreateIsolatedDB(t)
	t.Cleanup(cleanup)
	repo, err := NewRepository(gdb, &system.TimeGenerator{})
	require.NoError(t, err)
	return repo, cleanup
}

func newSession(subject string, now time.Time) session.Session {
	return session.Session{
		ID:        uuid.New(),
		Subject:   subject,
		CreatedAt: now,
		ExpiresAt: now.Add(24 * time.Hour),
	}
}

func compareSessions(t *testing.T, want, got session.Session) {
	t.Helper()
	require.Equal(t, want.ID, got.ID)
	require.Equal(t, want.Subject, got.Subject)
	require.Equal(t, want.Generation, got.Generation)
	require.Equal(t, want.Revoked, got.Revoked)
	require.WithinDuration(t, want.CreatedAt, got.CreatedAt, time.Millisecond)
	require.WithinDuration(t, want.ExpiresAt, got.ExpiresAt, time.Millisecond)
}

func TestCreateAndGet(t *testing.T) {
	t.Parallel()
	repo, cleanup := newRepo(t)

	now := time.Now().UTC().Truncate(time.Second)
	sess := newSession("u1", now)

	require.NoError(t, repo.Create(t.Context(), sess, "hash-1"))

	got, rtHash, err := repo.Get(t.Context(), sess.ID)
	require.NoError(t, err)
	compareSessions(t, sess, got)
	require.Equal(t, "hash-1", rtHash)

	err = repo.Create(t.Context(), sess, "hash-2")
	require.ErrorIs(t, err, session.ErrConflict())

	_, _, err = repo.Get(t.Context(), uuid.New())
	require.ErrorIs(t, err, session.ErrSessionNotFound())

	// pool closed error
	cleanup()
	_, _, err = repo.Get(t.Context(), sess.ID)
	require.Error(t, err)
	err = repo.Create(t.Context(), newSession("u1", now), "hash-3")
	require.Error(t, err)
}

func TestCompareAndRotate(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)

	sess := newSession("u1", time.Now().UTC())
	require.NoError(t, repo.Create(t.Context(), sess, "h0"))

	err := repo.CompareAndRotate(t.Context(), session.RotateReq{
		SessionID: sess.ID, ExpectedGeneration: 0, NewGeneration: 1, RefreshTokenHash: "h1",
	})
	require.NoError(t, err)

	got, rtHash, err := repo.Get(t.Context(), sess.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), got.Generation)
	require.Equal(t, "h1", rtHash)

	// stale generation
	err = repo.CompareAndRotate(t.Context(), session.RotateReq{
		SessionID: sess.ID, ExpectedGeneration: 0, NewGeneration: 1, RefreshTokenHash: "hx",
	})
	require.ErrorIs(t, err, session.ErrConflict())

	// revoked
	require.NoError(t, repo.Revoke(t.Context(), sess.ID))
	err = repo.CompareAndRotate(t.Context(), session.RotateReq{
		SessionID: sess.ID, ExpectedGeneration: 1, NewGeneration: 2, RefreshTokenHash: "h2",
	})
	require.ErrorIs(t, err, session.ErrConflict())
}

func TestCompareAndRotate_Concurrent(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)

	sess := newSession("u1", time.Now().UTC())
	require.NoError(t, repo.Create(t.Context(), sess, "h0"))

	const workers = 8
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		conflicts atomic.Int32
		start     = make(chan struct{})
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := repo.CompareAndRotate(t.Context(), session.RotateReq{
				SessionID: sess.ID, ExpectedGeneration: 0, NewGeneration: 1, RefreshTokenHash: uuid.NewString(),
			})
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, session.ErrConflict()):
				conflicts.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, int32(1), successes.Load())
	require.Equal(t, int32(workers-1), conflicts.Load())
}

func TestRevoke(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)

	now := time.Now().UTC()
	s1 := newSession("u1", now)
	s2 := newSession("u1", now)
	s3 := newSession("u2", now)
	for _, s := range []session.Session{s1, s2, s3} {
		require.NoError(t, repo.Create(t.Context(), s, "h"))
	}

	require.NoError(t, repo.Revoke(t.Context(), s1.ID))
	require.NoError(t, repo.Revoke(t.Context(), s1.ID))
	require.NoError(t, repo.Revoke(t.Context(), uuid.New()))

	got, _, err := repo.Get(t.Context(), s1.ID)
	require.NoError(t, err)
	require.True(t, got.Revoked)

	require.NoError(t, repo.RevokeAllForSubject(t.Context(), "u1"))
	require.NoError(t, repo.RevokeAllForSubject(t.Context(), "nobody"))

	list, err := repo.ListBySubject(t.Context(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, s := range list {
		require.True(t, s.Revoked)
	}

	got, _, err = repo.Get(t.Context(), s3.ID)
	require.NoError(t, err)
	require.False(t, got.Revoked)
}

func TestPurgeExpired(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)

	now := time.Now().UTC()
	old := newSession("u1", now.Add(-48*time.Hour))
	fresh := newSession("u1", now)
	require.NoError(t, repo.Create(t.Context(), old, "h"))
	require.NoError(t, repo.Create(t.Context(), fresh, "h"))

	n, err := repo.PurgeExpired(t.Context(), now)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, _, err = repo.Get(t.Context(), old.ID)
	require.ErrorIs(t, err, session.ErrSessionNotFound())
	_, _, err = repo.Get(t.Context(), fresh.ID)
	require.NoError(t, err)
}

func TestPurgeExpired_Revoked(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)

	now := time.Now().UTC()
	revoked := newSession("u1", now)
	active := newSession("u1", now)
	require.NoError(t, repo.Create(t.Context(), revoked, "h"))
	require.NoError(t, repo.Create(t.Context(), active, "h"))
	require.NoError(t, repo.Revoke(t.Context(), revoked.ID))

	n, err := repo.PurgeExpired(t.Context(), now.Add(-time.Hour))
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = repo.PurgeExpired(t.Context(), time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, _, err = repo.Get(t.Context(), revoked.ID)
	require.ErrorIs(t, err, session.ErrSessionNotFound())
	_, _, err = repo.Get(t.Context(), active.ID)
	require.NoError(t, err)
}
