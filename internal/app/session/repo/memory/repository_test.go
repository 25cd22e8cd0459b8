package memory

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/66gu1/authsession/internal/app/session"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newSession(subject string, now time.Time) session.Session {
	return session.Session{
		ID:        uuid.New(),
		Subject:   subject,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func TestCreateAndGet(t *testing.T) {
	t.Parallel()
	repo := NewRepository(&fixedClock{now: time.Now().UTC()})
	now := time.Now().UTC()
	s := newSession("u1", now)

	require.NoError(t, repo.Create(t.Context(), s, "h0"))

	got, rtHash, err := repo.Get(t.Context(), s.ID)
	require.NoError(t, err)
	require.Equal(t, s, got)
	require.Equal(t, "h0", rtHash)

	err = repo.Create(t.Context(), s, "h1")
	require.ErrorIs(t, err, session.ErrConflict())

	_, _, err = repo.Get(t.Context(), uuid.New())
	require.ErrorIs(t, err, session.ErrSessionNotFound())
}

func TestCompareAndRotate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		prepare func(repo *memoryRepo, s session.Session)
		req     func(s session.Session) session.RotateReq
		wantErr error
	}{
		{
			name: "ok",
			req: func(s session.Session) session.RotateReq {
				return session.RotateReq{SessionID: s.ID, ExpectedGeneration: 0, NewGeneration: 1, RefreshTokenHash: "h1"}
			},
		},
		{
			name: "stale generation",
			req: func(s session.Session) session.RotateReq {
				return session.RotateReq{SessionID: s.ID, ExpectedGeneration: 3, NewGeneration: 4, RefreshTokenHash: "h1"}
			},
			wantErr: session.ErrConflict(),
		},
		{
			name: "revoked",
			prepare: func(repo *memoryRepo, s session.Session) {
				require.NoError(t, repo.Revoke(t.Context(), s.ID))
			},
			req: func(s session.Session) session.RotateReq {
				return session.RotateReq{SessionID: s.ID, ExpectedGeneration: 0, NewGeneration: 1, RefreshTokenHash: "h1"}
			},
			wantErr: session.ErrConflict(),
		},
		{
			name: "not found",
			req: func(s session.Session) session.RotateReq {
				return session.RotateReq{SessionID: uuid.New(), ExpectedGeneration: 0, NewGeneration: 1, RefreshTokenHash: "h1"}
			},
			wantErr: session.ErrSessionNotFound(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo := NewRepository(&fixedClock{now: time.Now().UTC()})
			s := newSession("u1", time.Now().UTC())
			require.NoError(t, repo.Create(t.Context(), s, "h0"))
			if tt.prepare != nil {
				tt.prepare(repo, s)
			}

			err := repo.CompareAndRotate(t.Context(), tt.req(s))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			got, rtHash, err := repo.Get(t.Context(), s.ID)
			require.NoError(t, err)
			require.Equal(t, int64(1), got.Generation)
			require.Equal(t, "h1", rtHash)
		})
	}
}

func TestCompareAndRotate_SingleWinner(t *testing.T) {
	t.Parallel()
	repo := NewRepository(&fixedClock{now: time.Now().UTC()})
	s := newSession("u1", time.Now().UTC())
	require.NoError(t, repo.Create(t.Context(), s, "h0"))

	const workers = 16
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		start     = make(chan struct{})
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := repo.CompareAndRotate(t.Context(), session.RotateReq{
				SessionID: s.ID, ExpectedGeneration: 0, NewGeneration: 1, RefreshTokenHash: "h1",
			})
			if err == nil {
				successes.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, int32(1), successes.Load())
}

func TestRevoke(t *testing.T) {
	t.Parallel()
	repo := NewRepository(&fixedClock{now: time.Now().UTC()})
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
	require.NoError(t, repo.RevokeAllForSubject(t.Context(), "u1"))

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
	repo := NewRepository(&fixedClock{now: time.Now().UTC()})
	now := time.Now().UTC()
	old := newSession("u1", now.Add(-3*time.Hour))
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
	now := time.Now().UTC()
	clock := &fixedClock{now: now}
	repo := NewRepository(clock)
	revoked := newSession("u1", now)
	active := newSession("u1", now)
	require.NoError(t, repo.Create(t.Context(), revoked, "h"))
	require.NoError(t, repo.Create(t.Context(), active, "h"))
	require.NoError(t, repo.Revoke(t.Context(), revoked.ID))

	n, err := repo.PurgeExpired(t.Context(), now)
	require.NoError(t, err)
	require.Zero(t, n)

	clock.Advance(time.Minute)
	require.NoError(t, repo.Revoke(t.Context(), revoked.ID))

	n, err = repo.PurgeExpired(t.Context(), now.Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, _, err = repo.Get(t.Context(), revoked.ID)
	require.ErrorIs(t, err, session.ErrSessionNotFound())
	_, _, err = repo.Get(t.Context(), active.ID)
	require.NoError(t, err)
}
