package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/66gu1/authsession/internal/app/session"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type TimeGenerator interface {
	Now() time.Time
}

type record struct {
	session   session.Session
	rtHash    string
	revokedAt time.Time
}

// memoryRepo is a process-local store. It is only atomic within one process
// and is meant for tests and single-instance deployments.
type memoryRepo struct {
	mu            sync.RWMutex
	sessions      map[uuid.UUID]*record
	timeGenerator TimeGenerator
}

func NewRepository(timeGenerator TimeGenerator) *memoryRepo {
	if timeGenerator == nil {
		panic("memory.NewRepository: nil time generator")
	}
	return &memoryRepo{sessions: make(map[uuid.UUID]*record), timeGenerator: timeGenerator}
}

func (r *memoryRepo) Create(_ context.Context, s session.Session, rtHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID]; ok {
		return fmt.Errorf("memoryRepo.Create: %w", session.ErrConflict())
	}
	r.sessions[s.ID] = &record{session: s, rtHash: rtHash}

	return nil
}

func (r *memoryRepo) Get(_ context.Context, id uuid.UUID) (session.Session, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.sessions[id]
	if !ok {
		return session.Session{}, "", fmt.Errorf("memoryRepo.Get: %w", session.ErrSessionNotFound())
	}

	return rec.session, rec.rtHash, nil
}

func (r *memoryRepo) CompareAndRotate(_ context.Context, req session.RotateReq) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sessions[req.SessionID]
	if !ok {
		return fmt.Errorf("memoryRepo.CompareAndRotate: %w", session.ErrSessionNotFound())
	}
	if rec.session.Revoked || rec.session.Generation != req.ExpectedGeneration {
		return fmt.Errorf("memoryRepo.CompareAndRotate: %w", session.ErrConflict())
	}
	rec.session.Generation = req.NewGeneration
	rec.rtHash = req.RefreshTokenHash

	return nil
}

func (r *memoryRepo) Revoke(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.sessions[id]; ok && !rec.session.Revoked {
		rec.session.Revoked = true
		rec.revokedAt = r.timeGenerator.Now()
	}

	return nil
}

func (r *memoryRepo) RevokeAllForSubject(_ context.Context, subject string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.timeGenerator.Now()
	for _, rec := range r.sessions {
		if rec.session.Subject == subject && !rec.session.Revoked {
			rec.session.Revoked = true
			rec.revokedAt = now
		}
	}

	return nil
}

func (r *memoryRepo) ListBySubject(_ context.Context, subject string) ([]session.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	recs := lo.Filter(lo.Values(r.sessions), func(rec *record, _ int) bool { return rec.session.Subject == subject })
	return lo.Map(recs, func(rec *record, _ int) session.Session { return rec.session }), nil
}

// PurgeExpired deletes sessions that expired or were revoked before the cutoff.
func (r *memoryRepo) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, rec := range r.sessions {
		if rec.session.ExpiresAt.Before(before) || (rec.session.Revoked && rec.revokedAt.Before(before)) {
			delete(r.sessions, id)
			n++
		}
	}

	return n, nil
}
