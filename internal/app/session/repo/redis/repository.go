package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/66gu1/authsession/internal/app/session"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	fieldSubject    = "subject"
	fieldRTHash     = "rt_hash"
	fieldGeneration = "generation"
	fieldCreatedAt  = "created_at"
	fieldExpiresAt  = "expires_at"
	fieldRevoked    = "revoked"
)

type TimeGenerator interface {
	Now() time.Time
}

type Config struct {
	KeyPrefix string `mapstructure:"key_prefix" json:"key_prefix"`
	// Retention keeps a session key readable this long past its expiry or
	// revocation, so late refreshes are reported as expired or revoked
	// instead of not found.
	Retention time.Duration `mapstructure:"retention" json:"retention"`
}

type redisRepo struct {
	client        redis.UniversalClient
	timeGenerator TimeGenerator
	cfg           Config
}

func NewRepository(client redis.UniversalClient, timeGenerator TimeGenerator, cfg Config) (*redisRepo, error) {
	if client == nil || timeGenerator == nil {
		return nil, fmt.Errorf("redis.NewRepository: nil dependency")
	}
	if cfg.Retention < 0 {
		return nil, fmt.Errorf("redis.NewRepository: negative retention %s", cfg.Retention)
	}

	return &redisRepo{client: client, timeGenerator: timeGenerator, cfg: cfg}, nil
}

func (r *redisRepo) sessionKey(id uuid.UUID) string {
	return r.cfg.KeyPrefix + "session:" + id.String()
}

func (r *redisRepo) subjectKey(subject string) string {
	return r.cfg.KeyPrefix + "subject_sessions:" + subject
}

func (r *redisRepo) Create(ctx context.Context, s session.Session, rtHash string) error {
	expireAt := s.ExpiresAt.Add(r.cfg.Retention)
	ttl := max(expireAt.Sub(r.timeGenerator.Now()), time.Millisecond)
	res, err := createScript.Run(ctx, r.client,
		[]string{r.sessionKey(s.ID), r.subjectKey(s.Subject)},
		s.ID.String(),
		s.Subject,
		rtHash,
		strconv.FormatInt(s.Generation, 10),
		strconv.FormatInt(s.CreatedAt.UnixNano(), 10),
		strconv.FormatInt(s.ExpiresAt.UnixNano(), 10),
		strconv.FormatInt(expireAt.UnixMilli(), 10),
		strconv.FormatInt(ttl.Milliseconds(), 10),
	).Int()
	if err != nil {
		return fmt.Errorf("redisRepo.Create: %w", err)
	}
	if res == 0 {
		return fmt.Errorf("redisRepo.Create: %w", session.ErrConflict())
	}

	return nil
}

func (r *redisRepo) Get(ctx context.Context, id uuid.UUID) (session.Session, string, error) {
	fields, err := r.client.HGetAll(ctx, r.sessionKey(id)).Result()
	if err != nil {
		return session.Session{}, "", fmt.Errorf("redisRepo.Get: %w", err)
	}
	if len(fields) == 0 {
		return session.Session{}, "", fmt.Errorf("redisRepo.Get: %w", session.ErrSessionNotFound())
	}

	s, err := decodeSession(id, fields)
	if err != nil {
		return session.Session{}, "", fmt.Errorf("redisRepo.Get: %w", err)
	}

	return s, fields[fieldRTHash], nil
}

func (r *redisRepo) CompareAndRotate(ctx context.Context, req session.RotateReq) error {
	res, err := rotateScript.Run(ctx, r.client,
		[]string{r.sessionKey(req.SessionID)},
		strconv.FormatInt(req.ExpectedGeneration, 10),
		strconv.FormatInt(req.NewGeneration, 10),
		req.RefreshTokenHash,
	).Int()
	if err != nil {
		return fmt.Errorf("redisRepo.CompareAndRotate: %w", err)
	}

	switch res {
	case 1:
		return nil
	case -1:
		return fmt.Errorf("redisRepo.CompareAndRotate: %w", session.ErrSessionNotFound())
	default:
		return fmt.Errorf("redisRepo.CompareAndRotate: %w", session.ErrConflict())
	}
}

func (r *redisRepo) Revoke(ctx context.Context, id uuid.UUID) error {
	if err := r.revoke(ctx, id); err != nil {
		return fmt.Errorf("redisRepo.Revoke: %w", err)
	}

	return nil
}

func (r *redisRepo) RevokeAllForSubject(ctx context.Context, subject string) error {
	ids, err := r.client.SMembers(ctx, r.subjectKey(subject)).Result()
	if err != nil {
		return fmt.Errorf("redisRepo.RevokeAllForSubject: %w", err)
	}

	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		if err = r.revoke(ctx, id); err != nil {
			return fmt.Errorf("redisRepo.RevokeAllForSubject: %w", err)
		}
	}

	return nil
}

// ListBySubject also drops index entries whose session key has expired.
func (r *redisRepo) ListBySubject(ctx context.Context, subject string) ([]session.Session, error) {
	subjectKey := r.subjectKey(subject)
	ids, err := r.client.SMembers(ctx, subjectKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redisRepo.ListBySubject: %w", err)
	}
	if len(ids) == 0 {
		return []session.Session{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, raw := range ids {
		cmds[i] = pipe.HGetAll(ctx, r.cfg.KeyPrefix+"session:"+raw)
	}
	if _, err = pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redisRepo.ListBySubject: %w", err)
	}

	sessions := make([]session.Session, 0, len(ids))
	stale := make([]interface{}, 0)
	for i, cmd := range cmds {
		fields := cmd.Val()
		id, err := uuid.Parse(ids[i])
		if len(fields) == 0 || err != nil {
			stale = append(stale, ids[i])
			continue
		}
		s, err := decodeSession(id, fields)
		if err != nil {
			return nil, fmt.Errorf("redisRepo.ListBySubject: %w", err)
		}
		sessions = append(sessions, s)
	}

	if len(stale) > 0 {
		if err = r.client.SRem(ctx, subjectKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("redisRepo.ListBySubject: %w", err)
		}
	}

	return sessions, nil
}

// PurgeExpired is a no-op: session keys carry their own expiry, shortened to
// Retention on revocation.
func (r *redisRepo) PurgeExpired(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (r *redisRepo) revoke(ctx context.Context, id uuid.UUID) error {
	now := strconv.FormatInt(r.timeGenerator.Now().UnixNano(), 10)
	keep := strconv.FormatInt(r.cfg.Retention.Milliseconds(), 10)
	if err := revokeScript.Run(ctx, r.client, []string{r.sessionKey(id)}, now, keep).Err(); err != nil {
		return err
	}

	return nil
}

func decodeSession(id uuid.UUID, fields map[string]string) (session.Session, error) {
	generation, err := strconv.ParseInt(fields[fieldGeneration], 10, 64)
	if err != nil {
		return session.Session{}, fmt.Errorf("decode generation: %w", err)
	}
	createdAt, err := parseUnixNano(fields[fieldCreatedAt])
	if err != nil {
		return session.Session{}, fmt.Errorf("decode created_at: %w", err)
	}
	expiresAt, err := parseUnixNano(fields[fieldExpiresAt])
	if err != nil {
		return session.Session{}, fmt.Errorf("decode expires_at: %w", err)
	}

	return session.Session{
		ID:         id,
		Subject:    fields[fieldSubject],
		Generation: generation,
		CreatedAt:  createdAt,
		ExpiresAt:  expiresAt,
		Revoked:    fields[fieldRevoked] == "1",
	}, nil
}

func parseUnixNano(s string) (time.Time, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}

	return time.Unix(0, n).UTC(), nil
}
