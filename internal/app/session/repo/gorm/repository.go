package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/66gu1/authsession/internal/app/session"
	"github.com/66gu1/authsession/internal/infrastructure/db"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

type TimeGenerator interface {
	Now() time.Time
}

type gormRepo struct {
	db            *gorm.DB
	timeGenerator TimeGenerator
}

func NewRepository(db *gorm.DB, timeGenerator TimeGenerator) (*gormRepo, error) {
	if db == nil || timeGenerator == nil {
		return nil, fmt.Errorf("gorm.NewRepository: nil dependency")
	}

	return &gormRepo{db: db, timeGenerator: timeGenerator}, nil
}

func (r *gormRepo) Create(ctx context.Context, req session.Session, rtHash string) error {
	err := r.db.WithContext(ctx).Create(sessionModelFromDTO(req, rtHash)).Error
	if err != nil {
		if db.IsDuplicate(err) {
			err = session.ErrConflict()
		}
		return fmt.Errorf("gormRepo.Create: %w", err)
	}

	return nil
}

func (r *gormRepo) Get(ctx context.Context, id uuid.UUID) (session.Session, string, error) {
	var model sessionModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = session.ErrSessionNotFound()
		}
		return session.Session{}, "", fmt.Errorf("gormRepo.Get: %w", err)
	}

	return model.toDTO(), model.RefreshTokenHash, nil
}

// CompareAndRotate is a single conditional UPDATE; postgres row locking makes
// exactly one of several concurrent callers with the same expected generation succeed.
func (r *gormRepo) CompareAndRotate(ctx context.Context, req session.RotateReq) error {
	result := r.db.WithContext(ctx).Model(&sessionModel{}).
		Where("id = ? AND generation = ? AND revoked = FALSE", req.SessionID, req.ExpectedGeneration).
		Updates(map[string]interface{}{
			"generation":         req.NewGeneration,
			"refresh_token_hash": req.RefreshTokenHash,
		})
	if result.Error != nil {
		return fmt.Errorf("gormRepo.CompareAndRotate: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("gormRepo.CompareAndRotate: %w", session.ErrConflict())
	}

	return nil
}

func (r *gormRepo) Revoke(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Model(&sessionModel{}).
		Where("id = ? AND revoked = FALSE", id).
		Updates(map[string]interface{}{"revoked": true, "revoked_at": r.timeGenerator.Now()}).Error
	if err != nil {
		return fmt.Errorf("gormRepo.Revoke: %w", err)
	}

	return nil
}

func (r *gormRepo) RevokeAllForSubject(ctx context.Context, subject string) error {
	err := r.db.WithContext(ctx).Model(&sessionModel{}).
		Where("subject = ? AND revoked = FALSE", subject).
		Updates(map[string]interface{}{"revoked": true, "revoked_at": r.timeGenerator.Now()}).Error
	if err != nil {
		return fmt.Errorf("gormRepo.RevokeAllForSubject: %w", err)
	}

	return nil
}

func (r *gormRepo) ListBySubject(ctx context.Context, subject string) ([]session.Session, error) {
	models := make([]sessionModel, 0)

	err := r.db.WithContext(ctx).Where("subject = ?", subject).Order("created_at").Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("gormRepo.ListBySubject: %w", err)
	}

	return lo.Map(models, func(s sessionModel, _ int) session.Session { return s.toDTO() }), nil
}

// PurgeExpired deletes sessions that expired or were revoked before the cutoff.
func (r *gormRepo) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ? OR (revoked = TRUE AND revoked_at < ?)", before, before).
		Delete(&sessionModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("gormRepo.PurgeExpired: %w", result.Error)
	}

	return result.RowsAffected, nil
}
