package gorm

import (
	"context"
	"errors"
	"fmt"

	"github.com/66gu1/authsession/internal/app/credential"
	"github.com/66gu1/authsession/internal/infrastructure/db"
	"gorm.io/gorm"
)

type gormRepo struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) (*gormRepo, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm.NewRepository: nil db")
	}

	return &gormRepo{db: db}, nil
}

func (r *gormRepo) Create(ctx context.Context, c credential.Credential) error {
	model := &credentialModel{
		Identifier:   c.Identifier,
		Subject:      c.Subject,
		PasswordHash: c.PasswordHash,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if db.IsDuplicate(err) {
			err = credential.ErrDuplicate()
		}
		return fmt.Errorf("gormRepo.Create: %w", err)
	}

	return nil
}

func (r *gormRepo) GetByIdentifier(ctx context.Context, identifier string) (credential.Credential, error) {
	return r.getBy(ctx, "identifier = ?", identifier)
}

func (r *gormRepo) GetBySubject(ctx context.Context, subject string) (credential.Credential, error) {
	return r.getBy(ctx, "subject = ?", subject)
}

func (r *gormRepo) UpdatePasswordHash(ctx context.Context, subject, hash string) error {
	result := r.db.WithContext(ctx).Model(&credentialModel{}).
		Where("subject = ?", subject).
		Update("password_hash", hash)
	if result.Error != nil {
		return fmt.Errorf("gormRepo.UpdatePasswordHash: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("gormRepo.UpdatePasswordHash: %w", credential.ErrNotFound())
	}

	return nil
}

func (r *gormRepo) getBy(ctx context.Context, query string, arg string) (credential.Credential, error) {
	var model credentialModel
	if err := r.db.WithContext(ctx).Where(query, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = credential.ErrNotFound()
		}
		return credential.Credential{}, fmt.Errorf("gormRepo.getBy: %w", err)
	}

	return model.toDTO(), nil
}
