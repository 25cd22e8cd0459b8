package gorm

import (
	"time"

	"github.com/66gu1/authsession/internal/app/session"
	"github.com/google/uuid"
)

type sessionModel struct {
	ID               uuid.UUID
	Subject          string
	RefreshTokenHash string `json:"-"`
	Generation       int64
	CreatedAt        time.Time
	ExpiresAt        time.Time
	Revoked          bool
	RevokedAt        *time.Time
}

func (sessionModel) TableName() string {
	return "sessions"
}

func (s *sessionModel) toDTO() session.Session {
	return session.Session{
		ID:         s.ID,
		Subject:    s.Subject,
		Generation: s.Generation,
		CreatedAt:  s.CreatedAt,
		ExpiresAt:  s.ExpiresAt,
		Revoked:    s.Revoked,
	}
}

func sessionModelFromDTO(dto session.Session, rtHash string) *sessionModel {
	return &sessionModel{
		ID:               dto.ID,
		Subject:          dto.Subject,
		RefreshTokenHash: rtHash,
		Generation:       dto.Generation,
		CreatedAt:        dto.CreatedAt,
		ExpiresAt:        dto.ExpiresAt,
		Revoked:          dto.Revoked,
	}
}
