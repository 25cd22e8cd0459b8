package gorm

import (
	"github.com/66gu1/authsession/internal/app/credential"
	"github.com/66gu1/authsession/internal/infrastructure/db"
)

type credentialModel struct {
	Identifier   string `gorm:"primaryKey"`
	Subject      string
	PasswordHash string `json:"-"`
	db.Timestamps
}

func (credentialModel) TableName() string {
	return "credentials"
}

func (m *credentialModel) toDTO() credential.Credential {
	return credential.Credential{
		Identifier:   m.Identifier,
		Subject:      m.Subject,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
