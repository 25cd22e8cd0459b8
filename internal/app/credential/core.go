package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/66gu1/authsession/internal/infrastructure/apperr"
	"github.com/66gu1/authsession/internal/infrastructure/secure"
	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores input past 72 bytes.
const maxSecretLength = 72

type Repository interface {
	Create(ctx context.Context, c Credential) error
	GetByIdentifier(ctx context.Context, identifier string) (Credential, error)
	GetBySubject(ctx context.Context, subject string) (Credential, error)
	UpdatePasswordHash(ctx context.Context, subject, hash string) error
}

type PasswordHasher interface {
	HashPassword(password []byte, cost int) ([]byte, error)
	CheckPasswordHash(password []byte, hash string) error
}

type Config struct {
	BcryptCost      int `mapstructure:"bcrypt_cost" json:"bcrypt_cost"`
	MinSecretLength int `mapstructure:"min_secret_length" json:"min_secret_length"`
}

type core struct {
	repo      Repository
	hasher    PasswordHasher
	cfg       Config
	dummyHash string
}

func NewCore(repo Repository, hasher PasswordHasher, cfg Config) (*core, error) {
	if repo == nil || hasher == nil {
		return nil, fmt.Errorf("credential.NewCore: nil dependency")
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("credential.NewCore: bcrypt_cost %d out of range", cfg.BcryptCost)
	}
	if cfg.MinSecretLength <= 0 || cfg.MinSecretLength > maxSecretLength {
		return nil, fmt.Errorf("credential.NewCore: min_secret_length %d out of range", cfg.MinSecretLength)
	}

	dummy, err := hasher.HashPassword([]byte("dummy-secret-for-unknown-identifiers"), cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("credential.NewCore: %w", err)
	}

	return &core{repo: repo, hasher: hasher, cfg: cfg, dummyHash: string(dummy)}, nil
}

// Verify returns the subject for identifier if secret matches. Unknown
// identifiers still pay for a bcrypt comparison. secret is zeroed.
func (c *core) Verify(ctx context.Context, identifier string, secret []byte) (string, error) {
	defer secure.ZeroBytes(secret)

	cred, err := c.repo.GetByIdentifier(ctx, identifier)
	if err != nil {
		if !errors.Is(err, ErrNotFound()) {
			return "", fmt.Errorf("credential.core.Verify: %w", err)
		}
		_ = c.hasher.CheckPasswordHash(secret, c.dummyHash) //nolint:errcheck
		return "", fmt.Errorf("credential.core.Verify: unknown identifier: %w", ErrAuthenticationFailed())
	}

	if err = c.hasher.CheckPasswordHash(secret, cred.PasswordHash); err != nil {
		if errors.Is(err, secure.ErrMismatchedHashAndPassword) {
			return "", fmt.Errorf("credential.core.Verify: %w", ErrAuthenticationFailed())
		}
		return "", fmt.Errorf("credential.core.Verify: %w", err)
	}

	return cred.Subject, nil
}

func (c *core) Create(ctx context.Context, cmd CreateCmd) error {
	defer secure.ZeroBytes(cmd.Secret)

	if cmd.Identifier == "" {
		return fmt.Errorf("credential.core.Create: %w", apperr.ErrEmpty(FieldIdentifier))
	}
	if cmd.Subject == "" {
		return fmt.Errorf("credential.core.Create: %w", apperr.ErrEmpty(FieldSubject))
	}
	if err := c.validateSecret(cmd.Secret); err != nil {
		return fmt.Errorf("credential.core.Create: %w", err)
	}

	hash, err := c.hasher.HashPassword(cmd.Secret, c.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("credential.core.Create: %w", err)
	}

	if err = c.repo.Create(ctx, Credential{
		Identifier:   cmd.Identifier,
		Subject:      cmd.Subject,
		PasswordHash: string(hash),
	}); err != nil {
		return fmt.Errorf("credential.core.Create: %w", err)
	}

	return nil
}

// ChangeSecret replaces the subject's secret after checking the old one.
func (c *core) ChangeSecret(ctx context.Context, cmd ChangeSecretCmd) error {
	defer secure.ZeroBytes(cmd.OldSecret)
	defer secure.ZeroBytes(cmd.NewSecret)

	if cmd.Subject == "" {
		return fmt.Errorf("credential.core.ChangeSecret: %w", apperr.ErrEmpty(FieldSubject))
	}
	if err := c.validateSecret(cmd.NewSecret); err != nil {
		return fmt.Errorf("credential.core.ChangeSecret: %w", err)
	}

	cred, err := c.repo.GetBySubject(ctx, cmd.Subject)
	if err != nil {
		return fmt.Errorf("credential.core.ChangeSecret: %w", err)
	}
	if err = c.hasher.CheckPasswordHash(cmd.OldSecret, cred.PasswordHash); err != nil {
		if errors.Is(err, secure.ErrMismatchedHashAndPassword) {
			err = ErrAuthenticationFailed()
		}
		return fmt.Errorf("credential.core.ChangeSecret: %w", err)
	}

	hash, err := c.hasher.HashPassword(cmd.NewSecret, c.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("credential.core.ChangeSecret: %w", err)
	}
	if err = c.repo.UpdatePasswordHash(ctx, cmd.Subject, string(hash)); err != nil {
		return fmt.Errorf("credential.core.ChangeSecret: %w", err)
	}

	return nil
}

func (c *core) validateSecret(secret []byte) error {
	if len(secret) < c.cfg.MinSecretLength {
		return ErrSecretTooShort(c.cfg.MinSecretLength)
	}
	if len(secret) > maxSecretLength {
		return ErrSecretTooLong(maxSecretLength)
	}

	return nil
}
