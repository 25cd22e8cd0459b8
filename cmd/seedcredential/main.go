package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/66gu1/authsession/config"
	"github.com/66gu1/authsession/internal/app/credential"
	credentialrepo "github.com/66gu1/authsession/internal/app/credential/repo/gorm"
	"github.com/66gu1/authsession/internal/infrastructure/db"
	"github.com/66gu1/authsession/internal/infrastructure/secure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	err := godotenv.Overload(".env")
	if err != nil {
		log.Debug().Err(err).Msg("failed to load .env file, using environment variables")
	}
	identifier := os.Getenv("SEED_IDENTIFIER")
	subject := os.Getenv("SEED_SUBJECT")
	secret := os.Getenv("SEED_SECRET")

	if identifier == "" || subject == "" || secret == "" {
		panic("SEED_IDENTIFIER, SEED_SUBJECT and SEED_SECRET environment variables are required")
	}

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	gdb, err := db.Open(cfg.Database, os.Getenv("DB_PASSWORD"))
	if err != nil {
		panic(err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		panic(err)
	}
	defer sqlDB.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err = db.Migrate(ctx, sqlDB); err != nil {
		panic(err)
	}

	repo, err := credentialrepo.NewRepository(gdb)
	if err != nil {
		panic(err)
	}
	core, err := credential.NewCore(repo, secure.NewPasswordHasher(), cfg.Credential)
	if err != nil {
		panic(err)
	}

	err = core.Create(ctx, credential.CreateCmd{
		Identifier: identifier,
		Subject:    subject,
		Secret:     []byte(secret),
	})
	if err != nil {
		if errors.Is(err, credential.ErrDuplicate()) {
			log.Warn().Str("identifier", identifier).Msg("credential already exists, skip creating")
			return
		}
		panic(err)
	}
	log.Info().Str("identifier", identifier).Str("subject", subject).Msg("credential created")
}
