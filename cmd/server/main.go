package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/66gu1/authsession/config"
	_ "github.com/66gu1/authsession/docs"
	"github.com/66gu1/authsession/internal/app/credential"
	credentialrepo "github.com/66gu1/authsession/internal/app/credential/repo/gorm"
	"github.com/66gu1/authsession/internal/app/session"
	sessionhttp "github.com/66gu1/authsession/internal/app/session/transport/http"
	sessionusecase "github.com/66gu1/authsession/internal/app/session/usecase"
	"github.com/66gu1/authsession/internal/infrastructure/db"
	"github.com/66gu1/authsession/internal/infrastructure/httpx"
	"github.com/66gu1/authsession/internal/infrastructure/logger"
	"github.com/66gu1/authsession/internal/infrastructure/metrics"
	"github.com/66gu1/authsession/internal/infrastructure/secure"
	"github.com/66gu1/authsession/internal/infrastructure/system"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	httpSwagger "github.com/swaggo/http-swagger"
)

func main() {
	err := godotenv.Overload(".env")
	if err != nil {
		log.Debug().Err(err).Msg("failed to load .env file, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(cfg.LogLevel.ZeroLog())
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Open(cfg.Database, os.Getenv("DB_PASSWORD"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get sql.DB")
	}
	defer sqlDB.Close() //nolint:errcheck
	if err = db.Migrate(ctx, sqlDB); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	idGen := &system.UUIDv7Generator{}
	timeGen := &system.TimeGenerator{}
	rndGen := &system.RNDGenerator{}
	passwordHasher := secure.NewPasswordHasher()

	jwtSecret := os.Getenv("JWT_SECRET")
	signer, err := secure.NewTokenCodec([]byte(jwtSecret), cfg.Session.ClockSkewTolerance, timeGen)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create token signer")
	}
	codec, err := session.NewCodec(signer, rndGen, timeGen)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create token codec")
	}

	store, rdb, err := newSessionStore(ctx, cfg, gdb, timeGen)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create session store")
	}
	if rdb != nil {
		defer rdb.Close() //nolint:errcheck
	}

	sessionCore, err := session.NewCore(store, codec, idGen, timeGen, cfg.Session)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create session core")
	}

	credentialRepo, err := credentialrepo.NewRepository(gdb)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create credential repository")
	}
	credentialCore, err := credential.NewCore(credentialRepo, passwordHasher, cfg.Credential)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create credential core")
	}

	recorder := metrics.NewRecorder()
	sessionService := sessionusecase.NewService(sessionCore, credentialCore, recorder)
	sessionHandler := sessionhttp.NewHandler(sessionService)

	limiters, err := newRateLimiters(cfg.RateLimit, rdb)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create rate limiters")
	}

	// --- set up chi router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := sqlDB.PingContext(r.Context()); err != nil {
			logger.Error(r.Context(), err).Msg("healthz: database ping failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(r.Context()).Err(); err != nil {
				logger.Error(r.Context(), err).Msg("healthz: redis ping failed")
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	})
	r.Handle("/metrics", recorder.Handler())
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	r.Group(func(r chi.Router) {
		r.Use(httpx.MaxBodyBytes(cfg.MaxBodySize))

		// with auth
		r.Group(func(r chi.Router) {
			r.Use(sessionhttp.AuthMiddleware(sessionService))
			r.Get("/me", sessionHandler.Me)                   // GET  /me
			r.Post("/password", sessionHandler.ChangePassword) // POST /password

			// --- session routes
			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", sessionHandler.ListSessions)         // GET    /sessions
				r.Delete("/", sessionHandler.DeleteAllSessions) // DELETE /sessions

				r.Route(fmt.Sprintf("/{%s}", sessionhttp.URLParamSessionID), func(r chi.Router) {
					r.Delete("/", sessionHandler.DeleteSession) // DELETE /sessions/{session_id}
				})
			})
		})

		// without auth
		r.Group(func(r chi.Router) {
			r.With(limiters.login).Post("/login", sessionHandler.Login)       // POST /login
			r.With(limiters.refresh).Post("/refresh", sessionHandler.Refresh) // POST /refresh
			r.With(sessionhttp.OptionalAuthMiddleware(sessionService)).
				Post("/logout", sessionHandler.Logout) // POST /logout
		})
	})

	go runPurge(ctx, sessionService, cfg.PurgeInterval, cfg.PurgeRetention)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Msg(fmt.Sprintf("starting server on :%s", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err = srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
