package http

import (
	"context"
	"net/http"

	"github.com/66gu1/authsession/internal/app/session"
	"github.com/66gu1/authsession/internal/app/session/usecase"
	"github.com/66gu1/authsession/internal/infrastructure/apperr"
	"github.com/66gu1/authsession/internal/infrastructure/contextx"
	"github.com/66gu1/authsession/internal/infrastructure/httpx"
	"github.com/66gu1/authsession/internal/infrastructure/logger"
	"github.com/66gu1/authsession/internal/infrastructure/secure"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	URLParamSessionID = "session_id"
)

type SessionService interface {
	Login(ctx context.Context, cmd usecase.LoginCmd) (session.Tokens, error)
	Refresh(ctx context.Context, rawRefreshToken string) (session.Tokens, error)
	Logout(ctx context.Context, cmd usecase.LogoutCmd) error
	ListSessions(ctx context.Context) ([]session.Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
	DeleteAllSessions(ctx context.Context) error
	ChangePassword(ctx context.Context, cmd usecase.ChangePasswordCmd) error
}

type LoginInput struct {
	Identifier string `json:"identifier" validate:"required,max=256"`
	Secret     string `json:"secret" validate:"required,max=72"`
}

type RefreshInput struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutInput needs one of the two fields. A refresh token wins when both are set.
// Logout by session id requires an access token of the session's subject.
type LogoutInput struct {
	SessionID    string `json:"session_id,omitempty" validate:"required_without=RefreshToken"`
	RefreshToken string `json:"refresh_token,omitempty" validate:"required_without=SessionID"`
}

type ChangePasswordInput struct {
	OldSecret string `json:"old_secret" validate:"required,max=72"`
	NewSecret string `json:"new_secret" validate:"required,max=72"`
}

// Handler knows how to decode HTTP → service calls and encode responses.
type Handler struct {
	svc SessionService
}

func NewHandler(svc SessionService) *Handler {
	if svc == nil {
		panic("nil SessionService")
	}
	return &Handler{svc: svc}
}

// Login godoc
// @Summary      Login
// @Description  Verifies credentials and opens a new session
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginInput true "credentials"
// @Success      200 {object} session.Tokens
// @Failure      default {object} apperr.appError "Error"
// @Router       /login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var input LoginInput
	if err := decode(r, &input); err != nil {
		logger.Error(ctx, err).Msg("session.Handler.Login: invalid request")
		httpx.ReturnError(ctx, w, err)
		return
	}
	cmd := usecase.LoginCmd{
		Identifier: input.Identifier,
		Secret:     []byte(input.Secret),
	}
	defer secure.ZeroBytes(cmd.Secret)
	input.Secret = ""

	tokens, err := h.svc.Login(ctx, cmd)
	if err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, tokens)
}

// Refresh godoc
// @Summary      Refresh tokens
// @Description  Exchanges a refresh token for a new token pair. Reusing a superseded token revokes the session.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RefreshInput true "Refresh token payload"
// @Success      200 {object} session.Tokens
// @Failure      default {object} apperr.appError "Error"
// @Router       /refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var input RefreshInput
	if err := decode(r, &input); err != nil {
		logger.Error(ctx, err).Msg("session.Handler.Refresh: invalid request")
		httpx.ReturnError(ctx, w, err)
		return
	}

	tokens, err := h.svc.Refresh(ctx, input.RefreshToken)
	if err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, tokens)
}

// Logout godoc
// @Summary      Logout
// @Description  Revokes the session given by one of its refresh tokens, or by id when the bearer token's subject owns it. Succeeds for unknown or already revoked sessions.
// @Tags         auth
// @Security     BearerAuth
// @Accept       json
// @Param        request body LogoutInput true "Session id or refresh token"
// @Success      204 "No Content"
// @Failure      default {object} apperr.appError "Error"
// @Router       /logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var input LogoutInput
	if err := decode(r, &input); err != nil {
		logger.Error(ctx, err).Msg("session.Handler.Logout: invalid request")
		httpx.ReturnError(ctx, w, err)
		return
	}

	cmd := usecase.LogoutCmd{RefreshToken: input.RefreshToken}
	if input.RefreshToken == "" {
		id, err := uuid.Parse(input.SessionID)
		if err != nil {
			logger.Warn(ctx, err).
				Str(session.FieldSessionID.String(), input.SessionID).
				Msg("session.Handler.Logout: invalid session ID format")
			httpx.ReturnError(ctx, w, apperr.ErrBadRequest().
				WithViolation(apperr.Violation{Field: session.FieldSessionID, Rule: apperr.RuleInvalidFormat}))
			return
		}
		cmd.SessionID = id
	}

	if err := h.svc.Logout(ctx, cmd); err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me godoc
// @Summary      Current principal
// @Description  Returns the subject and session of the presented access token
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} session.Principal
// @Failure      default {object} apperr.appError "Error"
// @Router       /me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subject, err := contextx.GetSubject(ctx)
	if err != nil {
		logger.Error(ctx, err).Msg("session.Handler.Me.contextx.GetSubject")
		httpx.ReturnError(ctx, w, err)
		return
	}
	sessionID, err := contextx.GetSessionID(ctx)
	if err != nil {
		logger.Error(ctx, err).Msg("session.Handler.Me.contextx.GetSessionID")
		httpx.ReturnError(ctx, w, apperr.ErrUnauthorized())
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, session.Principal{Subject: subject, SessionID: sessionID})
}

// ListSessions godoc
// @Summary      List own sessions
// @Description  Returns the caller's sessions that are neither revoked nor expired
// @Tags         sessions
// @Security     BearerAuth
// @Produce      json
// @Success      200 {array} session.Session
// @Failure      default {object} apperr.appError "Error"
// @Router       /sessions [get]
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessions, err := h.svc.ListSessions(ctx)
	if err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, sessions)
}

// DeleteSession godoc
// @Summary      Revoke one own session
// @Tags         sessions
// @Security     BearerAuth
// @Param        session_id path string true "Session ID"
// @Success      204 "No Content"
// @Failure      default {object} apperr.appError "Error"
// @Router       /sessions/{session_id} [delete]
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idStr := chi.URLParam(r, URLParamSessionID)
	id, err := uuid.Parse(idStr)
	if err != nil {
		logger.Warn(ctx, err).
			Str(session.FieldSessionID.String(), idStr).
			Msg("session.Handler.DeleteSession: invalid session ID format")
		httpx.ReturnError(ctx, w, apperr.ErrBadRequest())
		return
	}

	if err = h.svc.DeleteSession(ctx, id); err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteAllSessions godoc
// @Summary      Revoke all own sessions
// @Description  Revokes every session of the caller, the current one included
// @Tags         sessions
// @Security     BearerAuth
// @Success      204 "No Content"
// @Failure      default {object} apperr.appError "Error"
// @Router       /sessions [delete]
func (h *Handler) DeleteAllSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.svc.DeleteAllSessions(ctx); err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ChangePassword godoc
// @Summary      Change password
// @Description  Replaces the caller's secret and revokes all of the caller's sessions
// @Tags         auth
// @Security     BearerAuth
// @Accept       json
// @Param        request body ChangePasswordInput true "Old and new secret"
// @Success      204 "No Content"
// @Failure      default {object} apperr.appError "Error"
// @Router       /password [post]
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var input ChangePasswordInput
	if err := decode(r, &input); err != nil {
		logger.Error(ctx, err).Msg("session.Handler.ChangePassword: invalid request")
		httpx.ReturnError(ctx, w, err)
		return
	}
	cmd := usecase.ChangePasswordCmd{
		OldSecret: []byte(input.OldSecret),
		NewSecret: []byte(input.NewSecret),
	}
	defer secure.ZeroBytes(cmd.OldSecret)
	defer secure.ZeroBytes(cmd.NewSecret)
	input.OldSecret, input.NewSecret = "", ""

	if err := h.svc.ChangePassword(ctx, cmd); err != nil {
		httpx.ReturnError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func decode(r *http.Request, v any) error {
	if err := httpx.DecodeJSON(r, v); err != nil {
		return err
	}
	return httpx.Validate(v)
}
