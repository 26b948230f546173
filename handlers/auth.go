// Package handlers exposes the rotation engine over HTTP. The refresh token
// travels in an HttpOnly cookie and never appears in a response body.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mileusna/useragent"
	"github.com/tech-arch1tect/tokenchain/autherr"
	"github.com/tech-arch1tect/tokenchain/middleware/csrf"
	mwjwt "github.com/tech-arch1tect/tokenchain/middleware/jwt"
	"github.com/tech-arch1tect/tokenchain/services/logging"
	"github.com/tech-arch1tect/tokenchain/services/refreshtoken"
	"github.com/tech-arch1tect/tokenchain/services/rotation"
	"go.uber.org/zap"
)

// ErrInvalidCredentials is returned by an Authenticator for a wrong
// identifier or password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator checks login credentials. Password storage lives outside
// this module.
type Authenticator interface {
	Authenticate(ctx context.Context, identifier, password string) (uint, error)
}

type Engine interface {
	Login(ctx context.Context, subjectID uint, client rotation.ClientInfo) (*rotation.TokenPair, error)
	Refresh(ctx context.Context, token string, client rotation.ClientInfo) (*rotation.TokenPair, error)
	Logout(ctx context.Context, token string) error
	LogoutAll(ctx context.Context, subjectID uint) (int64, error)
	SubjectFromRefresh(token string) (uint, error)
	Sessions(ctx context.Context, subjectID uint) ([]refreshtoken.RefreshToken, error)
	ReuseCount(ctx context.Context, subjectID uint) (int64, error)
	History(ctx context.Context, token string) ([]refreshtoken.RefreshToken, error)
}

type AuthHandler struct {
	engine        Engine
	authenticator Authenticator
	cookie        CookieConfig
	logger        *logging.Service
}

func NewAuthHandler(engine Engine, authenticator Authenticator, cookie CookieConfig, logger *logging.Service) *AuthHandler {
	return &AuthHandler{
		engine:        engine,
		authenticator: authenticator,
		cookie:        cookie,
		logger:        logger,
	}
}

func (h *AuthHandler) Login(c echo.Context) error {
	if h.authenticator == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "Login is not configured")
	}

	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	req.Identifier = strings.TrimSpace(req.Identifier)
	if req.Identifier == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Identifier and password are required")
	}

	ctx := c.Request().Context()
	subjectID, err := h.authenticator.Authenticate(ctx, req.Identifier, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) || autherr.IsAuthentication(err) {
			h.logger.Info("login rejected", zap.String("client_ip", c.RealIP()))
			return mwjwt.Unauthorized(c)
		}
		h.logger.Error("authenticator failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	pair, err := h.engine.Login(ctx, subjectID, clientInfo(c))
	if err != nil {
		return h.engineError(c, err)
	}

	return h.respondWithPair(c, pair)
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	token, ok := h.refreshTokenFromCookie(c)
	if !ok {
		return mwjwt.Unauthorized(c)
	}

	pair, err := h.engine.Refresh(c.Request().Context(), token, clientInfo(c))
	if err != nil {
		if autherr.IsAuthentication(err) {
			h.clearRefreshCookie(c)
		}
		return h.engineError(c, err)
	}

	return h.respondWithPair(c, pair)
}

// Logout always clears the cookie unless the store could not be reached, in
// which case the client keeps it to retry.
func (h *AuthHandler) Logout(c echo.Context) error {
	token, ok := h.refreshTokenFromCookie(c)
	if !ok {
		h.clearRefreshCookie(c)
		return c.NoContent(http.StatusNoContent)
	}

	if err := h.engine.Logout(c.Request().Context(), token); err != nil {
		if autherr.IsAuthentication(err) {
			h.clearRefreshCookie(c)
		}
		return h.engineError(c, err)
	}

	h.clearRefreshCookie(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) LogoutAll(c echo.Context) error {
	token, ok := h.refreshTokenFromCookie(c)
	if !ok {
		return mwjwt.Unauthorized(c)
	}

	subjectID, err := h.engine.SubjectFromRefresh(token)
	if err != nil {
		h.clearRefreshCookie(c)
		return h.engineError(c, err)
	}

	revoked, err := h.engine.LogoutAll(c.Request().Context(), subjectID)
	if err != nil {
		return h.engineError(c, err)
	}

	h.clearRefreshCookie(c)
	return c.JSON(http.StatusOK, LogoutAllResponse{Revoked: revoked})
}

// Sessions lists the active sessions of the access token's subject. A reuse
// tracker failure only drops the reuse count.
func (h *AuthHandler) Sessions(c echo.Context) error {
	ctx := c.Request().Context()
	subjectID := mwjwt.GetSubjectID(c)

	records, err := h.engine.Sessions(ctx, subjectID)
	if err != nil {
		return h.engineError(c, err)
	}

	sessions := make([]SessionView, 0, len(records))
	for _, record := range records {
		sessions = append(sessions, sessionView(record))
	}

	reuse, err := h.engine.ReuseCount(ctx, subjectID)
	if err != nil {
		h.logger.Warn("failed to read refresh token reuse count",
			zap.Uint("subject_id", subjectID),
			zap.Error(err))
	}

	return c.JSON(http.StatusOK, SessionsResponse{Sessions: sessions, ReuseEvents: reuse})
}

// History lists the chain of the refresh cookie, newest first. The cookie is
// not rotated or cleared.
func (h *AuthHandler) History(c echo.Context) error {
	token, ok := h.refreshTokenFromCookie(c)
	if !ok {
		return mwjwt.Unauthorized(c)
	}

	chain, err := h.engine.History(c.Request().Context(), token)
	if err != nil {
		return h.engineError(c, err)
	}

	now := time.Now()
	links := make([]ChainLink, 0, len(chain))
	for _, record := range chain {
		links = append(links, ChainLink{
			ID:            record.ID,
			State:         string(record.State(now)),
			IssuedAt:      record.IssuedAt,
			ExpiresAt:     record.ExpiresAt,
			RevokedAt:     record.RevokedAt,
			RevokedReason: record.RevokedReason,
			Device:        sessionView(record).Device,
		})
	}

	return c.JSON(http.StatusOK, HistoryResponse{Chain: links})
}

func (h *AuthHandler) Me(c echo.Context) error {
	resp := MeResponse{SubjectID: mwjwt.GetSubjectID(c)}
	if claims := mwjwt.GetClaims(c); claims != nil && claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) CSRFToken(c echo.Context) error {
	return c.JSON(http.StatusOK, CSRFResponse{Token: csrf.GetToken(c)})
}

func (h *AuthHandler) respondWithPair(c echo.Context, pair *rotation.TokenPair) error {
	h.setRefreshCookie(c, pair.RefreshToken)

	return c.JSON(http.StatusOK, TokenResponse{
		AccessToken:      pair.AccessToken,
		TokenType:        pair.TokenType,
		ExpiresInSeconds: pair.ExpiresInSeconds,
	})
}

// engineError maps engine failures to responses. Authentication kinds are
// never disclosed.
func (h *AuthHandler) engineError(c echo.Context, err error) error {
	switch {
	case autherr.IsAuthentication(err):
		return mwjwt.Unauthorized(c)
	case autherr.IsStorage(err):
		c.Response().Header().Set("Retry-After", "1")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Service temporarily unavailable")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}
}

func clientInfo(c echo.Context) rotation.ClientInfo {
	return rotation.ClientInfo{
		UserAgent: c.Request().UserAgent(),
		ClientIP:  c.RealIP(),
	}
}

func sessionView(record refreshtoken.RefreshToken) SessionView {
	view := SessionView{
		ID:        record.ID,
		IssuedAt:  record.IssuedAt,
		ExpiresAt: record.ExpiresAt,
		Device:    "unknown",
		ClientIP:  record.ClientIP,
	}

	if record.UserAgent != nil && *record.UserAgent != "" {
		ua := useragent.Parse(*record.UserAgent)
		view.Browser = ua.Name
		view.OS = ua.OS
		view.Device = rotation.Device(ua)
	}

	return view
}
