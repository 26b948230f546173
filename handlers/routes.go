package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/tokenchain/openapi"
)

const tagAuth = "auth"

// Guards are the middlewares applied per route group.
type Guards struct {
	Login   echo.MiddlewareFunc
	Refresh echo.MiddlewareFunc
	CSRF    echo.MiddlewareFunc
	Access  echo.MiddlewareFunc
}

func (h *AuthHandler) Register(g *echo.Group, guards Guards, csrfEnabled bool) {
	g.POST("/login", h.Login, guards.Login)
	g.POST("/refresh", h.Refresh, guards.Refresh, guards.CSRF)
	g.POST("/logout", h.Logout, guards.CSRF)
	g.POST("/logout-all", h.LogoutAll, guards.CSRF)
	g.GET("/sessions", h.Sessions, guards.Access)
	g.GET("/history", h.History)
	g.GET("/me", h.Me, guards.Access)

	if csrfEnabled {
		g.GET("/csrf", h.CSRFToken, guards.CSRF)
	}
}

// Document describes the routes registered under prefix.
func (h *AuthHandler) Document(doc *openapi.OpenAPI, prefix string, csrfEnabled bool) {
	doc.Tag(tagAuth, "Token issuance, rotation and revocation").
		BearerAuth("bearerAuth", "Access token").
		CookieAuth("refreshCookie", h.cookie.Name, "Refresh token")

	setCookie := map[string]string{"Set-Cookie": "Refresh token cookie"}
	clearCookie := map[string]string{"Set-Cookie": "Expired refresh token cookie"}

	doc.Document(http.MethodPost, prefix+"/login").
		Summary("Log in").
		OperationID("login").
		Tags(tagAuth).
		Body(LoginRequest{}, "Credentials").
		Response(http.StatusOK, TokenResponse{}, "Access token; refresh token set as cookie").
		ResponseHeaders(http.StatusOK, setCookie).
		Response(http.StatusBadRequest, ErrorResponse{}, "Malformed request").
		Response(http.StatusUnauthorized, ErrorResponse{}, "Not authenticated").
		Response(http.StatusTooManyRequests, ErrorResponse{}, "Rate limit exceeded").
		NoSecurity().
		Build()

	refresh := doc.Document(http.MethodPost, prefix+"/refresh").
		Summary("Rotate the refresh token").
		Description("Revokes the presented refresh token and issues a new pair. Presenting an already rotated token is treated as reuse.").
		OperationID("refresh").
		Tags(tagAuth).
		Security("refreshCookie").
		Response(http.StatusOK, TokenResponse{}, "New access token; rotated refresh token set as cookie").
		ResponseHeaders(http.StatusOK, setCookie).
		Response(http.StatusUnauthorized, ErrorResponse{}, "Not authenticated").
		Response(http.StatusTooManyRequests, ErrorResponse{}, "Rate limit exceeded").
		Response(http.StatusServiceUnavailable, ErrorResponse{}, "Session store unavailable")
	withCSRF(refresh, csrfEnabled).Build()

	logout := doc.Document(http.MethodPost, prefix+"/logout").
		Summary("End the current session").
		OperationID("logout").
		Tags(tagAuth).
		Security("refreshCookie").
		Response(http.StatusNoContent, nil, "Session ended").
		ResponseHeaders(http.StatusNoContent, clearCookie).
		Response(http.StatusUnauthorized, ErrorResponse{}, "Not authenticated").
		Response(http.StatusServiceUnavailable, ErrorResponse{}, "Session store unavailable")
	withCSRF(logout, csrfEnabled).Build()

	logoutAll := doc.Document(http.MethodPost, prefix+"/logout-all").
		Summary("End every session of the caller").
		OperationID("logoutAll").
		Tags(tagAuth).
		Security("refreshCookie").
		Response(http.StatusOK, LogoutAllResponse{}, "Number of revoked sessions").
		ResponseHeaders(http.StatusOK, clearCookie).
		Response(http.StatusUnauthorized, ErrorResponse{}, "Not authenticated").
		Response(http.StatusServiceUnavailable, ErrorResponse{}, "Session store unavailable")
	withCSRF(logoutAll, csrfEnabled).Build()

	doc.Document(http.MethodGet, prefix+"/sessions").
		Summary("List active sessions").
		OperationID("listSessions").
		Tags(tagAuth).
		Security("bearerAuth").
		Response(http.StatusOK, SessionsResponse{}, "Active sessions, newest first, and the recent reuse count").
		Response(http.StatusUnauthorized, ErrorResponse{}, "Not authenticated").
		Build()

	doc.Document(http.MethodGet, prefix+"/history").
		Summary("Show the refresh token chain").
		Description("Lists the caller's refresh token and its predecessors, newest first. Nothing is rotated or revoked.").
		OperationID("history").
		Tags(tagAuth).
		Security("refreshCookie").
		Response(http.StatusOK, HistoryResponse{}, "Refresh token chain").
		Response(http.StatusUnauthorized, ErrorResponse{}, "Not authenticated").
		Response(http.StatusServiceUnavailable, ErrorResponse{}, "Session store unavailable").
		Build()

	doc.Document(http.MethodGet, prefix+"/me").
		Summary("Describe the access token").
		OperationID("me").
		Tags(tagAuth).
		Security("bearerAuth").
		Response(http.StatusOK, MeResponse{}, "Subject of the access token").
		Response(http.StatusUnauthorized, ErrorResponse{}, "Not authenticated").
		Build()

	if csrfEnabled {
		doc.Document(http.MethodGet, prefix+"/csrf").
			Summary("Issue a CSRF token").
			OperationID("csrfToken").
			Tags(tagAuth).
			NoSecurity().
			Response(http.StatusOK, CSRFResponse{}, "Token to echo in the X-CSRF-Token header").
			Build()
	}
}

func withCSRF(rb *openapi.RouteBuilder, enabled bool) *openapi.RouteBuilder {
	if !enabled {
		return rb
	}
	return rb.HeaderParam("X-CSRF-Token", "Double submit token from GET /auth/csrf", true).
		Response(http.StatusForbidden, ErrorResponse{}, "Invalid CSRF token")
}
