package handlers

import "time"

type LoginRequest struct {
	Identifier string `json:"identifier" doc:"Account identifier, usually a username or email"`
	Password   string `json:"password"`
}

// TokenResponse is the body of a successful login or refresh. The refresh
// token itself only travels in the cookie.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresInSeconds int64  `json:"expires_in"`
}

type SessionView struct {
	ID        uint      `json:"id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Browser   string    `json:"browser,omitempty"`
	OS        string    `json:"os,omitempty"`
	Device    string    `json:"device"`
	ClientIP  *string   `json:"client_ip,omitempty"`
}

// SessionsResponse lists active sessions. ReuseEvents counts presentations of
// already rotated refresh tokens within the tracking window.
type SessionsResponse struct {
	Sessions    []SessionView `json:"sessions"`
	ReuseEvents int64         `json:"reuse_events"`
}

// ChainLink is one refresh token of the caller's chain.
type ChainLink struct {
	ID            uint       `json:"id"`
	State         string     `json:"state"`
	IssuedAt      time.Time  `json:"issued_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	RevokedReason *string    `json:"revoked_reason,omitempty"`
	Device        string     `json:"device"`
}

type HistoryResponse struct {
	Chain []ChainLink `json:"chain"`
}

type MeResponse struct {
	SubjectID uint      `json:"subject_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type LogoutAllResponse struct {
	Revoked int64 `json:"revoked"`
}

type CSRFResponse struct {
	Token string `json:"csrf_token"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}
