package refreshtoken

import (
	"time"
)

// RefreshToken is one issued refresh token. Rows are only ever soft revoked.
type RefreshToken struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	SubjectID     uint       `json:"subject_id" gorm:"not null;index:idx_refresh_tokens_subject_active,priority:1"`
	TokenID       string     `json:"token_id" gorm:"uniqueIndex;size:64;not null"`
	IssuedAt      time.Time  `json:"issued_at" gorm:"not null"`
	ExpiresAt     time.Time  `json:"expires_at" gorm:"not null;index"`
	RotatedFrom   *string    `json:"rotated_from,omitempty" gorm:"size:64;index"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty" gorm:"index:idx_refresh_tokens_subject_active,priority:2"`
	RevokedReason *string    `json:"revoked_reason,omitempty" gorm:"size:32"`
	UserAgent     *string    `json:"user_agent,omitempty" gorm:"size:255"`
	ClientIP      *string    `json:"client_ip,omitempty" gorm:"size:45"`
}

// TableName pins the table name used by AutoMigrate and the goose migrations.
func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

// RevokeReason records why a token left the active state.
type RevokeReason string

const (
	ReasonRotated       RevokeReason = "rotated"
	ReasonLogout        RevokeReason = "logout"
	ReasonLogoutAll     RevokeReason = "logout_all"
	ReasonReuseDetected RevokeReason = "reuse_detected"
)

// State is the lifecycle position of a single chain node.
type State string

const (
	StateIssued  State = "issued"
	StateRotated State = "rotated"
	StateRevoked State = "revoked"
	StateExpired State = "expired"
)

// IsActive reports whether the token is unrevoked and unexpired at the given time.
func (t *RefreshToken) IsActive(at time.Time) bool {
	return t.RevokedAt == nil && t.ExpiresAt.After(at)
}

// State derives the node state. Revocation wins over expiry so a rotated
// token stays recognisable after it would have expired.
func (t *RefreshToken) State(at time.Time) State {
	if t.RevokedAt != nil {
		if t.RevokedReason != nil && RevokeReason(*t.RevokedReason) == ReasonRotated {
			return StateRotated
		}
		return StateRevoked
	}

	if !t.ExpiresAt.After(at) {
		return StateExpired
	}

	return StateIssued
}

// NewRecord describes a refresh token about to be persisted.
type NewRecord struct {
	SubjectID uint
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	UserAgent string
	ClientIP  string
}

func (r NewRecord) model() *RefreshToken {
	return &RefreshToken{
		SubjectID: r.SubjectID,
		TokenID:   r.TokenID,
		IssuedAt:  r.IssuedAt.UTC(),
		ExpiresAt: r.ExpiresAt.UTC(),
		UserAgent: optional(truncate(r.UserAgent, 255)),
		ClientIP:  optional(truncate(r.ClientIP, 45)),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
