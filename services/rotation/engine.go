// Package rotation implements the refresh token lifecycle: login, refresh
// with rotation, logout and logout of every session of a subject.
package rotation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tech-arch1tect/tokenchain/autherr"
	"github.com/tech-arch1tect/tokenchain/config"
	"github.com/tech-arch1tect/tokenchain/services/jwt"
	"github.com/tech-arch1tect/tokenchain/services/logging"
	"github.com/tech-arch1tect/tokenchain/services/metrics"
	"github.com/tech-arch1tect/tokenchain/services/refreshtoken"
	"github.com/tech-arch1tect/tokenchain/services/replay"
	"go.uber.org/zap"
)

const (
	opLogin     = "login"
	opRefresh   = "refresh"
	opLogout    = "logout"
	opLogoutAll = "logout_all"
)

const TokenTypeBearer = "bearer"

// Codec is the token encoding surface the engine depends on.
type Codec interface {
	EncodeAccess(subjectID uint, tokenID string) (*jwt.Signed, error)
	EncodeRefresh(subjectID uint, tokenID string) (*jwt.Signed, error)
	Decode(token string) (*jwt.Claims, error)
	AssertPurpose(claims *jwt.Claims, expected jwt.Purpose) error
}

// TokenPair is returned by Login and Refresh. RefreshToken is meant to be
// delivered to the client out of band.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	TokenType        string    `json:"token_type"`
	ExpiresInSeconds int64     `json:"expires_in"`
	RefreshToken     string    `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		e.newID = newID
	}
}

// Engine owns the session state machine and is the only layer that maps
// codec and store failures to authentication errors. It holds no in-process
// locks; concurrent refreshes of one token are settled by the store.
type Engine struct {
	codec       Codec
	store       refreshtoken.Store
	tracker     replay.Tracker
	metrics     *metrics.Metrics
	logger      *logging.Service
	reusePolicy config.ReusePolicy
	now         func() time.Time
	newID       func() string
}

func NewEngine(cfg config.AuthConfig, codec Codec, store refreshtoken.Store, tracker replay.Tracker, m *metrics.Metrics, logger *logging.Service, opts ...Option) *Engine {
	if tracker == nil {
		tracker = replay.NopTracker{}
	}

	e := &Engine{
		codec:       codec,
		store:       store,
		tracker:     tracker,
		metrics:     m,
		logger:      logger,
		reusePolicy: cfg.ReusePolicy,
		now:         time.Now,
		newID:       jwt.NewTokenID,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Login starts a new token chain for an already authenticated subject.
func (e *Engine) Login(ctx context.Context, subjectID uint, client ClientInfo) (*TokenPair, error) {
	refresh, err := e.codec.EncodeRefresh(subjectID, e.newID())
	if err != nil {
		return nil, e.fail(opLogin, err)
	}

	_, err = e.store.Create(ctx, client.record(subjectID, refresh))
	if err != nil {
		return nil, e.fail(opLogin, err)
	}

	pair, err := e.pair(subjectID, refresh)
	if err != nil {
		return nil, e.fail(opLogin, err)
	}

	e.metrics.ObserveOperation(opLogin, metrics.OutcomeSuccess)
	e.logger.Info("session started",
		append(client.fields(),
			zap.Uint("subject_id", subjectID),
			zap.String("token_id", refresh.TokenID))...)

	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. The token id is always
// taken from the verified claims.
func (e *Engine) Refresh(ctx context.Context, token string, client ClientInfo) (*TokenPair, error) {
	claims, err := e.decodeRefresh(token)
	if err != nil {
		return nil, e.fail(opRefresh, err)
	}

	subjectID, tokenID, err := claims.Identity()
	if err != nil {
		return nil, e.fail(opRefresh, err)
	}

	active, err := e.store.IsActive(ctx, tokenID, e.now())
	if err != nil {
		return nil, e.fail(opRefresh, err)
	}
	if !active {
		return nil, e.fail(opRefresh, e.inactive(ctx, subjectID, tokenID))
	}

	next, err := e.codec.EncodeRefresh(subjectID, e.newID())
	if err != nil {
		return nil, e.fail(opRefresh, err)
	}

	record, err := e.store.Rotate(ctx, tokenID, client.record(subjectID, next))
	switch {
	case errors.Is(err, refreshtoken.ErrNotActive):
		// lost a race against another rotation or a logout
		return nil, e.fail(opRefresh, e.inactive(ctx, subjectID, tokenID))
	case errors.Is(err, refreshtoken.ErrSubjectMismatch):
		return nil, e.fail(opRefresh, autherr.New(autherr.KindInvalid, err))
	case err != nil:
		return nil, e.fail(opRefresh, err)
	case record == nil:
		return nil, e.fail(opRefresh, autherr.New(autherr.KindNotFound, fmt.Errorf("refresh token %s has no record", tokenID)))
	}

	pair, err := e.pair(subjectID, next)
	if err != nil {
		return nil, e.fail(opRefresh, err)
	}

	e.metrics.ObserveOperation(opRefresh, metrics.OutcomeSuccess)
	e.metrics.ObserveRevoked(string(refreshtoken.ReasonRotated), 1)
	e.logger.Debug("refresh token rotated",
		zap.Uint("subject_id", subjectID),
		zap.String("old_token_id", tokenID),
		zap.String("token_id", next.TokenID))

	return pair, nil
}

// Logout revokes the presented refresh token. Revoking an already revoked,
// expired or unknown token succeeds.
func (e *Engine) Logout(ctx context.Context, token string) error {
	claims, err := e.decodeRefresh(token)
	if errors.Is(err, autherr.ErrExpired) {
		e.metrics.ObserveOperation(opLogout, metrics.OutcomeSuccess)
		e.logger.Debug("logout with expired refresh token")
		return nil
	}
	if err != nil {
		return e.fail(opLogout, err)
	}

	subjectID, tokenID, err := claims.Identity()
	if err != nil {
		return e.fail(opLogout, err)
	}

	changed, err := e.store.Revoke(ctx, tokenID, e.now(), refreshtoken.ReasonLogout)
	if err != nil {
		return e.fail(opLogout, err)
	}

	e.metrics.ObserveOperation(opLogout, metrics.OutcomeSuccess)
	if changed {
		e.metrics.ObserveRevoked(string(refreshtoken.ReasonLogout), 1)
	}
	e.logger.Info("session ended",
		zap.Uint("subject_id", subjectID),
		zap.String("token_id", tokenID),
		zap.Bool("changed", changed))

	return nil
}

// LogoutAll revokes every active session of the subject and returns how many
// were revoked.
func (e *Engine) LogoutAll(ctx context.Context, subjectID uint) (int64, error) {
	count, err := e.store.RevokeAll(ctx, subjectID, e.now(), refreshtoken.ReasonLogoutAll)
	if err != nil {
		return 0, e.fail(opLogoutAll, err)
	}

	e.metrics.ObserveOperation(opLogoutAll, metrics.OutcomeSuccess)
	e.metrics.ObserveRevoked(string(refreshtoken.ReasonLogoutAll), count)
	e.logger.Info("all sessions ended",
		zap.Uint("subject_id", subjectID),
		zap.Int64("count", count))

	return count, nil
}

// SubjectFromRefresh verifies a refresh token and returns its subject
// without consulting the store.
func (e *Engine) SubjectFromRefresh(token string) (uint, error) {
	claims, err := e.decodeRefresh(token)
	if err != nil {
		return 0, err
	}
	return claims.SubjectID()
}

// Sessions lists the active chain heads of a subject, newest first.
func (e *Engine) Sessions(ctx context.Context, subjectID uint) ([]refreshtoken.RefreshToken, error) {
	return e.store.ListActive(ctx, subjectID, e.now())
}

func (e *Engine) decodeRefresh(token string) (*jwt.Claims, error) {
	claims, err := e.codec.Decode(token)
	if err != nil {
		return nil, err
	}

	if err := e.codec.AssertPurpose(claims, jwt.PurposeRefresh); err != nil {
		return nil, err
	}

	return claims, nil
}

func (e *Engine) pair(subjectID uint, refresh *jwt.Signed) (*TokenPair, error) {
	access, err := e.codec.EncodeAccess(subjectID, "")
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access.Token,
		TokenType:        TokenTypeBearer,
		ExpiresInSeconds: int64(access.ExpiresAt.Sub(access.IssuedAt) / time.Second),
		RefreshToken:     refresh.Token,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

// fail records the outcome of a failed operation and returns err unchanged.
func (e *Engine) fail(op string, err error) error {
	if kind, ok := autherr.KindOf(err); ok {
		e.metrics.ObserveOperation(op, metrics.OutcomeRejected)
		e.metrics.ObserveRejection(op, string(kind))
		e.logger.Info("token rejected", zap.String("op", op), zap.String("kind", string(kind)), zap.Error(err))
		return err
	}

	if autherr.IsStorage(err) {
		e.metrics.ObserveOperation(op, metrics.OutcomeUnavailable)
		e.logger.Error("session store unavailable", zap.String("op", op), zap.Error(err))
		return err
	}

	e.metrics.ObserveOperation(op, metrics.OutcomeError)
	e.logger.Error("token operation failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%s failed: %w", op, err)
}
