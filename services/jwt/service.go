// Package jwt encodes and decodes the RS256 access and refresh tokens.
package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tech-arch1tect/tokenchain/autherr"
	"github.com/tech-arch1tect/tokenchain/config"
	"github.com/tech-arch1tect/tokenchain/services/keys"
	"github.com/tech-arch1tect/tokenchain/services/logging"
	"go.uber.org/zap"
)

const algorithm = "RS256"

type Purpose string

const (
	PurposeAccess  Purpose = "access"
	PurposeRefresh Purpose = "refresh"
)

var (
	ErrMissingSubject = errors.New("token has no subject")
	ErrBadSubject     = errors.New("token subject is not an integer id")
	ErrMissingTokenID = errors.New("token has no jti")
)

// Claims is the full payload of both token kinds: sub, iat, exp, jti and typ.
type Claims struct {
	Purpose Purpose `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

// Signed is an encoded token together with the values it was signed with.
type Signed struct {
	Token     string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type Option func(*Service)

// WithClock replaces the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

type Service struct {
	keys       keys.Provider
	accessTTL  time.Duration
	refreshTTL time.Duration
	leeway     time.Duration
	logger     *logging.Service
	now        func() time.Time
}

func NewService(cfg config.AuthConfig, keyProvider keys.Provider, logger *logging.Service, opts ...Option) *Service {
	s := &Service{
		keys:       keyProvider,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		leeway:     cfg.Leeway,
		logger:     logger,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// EncodeAccess signs an access token. An empty tokenID gets a fresh one.
func (s *Service) EncodeAccess(subjectID uint, tokenID string) (*Signed, error) {
	if tokenID == "" {
		tokenID = NewTokenID()
	}
	return s.encode(subjectID, tokenID, PurposeAccess, s.accessTTL)
}

// EncodeRefresh signs a refresh token bound to the tokenID of its stored record.
func (s *Service) EncodeRefresh(subjectID uint, tokenID string) (*Signed, error) {
	if tokenID == "" {
		return nil, fmt.Errorf("failed to generate refresh token: %w", ErrMissingTokenID)
	}
	return s.encode(subjectID, tokenID, PurposeRefresh, s.refreshTTL)
}

func (s *Service) encode(subjectID uint, tokenID string, purpose Purpose, ttl time.Duration) (*Signed, error) {
	pair, err := s.keys.Load()
	if err != nil {
		return nil, err
	}

	// NumericDate has second precision; truncating keeps the stored record
	// and the token in exact agreement.
	issuedAt := s.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(ttl)

	claims := Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   strconv.FormatUint(uint64(subjectID), 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tokenString, err := token.SignedString(pair.Signing)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to sign token", zap.String("purpose", string(purpose)), zap.Error(err))
		}
		return nil, fmt.Errorf("failed to generate %s token: %w", purpose, err)
	}

	return &Signed{
		Token:     tokenString,
		TokenID:   tokenID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Decode verifies the signature and the time based claims. It returns either
// fully verified claims or an authentication error of kind expired or invalid.
func (s *Service) Decode(tokenString string) (*Claims, error) {
	pair, err := s.keys.Load()
	if err != nil {
		return nil, err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{algorithm}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(s.now),
	)

	token, err := parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() == "none" {
			return nil, errors.New("'none' algorithm is not allowed")
		}

		if token.Method.Alg() != algorithm {
			return nil, fmt.Errorf("unexpected algorithm: expected %s, got %s", algorithm, token.Method.Alg())
		}

		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("invalid algorithm family: %v", token.Header["alg"])
		}

		return pair.Verification, nil
	})

	if err != nil {
		if s.logger != nil {
			s.logger.Debug("token validation failed", zap.Error(err))
		}

		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, autherr.New(autherr.KindExpired, err)
		}
		return nil, autherr.New(autherr.KindInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, autherr.New(autherr.KindInvalid, nil)
	}

	return claims, nil
}

// AssertPurpose fails with wrong_purpose unless claims carry the expected typ.
func (s *Service) AssertPurpose(claims *Claims, expected Purpose) error {
	return AssertPurpose(claims, expected)
}

func AssertPurpose(claims *Claims, expected Purpose) error {
	if claims == nil || claims.Purpose == "" {
		return autherr.New(autherr.KindWrongPurpose, errors.New("token has no purpose claim"))
	}

	if claims.Purpose != expected {
		return autherr.New(autherr.KindWrongPurpose,
			fmt.Errorf("expected %s token, got %s", expected, claims.Purpose))
	}

	return nil
}

// SubjectID parses the sub claim.
func (c *Claims) SubjectID() (uint, error) {
	if c.Subject == "" {
		return 0, autherr.New(autherr.KindMissingClaim, ErrMissingSubject)
	}

	id, err := strconv.ParseUint(c.Subject, 10, 0)
	if err != nil {
		return 0, autherr.New(autherr.KindMissingClaim, ErrBadSubject)
	}

	return uint(id), nil
}

// Identity returns the subject and token id, both of which are required for
// any stateful operation.
func (c *Claims) Identity() (uint, string, error) {
	subjectID, err := c.SubjectID()
	if err != nil {
		return 0, "", err
	}

	if c.ID == "" {
		return 0, "", autherr.New(autherr.KindMissingClaim, ErrMissingTokenID)
	}

	return subjectID, c.ID, nil
}

func NewTokenID() string {
	return uuid.New().String()
}
