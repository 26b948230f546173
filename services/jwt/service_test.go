package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/tokenchain/autherr"
	"github.com/tech-arch1tect/tokenchain/services/keys"
	"github.com/tech-arch1tect/tokenchain/testutils"
)

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	cfg := testutils.GetTestConfig()
	return NewService(cfg.Auth, keys.NewStaticProvider(testutils.TestKey(t)), nil, opts...)
}

func fixedClock(at time.Time) Option {
	return WithClock(func() time.Time { return at })
}

func payloadOf(t *testing.T, token string) map[string]any {
	t.Helper()
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(raw, &payload))
	return payload
}

func TestService_EncodeAccess(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 500, time.UTC)
	service := newTestService(t, fixedClock(now))

	t.Run("wire format", func(t *testing.T) {
		signed, err := service.EncodeAccess(42, "")
		require.NoError(t, err)

		payload := payloadOf(t, signed.Token)
		assert.Len(t, payload, 5)
		assert.Equal(t, "42", payload["sub"])
		assert.Equal(t, "access", payload["typ"])
		assert.Equal(t, float64(now.Unix()), payload["iat"])
		assert.Equal(t, float64(now.Add(15*time.Minute).Unix()), payload["exp"])
		assert.Equal(t, signed.TokenID, payload["jti"])
		assert.NotEmpty(t, signed.TokenID)
	})

	t.Run("header uses RS256", func(t *testing.T) {
		signed, err := service.EncodeAccess(42, "")
		require.NoError(t, err)

		raw, err := base64.RawURLEncoding.DecodeString(strings.Split(signed.Token, ".")[0])
		require.NoError(t, err)
		var header map[string]any
		require.NoError(t, json.Unmarshal(raw, &header))
		assert.Equal(t, "RS256", header["alg"])
	})

	t.Run("keeps caller token id", func(t *testing.T) {
		signed, err := service.EncodeAccess(42, "access-jti")
		require.NoError(t, err)
		assert.Equal(t, "access-jti", signed.TokenID)
	})

	t.Run("fresh token ids are unique", func(t *testing.T) {
		first, err := service.EncodeAccess(42, "")
		require.NoError(t, err)
		second, err := service.EncodeAccess(42, "")
		require.NoError(t, err)
		assert.NotEqual(t, first.TokenID, second.TokenID)
	})
}

func TestService_EncodeRefresh(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	service := newTestService(t, fixedClock(now))

	t.Run("binds the given token id", func(t *testing.T) {
		signed, err := service.EncodeRefresh(7, "refresh-jti")
		require.NoError(t, err)

		payload := payloadOf(t, signed.Token)
		assert.Equal(t, "refresh", payload["typ"])
		assert.Equal(t, "refresh-jti", payload["jti"])
		assert.Equal(t, "7", payload["sub"])
		assert.Equal(t, now, signed.IssuedAt)
		assert.Equal(t, now.Add(7*24*time.Hour), signed.ExpiresAt)
	})

	t.Run("requires a token id", func(t *testing.T) {
		_, err := service.EncodeRefresh(7, "")
		assert.ErrorIs(t, err, ErrMissingTokenID)
	})
}

func TestService_Decode(t *testing.T) {
	service := newTestService(t)

	t.Run("round trip", func(t *testing.T) {
		signed, err := service.EncodeRefresh(42, "round-trip")
		require.NoError(t, err)

		claims, err := service.Decode(signed.Token)
		require.NoError(t, err)

		subjectID, tokenID, err := claims.Identity()
		require.NoError(t, err)
		assert.Equal(t, uint(42), subjectID)
		assert.Equal(t, "round-trip", tokenID)
		assert.Equal(t, PurposeRefresh, claims.Purpose)
	})

	t.Run("expired token", func(t *testing.T) {
		past := newTestService(t, fixedClock(time.Now().Add(-time.Hour)))
		signed, err := past.EncodeAccess(42, "")
		require.NoError(t, err)

		_, err = service.Decode(signed.Token)
		testutils.AssertAuthKind(t, autherr.KindExpired, err)
	})

	t.Run("leeway tolerates small skew", func(t *testing.T) {
		cfg := testutils.GetTestConfig()
		cfg.Auth.Leeway = time.Minute
		lenient := NewService(cfg.Auth, keys.NewStaticProvider(testutils.TestKey(t)), nil)

		past := newTestService(t, fixedClock(time.Now().Add(-15*time.Minute-10*time.Second)))
		signed, err := past.EncodeAccess(42, "")
		require.NoError(t, err)

		_, err = lenient.Decode(signed.Token)
		assert.NoError(t, err)
	})

	t.Run("issued in the future", func(t *testing.T) {
		future := newTestService(t, fixedClock(time.Now().Add(time.Hour)))
		signed, err := future.EncodeAccess(42, "")
		require.NoError(t, err)

		_, err = service.Decode(signed.Token)
		testutils.AssertAuthKind(t, autherr.KindInvalid, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := service.Decode("not.a.token")
		testutils.AssertAuthKind(t, autherr.KindInvalid, err)

		_, err = service.Decode("")
		testutils.AssertAuthKind(t, autherr.KindInvalid, err)
	})

	t.Run("tampered payload", func(t *testing.T) {
		signed, err := service.EncodeAccess(42, "")
		require.NoError(t, err)

		parts := strings.Split(signed.Token, ".")
		forged, _ := json.Marshal(map[string]any{
			"sub": "1", "iat": time.Now().Unix(), "exp": time.Now().Add(time.Hour).Unix(), "jti": "x", "typ": "refresh",
		})
		parts[1] = base64.RawURLEncoding.EncodeToString(forged)

		_, err = service.Decode(strings.Join(parts, "."))
		testutils.AssertAuthKind(t, autherr.KindInvalid, err)
	})

	t.Run("signed by another key", func(t *testing.T) {
		other, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		cfg := testutils.GetTestConfig()
		foreign := NewService(cfg.Auth, keys.NewStaticProvider(other), nil)

		signed, err := foreign.EncodeAccess(42, "")
		require.NoError(t, err)

		_, err = service.Decode(signed.Token)
		testutils.AssertAuthKind(t, autherr.KindInvalid, err)
	})

	t.Run("none algorithm rejected", func(t *testing.T) {
		claims := Claims{
			Purpose: PurposeRefresh,
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        "none-jti",
				Subject:   "42",
				IssuedAt:  jwt.NewNumericDate(time.Now()),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = service.Decode(unsigned)
		testutils.AssertAuthKind(t, autherr.KindInvalid, err)
	})

	t.Run("symmetric algorithm keyed with public key rejected", func(t *testing.T) {
		publicDER, err := x509.MarshalPKIXPublicKey(&testutils.TestKey(t).PublicKey)
		require.NoError(t, err)

		claims := Claims{
			Purpose: PurposeRefresh,
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        "hs-jti",
				Subject:   "42",
				IssuedAt:  jwt.NewNumericDate(time.Now()),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(publicDER)
		require.NoError(t, err)

		_, err = service.Decode(forged)
		testutils.AssertAuthKind(t, autherr.KindInvalid, err)
	})

	t.Run("missing expiry rejected", func(t *testing.T) {
		claims := Claims{
			Purpose: PurposeAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				ID:       "no-exp",
				Subject:  "42",
				IssuedAt: jwt.NewNumericDate(time.Now()),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(testutils.TestKey(t))
		require.NoError(t, err)

		_, err = service.Decode(token)
		testutils.AssertAuthKind(t, autherr.KindInvalid, err)
	})

	t.Run("key load failure is not an authentication error", func(t *testing.T) {
		broken := NewService(testutils.GetTestConfig().Auth, failingKeys{}, nil)

		_, err := broken.Decode("a.b.c")
		require.Error(t, err)
		assert.False(t, autherr.IsAuthentication(err))
	})
}

func TestAssertPurpose(t *testing.T) {
	service := newTestService(t)

	access, err := service.EncodeAccess(42, "")
	require.NoError(t, err)
	refresh, err := service.EncodeRefresh(42, "purpose-jti")
	require.NoError(t, err)

	accessClaims, err := service.Decode(access.Token)
	require.NoError(t, err)
	refreshClaims, err := service.Decode(refresh.Token)
	require.NoError(t, err)

	t.Run("matching purpose", func(t *testing.T) {
		assert.NoError(t, service.AssertPurpose(accessClaims, PurposeAccess))
		assert.NoError(t, service.AssertPurpose(refreshClaims, PurposeRefresh))
	})

	t.Run("access presented as refresh", func(t *testing.T) {
		testutils.AssertAuthKind(t, autherr.KindWrongPurpose, service.AssertPurpose(accessClaims, PurposeRefresh))
	})

	t.Run("refresh presented as access", func(t *testing.T) {
		testutils.AssertAuthKind(t, autherr.KindWrongPurpose, service.AssertPurpose(refreshClaims, PurposeAccess))
	})

	t.Run("absent purpose", func(t *testing.T) {
		testutils.AssertAuthKind(t, autherr.KindWrongPurpose, AssertPurpose(&Claims{}, PurposeAccess))
		testutils.AssertAuthKind(t, autherr.KindWrongPurpose, AssertPurpose(nil, PurposeAccess))
	})
}

func TestClaims_Identity(t *testing.T) {
	tests := []struct {
		name    string
		claims  Claims
		subject uint
		wantErr error
	}{
		{"valid", Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "42", ID: "j"}}, 42, nil},
		{"missing subject", Claims{RegisteredClaims: jwt.RegisteredClaims{ID: "j"}}, 0, ErrMissingSubject},
		{"non integer subject", Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "alice", ID: "j"}}, 0, ErrBadSubject},
		{"negative subject", Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "-1", ID: "j"}}, 0, ErrBadSubject},
		{"missing token id", Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "42"}}, 0, ErrMissingTokenID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, tokenID, err := tt.claims.Identity()

			if tt.wantErr != nil {
				testutils.AssertAuthKind(t, autherr.KindMissingClaim, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.subject, subject)
			assert.Equal(t, "j", tokenID)
		})
	}
}

type failingKeys struct{}

func (failingKeys) Load() (*keys.KeyPair, error) {
	return nil, &autherr.KeyLoadError{Path: "secrets/jwt_public.pem", Err: errors.New("missing")}
}
