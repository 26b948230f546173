package jwt

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/tokenchain/autherr"
	"github.com/tech-arch1tect/tokenchain/services/jwt"
	"github.com/tech-arch1tect/tokenchain/services/logging"
	"go.uber.org/zap"
)

const (
	SubjectIDKey = logging.SubjectKey
	ClaimsKey    = "_jwt_claims"
)

// MessageNotAuthenticated is the only message clients see for any
// authentication failure.
const MessageNotAuthenticated = "Not authenticated"

type AccessVerifier interface {
	Decode(token string) (*jwt.Claims, error)
	AssertPurpose(claims *jwt.Claims, expected jwt.Purpose) error
}

// Unauthorized builds the uniform 401 response.
func Unauthorized(c echo.Context) *echo.HTTPError {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	return echo.NewHTTPError(http.StatusUnauthorized, MessageNotAuthenticated)
}

// RequireAccessToken admits requests carrying a valid access token in the
// Authorization header. Refresh tokens are rejected.
func RequireAccessToken(verifier AccessVerifier, logger *logging.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return Unauthorized(c)
			}

			claims, err := verifier.Decode(tokenString)
			if err == nil {
				err = verifier.AssertPurpose(claims, jwt.PurposeAccess)
			}

			var subjectID uint
			if err == nil {
				subjectID, err = claims.SubjectID()
			}

			if err != nil {
				if !autherr.IsAuthentication(err) {
					logger.Error("access token verification failed", zap.Error(err))
					return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
				}
				kind, _ := autherr.KindOf(err)
				logger.Debug("access token rejected",
					zap.String("kind", string(kind)),
					zap.String("path", c.Path()))
				return Unauthorized(c)
			}

			c.Set(SubjectIDKey, subjectID)
			c.Set(ClaimsKey, claims)

			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}

func GetSubjectID(c echo.Context) uint {
	if subjectID, ok := c.Get(SubjectIDKey).(uint); ok {
		return subjectID
	}
	return 0
}

func GetClaims(c echo.Context) *jwt.Claims {
	if claims, ok := c.Get(ClaimsKey).(*jwt.Claims); ok {
		return claims
	}
	return nil
}
