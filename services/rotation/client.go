package rotation

import (
	"github.com/mileusna/useragent"
	"github.com/tech-arch1tect/tokenchain/services/jwt"
	"github.com/tech-arch1tect/tokenchain/services/refreshtoken"
	"go.uber.org/zap"
)

// ClientInfo is optional provenance stored with a refresh token for audit.
// It never influences authorization.
type ClientInfo struct {
	UserAgent string
	ClientIP  string
}

func (c ClientInfo) record(subjectID uint, token *jwt.Signed) refreshtoken.NewRecord {
	return refreshtoken.NewRecord{
		SubjectID: subjectID,
		TokenID:   token.TokenID,
		IssuedAt:  token.IssuedAt,
		ExpiresAt: token.ExpiresAt,
		UserAgent: c.UserAgent,
		ClientIP:  c.ClientIP,
	}
}

func (c ClientInfo) fields() []zap.Field {
	fields := []zap.Field{zap.String("client_ip", c.ClientIP)}
	if c.UserAgent == "" {
		return fields
	}

	ua := useragent.Parse(c.UserAgent)
	return append(fields,
		zap.String("browser", ua.Name),
		zap.String("os", ua.OS),
		zap.String("device", Device(ua)))
}

// Device classifies a parsed user agent for session listings.
func Device(ua useragent.UserAgent) string {
	switch {
	case ua.Bot:
		return "bot"
	case ua.Tablet:
		return "tablet"
	case ua.Mobile:
		return "mobile"
	case ua.Desktop:
		return "desktop"
	default:
		return "unknown"
	}
}
