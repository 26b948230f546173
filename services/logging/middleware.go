package logging

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// SubjectKey is the echo context key the access guard stores the subject id
// under. Request logs include it when present.
const SubjectKey = "subject_id"

// RequestLogger logs one line per request. Rejected credentials are routine
// and stay at info level; rate limiting and other client errors are warnings.
func RequestLogger(logger *Service, skipPaths ...string) echo.MiddlewareFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, path := range skipPaths {
		skip[path] = struct{}{}
	}

	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogRoutePath: true,
		LogError:     true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogUserAgent: true,
		LogRequestID: true,
		Skipper: func(c echo.Context) bool {
			_, ok := skip[c.Request().URL.Path]
			return ok
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("route", v.RoutePath),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
				zap.String("user_agent", v.UserAgent),
			}

			if v.RequestID != "" {
				fields = append(fields, zap.String("request_id", v.RequestID))
			}
			if subjectID, ok := c.Get(SubjectKey).(uint); ok {
				fields = append(fields, zap.Uint("subject_id", subjectID))
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}

			switch {
			case v.Status >= http.StatusInternalServerError:
				logger.Error("server error", fields...)
			case v.Status == http.StatusUnauthorized || v.Status == http.StatusForbidden:
				logger.Info("request rejected", fields...)
			case v.Status >= http.StatusBadRequest:
				logger.Warn("client error", fields...)
			default:
				logger.Info("request", fields...)
			}

			return nil
		},
	})
}
