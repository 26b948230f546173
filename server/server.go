package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/tech-arch1tect/tokenchain/config"
	"github.com/tech-arch1tect/tokenchain/openapi"
	"github.com/tech-arch1tect/tokenchain/services/logging"
	"github.com/tech-arch1tect/tokenchain/services/metrics"
	"go.uber.org/zap"
)

type Server struct {
	echo   *echo.Echo
	cfg    *config.Config
	logger *logging.Service
}

func New(cfg *config.Config, logger *logging.Service) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	configureTrustedProxies(e, cfg.Server.TrustedProxies, logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	if cfg.Server.SecurityHeaders {
		e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
			XSSProtection:         "0",
			ContentTypeNosniff:    "nosniff",
			XFrameOptions:         "DENY",
			HSTSMaxAge:            31536000,
			ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
			ReferrerPolicy:        "no-referrer",
		}))
	}

	skip := []string{"/healthz"}
	if cfg.Metrics.Enabled {
		skip = append(skip, cfg.Metrics.Path)
	}
	e.Use(logging.RequestLogger(logger, skip...))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	return &Server{
		echo:   e,
		cfg:    cfg,
		logger: logger,
	}
}

// MountMetrics serves the Prometheus registry at the configured path.
func (s *Server) MountMetrics(m *metrics.Metrics) {
	if !s.cfg.Metrics.Enabled || m == nil {
		return
	}
	s.echo.GET(s.cfg.Metrics.Path, echo.WrapHandler(m.Handler()))
}

func (s *Server) MountOpenAPI(doc *openapi.OpenAPI) {
	if !s.cfg.Server.OpenAPIEnabled || doc == nil {
		return
	}
	s.echo.GET("/openapi.json", doc.JSONHandler())
	s.echo.GET("/openapi.yaml", doc.YAMLHandler())
}

// Start binds the listener synchronously so address errors fail startup,
// then serves in the background.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.cfg.Server.Host, s.cfg.Server.Port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.echo.Listener = listener

	s.logger.Info("starting server", zap.String("address", listener.Addr().String()))

	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server stopped unexpectedly", zap.Error(err))
		}
	}()

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if timeout := s.cfg.Server.ShutdownTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	s.logger.Info("stopping server")
	return s.echo.Shutdown(ctx)
}

// Addr is the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.echo.Listener == nil {
		return nil
	}
	return s.echo.Listener.Addr()
}

func (s *Server) Get(path string, handler echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	s.echo.GET(path, handler, m...)
}

func (s *Server) Post(path string, handler echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	s.echo.POST(path, handler, m...)
}

func (s *Server) Group(prefix string, m ...echo.MiddlewareFunc) *echo.Group {
	return s.echo.Group(prefix, m...)
}

func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// configureTrustedProxies makes c.RealIP honour X-Forwarded-For only from the
// listed addresses or ranges. Without any valid entry the peer address is used.
func configureTrustedProxies(e *echo.Echo, proxies []string, logger *logging.Service) {
	var options []echo.TrustOption

	for _, proxy := range proxies {
		proxy = strings.TrimSpace(proxy)
		if proxy == "" {
			continue
		}

		if !strings.Contains(proxy, "/") {
			ip := net.ParseIP(proxy)
			if ip == nil {
				logger.Warn("ignoring invalid trusted proxy", zap.String("proxy", proxy))
				continue
			}
			if ip.To4() != nil {
				proxy += "/32"
			} else {
				proxy += "/128"
			}
		}

		_, network, err := net.ParseCIDR(proxy)
		if err != nil {
			logger.Warn("ignoring invalid trusted proxy", zap.String("proxy", proxy), zap.Error(err))
			continue
		}

		options = append(options, echo.TrustIPRange(network))
	}

	if len(options) == 0 {
		e.IPExtractor = echo.ExtractIPDirect()
		return
	}

	options = append(options,
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false))
	e.IPExtractor = echo.ExtractIPFromXFFHeader(options...)
}
