// Package server exposes the badge service over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/veribadge/veribadge-core/internal/ratelimit"
	"github.com/veribadge/veribadge-core/pkg/badge"
)

// Options holds the server's policy knobs.
type Options struct {
	// ExposeFailureDetail includes precise failure codes in public
	// verification responses instead of the collapsed NOT_VERIFIED.
	ExposeFailureDetail bool

	RateWindow    time.Duration
	GenerateLimit int
	VerifyLimit   int
	RevokeLimit   int
}

// Server wires the badge components to echo routes.
type Server struct {
	echo     *echo.Echo
	issuer   *badge.Issuer
	verifier *badge.Verifier
	revoker  *badge.Revoker
	store    badge.Store
	logger   *slog.Logger
	opts     Options

	generateLimiter *ratelimit.Limiter
	verifyLimiter   *ratelimit.Limiter
	revokeLimiter   *ratelimit.Limiter
}

// New builds the server and registers its routes.
func New(issuer *badge.Issuer, verifier *badge.Verifier, revoker *badge.Revoker, store badge.Store, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RateWindow == 0 {
		opts.RateWindow = ratelimit.DefaultWindow
	}
	if opts.GenerateLimit == 0 {
		opts.GenerateLimit = ratelimit.DefaultGenerateLimit
	}
	if opts.VerifyLimit == 0 {
		opts.VerifyLimit = ratelimit.DefaultVerifyLimit
	}
	if opts.RevokeLimit == 0 {
		opts.RevokeLimit = ratelimit.DefaultRevokeLimit
	}

	s := &Server{
		echo:     echo.New(),
		issuer:   issuer,
		verifier: verifier,
		revoker:  revoker,
		store:    store,
		logger:   logger,
		opts:     opts,

		generateLimiter: ratelimit.NewLimiter(opts.GenerateLimit, opts.RateWindow),
		verifyLimiter:   ratelimit.NewLimiter(opts.VerifyLimit, opts.RateWindow),
		revokeLimiter:   ratelimit.NewLimiter(opts.RevokeLimit, opts.RateWindow),
	}

	e := s.echo
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	g := e.Group("/verification/badges")
	g.POST("", s.handleGenerate, s.limit(s.generateLimiter))
	g.POST("/verify", s.handleVerify, s.limit(s.verifyLimiter))
	g.GET("/display/:token", s.handleDisplay, s.limit(s.verifyLimiter))
	g.POST("/revoke", s.handleRevoke, s.limit(s.revokeLimiter))
	g.GET("/levels", s.handleLevels)
	g.GET("/stats", s.handleStats)

	return s
}

// Start serves HTTP on addr until the listener fails.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown stops the server and its limiter sweeps.
func (s *Server) Shutdown(ctx context.Context) error {
	s.generateLimiter.Stop()
	s.verifyLimiter.Stop()
	s.revokeLimiter.Stop()
	return s.echo.Shutdown(ctx)
}

// Echo exposes the underlying router (for tests).
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// limit enforces a per-IP fixed-window quota for a route.
func (s *Server) limit(l *ratelimit.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ok, retryAfter := l.Allow(c.RealIP())
			if !ok {
				seconds := int(retryAfter.Seconds())
				if seconds < 1 {
					seconds = 1
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(seconds))
				return c.JSON(http.StatusTooManyRequests, errorBody(
					badge.ErrCodeRateLimited,
					"rate limit exceeded",
					map[string]any{"retry_after": seconds},
				))
			}
			return next(c)
		}
	}
}

// errorBody is the envelope for error responses.
func errorBody(code, message string, extra map[string]any) map[string]any {
	body := map[string]any{
		"success": false,
		"code":    code,
		"message": message,
	}
	for k, v := range extra {
		body[k] = v
	}
	return body
}
