// Package server exposes the small operator HTTP surface: liveness and a
// health summary. It carries no user-facing functionality and no auth.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/yetazero/GeminiTelegramBot/internal/session"
	"github.com/yetazero/GeminiTelegramBot/internal/version"
)

type Server struct {
	echo     *echo.Echo
	addr     string
	started  time.Time
	sessions *session.Store
}

// NewServer builds the echo app with /ping and /health registered.
func NewServer(log *slog.Logger, addr string, sessions *session.Store) *Server {
	if addr == "" {
		addr = ":8080"
	}
	s := &Server{
		addr:     addr,
		started:  time.Now(),
		sessions: sessions,
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	}))

	e.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status":   "ok",
			"version":  version.GetInfo(),
			"uptime":   time.Since(s.started).Round(time.Second).String(),
			"sessions": s.sessions.Len(),
		})
	})

	s.echo = e
	return s
}

func (s *Server) Start() error {
	return s.echo.Start(s.addr)
}

func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
