// Package api serves the Switchyard HTTP API, the websocket fan-out endpoint
// and the per-board event stream.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"github.com/zulandar/switchyard/internal/auth"
	"github.com/zulandar/switchyard/internal/board"
	"github.com/zulandar/switchyard/internal/card"
	"github.com/zulandar/switchyard/internal/list"
	"github.com/zulandar/switchyard/internal/notify"
	"github.com/zulandar/switchyard/internal/user"
)

// Server holds the services the API exposes. Every field except
// AllowedOrigins is required.
type Server struct {
	Users          *user.Service
	Tokens         *auth.Tokens
	Boards         *board.Service
	Lists          *list.Service
	Cards          *card.Service
	Hub            *notify.Hub
	Logger         *log.Logger
	AllowedOrigins []string
}

func (s *Server) validate() error {
	switch {
	case s.Users == nil, s.Tokens == nil, s.Boards == nil, s.Lists == nil, s.Cards == nil:
		return errors.New("api: services are required")
	case s.Hub == nil:
		return errors.New("api: hub is required")
	}
	return nil
}

// Handler returns the API wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	if s.Logger == nil {
		s.Logger = log.StandardLogger()
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.Logger))
	s.registerRoutes(router)

	origins := s.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(router)
}

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Server          *Server
	Port            int
	ShutdownTimeout time.Duration
	Out             io.Writer
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Server == nil {
		return fmt.Errorf("api: server is required")
	}
	if err := opts.Server.validate(); err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 5001
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           opts.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Switchyard API listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
