// Package server exposes the agent over HTTP: a JSON chat API, conversation
// memory endpoints, a health probe and an optional LINE webhook.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/rs/zerolog"

	"github.com/kubewizard/kubewizard/internal/agent"
	"github.com/kubewizard/kubewizard/internal/memory"
)

// Agent is the reasoning entry point the server drives.
type Agent interface {
	Run(ctx context.Context, userMessage string, history []memory.Message) (agent.Result, error)
}

// CheckFunc probes one dependency for the health endpoint.
type CheckFunc func(ctx context.Context) error

// Options wires a Server. Agent and Store are required.
type Options struct {
	Agent  Agent
	Store  *memory.Store
	Checks map[string]CheckFunc

	// LINE webhook is mounted only when both values are set.
	LineChannelSecret string
	LineChannelToken  string

	Logger zerolog.Logger
}

type Server struct {
	e     *echo.Echo
	agent Agent
	store *memory.Store
	check map[string]CheckFunc
	log   zerolog.Logger

	// Runs for the same user are serialized so interleaved requests cannot
	// corrupt conversation order.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(opts Options) (*Server, error) {
	s := &Server{
		e:     echo.New(),
		agent: opts.Agent,
		store: opts.Store,
		check: opts.Checks,
		log:   opts.Logger,
		locks: make(map[string]*sync.Mutex),
	}
	s.e.Use(s.recoverPanics())
	s.e.Use(s.requestLogger())

	s.e.GET("/", s.handleRoot)
	s.e.GET("/healthz", s.handleHealthz)
	s.e.POST("/api/chat", s.handleChat)
	s.e.GET("/api/memory/:user_id", s.handleGetMemory)
	s.e.DELETE("/api/memory/:user_id", s.handleClearMemory)

	if opts.LineChannelSecret != "" && opts.LineChannelToken != "" {
		if err := s.mountLine(opts.LineChannelSecret, opts.LineChannelToken); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Handler exposes the routing tree, mainly for tests.
func (s *Server) Handler() http.Handler { return s.e }

// ListenAndServe blocks until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) recoverPanics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error().Interface("panic", r).Msg("handler panicked")
					err = echo.NewHTTPError(http.StatusInternalServerError, "internal error")
				}
			}()
			return next(c)
		}
	}
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			start := time.Now()
			err := next(c)
			s.log.Info().
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Dur("elapsed", time.Since(start)).
				Err(err).
				Msg("http request")
			return err
		}
	}
}

// userLock returns the mutex serializing runs for one user.
func (s *Server) userLock(userID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.locks[userID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[userID] = mu
	}
	return mu
}

// converse runs one message through memory and the agent for a user. The
// user turn and the reply are persisted together after a successful run.
func (s *Server) converse(ctx context.Context, userID, message string) (string, error) {
	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	history, err := s.store.Read(ctx, userID, 0)
	if err != nil {
		return "", err
	}
	res, err := s.agent.Run(ctx, message, history)
	if err != nil {
		return "", err
	}
	if err := s.store.Append(ctx, userID, memory.RoleUser, message); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("persist user turn failed")
	}
	if err := s.store.Append(ctx, userID, memory.RoleAssistant, res.Output); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("persist reply failed")
	}
	return res.Output, nil
}
