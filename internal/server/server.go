// Package server exposes the board over HTTP for presentation layers.
//
// Handlers only translate requests into mutation service calls and read-only board
// snapshots; they hold no board state of their own.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dyluth/lanes/internal/ideas"
	"github.com/dyluth/lanes/internal/mutation"
	"github.com/dyluth/lanes/internal/roster"
	"github.com/dyluth/lanes/pkg/board"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
)

// Store is the read side of the board store. *board.Client implements it.
type Store interface {
	Ping(ctx context.Context) error
	GetBoard(ctx context.Context, scope board.Scope) (*board.Board, error)
	ProvisionBoard(ctx context.Context, scope board.Scope) (bool, error)
	ListScopes(ctx context.Context) ([]board.Scope, error)
	SetCollaborator(ctx context.Context, scope board.Scope, collab board.Collaborator) error
	RemoveCollaborator(ctx context.Context, scope board.Scope, name string) error
}

// Service is the mutation API. *mutation.Service implements it.
type Service interface {
	MoveCard(ctx context.Context, scope board.Scope, cardID string, from, to board.ColumnID) (board.Card, error)
	ReorderColumn(ctx context.Context, scope board.Scope, column board.ColumnID, orderedIDs []string) error
	SetAssignee(ctx context.Context, scope board.Scope, column board.ColumnID, cardID, name string, assign bool) (board.Card, error)
	AddCard(ctx context.Context, scope board.Scope, column board.ColumnID, data mutation.CardData) (board.Card, error)
	DeleteCard(ctx context.Context, scope board.Scope, column board.ColumnID, cardID string) (board.Card, error)
	GenerateCard(ctx context.Context, scope board.Scope, prompt string) (board.Card, error)
}

// RosterFunc returns the roster provider of a scope.
type RosterFunc func(scope board.Scope) roster.Provider

// Server is the HTTP API of one lanesd process.
type Server struct {
	echo   *echo.Echo
	store  Store
	svc    Service
	roster RosterFunc
	log    log.FieldLogger
}

// New creates a server and registers every route.
func New(store Store, svc Service, rosterFor RosterFunc, logger log.FieldLogger) *Server {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if rosterFor == nil {
		rosterFor = func(scope board.Scope) roster.Provider { return roster.Static{} }
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	s := &Server{
		echo:   e,
		store:  store,
		svc:    svc,
		roster: rosterFor,
		log:    logger.WithField("component", "server"),
	}
	e.HTTPErrorHandler = s.handleError
	s.register()
	return s
}

func (s *Server) register() {
	e := s.echo
	e.GET("/healthz", s.healthz)

	e.GET("/boards", s.listScopes)
	e.GET("/boards/:scope", s.getBoard)
	e.POST("/boards/:scope", s.provisionBoard)

	e.POST("/boards/:scope/columns/:column/cards", s.addCard)
	e.DELETE("/boards/:scope/columns/:column/cards/:id", s.deleteCard)
	e.POST("/boards/:scope/cards/:id/move", s.moveCard)
	e.PUT("/boards/:scope/columns/:column/order", s.reorderColumn)
	e.PUT("/boards/:scope/columns/:column/cards/:id/assignees/:name", s.setAssignee(true))
	e.DELETE("/boards/:scope/columns/:column/cards/:id/assignees/:name", s.setAssignee(false))

	e.POST("/boards/:scope/ideas", s.generateCard)

	e.GET("/boards/:scope/roster", s.listRoster)
	e.PUT("/boards/:scope/roster/:name", s.setCollaborator)
	e.DELETE("/boards/:scope/roster/:name", s.removeCollaborator)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.echo.Server.ReadTimeout = 10 * time.Second
	s.echo.Server.WriteTimeout = 30 * time.Second
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status string `json:"status"`
	Redis  string `json:"redis,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps the board error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case board.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, board.ErrOrderMismatch):
		return http.StatusConflict
	case errors.Is(err, board.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, board.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ideas.ErrGeneration):
		return http.StatusBadGateway
	case board.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := statusFor(err)
	msg := err.Error()

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}

	entry := s.log.WithError(err).WithFields(log.Fields{
		"method": c.Request().Method,
		"path":   c.Path(),
		"status": status,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}

	if err := c.JSON(status, ErrorResponse{Error: msg}); err != nil {
		s.log.WithError(err).Warn("failed to write error response")
	}
}
