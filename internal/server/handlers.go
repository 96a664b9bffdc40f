package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dyluth/lanes/internal/mutation"
	"github.com/dyluth/lanes/pkg/board"
	"github.com/labstack/echo/v4"
)

type moveRequest struct {
	From board.ColumnID `json:"from"`
	To   board.ColumnID `json:"to"`
}

type reorderRequest struct {
	IDs []string `json:"ids"`
}

type ideaRequest struct {
	Prompt string `json:"prompt"`
}

type collaboratorRequest struct {
	AvatarURL string `json:"avatar_url"`
}

type provisionResponse struct {
	Scope   board.Scope `json:"scope"`
	Created bool        `json:"created"`
}

func (s *Server) healthz(c echo.Context) error {
	// Check Redis connectivity with timeout
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{
			Status: "unhealthy",
			Redis:  "disconnected",
			Error:  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Redis: "connected"})
}

func (s *Server) listScopes(c echo.Context) error {
	scopes, err := s.store.ListScopes(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, scopes)
}

func (s *Server) getBoard(c echo.Context) error {
	b, err := s.store.GetBoard(c.Request().Context(), scopeParam(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (s *Server) provisionBoard(c echo.Context) error {
	scope := scopeParam(c)
	created, err := s.store.ProvisionBoard(c.Request().Context(), scope)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, provisionResponse{Scope: scope, Created: created})
}

func (s *Server) addCard(c echo.Context) error {
	var req mutation.CardData
	if err := bind(c, &req); err != nil {
		return err
	}
	card, err := s.svc.AddCard(c.Request().Context(), scopeParam(c), columnParam(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, card)
}

func (s *Server) deleteCard(c echo.Context) error {
	card, err := s.svc.DeleteCard(c.Request().Context(), scopeParam(c), columnParam(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, card)
}

func (s *Server) moveCard(c echo.Context) error {
	var req moveRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	card, err := s.svc.MoveCard(c.Request().Context(), scopeParam(c), c.Param("id"), req.From, req.To)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, card)
}

func (s *Server) reorderColumn(c echo.Context) error {
	var req reorderRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.IDs == nil {
		req.IDs = []string{}
	}
	if err := s.svc.ReorderColumn(c.Request().Context(), scopeParam(c), columnParam(c), req.IDs); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) setAssignee(assign bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		card, err := s.svc.SetAssignee(c.Request().Context(), scopeParam(c), columnParam(c), c.Param("id"), c.Param("name"), assign)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, card)
	}
}

func (s *Server) generateCard(c echo.Context) error {
	var req ideaRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	card, err := s.svc.GenerateCard(c.Request().Context(), scopeParam(c), req.Prompt)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, card)
}

func (s *Server) listRoster(c echo.Context) error {
	scope := scopeParam(c)
	if err := scope.Validate(); err != nil {
		return err
	}
	collaborators, err := s.roster(scope).List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, collaborators)
}

func (s *Server) setCollaborator(c echo.Context) error {
	var req collaboratorRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	collab := board.Collaborator{Name: c.Param("name"), AvatarURL: req.AvatarURL}
	if err := s.store.SetCollaborator(c.Request().Context(), scopeParam(c), collab); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, collab)
}

func (s *Server) removeCollaborator(c echo.Context) error {
	if err := s.store.RemoveCollaborator(c.Request().Context(), scopeParam(c), c.Param("name")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func scopeParam(c echo.Context) board.Scope {
	return board.Scope(c.Param("scope"))
}

func columnParam(c echo.Context) board.ColumnID {
	return board.ColumnID(c.Param("column"))
}

func bind(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return fmt.Errorf("%w: invalid body: %v", board.ErrInvalidArgument, err)
	}
	return nil
}
