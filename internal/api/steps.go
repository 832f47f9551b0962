package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"pesv-compliance/backend/pkg/models"
)

// stepRequest is the administrative create/update payload.
type stepRequest struct {
	Number   int    `json:"number"`
	Name     string `json:"name"`
	Citation string `json:"citation"`
}

// statusRequest is the transition payload.
type statusRequest struct {
	Status  models.StepStatus `json:"status"`
	Comment string            `json:"comment"`
}

// ListSteps returns the registry ordered by step number
// (GET /api/v1/steps)
func (s *Server) ListSteps(c echo.Context) error {
	steps, err := s.Steps.List(c.Request().Context())
	if err != nil {
		return problem(c, err)
	}
	if steps == nil {
		steps = []*models.Step{}
	}
	return c.JSON(http.StatusOK, steps)
}

// CreateStep registers a new compliance step
// (POST /api/v1/steps)
func (s *Server) CreateStep(c echo.Context) error {
	var req stepRequest
	if err := c.Bind(&req); err != nil {
		return problem(c, &models.ValidationError{Detail: "invalid request body: " + err.Error()})
	}

	step, err := s.Steps.Create(c.Request().Context(), &models.Step{
		Number:   req.Number,
		Name:     req.Name,
		Citation: req.Citation,
	})
	if err != nil {
		return problem(c, err)
	}
	return c.JSON(http.StatusCreated, step)
}

// UpdateStep changes a step's number, name or citation
// (PUT /api/v1/steps/:id)
func (s *Server) UpdateStep(c echo.Context) error {
	var req stepRequest
	if err := c.Bind(&req); err != nil {
		return problem(c, &models.ValidationError{Detail: "invalid request body: " + err.Error()})
	}

	step, err := s.Steps.Update(c.Request().Context(), &models.Step{
		ID:       c.Param("id"),
		Number:   req.Number,
		Name:     req.Name,
		Citation: req.Citation,
	})
	if err != nil {
		return problem(c, err)
	}
	return c.JSON(http.StatusOK, step)
}

// DeleteStep removes a step without evidence records
// (DELETE /api/v1/steps/:id)
func (s *Server) DeleteStep(c echo.Context) error {
	if err := s.Steps.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return problem(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// TransitionStep moves a step through its lifecycle
// (PATCH /api/v1/steps/:id/status)
func (s *Server) TransitionStep(c echo.Context) error {
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return problem(c, &models.ValidationError{Detail: "invalid request body: " + err.Error()})
	}

	step, err := s.Steps.Transition(c.Request().Context(), c.Param("id"), req.Status, req.Comment, actor(c))
	if err != nil {
		return problem(c, err)
	}
	return c.JSON(http.StatusOK, step)
}

// ReopenStep is the privileged escape from a terminal status
// (POST /api/v1/steps/:id/reopen)
func (s *Server) ReopenStep(c echo.Context) error {
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return problem(c, &models.ValidationError{Detail: "invalid request body: " + err.Error()})
	}

	step, err := s.Steps.Reopen(c.Request().Context(), c.Param("id"), req.Comment, actor(c))
	if err != nil {
		return problem(c, err)
	}
	return c.JSON(http.StatusOK, step)
}

// StepHistory returns a step's transition log, newest first
// (GET /api/v1/steps/:id/history)
func (s *Server) StepHistory(c echo.Context) error {
	history, err := s.Steps.History(c.Request().Context(), c.Param("id"))
	if err != nil {
		return problem(c, err)
	}
	if history == nil {
		history = []*models.StepTransition{}
	}
	return c.JSON(http.StatusOK, history)
}

// GetCompliance returns the program-wide completion percentage
// (GET /api/v1/compliance)
func (s *Server) GetCompliance(c echo.Context) error {
	summary, err := s.Steps.Compliance(c.Request().Context())
	if err != nil {
		return problem(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}
