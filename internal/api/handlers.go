// Package api contains the HTTP handlers for the compliance service
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"pesv-compliance/backend/internal/services"
	"pesv-compliance/backend/pkg/models"
)

// StepManager is the slice of the step service the API consumes.
type StepManager interface {
	Create(ctx context.Context, step *models.Step) (*models.Step, error)
	Get(ctx context.Context, id string) (*models.Step, error)
	List(ctx context.Context) ([]*models.Step, error)
	Update(ctx context.Context, step *models.Step) (*models.Step, error)
	Delete(ctx context.Context, id string) error
	Transition(ctx context.Context, id string, to models.StepStatus, comment, actor string) (*models.Step, error)
	Reopen(ctx context.Context, id string, comment, actor string) (*models.Step, error)
	History(ctx context.Context, id string) ([]*models.StepTransition, error)
	Compliance(ctx context.Context) (*services.ComplianceSummary, error)
	DefineTemplate(ctx context.Context, tpl *models.TemplateDefinition) error
	GetTemplate(ctx context.Context, stepID string) (*models.TemplateDefinition, error)
}

// Generator is the document generation entry point the API consumes.
type Generator interface {
	Generate(ctx context.Context, stepID string, answers models.AnswerSet, actor string) (*models.GeneratedDocument, error)
}

// EvidenceManager is the evidence facade the API consumes.
type EvidenceManager interface {
	Attach(ctx context.Context, stepID, filename string, data []byte, uploader string) (*models.Evidence, error)
	Replace(ctx context.Context, evidenceID, filename string, data []byte) (*models.Evidence, error)
	List(ctx context.Context, stepID string) ([]*models.Evidence, error)
	Open(ctx context.Context, evidenceID string) (*models.Evidence, []byte, error)
	Remove(ctx context.Context, evidenceID string) error
}

// Server holds the dependencies for the API server.
type Server struct {
	Steps     StepManager
	Generator Generator
	Evidence  EvidenceManager
}

// NewServer creates a new Server.
func NewServer(steps StepManager, generator Generator, evidence EvidenceManager) *Server {
	return &Server{Steps: steps, Generator: generator, Evidence: evidence}
}

// RegisterHandlers mounts the REST surface on the given group.
func RegisterHandlers(g *echo.Group, s *Server) {
	g.GET("/steps", s.ListSteps)
	g.POST("/steps", s.CreateStep)
	g.PUT("/steps/:id", s.UpdateStep)
	g.DELETE("/steps/:id", s.DeleteStep)
	g.GET("/steps/:id/history", s.StepHistory)
	g.PATCH("/steps/:id/status", s.TransitionStep)
	g.POST("/steps/:id/reopen", s.ReopenStep)
	g.GET("/compliance", s.GetCompliance)

	g.GET("/steps/:id/template", s.GetTemplate)
	g.PUT("/steps/:id/template", s.PutTemplate)
	g.POST("/steps/:id/generate", s.GenerateDocument)

	g.POST("/steps/:id/evidence", s.AttachEvidence)
	g.GET("/steps/:id/evidence", s.ListEvidence)
	g.PUT("/evidence/:id", s.ReplaceEvidence)
	g.DELETE("/evidence/:id", s.RemoveEvidence)
	g.GET("/evidence/:id/file", s.DownloadEvidence)
}

// HandleHealth returns basic health status (always returns 200 OK)
func (s *Server) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, models.HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Service:   "pesv-compliance",
		Version:   "1.0.0",
	})
}

// actor returns the authenticated user identity the auth middleware stored in
// the request context, if any.
func actor(c echo.Context) string {
	if v, ok := c.Request().Context().Value("user").(string); ok {
		return v
	}
	return ""
}

// problem is the single point where domain errors translate into HTTP
// statuses and RFC 7807 Problem Details bodies.
func problem(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	title := "Internal Server Error"

	var verr *models.ValidationError
	var missing *models.MissingFieldError
	var badType *models.InvalidFieldTypeError
	var rerr *models.RenderError

	switch {
	case errors.As(err, &verr):
		status, title = http.StatusBadRequest, "Invalid Definition"
	case errors.As(err, &missing):
		status, title = http.StatusUnprocessableEntity, "Missing Field"
	case errors.As(err, &badType):
		status, title = http.StatusUnprocessableEntity, "Invalid Field Value"
	case errors.Is(err, models.ErrStepNotFound), errors.Is(err, models.ErrEvidenceNotFound):
		status, title = http.StatusNotFound, "Not Found"
	case errors.Is(err, models.ErrNoTemplateConfigured):
		status, title = http.StatusConflict, "No Template Configured"
	case errors.Is(err, models.ErrEvidenceRequired):
		status, title = http.StatusConflict, "Evidence Required"
	case errors.Is(err, models.ErrInvalidTransition):
		status, title = http.StatusConflict, "Invalid Transition"
	case errors.Is(err, models.ErrStepHasEvidence):
		status, title = http.StatusConflict, "Step Has Evidence"
	case errors.As(err, &rerr):
		status, title = http.StatusBadGateway, "Render Failed"
	}

	body := models.ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   err.Error(),
		Instance: c.Request().RequestURI,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
	c.Response().WriteHeader(status)
	return json.NewEncoder(c.Response()).Encode(body)
}
