package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"pesv-compliance/backend/pkg/models"
)

// templateRequest is the admin payload defining a step's document template.
type templateRequest struct {
	Title     string `json:"title"`
	IntroText string `json:"intro_text"`
	Fields    []struct {
		Label string           `json:"label"`
		Kind  models.FieldKind `json:"kind"`
		Order int              `json:"order"`
	} `json:"fields"`
}

// templateResponse distinguishes "not configured" from a present template so
// clients branch instead of handling an error.
type templateResponse struct {
	Configured bool                       `json:"configured"`
	Template   *models.TemplateDefinition `json:"template,omitempty"`
}

// GetTemplate returns the step's template definition or a not-configured
// marker
// (GET /api/v1/steps/:id/template)
func (s *Server) GetTemplate(c echo.Context) error {
	tpl, err := s.Steps.GetTemplate(c.Request().Context(), c.Param("id"))
	if err != nil {
		return problem(c, err)
	}
	return c.JSON(http.StatusOK, templateResponse{Configured: tpl != nil, Template: tpl})
}

// PutTemplate defines or replaces the step's template definition
// (PUT /api/v1/steps/:id/template)
func (s *Server) PutTemplate(c echo.Context) error {
	var req templateRequest
	if err := c.Bind(&req); err != nil {
		return problem(c, &models.ValidationError{Detail: "invalid request body: " + err.Error()})
	}

	tpl := &models.TemplateDefinition{
		StepID:    c.Param("id"),
		Title:     req.Title,
		IntroText: req.IntroText,
	}
	for _, f := range req.Fields {
		tpl.Fields = append(tpl.Fields, models.FieldSchema{Label: f.Label, Kind: f.Kind, Order: f.Order})
	}

	if err := s.Steps.DefineTemplate(c.Request().Context(), tpl); err != nil {
		return problem(c, err)
	}
	return c.JSON(http.StatusOK, templateResponse{Configured: true, Template: tpl})
}

// GenerateDocument binds the step's template to the submitted answer set and
// records the rendered document as generated evidence
// (POST /api/v1/steps/:id/generate)
func (s *Server) GenerateDocument(c echo.Context) error {
	var answers models.AnswerSet
	if err := c.Bind(&answers); err != nil {
		return problem(c, &models.ValidationError{Detail: "invalid request body: " + err.Error()})
	}

	doc, err := s.Generator.Generate(c.Request().Context(), c.Param("id"), answers, actor(c))
	if err != nil {
		return problem(c, err)
	}
	return c.JSON(http.StatusCreated, doc)
}
