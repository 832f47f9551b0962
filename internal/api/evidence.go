package api

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"pesv-compliance/backend/pkg/models"
)

// readUpload pulls the multipart "file" part into memory.
func readUpload(c echo.Context) (string, []byte, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return "", nil, &models.ValidationError{Detail: "multipart field 'file' is required"}
	}
	f, err := fh.Open()
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, err
	}
	return fh.Filename, data, nil
}

// AttachEvidence records a manually uploaded file against a step
// (POST /api/v1/steps/:id/evidence)
func (s *Server) AttachEvidence(c echo.Context) error {
	filename, data, err := readUpload(c)
	if err != nil {
		return problem(c, err)
	}

	ev, err := s.Evidence.Attach(c.Request().Context(), c.Param("id"), filename, data, actor(c))
	if err != nil {
		return problem(c, err)
	}
	return c.JSON(http.StatusCreated, ev)
}

// ListEvidence returns a step's evidence, newest first
// (GET /api/v1/steps/:id/evidence)
func (s *Server) ListEvidence(c echo.Context) error {
	list, err := s.Evidence.List(c.Request().Context(), c.Param("id"))
	if err != nil {
		return problem(c, err)
	}
	if list == nil {
		list = []*models.Evidence{}
	}
	return c.JSON(http.StatusOK, list)
}

// ReplaceEvidence swaps the stored file of an evidence record, preserving
// its identity
// (PUT /api/v1/evidence/:id)
func (s *Server) ReplaceEvidence(c echo.Context) error {
	filename, data, err := readUpload(c)
	if err != nil {
		return problem(c, err)
	}

	ev, err := s.Evidence.Replace(c.Request().Context(), c.Param("id"), filename, data)
	if err != nil {
		return problem(c, err)
	}
	return c.JSON(http.StatusOK, ev)
}

// RemoveEvidence deletes an evidence record and its bytes
// (DELETE /api/v1/evidence/:id)
func (s *Server) RemoveEvidence(c echo.Context) error {
	if err := s.Evidence.Remove(c.Request().Context(), c.Param("id")); err != nil {
		return problem(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// DownloadEvidence streams the stored bytes of an evidence record
// (GET /api/v1/evidence/:id/file)
func (s *Server) DownloadEvidence(c echo.Context) error {
	ev, data, err := s.Evidence.Open(c.Request().Context(), c.Param("id"))
	if err != nil {
		return problem(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+ev.Filename+`"`)
	return c.Blob(http.StatusOK, "application/octet-stream", data)
}
