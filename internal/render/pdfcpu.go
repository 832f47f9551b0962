// Package render turns the engine's structured document content into PDF
// bytes. It is the concrete implementation of the rendering collaborator;
// nothing outside this package knows about page geometry or fonts.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"pesv-compliance/backend/pkg/models"
)

// page geometry, points on A4
const (
	pageTop    = 780.0
	marginLeft = 60.0
	lineStep   = 18.0
	titleSize  = 16
	bodySize   = 10
)

// PDFRenderer renders documents with pdfcpu's create API.
type PDFRenderer struct {
	conf *model.Configuration
}

// NewPDFRenderer creates a new PDFRenderer.
func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{conf: model.NewDefaultConfiguration()}
}

// createSpec mirrors the subset of pdfcpu's create JSON the renderer emits.
type createSpec struct {
	Paper string              `json:"paper"`
	Pages map[string]pageSpec `json:"pages"`
}

type pageSpec struct {
	Content contentSpec `json:"content"`
}

type contentSpec struct {
	Text []textSpec `json:"text"`
}

type textSpec struct {
	Value    string    `json:"value"`
	Position []float64 `json:"position"`
	Font     fontSpec  `json:"font"`
}

type fontSpec struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// Render produces the PDF bytes for the given content. The output is
// deterministic for identical content.
func (r *PDFRenderer) Render(ctx context.Context, content models.DocumentContent) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	spec := buildCreateSpec(content)
	raw, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("encode create spec: %w", err)
	}

	var buf bytes.Buffer
	if err := api.Create(nil, bytes.NewReader(raw), &buf, r.conf); err != nil {
		return nil, fmt.Errorf("pdfcpu create: %w", err)
	}
	return buf.Bytes(), nil
}

// buildCreateSpec lays the content out top-down: title, optional intro,
// then one line per single-line row and one indented line per long-text
// line. Overflow past the page bottom is left to pdfcpu's page handling.
func buildCreateSpec(content models.DocumentContent) createSpec {
	y := pageTop
	var text []textSpec

	text = append(text, textSpec{
		Value:    content.Title,
		Position: []float64{marginLeft, y},
		Font:     fontSpec{Name: "Helvetica-Bold", Size: titleSize},
	})
	y -= 2 * lineStep

	if strings.TrimSpace(content.IntroText) != "" {
		for _, line := range strings.Split(content.IntroText, "\n") {
			text = append(text, textSpec{
				Value:    line,
				Position: []float64{marginLeft, y},
				Font:     fontSpec{Name: "Helvetica", Size: bodySize},
			})
			y -= lineStep
		}
		y -= lineStep
	}

	for _, row := range content.Rows {
		if row.Multiline {
			text = append(text, textSpec{
				Value:    row.Label + ":",
				Position: []float64{marginLeft, y},
				Font:     fontSpec{Name: "Helvetica-Bold", Size: bodySize},
			})
			y -= lineStep
			for _, line := range strings.Split(row.Value, "\n") {
				text = append(text, textSpec{
					Value:    line,
					Position: []float64{marginLeft + 12, y},
					Font:     fontSpec{Name: "Helvetica", Size: bodySize},
				})
				y -= lineStep
			}
			y -= lineStep / 2
			continue
		}
		text = append(text, textSpec{
			Value:    fmt.Sprintf("%s: %s", row.Label, row.Value),
			Position: []float64{marginLeft, y},
			Font:     fontSpec{Name: "Helvetica", Size: bodySize},
		})
		y -= lineStep
	}

	return createSpec{
		Paper: "A4",
		Pages: map[string]pageSpec{
			"1": {Content: contentSpec{Text: text}},
		},
	}
}
