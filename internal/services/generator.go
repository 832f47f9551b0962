package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pesv-compliance/backend/internal/repository"
	"pesv-compliance/backend/pkg/models"
)

// dateLayout is the ISO calendar date format answers must use for date
// fields.
const dateLayout = "2006-01-02"

// GeneratorService binds a step's template definition to an operator answer
// set, renders the document through the external renderer and records the
// result as generated evidence.
type GeneratorService struct {
	repo     repository.Repository
	renderer Renderer
	blobs    BlobStore
	timeout  time.Duration
}

// NewGeneratorService creates a new GeneratorService. The timeout bounds the
// render+persist unit of a single generate call.
func NewGeneratorService(repo repository.Repository, renderer Renderer, blobs BlobStore, timeout time.Duration) *GeneratorService {
	return &GeneratorService{repo: repo, renderer: renderer, blobs: blobs, timeout: timeout}
}

// Generate produces the step's document from the given answers. Exactly one
// evidence record is created per successful call; any failure leaves no
// partial evidence behind.
func (g *GeneratorService) Generate(ctx context.Context, stepID string, answers models.AnswerSet, actor string) (*models.GeneratedDocument, error) {
	if _, err := g.repo.GetStep(ctx, stepID); err != nil {
		return nil, err
	}

	// The template is loaded once; the rest of the call works off this
	// snapshot, so a concurrent redefinition cannot mutate an in-flight
	// generation.
	tpl, err := g.repo.GetTemplate(ctx, stepID)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, models.ErrNoTemplateConfigured
	}
	if len(tpl.Fields) == 0 {
		return nil, &models.ValidationError{Detail: "template declares no fields and cannot be used for generation"}
	}

	content, err := buildContent(tpl, answers)
	if err != nil {
		return nil, err
	}

	renderCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		renderCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	data, err := g.renderer.Render(renderCtx, *content)
	if err != nil {
		return nil, &models.RenderError{Err: err}
	}

	filename := generatedFilename(tpl.Title)
	path, err := g.blobs.Save(renderCtx, data, filename)
	if err != nil {
		return nil, fmt.Errorf("store generated document: %w", err)
	}

	ev := &models.Evidence{
		ID:         uuid.New().String(),
		StepID:     stepID,
		Filename:   filename,
		Path:       path,
		UploadedBy: actor,
		Provenance: models.ProvenanceGenerated,
		UploadedAt: time.Now().UTC(),
	}
	if err := g.repo.AddEvidence(ctx, ev); err != nil {
		// keep the store free of bytes no record points at
		_ = g.blobs.Delete(context.WithoutCancel(ctx), path)
		return nil, fmt.Errorf("record generated evidence: %w", err)
	}

	return &models.GeneratedDocument{
		EvidenceID: ev.ID,
		Filename:   ev.Filename,
		Path:       ev.Path,
	}, nil
}

// buildContent assembles the ordered rendering plan: static header content
// followed by one typed row per declared field.
func buildContent(tpl *models.TemplateDefinition, answers models.AnswerSet) (*models.DocumentContent, error) {
	declared := make(map[string]bool, len(tpl.Fields))
	for _, f := range tpl.Fields {
		declared[f.Label] = true
	}
	for label := range answers {
		if !declared[label] {
			return nil, &models.ValidationError{Detail: "answer for undeclared field: " + label}
		}
	}

	fields := tpl.OrderedFields()
	rows := make([]models.ContentRow, 0, len(fields))
	for _, f := range fields {
		value, ok := answers[f.Label]
		if !ok || strings.TrimSpace(value) == "" {
			return nil, &models.MissingFieldError{Label: f.Label}
		}
		switch f.Kind {
		case models.FieldKindDate:
			if _, err := time.Parse(dateLayout, value); err != nil {
				return nil, &models.InvalidFieldTypeError{Label: f.Label, Value: value}
			}
			rows = append(rows, models.ContentRow{Label: f.Label, Value: value})
		case models.FieldKindLongText:
			rows = append(rows, models.ContentRow{Label: f.Label, Value: value, Multiline: true})
		default:
			rows = append(rows, models.ContentRow{Label: f.Label, Value: value})
		}
	}

	return &models.DocumentContent{
		Title:     tpl.Title,
		IntroText: tpl.IntroText,
		Rows:      rows,
	}, nil
}

// generatedFilename derives a storage filename from the document title,
// qualified by timestamp and a short random suffix so repeat generations
// never overwrite prior evidence.
func generatedFilename(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	mapper := func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}
	slug = strings.Trim(strings.Map(mapper, slug), "-")
	if slug == "" {
		slug = "document"
	}
	stamp := time.Now().UTC().Format("20060102T150405Z")
	return fmt.Sprintf("%s-%s-%s.pdf", slug, stamp, uuid.New().String()[:8])
}
