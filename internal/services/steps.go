package services

import (
	"context"
	"strings"

	"pesv-compliance/backend/internal/repository"
	"pesv-compliance/backend/pkg/models"
)

// StepService manages the compliance step registry and its lifecycle.
type StepService struct {
	repo repository.Repository
}

// NewStepService creates a new StepService.
func NewStepService(repo repository.Repository) *StepService {
	return &StepService{repo: repo}
}

// ComplianceSummary is the program-wide completion report.
type ComplianceSummary struct {
	Total   int `json:"total"`
	Done    int `json:"done"`
	Percent int `json:"percent"`
}

// Create registers a new compliance step.
func (s *StepService) Create(ctx context.Context, step *models.Step) (*models.Step, error) {
	if step.Number <= 0 {
		return nil, &models.ValidationError{Detail: "step number must be positive"}
	}
	if strings.TrimSpace(step.Name) == "" {
		return nil, &models.ValidationError{Detail: "step name must not be empty"}
	}
	step.Status = models.StepStatusPending
	if err := s.repo.CreateStep(ctx, step); err != nil {
		return nil, err
	}
	return step, nil
}

// Get returns one step by id.
func (s *StepService) Get(ctx context.Context, id string) (*models.Step, error) {
	return s.repo.GetStep(ctx, id)
}

// List returns the registry ordered by step number.
func (s *StepService) List(ctx context.Context) ([]*models.Step, error) {
	return s.repo.ListSteps(ctx)
}

// Update changes a step's number, name or citation. Status is never touched
// here; transitions go through Transition.
func (s *StepService) Update(ctx context.Context, step *models.Step) (*models.Step, error) {
	if step.Number <= 0 {
		return nil, &models.ValidationError{Detail: "step number must be positive"}
	}
	if strings.TrimSpace(step.Name) == "" {
		return nil, &models.ValidationError{Detail: "step name must not be empty"}
	}
	if err := s.repo.UpdateStep(ctx, step); err != nil {
		return nil, err
	}
	return s.repo.GetStep(ctx, step.ID)
}

// Delete removes a step. Steps still referenced by evidence are blocked.
func (s *StepService) Delete(ctx context.Context, id string) error {
	return s.repo.DeleteStep(ctx, id)
}

// Transition moves a step to the requested status. Transitions into Done are
// gated on at least one evidence record; the repository makes the check and
// the write atomic per step.
func (s *StepService) Transition(ctx context.Context, id string, to models.StepStatus, comment, actor string) (*models.Step, error) {
	if !to.Valid() {
		return nil, &models.ValidationError{Detail: "unknown status: " + string(to)}
	}
	return s.repo.TransitionStep(ctx, id, to, comment, actor)
}

// Reopen is the privileged operation that takes a terminal step back to
// in_progress.
func (s *StepService) Reopen(ctx context.Context, id string, comment, actor string) (*models.Step, error) {
	return s.repo.ReopenStep(ctx, id, comment, actor)
}

// History returns a step's transition log, newest first.
func (s *StepService) History(ctx context.Context, id string) ([]*models.StepTransition, error) {
	if _, err := s.repo.GetStep(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListTransitions(ctx, id)
}

// Compliance computes the program-wide completion percentage.
func (s *StepService) Compliance(ctx context.Context) (*ComplianceSummary, error) {
	steps, err := s.repo.ListSteps(ctx)
	if err != nil {
		return nil, err
	}
	done := 0
	for _, st := range steps {
		if st.Status == models.StepStatusDone {
			done++
		}
	}
	return &ComplianceSummary{
		Total:   len(steps),
		Done:    done,
		Percent: models.ComputeCompliance(steps),
	}, nil
}

// DefineTemplate validates and stores a step's template definition,
// replacing any prior definition atomically.
func (s *StepService) DefineTemplate(ctx context.Context, tpl *models.TemplateDefinition) error {
	if err := tpl.Validate(); err != nil {
		return err
	}
	return s.repo.ReplaceTemplate(ctx, tpl)
}

// GetTemplate returns the step's template, or (nil, nil) when none is
// configured. Callers branch on the absent result; an unconfigured step is a
// normal state that can still be completed via manual evidence.
func (s *StepService) GetTemplate(ctx context.Context, stepID string) (*models.TemplateDefinition, error) {
	if _, err := s.repo.GetStep(ctx, stepID); err != nil {
		return nil, err
	}
	return s.repo.GetTemplate(ctx, stepID)
}
