package repository

import (
	"context"

	"pesv-compliance/backend/pkg/models"
)

// Repository is the persistence interface for the compliance step engine.
// Implementations must make TransitionStep and ReopenStep atomic per step:
// the evidence-exists check and the status write happen as one unit.
type Repository interface {
	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// CreateStep inserts a new step into the registry.
	CreateStep(ctx context.Context, step *models.Step) error
	// GetStep retrieves a step by id, including its derived evidence count.
	GetStep(ctx context.Context, id string) (*models.Step, error)
	// ListSteps returns all steps ordered by their ordinal number.
	ListSteps(ctx context.Context) ([]*models.Step, error)
	// UpdateStep updates a step's number, name and citation.
	UpdateStep(ctx context.Context, step *models.Step) error
	// DeleteStep removes a step. It fails with ErrStepHasEvidence while
	// evidence records still reference the step.
	DeleteStep(ctx context.Context, id string) error
	// TransitionStep moves a step to the given status, enforcing the
	// lifecycle table and the evidence gate on Done, and records the
	// transition with its comment.
	TransitionStep(ctx context.Context, id string, to models.StepStatus, comment, actor string) (*models.Step, error)
	// ReopenStep is the privileged escape from a terminal status back to
	// in_progress.
	ReopenStep(ctx context.Context, id string, comment, actor string) (*models.Step, error)
	// ListTransitions returns a step's status history, newest first.
	ListTransitions(ctx context.Context, stepID string) ([]*models.StepTransition, error)

	// ReplaceTemplate atomically swaps the step's template definition for
	// the given one.
	ReplaceTemplate(ctx context.Context, tpl *models.TemplateDefinition) error
	// GetTemplate returns the step's template with fields in stored order,
	// or (nil, nil) when the step has no template configured.
	GetTemplate(ctx context.Context, stepID string) (*models.TemplateDefinition, error)

	// AddEvidence records a new evidence row.
	AddEvidence(ctx context.Context, ev *models.Evidence) error
	// GetEvidence retrieves one evidence record by id.
	GetEvidence(ctx context.Context, id string) (*models.Evidence, error)
	// ListEvidence returns a step's evidence ordered by upload time descending.
	ListEvidence(ctx context.Context, stepID string) ([]*models.Evidence, error)
	// ReplaceEvidence updates filename, path and timestamp of an existing
	// record, preserving its identity.
	ReplaceEvidence(ctx context.Context, ev *models.Evidence) error
	// DeleteEvidence removes an evidence record.
	DeleteEvidence(ctx context.Context, id string) error
	// CountEvidence returns the number of evidence records for a step.
	CountEvidence(ctx context.Context, stepID string) (int, error)
}
