package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pesv-compliance/backend/pkg/models"
)

// PostgresStore is a PostgreSQL implementation of the Repository interface.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS steps (
	id UUID PRIMARY KEY,
	number INT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	citation TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS step_templates (
	step_id UUID PRIMARY KEY REFERENCES steps(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	intro_text TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS template_fields (
	step_id UUID NOT NULL REFERENCES step_templates(step_id) ON DELETE CASCADE,
	label TEXT NOT NULL,
	kind TEXT NOT NULL,
	ord INT NOT NULL,
	PRIMARY KEY (step_id, label)
);

CREATE TABLE IF NOT EXISTS evidence (
	id UUID PRIMARY KEY,
	step_id UUID NOT NULL REFERENCES steps(id),
	filename TEXT NOT NULL,
	path TEXT NOT NULL,
	uploaded_by TEXT NOT NULL DEFAULT '',
	provenance TEXT NOT NULL,
	uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS evidence_step_idx ON evidence (step_id, uploaded_at DESC);

CREATE TABLE IF NOT EXISTS step_transitions (
	id UUID PRIMARY KEY,
	step_id UUID NOT NULL REFERENCES steps(id) ON DELETE CASCADE,
	from_status TEXT NOT NULL,
	to_status TEXT NOT NULL,
	comment TEXT NOT NULL DEFAULT '',
	actor TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate creates the schema if it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schema)
	return err
}

// Ping verifies the backing store is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

const stepColumns = `s.id, s.number, s.name, s.citation, s.status,
	(SELECT count(*) FROM evidence e WHERE e.step_id = s.id) AS evidence_count,
	s.created_at, s.updated_at`

func scanStep(row pgx.Row) (*models.Step, error) {
	var step models.Step
	err := row.Scan(&step.ID, &step.Number, &step.Name, &step.Citation, &step.Status,
		&step.EvidenceCount, &step.CreatedAt, &step.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrStepNotFound
		}
		return nil, err
	}
	return &step, nil
}

// CreateStep inserts a new step into the registry.
func (s *PostgresStore) CreateStep(ctx context.Context, step *models.Step) error {
	if step.ID == "" {
		step.ID = uuid.New().String()
	}
	if step.Status == "" {
		step.Status = models.StepStatusPending
	}
	now := time.Now().UTC()
	step.CreatedAt = now
	step.UpdatedAt = now
	_, err := s.db.Exec(ctx,
		`INSERT INTO steps (id, number, name, citation, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		step.ID, step.Number, step.Name, step.Citation, step.Status, step.CreatedAt, step.UpdatedAt)
	return err
}

// GetStep retrieves a step by id, including its derived evidence count.
func (s *PostgresStore) GetStep(ctx context.Context, id string) (*models.Step, error) {
	row := s.db.QueryRow(ctx, `SELECT `+stepColumns+` FROM steps s WHERE s.id = $1`, id)
	return scanStep(row)
}

// ListSteps returns all steps ordered by their ordinal number.
func (s *PostgresStore) ListSteps(ctx context.Context) ([]*models.Step, error) {
	rows, err := s.db.Query(ctx, `SELECT `+stepColumns+` FROM steps s ORDER BY s.number ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []*models.Step
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// UpdateStep updates a step's number, name and citation.
func (s *PostgresStore) UpdateStep(ctx context.Context, step *models.Step) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE steps SET number = $1, name = $2, citation = $3, updated_at = now() WHERE id = $4`,
		step.Number, step.Name, step.Citation, step.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrStepNotFound
	}
	return nil
}

// DeleteStep removes a step unless evidence still references it.
func (s *PostgresStore) DeleteStep(ctx context.Context, id string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var count int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM evidence WHERE step_id = $1`, id).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return models.ErrStepHasEvidence
	}

	tag, err := tx.Exec(ctx, `DELETE FROM steps WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrStepNotFound
	}
	return tx.Commit(ctx)
}

// TransitionStep moves a step to the given status. The row lock taken by
// FOR UPDATE serializes concurrent transitions per step, so the evidence
// check and the status write are one atomic unit.
func (s *PostgresStore) TransitionStep(ctx context.Context, id string, to models.StepStatus, comment, actor string) (*models.Step, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var from models.StepStatus
	err = tx.QueryRow(ctx, `SELECT status FROM steps WHERE id = $1 FOR UPDATE`, id).Scan(&from)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrStepNotFound
		}
		return nil, err
	}

	if !models.CanTransition(from, to) {
		return nil, models.ErrInvalidTransition
	}

	if to == models.StepStatusDone {
		var count int
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM evidence WHERE step_id = $1`, id).Scan(&count); err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, models.ErrEvidenceRequired
		}
	}

	if err := s.writeTransition(ctx, tx, id, from, to, comment, actor); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.GetStep(ctx, id)
}

// ReopenStep is the privileged escape from a terminal status back to
// in_progress.
func (s *PostgresStore) ReopenStep(ctx context.Context, id string, comment, actor string) (*models.Step, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var from models.StepStatus
	err = tx.QueryRow(ctx, `SELECT status FROM steps WHERE id = $1 FOR UPDATE`, id).Scan(&from)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrStepNotFound
		}
		return nil, err
	}
	if !from.Terminal() {
		return nil, models.ErrInvalidTransition
	}

	if err := s.writeTransition(ctx, tx, id, from, models.StepStatusInProgress, comment, actor); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.GetStep(ctx, id)
}

func (s *PostgresStore) writeTransition(ctx context.Context, tx pgx.Tx, id string, from, to models.StepStatus, comment, actor string) error {
	if _, err := tx.Exec(ctx, `UPDATE steps SET status = $1, updated_at = now() WHERE id = $2`, to, id); err != nil {
		return err
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO step_transitions (id, step_id, from_status, to_status, comment, actor)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), id, from, to, comment, actor)
	return err
}

// ListTransitions returns a step's status history, newest first.
func (s *PostgresStore) ListTransitions(ctx context.Context, stepID string) ([]*models.StepTransition, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, step_id, from_status, to_status, comment, actor, created_at
		 FROM step_transitions WHERE step_id = $1 ORDER BY created_at DESC`, stepID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []*models.StepTransition
	for rows.Next() {
		var tr models.StepTransition
		if err := rows.Scan(&tr.ID, &tr.StepID, &tr.From, &tr.To, &tr.Comment, &tr.Actor, &tr.At); err != nil {
			return nil, err
		}
		history = append(history, &tr)
	}
	return history, rows.Err()
}

// ReplaceTemplate atomically swaps the step's template definition. Define is
// replace, not additive: prior fields are dropped in the same transaction.
func (s *PostgresStore) ReplaceTemplate(ctx context.Context, tpl *models.TemplateDefinition) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM steps WHERE id = $1)`, tpl.StepID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return models.ErrStepNotFound
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO step_templates (step_id, title, intro_text, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (step_id) DO UPDATE SET title = $2, intro_text = $3, updated_at = now()`,
		tpl.StepID, tpl.Title, tpl.IntroText)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM template_fields WHERE step_id = $1`, tpl.StepID); err != nil {
		return err
	}
	for _, f := range tpl.Fields {
		_, err := tx.Exec(ctx,
			`INSERT INTO template_fields (step_id, label, kind, ord) VALUES ($1, $2, $3, $4)`,
			tpl.StepID, f.Label, f.Kind, f.Order)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// GetTemplate returns the step's template, or (nil, nil) when the step has
// no template configured. Absent is a normal result, not an error. Header and
// fields are read in a single statement so the result is one consistent
// snapshot: a replace committing concurrently can never mix an old title with
// a new field list.
func (s *PostgresStore) GetTemplate(ctx context.Context, stepID string) (*models.TemplateDefinition, error) {
	rows, err := s.db.Query(ctx,
		`SELECT t.step_id, t.title, t.intro_text, t.updated_at, f.label, f.kind, f.ord
		 FROM step_templates t
		 LEFT JOIN template_fields f ON f.step_id = t.step_id
		 WHERE t.step_id = $1
		 ORDER BY f.ord ASC, f.label ASC`, stepID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tpl *models.TemplateDefinition
	for rows.Next() {
		var (
			header models.TemplateDefinition
			label  *string
			kind   *string
			ord    *int
		)
		if err := rows.Scan(&header.StepID, &header.Title, &header.IntroText, &header.UpdatedAt,
			&label, &kind, &ord); err != nil {
			return nil, err
		}
		if tpl == nil {
			tpl = &header
		}
		// a template with no fields joins to a single all-NULL field row
		if label != nil {
			tpl.Fields = append(tpl.Fields, models.FieldSchema{
				Label: *label, Kind: models.FieldKind(*kind), Order: *ord,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tpl, nil
}

// AddEvidence records a new evidence row.
func (s *PostgresStore) AddEvidence(ctx context.Context, ev *models.Evidence) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.UploadedAt.IsZero() {
		ev.UploadedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO evidence (id, step_id, filename, path, uploaded_by, provenance, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.StepID, ev.Filename, ev.Path, ev.UploadedBy, ev.Provenance, ev.UploadedAt)
	return err
}

// GetEvidence retrieves one evidence record by id.
func (s *PostgresStore) GetEvidence(ctx context.Context, id string) (*models.Evidence, error) {
	var ev models.Evidence
	err := s.db.QueryRow(ctx,
		`SELECT id, step_id, filename, path, uploaded_by, provenance, uploaded_at
		 FROM evidence WHERE id = $1`, id).
		Scan(&ev.ID, &ev.StepID, &ev.Filename, &ev.Path, &ev.UploadedBy, &ev.Provenance, &ev.UploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrEvidenceNotFound
		}
		return nil, err
	}
	return &ev, nil
}

// ListEvidence returns a step's evidence ordered by upload time descending.
func (s *PostgresStore) ListEvidence(ctx context.Context, stepID string) ([]*models.Evidence, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, step_id, filename, path, uploaded_by, provenance, uploaded_at
		 FROM evidence WHERE step_id = $1 ORDER BY uploaded_at DESC`, stepID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*models.Evidence
	for rows.Next() {
		var ev models.Evidence
		if err := rows.Scan(&ev.ID, &ev.StepID, &ev.Filename, &ev.Path, &ev.UploadedBy, &ev.Provenance, &ev.UploadedAt); err != nil {
			return nil, err
		}
		list = append(list, &ev)
	}
	return list, rows.Err()
}

// ReplaceEvidence updates filename, path and timestamp of an existing record,
// preserving its identity.
func (s *PostgresStore) ReplaceEvidence(ctx context.Context, ev *models.Evidence) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE evidence SET filename = $1, path = $2, uploaded_at = $3 WHERE id = $4`,
		ev.Filename, ev.Path, ev.UploadedAt, ev.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrEvidenceNotFound
	}
	return nil
}

// DeleteEvidence removes an evidence record.
func (s *PostgresStore) DeleteEvidence(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM evidence WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrEvidenceNotFound
	}
	return nil
}

// CountEvidence returns the number of evidence records for a step.
func (s *PostgresStore) CountEvidence(ctx context.Context, stepID string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM evidence WHERE step_id = $1`, stepID).Scan(&count)
	return count, err
}
