// Package models defines the domain models for the PESV compliance service
package models

import (
	"math"
	"sort"
	"strings"
	"time"
)

// StepStatus represents the lifecycle state of a compliance step
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusDone       StepStatus = "done"
	StepStatusCancelled  StepStatus = "cancelled"
)

// Valid reports whether s is one of the known lifecycle states.
func (s StepStatus) Valid() bool {
	switch s {
	case StepStatusPending, StepStatusInProgress, StepStatusDone, StepStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s admits no further automatic transitions.
func (s StepStatus) Terminal() bool {
	return s == StepStatusDone || s == StepStatusCancelled
}

// CanTransition reports whether a step may move from one status to another.
// Done and Cancelled are terminal; leaving them requires the explicit reopen
// operation, which does not go through this table.
func CanTransition(from, to StepStatus) bool {
	if !from.Valid() || !to.Valid() || from == to {
		return false
	}
	return !from.Terminal()
}

// FieldKind is the closed set of input kinds a template field may declare
type FieldKind string

const (
	FieldKindShortText FieldKind = "short_text"
	FieldKindDate      FieldKind = "date"
	FieldKindLongText  FieldKind = "long_text"
)

// Valid reports whether k is a known field kind.
func (k FieldKind) Valid() bool {
	switch k {
	case FieldKindShortText, FieldKindDate, FieldKindLongText:
		return true
	}
	return false
}

// EvidenceProvenance records how an evidence file came to exist
type EvidenceProvenance string

const (
	ProvenanceManualUpload EvidenceProvenance = "manual_upload"
	ProvenanceGenerated    EvidenceProvenance = "generated"
)

// Step represents one mandatory compliance requirement in the registry
type Step struct {
	ID            string     `json:"id" db:"id"`
	Number        int        `json:"number" db:"number"`
	Name          string     `json:"name" db:"name"`
	Citation      string     `json:"citation" db:"citation"`
	Status        StepStatus `json:"status" db:"status"`
	EvidenceCount int        `json:"evidence_count" db:"evidence_count"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// FieldSchema describes one typed, labeled, ordered input slot in a template
type FieldSchema struct {
	Label string    `json:"label" db:"label"`
	Kind  FieldKind `json:"kind" db:"kind"`
	Order int       `json:"order" db:"ord"`
}

// TemplateDefinition is the configurable schema used to generate a step's
// document: fixed header text plus an ordered list of dynamic fields.
type TemplateDefinition struct {
	StepID    string        `json:"step_id" db:"step_id"`
	Title     string        `json:"title" db:"title"`
	IntroText string        `json:"intro_text" db:"intro_text"`
	Fields    []FieldSchema `json:"fields"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}

// Validate checks the structural invariants of a template definition.
func (t *TemplateDefinition) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return &ValidationError{Detail: "template title must not be empty"}
	}
	if len(t.Fields) == 0 {
		return &ValidationError{Detail: "template must declare at least one field"}
	}
	seen := make(map[string]bool, len(t.Fields))
	for _, f := range t.Fields {
		label := strings.TrimSpace(f.Label)
		if label == "" {
			return &ValidationError{Detail: "field label must not be blank"}
		}
		if seen[label] {
			return &ValidationError{Detail: "duplicate field label: " + label}
		}
		seen[label] = true
		if !f.Kind.Valid() {
			return &ValidationError{Detail: "unknown field kind for " + label + ": " + string(f.Kind)}
		}
		if f.Order <= 0 {
			return &ValidationError{Detail: "field order must be positive for " + label}
		}
	}
	return nil
}

// OrderedFields returns the fields in presentation order: ascending Order,
// ties broken by label so the rendering plan is total.
func (t *TemplateDefinition) OrderedFields() []FieldSchema {
	fields := make([]FieldSchema, len(t.Fields))
	copy(fields, t.Fields)
	sort.SliceStable(fields, func(i, j int) bool {
		if fields[i].Order != fields[j].Order {
			return fields[i].Order < fields[j].Order
		}
		return fields[i].Label < fields[j].Label
	})
	return fields
}

// AnswerSet maps field labels to operator-supplied values
type AnswerSet map[string]string

// Evidence is the metadata record of one file associated with a step. The
// storage path is opaque; the bytes live behind the blob store.
type Evidence struct {
	ID         string             `json:"id" db:"id"`
	StepID     string             `json:"step_id" db:"step_id"`
	Filename   string             `json:"filename" db:"filename"`
	Path       string             `json:"path" db:"path"`
	UploadedBy string             `json:"uploaded_by" db:"uploaded_by"`
	Provenance EvidenceProvenance `json:"provenance" db:"provenance"`
	UploadedAt time.Time          `json:"uploaded_at" db:"uploaded_at"`
}

// StepTransition is one entry in a step's status history
type StepTransition struct {
	ID      string     `json:"id" db:"id"`
	StepID  string     `json:"step_id" db:"step_id"`
	From    StepStatus `json:"from" db:"from_status"`
	To      StepStatus `json:"to" db:"to_status"`
	Comment string     `json:"comment,omitempty" db:"comment"`
	Actor   string     `json:"actor,omitempty" db:"actor"`
	At      time.Time  `json:"at" db:"created_at"`
}

// GeneratedDocument is the reference returned to the caller after a
// successful generation.
type GeneratedDocument struct {
	EvidenceID string `json:"evidence_id"`
	Filename   string `json:"filename"`
	Path       string `json:"path"`
}

// ContentRow is one (label, value) pair of the structured document content.
// Multiline rows render as a block rather than a single key/value line.
type ContentRow struct {
	Label     string `json:"label"`
	Value     string `json:"value"`
	Multiline bool   `json:"multiline"`
}

// DocumentContent is the layout-free content handed to the renderer.
type DocumentContent struct {
	Title     string       `json:"title"`
	IntroText string       `json:"intro_text"`
	Rows      []ContentRow `json:"rows"`
}

// ComputeCompliance returns the share of steps in Done status as a rounded
// percentage. An empty registry yields 0.
func ComputeCompliance(steps []*Step) int {
	if len(steps) == 0 {
		return 0
	}
	done := 0
	for _, s := range steps {
		if s.Status == StepStatusDone {
			done++
		}
	}
	return int(math.Round(100 * float64(done) / float64(len(steps))))
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}
