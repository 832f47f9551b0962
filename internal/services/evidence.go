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

// EvidenceService is the metadata facade over a step's attached files. Byte
// storage is delegated to the blob store; the engine only keeps records.
type EvidenceService struct {
	repo  repository.Repository
	blobs BlobStore
}

// NewEvidenceService creates a new EvidenceService.
func NewEvidenceService(repo repository.Repository, blobs BlobStore) *EvidenceService {
	return &EvidenceService{repo: repo, blobs: blobs}
}

// Attach stores an uploaded file and records it as manual evidence for the
// step.
func (s *EvidenceService) Attach(ctx context.Context, stepID, filename string, data []byte, uploader string) (*models.Evidence, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, &models.ValidationError{Detail: "evidence filename must not be empty"}
	}
	if len(data) == 0 {
		return nil, &models.ValidationError{Detail: "evidence file must not be empty"}
	}
	if _, err := s.repo.GetStep(ctx, stepID); err != nil {
		return nil, err
	}

	path, err := s.blobs.Save(ctx, data, filename)
	if err != nil {
		return nil, fmt.Errorf("store evidence bytes: %w", err)
	}

	ev := &models.Evidence{
		ID:         uuid.New().String(),
		StepID:     stepID,
		Filename:   filename,
		Path:       path,
		UploadedBy: uploader,
		Provenance: models.ProvenanceManualUpload,
		UploadedAt: time.Now().UTC(),
	}
	if err := s.repo.AddEvidence(ctx, ev); err != nil {
		_ = s.blobs.Delete(context.WithoutCancel(ctx), path)
		return nil, fmt.Errorf("record evidence: %w", err)
	}
	return ev, nil
}

// Replace swaps the stored file of an existing evidence record. The record
// keeps its identity so references to it remain valid; only filename, path
// and timestamp change.
func (s *EvidenceService) Replace(ctx context.Context, evidenceID, filename string, data []byte) (*models.Evidence, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, &models.ValidationError{Detail: "evidence filename must not be empty"}
	}
	if len(data) == 0 {
		return nil, &models.ValidationError{Detail: "evidence file must not be empty"}
	}

	ev, err := s.repo.GetEvidence(ctx, evidenceID)
	if err != nil {
		return nil, err
	}
	oldPath := ev.Path

	newPath, err := s.blobs.Save(ctx, data, filename)
	if err != nil {
		return nil, fmt.Errorf("store replacement bytes: %w", err)
	}

	ev.Filename = filename
	ev.Path = newPath
	ev.UploadedAt = time.Now().UTC()
	if err := s.repo.ReplaceEvidence(ctx, ev); err != nil {
		_ = s.blobs.Delete(context.WithoutCancel(ctx), newPath)
		return nil, fmt.Errorf("update evidence record: %w", err)
	}

	// old bytes are unreferenced once the record points elsewhere
	_ = s.blobs.Delete(context.WithoutCancel(ctx), oldPath)
	return ev, nil
}

// List returns a step's evidence, newest first.
func (s *EvidenceService) List(ctx context.Context, stepID string) ([]*models.Evidence, error) {
	if _, err := s.repo.GetStep(ctx, stepID); err != nil {
		return nil, err
	}
	return s.repo.ListEvidence(ctx, stepID)
}

// Open returns an evidence record together with its stored bytes.
func (s *EvidenceService) Open(ctx context.Context, evidenceID string) (*models.Evidence, []byte, error) {
	ev, err := s.repo.GetEvidence(ctx, evidenceID)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.blobs.Open(ctx, ev.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open evidence bytes: %w", err)
	}
	return ev, data, nil
}

// Remove deletes an evidence record and its stored bytes.
func (s *EvidenceService) Remove(ctx context.Context, evidenceID string) error {
	ev, err := s.repo.GetEvidence(ctx, evidenceID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteEvidence(ctx, evidenceID); err != nil {
		return err
	}
	_ = s.blobs.Delete(context.WithoutCancel(ctx), ev.Path)
	return nil
}
