package services

import (
	"context"
	"fmt"

	"github.com/stretchr/testify/mock"

	"pesv-compliance/backend/pkg/models"
)

// MockRepository satisfies repository.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockRepository) CreateStep(ctx context.Context, step *models.Step) error {
	return m.Called(ctx, step).Error(0)
}

func (m *MockRepository) GetStep(ctx context.Context, id string) (*models.Step, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Step), args.Error(1)
}

func (m *MockRepository) ListSteps(ctx context.Context) ([]*models.Step, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Step), args.Error(1)
}

func (m *MockRepository) UpdateStep(ctx context.Context, step *models.Step) error {
	return m.Called(ctx, step).Error(0)
}

func (m *MockRepository) DeleteStep(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRepository) TransitionStep(ctx context.Context, id string, to models.StepStatus, comment, actor string) (*models.Step, error) {
	args := m.Called(ctx, id, to, comment, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Step), args.Error(1)
}

func (m *MockRepository) ReopenStep(ctx context.Context, id string, comment, actor string) (*models.Step, error) {
	args := m.Called(ctx, id, comment, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Step), args.Error(1)
}

func (m *MockRepository) ListTransitions(ctx context.Context, stepID string) ([]*models.StepTransition, error) {
	args := m.Called(ctx, stepID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.StepTransition), args.Error(1)
}

func (m *MockRepository) ReplaceTemplate(ctx context.Context, tpl *models.TemplateDefinition) error {
	return m.Called(ctx, tpl).Error(0)
}

func (m *MockRepository) GetTemplate(ctx context.Context, stepID string) (*models.TemplateDefinition, error) {
	args := m.Called(ctx, stepID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TemplateDefinition), args.Error(1)
}

func (m *MockRepository) AddEvidence(ctx context.Context, ev *models.Evidence) error {
	return m.Called(ctx, ev).Error(0)
}

func (m *MockRepository) GetEvidence(ctx context.Context, id string) (*models.Evidence, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Evidence), args.Error(1)
}

func (m *MockRepository) ListEvidence(ctx context.Context, stepID string) ([]*models.Evidence, error) {
	args := m.Called(ctx, stepID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Evidence), args.Error(1)
}

func (m *MockRepository) ReplaceEvidence(ctx context.Context, ev *models.Evidence) error {
	return m.Called(ctx, ev).Error(0)
}

func (m *MockRepository) DeleteEvidence(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRepository) CountEvidence(ctx context.Context, stepID string) (int, error) {
	args := m.Called(ctx, stepID)
	return args.Int(0), args.Error(1)
}

// FakeRenderer delegates to a function so tests can inspect the content the
// generator hands over.
type FakeRenderer struct {
	RenderFunc func(ctx context.Context, content models.DocumentContent) ([]byte, error)
	Calls      []models.DocumentContent
}

func (r *FakeRenderer) Render(ctx context.Context, content models.DocumentContent) ([]byte, error) {
	r.Calls = append(r.Calls, content)
	if r.RenderFunc != nil {
		return r.RenderFunc(ctx, content)
	}
	return []byte("%PDF-fake"), nil
}

// FakeBlobStore keeps bytes in memory.
type FakeBlobStore struct {
	Objects map[string][]byte
	SaveErr error
	Deleted []string
}

func NewFakeBlobStore() *FakeBlobStore {
	return &FakeBlobStore{Objects: make(map[string][]byte)}
}

func (b *FakeBlobStore) Save(ctx context.Context, data []byte, suggestedName string) (string, error) {
	if b.SaveErr != nil {
		return "", b.SaveErr
	}
	path := "blobs/" + suggestedName
	b.Objects[path] = data
	return path, nil
}

func (b *FakeBlobStore) Open(ctx context.Context, path string) ([]byte, error) {
	data, ok := b.Objects[path]
	if !ok {
		return nil, fmt.Errorf("no object at %s", path)
	}
	return data, nil
}

func (b *FakeBlobStore) Delete(ctx context.Context, path string) error {
	delete(b.Objects, path)
	b.Deleted = append(b.Deleted, path)
	return nil
}
