package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pesv-compliance/backend/pkg/models"
)

const fatigueStepID = "step-25"

func fatigueStep() *models.Step {
	return &models.Step{ID: fatigueStepID, Number: 25, Name: "Fatigue plan", Status: models.StepStatusInProgress}
}

func fatigueTemplate() *models.TemplateDefinition {
	return &models.TemplateDefinition{
		StepID:    fatigueStepID,
		Title:     "FATIGUE MANAGEMENT ACT",
		IntroText: "In accordance with the fatigue management program...",
		Fields: []models.FieldSchema{
			{Label: "Responsible", Kind: models.FieldKindShortText, Order: 1},
			{Label: "Review Date", Kind: models.FieldKindDate, Order: 2},
		},
	}
}

func TestGenerate_Success(t *testing.T) {
	repo := new(MockRepository)
	renderer := &FakeRenderer{}
	blobs := NewFakeBlobStore()
	gen := NewGeneratorService(repo, renderer, blobs, time.Second)

	repo.On("GetStep", mock.Anything, fatigueStepID).Return(fatigueStep(), nil)
	repo.On("GetTemplate", mock.Anything, fatigueStepID).Return(fatigueTemplate(), nil)
	repo.On("AddEvidence", mock.Anything, mock.AnythingOfType("*models.Evidence")).Return(nil)

	doc, err := gen.Generate(context.Background(), fatigueStepID, models.AnswerSet{
		"Responsible": "J. Perez",
		"Review Date": "2025-03-01",
	}, "admin@acme.co")
	require.NoError(t, err)
	assert.NotEmpty(t, doc.EvidenceID)
	assert.NotEmpty(t, doc.Path)
	assert.Contains(t, blobs.Objects, doc.Path)

	// exactly one render call, fields in declared order
	require.Len(t, renderer.Calls, 1)
	content := renderer.Calls[0]
	assert.Equal(t, "FATIGUE MANAGEMENT ACT", content.Title)
	require.Len(t, content.Rows, 2)
	assert.Equal(t, "Responsible", content.Rows[0].Label)
	assert.Equal(t, "J. Perez", content.Rows[0].Value)
	assert.Equal(t, "Review Date", content.Rows[1].Label)

	// exactly one evidence record with generated provenance
	repo.AssertNumberOfCalls(t, "AddEvidence", 1)
	ev := repo.Calls[len(repo.Calls)-1].Arguments.Get(1).(*models.Evidence)
	assert.Equal(t, models.ProvenanceGenerated, ev.Provenance)
	assert.Equal(t, "admin@acme.co", ev.UploadedBy)
}

func TestGenerate_OrderedPlan(t *testing.T) {
	repo := new(MockRepository)
	renderer := &FakeRenderer{}
	gen := NewGeneratorService(repo, renderer, NewFakeBlobStore(), time.Second)

	tpl := &models.TemplateDefinition{
		StepID: fatigueStepID,
		Title:  "DOC",
		Fields: []models.FieldSchema{
			{Label: "Notes", Kind: models.FieldKindLongText, Order: 3},
			{Label: "Beta", Kind: models.FieldKindShortText, Order: 1},
			{Label: "Alpha", Kind: models.FieldKindShortText, Order: 1},
		},
	}
	repo.On("GetStep", mock.Anything, fatigueStepID).Return(fatigueStep(), nil)
	repo.On("GetTemplate", mock.Anything, fatigueStepID).Return(tpl, nil)
	repo.On("AddEvidence", mock.Anything, mock.Anything).Return(nil)

	_, err := gen.Generate(context.Background(), fatigueStepID, models.AnswerSet{
		"Alpha": "a", "Beta": "b", "Notes": "line one\nline two",
	}, "op")
	require.NoError(t, err)

	rows := renderer.Calls[0].Rows
	require.Len(t, rows, 3)
	// order ascending, tie broken by label
	assert.Equal(t, []string{"Alpha", "Beta", "Notes"}, []string{rows[0].Label, rows[1].Label, rows[2].Label})
	assert.False(t, rows[0].Multiline)
	assert.True(t, rows[2].Multiline, "long text renders as a multi-line block")
}

func TestGenerate_MissingField(t *testing.T) {
	repo := new(MockRepository)
	renderer := &FakeRenderer{}
	gen := NewGeneratorService(repo, renderer, NewFakeBlobStore(), time.Second)

	repo.On("GetStep", mock.Anything, fatigueStepID).Return(fatigueStep(), nil)
	repo.On("GetTemplate", mock.Anything, fatigueStepID).Return(fatigueTemplate(), nil)

	_, err := gen.Generate(context.Background(), fatigueStepID, models.AnswerSet{
		"Responsible": "J. Perez",
	}, "op")

	var missing *models.MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "Review Date", missing.Label)
	assert.Empty(t, renderer.Calls, "nothing is rendered on a defective answer set")
	repo.AssertNotCalled(t, "AddEvidence", mock.Anything, mock.Anything)
}

func TestGenerate_BlankValueCountsAsMissing(t *testing.T) {
	repo := new(MockRepository)
	gen := NewGeneratorService(repo, &FakeRenderer{}, NewFakeBlobStore(), time.Second)

	repo.On("GetStep", mock.Anything, fatigueStepID).Return(fatigueStep(), nil)
	repo.On("GetTemplate", mock.Anything, fatigueStepID).Return(fatigueTemplate(), nil)

	_, err := gen.Generate(context.Background(), fatigueStepID, models.AnswerSet{
		"Responsible": "   ",
		"Review Date": "2025-03-01",
	}, "op")

	var missing *models.MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "Responsible", missing.Label)
}

func TestGenerate_InvalidDate(t *testing.T) {
	repo := new(MockRepository)
	gen := NewGeneratorService(repo, &FakeRenderer{}, NewFakeBlobStore(), time.Second)

	repo.On("GetStep", mock.Anything, fatigueStepID).Return(fatigueStep(), nil)
	repo.On("GetTemplate", mock.Anything, fatigueStepID).Return(fatigueTemplate(), nil)

	_, err := gen.Generate(context.Background(), fatigueStepID, models.AnswerSet{
		"Responsible": "J. Perez",
		"Review Date": "03/01/2025",
	}, "op")

	var badType *models.InvalidFieldTypeError
	require.ErrorAs(t, err, &badType)
	assert.Equal(t, "Review Date", badType.Label)
	repo.AssertNotCalled(t, "AddEvidence", mock.Anything, mock.Anything)
}

func TestGenerate_UndeclaredAnswerRejected(t *testing.T) {
	repo := new(MockRepository)
	gen := NewGeneratorService(repo, &FakeRenderer{}, NewFakeBlobStore(), time.Second)

	repo.On("GetStep", mock.Anything, fatigueStepID).Return(fatigueStep(), nil)
	repo.On("GetTemplate", mock.Anything, fatigueStepID).Return(fatigueTemplate(), nil)

	_, err := gen.Generate(context.Background(), fatigueStepID, models.AnswerSet{
		"Responsible": "J. Perez",
		"Review Date": "2025-03-01",
		"Extra":       "surplus",
	}, "op")

	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestGenerate_NoTemplateConfigured(t *testing.T) {
	repo := new(MockRepository)
	gen := NewGeneratorService(repo, &FakeRenderer{}, NewFakeBlobStore(), time.Second)

	repo.On("GetStep", mock.Anything, fatigueStepID).Return(fatigueStep(), nil)
	repo.On("GetTemplate", mock.Anything, fatigueStepID).Return(nil, nil)

	_, err := gen.Generate(context.Background(), fatigueStepID, models.AnswerSet{}, "op")
	assert.ErrorIs(t, err, models.ErrNoTemplateConfigured)
}

func TestGenerate_RenderFailureLeavesNoEvidence(t *testing.T) {
	repo := new(MockRepository)
	renderer := &FakeRenderer{
		RenderFunc: func(ctx context.Context, content models.DocumentContent) ([]byte, error) {
			return nil, errors.New("font missing")
		},
	}
	blobs := NewFakeBlobStore()
	gen := NewGeneratorService(repo, renderer, blobs, time.Second)

	repo.On("GetStep", mock.Anything, fatigueStepID).Return(fatigueStep(), nil)
	repo.On("GetTemplate", mock.Anything, fatigueStepID).Return(fatigueTemplate(), nil)

	_, err := gen.Generate(context.Background(), fatigueStepID, models.AnswerSet{
		"Responsible": "J. Perez",
		"Review Date": "2025-03-01",
	}, "op")

	var rerr *models.RenderError
	require.ErrorAs(t, err, &rerr)
	assert.Empty(t, blobs.Objects)
	repo.AssertNotCalled(t, "AddEvidence", mock.Anything, mock.Anything)
}

func TestGenerate_MetadataFailureRollsBackBlob(t *testing.T) {
	repo := new(MockRepository)
	blobs := NewFakeBlobStore()
	gen := NewGeneratorService(repo, &FakeRenderer{}, blobs, time.Second)

	repo.On("GetStep", mock.Anything, fatigueStepID).Return(fatigueStep(), nil)
	repo.On("GetTemplate", mock.Anything, fatigueStepID).Return(fatigueTemplate(), nil)
	repo.On("AddEvidence", mock.Anything, mock.Anything).Return(errors.New("db down"))

	_, err := gen.Generate(context.Background(), fatigueStepID, models.AnswerSet{
		"Responsible": "J. Perez",
		"Review Date": "2025-03-01",
	}, "op")

	require.Error(t, err)
	assert.Empty(t, blobs.Objects, "no evidence record may point at unwritten bytes and vice versa")
	assert.Len(t, blobs.Deleted, 1)
}

func TestGenerate_BlobSaveFailureLeavesNoEvidence(t *testing.T) {
	repo := new(MockRepository)
	blobs := NewFakeBlobStore()
	blobs.SaveErr = errors.New("disk full")
	gen := NewGeneratorService(repo, &FakeRenderer{}, blobs, time.Second)

	repo.On("GetStep", mock.Anything, fatigueStepID).Return(fatigueStep(), nil)
	repo.On("GetTemplate", mock.Anything, fatigueStepID).Return(fatigueTemplate(), nil)

	_, err := gen.Generate(context.Background(), fatigueStepID, models.AnswerSet{
		"Responsible": "J. Perez",
		"Review Date": "2025-03-01",
	}, "op")

	require.Error(t, err)
	repo.AssertNotCalled(t, "AddEvidence", mock.Anything, mock.Anything)
	assert.Empty(t, blobs.Objects)
}

func TestGenerate_RenderTimeoutLeavesNoEvidence(t *testing.T) {
	repo := new(MockRepository)
	blobs := NewFakeBlobStore()
	renderer := &FakeRenderer{
		RenderFunc: func(ctx context.Context, content models.DocumentContent) ([]byte, error) {
			// simulate a renderer that never finishes on its own
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	gen := NewGeneratorService(repo, renderer, blobs, 20*time.Millisecond)

	repo.On("GetStep", mock.Anything, fatigueStepID).Return(fatigueStep(), nil)
	repo.On("GetTemplate", mock.Anything, fatigueStepID).Return(fatigueTemplate(), nil)

	_, err := gen.Generate(context.Background(), fatigueStepID, models.AnswerSet{
		"Responsible": "J. Perez",
		"Review Date": "2025-03-01",
	}, "op")

	var rerr *models.RenderError
	require.ErrorAs(t, err, &rerr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	repo.AssertNotCalled(t, "AddEvidence", mock.Anything, mock.Anything)
	assert.Empty(t, blobs.Objects)
}

func TestGenerate_SnapshotSurvivesRedefinition(t *testing.T) {
	repo := new(MockRepository)
	blobs := NewFakeBlobStore()

	// a template replace lands while the render is in flight; the call must
	// complete against the schema it started with
	redefined := &models.TemplateDefinition{
		StepID: fatigueStepID,
		Title:  "REWRITTEN",
		Fields: []models.FieldSchema{{Label: "Other", Kind: models.FieldKindShortText, Order: 1}},
	}
	renderer := &FakeRenderer{
		RenderFunc: func(ctx context.Context, content models.DocumentContent) ([]byte, error) {
			repo.ExpectedCalls = nil
			repo.On("GetTemplate", mock.Anything, fatigueStepID).Return(redefined, nil)
			repo.On("AddEvidence", mock.Anything, mock.Anything).Return(nil)
			return []byte("%PDF-fake"), nil
		},
	}
	gen := NewGeneratorService(repo, renderer, blobs, time.Second)

	repo.On("GetStep", mock.Anything, fatigueStepID).Return(fatigueStep(), nil)
	repo.On("GetTemplate", mock.Anything, fatigueStepID).Return(fatigueTemplate(), nil)
	repo.On("AddEvidence", mock.Anything, mock.Anything).Return(nil)

	doc, err := gen.Generate(context.Background(), fatigueStepID, models.AnswerSet{
		"Responsible": "J. Perez",
		"Review Date": "2025-03-01",
	}, "op")
	require.NoError(t, err)
	assert.NotEmpty(t, doc.Filename)

	require.Len(t, renderer.Calls, 1)
	assert.Equal(t, "FATIGUE MANAGEMENT ACT", renderer.Calls[0].Title)
}

func TestGeneratedFilename_Unique(t *testing.T) {
	a := generatedFilename("FATIGUE MANAGEMENT ACT")
	b := generatedFilename("FATIGUE MANAGEMENT ACT")
	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "fatigue-management-act-")
	assert.Contains(t, a, ".pdf")
}
