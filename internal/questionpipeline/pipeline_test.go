package questionpipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emmanuelzz0/queezy/internal/apperr"
	"github.com/emmanuelzz0/queezy/internal/models"
)

func TestParseProviderResponse_ExtractsValidArray(t *testing.T) {
	text := `Sure, here are your questions:
[
  {"text": "Capital of France?", "options": {"A":"Paris","B":"Rome","C":"Berlin","D":"Madrid"}, "correctAnswer": "A", "timeLimit": 20}
]
Hope that helps!`

	qs, err := ParseProviderResponse(text)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "Capital of France?", qs[0].Text)
	assert.Equal(t, "A", qs[0].CorrectAnswer)
	assert.NotEmpty(t, qs[0].ID)
}

func TestParseProviderResponse_NoArrayFound(t *testing.T) {
	_, err := ParseProviderResponse("no json here at all")
	assert.Error(t, err)
}

func TestParseProviderResponse_MalformedJSON(t *testing.T) {
	_, err := ParseProviderResponse(`[{"text": "broken"`)
	assert.Error(t, err)
}

func TestParseProviderResponse_RejectsWholeBatchOnOneInvalidElement(t *testing.T) {
	text := `[
	  {"text": "Q1", "options": {"A":"a","B":"b","C":"c","D":"d"}, "correctAnswer": "A", "timeLimit": 20},
	  {"text": "", "options": {"A":"a","B":"b","C":"c","D":"d"}, "correctAnswer": "A", "timeLimit": 20}
	]`
	_, err := ParseProviderResponse(text)
	assert.Error(t, err)
}

func TestParseProviderResponse_RejectsMissingOption(t *testing.T) {
	text := `[{"text": "Q1", "options": {"A":"a","B":"b","C":"c"}, "correctAnswer": "A", "timeLimit": 20}]`
	_, err := ParseProviderResponse(text)
	assert.Error(t, err)
}

func TestParseProviderResponse_RejectsInvalidCorrectAnswer(t *testing.T) {
	text := `[{"text": "Q1", "options": {"A":"a","B":"b","C":"c","D":"d"}, "correctAnswer": "E", "timeLimit": 20}]`
	_, err := ParseProviderResponse(text)
	assert.Error(t, err)
}

type fakeCatalog struct {
	leastUsed        []models.Question
	fetchErr         error
	incrementedIDs   []string
	persistedCount   int
	persistCategory  string
}

func (f *fakeCatalog) FetchLeastUsed(ctx context.Context, category string, excludeIDs []string, limit int) ([]models.Question, error) {
	return f.leastUsed, f.fetchErr
}

func (f *fakeCatalog) IncrementTimesAsked(ctx context.Context, ids []string) error {
	f.incrementedIDs = ids
	return nil
}

func (f *fakeCatalog) Persist(ctx context.Context, category, difficulty string, qs []models.Question) error {
	f.persistCategory = category
	f.persistedCount = len(qs)
	return nil
}

type fakeProvider struct {
	response string
	err      error
}

func (f *fakeProvider) Generate(ctx context.Context, category, difficulty string, count int) (string, error) {
	return f.response, f.err
}

func TestGenerate_SatisfiedEntirelyFromCatalog(t *testing.T) {
	cat := &fakeCatalog{leastUsed: []models.Question{
		{ID: "q1", CorrectAnswer: "A"},
		{ID: "q2", CorrectAnswer: "B"},
	}}
	p := New(cat, nil, 0)

	qs, err := p.Generate(context.Background(), "science", "easy", 2, nil)
	require.NoError(t, err)
	assert.Len(t, qs, 2)
	assert.Len(t, cat.incrementedIDs, 2)
}

func TestGenerate_TopsUpFromProviderWhenCatalogShort(t *testing.T) {
	cat := &fakeCatalog{leastUsed: []models.Question{{ID: "q1", CorrectAnswer: "A"}}}
	provider := &fakeProvider{response: `[{"text":"Q2","options":{"A":"a","B":"b","C":"c","D":"d"},"correctAnswer":"B","timeLimit":20}]`}
	p := New(cat, provider, 0)

	qs, err := p.Generate(context.Background(), "science", "easy", 2, nil)
	require.NoError(t, err)
	assert.Len(t, qs, 2)
	assert.Equal(t, "science", cat.persistCategory)
	assert.Equal(t, 1, cat.persistedCount)
}

func TestGenerate_FallsBackToPartialCatalogWhenProviderFails(t *testing.T) {
	cat := &fakeCatalog{leastUsed: []models.Question{{ID: "q1", CorrectAnswer: "A"}}}
	provider := &fakeProvider{err: assert.AnError}
	p := New(cat, provider, 0)

	qs, err := p.Generate(context.Background(), "science", "easy", 2, nil)
	require.NoError(t, err)
	assert.Len(t, qs, 1)
}

func TestGenerate_FailsWhenNothingAvailable(t *testing.T) {
	cat := &fakeCatalog{}
	p := New(cat, nil, 0)

	_, err := p.Generate(context.Background(), "science", "easy", 2, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrQuizGenerationFailed)
}
