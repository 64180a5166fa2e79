// Package questionpipeline implements the question sourcing algorithm:
// prefer least-used Catalog entries, top up from a QuestionProvider (AI
// generation) when the catalog is short, and persist whatever the
// provider returns back into the Catalog on a best-effort basis.
package questionpipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand/v2"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/emmanuelzz0/queezy/internal/apperr"
	"github.com/emmanuelzz0/queezy/internal/catalog"
	"github.com/emmanuelzz0/queezy/internal/constants"
	"github.com/emmanuelzz0/queezy/internal/models"
)

const defaultProviderTimeout = 30 * time.Second

// Provider is the QuestionProvider dependency: an AI-backed generator
// invoked with a natural-language request and returning raw response
// text containing a JSON array of question objects somewhere in it.
type Provider interface {
	Generate(ctx context.Context, category, difficulty string, count int) (string, error)
}

type Pipeline struct {
	catalog  catalog.Catalog
	provider Provider
	timeout  time.Duration
}

// New builds a Pipeline. A zero timeout falls back to
// defaultProviderTimeout so callers that don't care about the knob (e.g.
// tests) can pass 0.
func New(cat catalog.Catalog, provider Provider, timeout time.Duration) *Pipeline {
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	return &Pipeline{catalog: cat, provider: provider, timeout: timeout}
}

// Generate produces up to n Questions for category/difficulty.
func (p *Pipeline) Generate(ctx context.Context, category, difficulty string, n int, excludeIDs []string) ([]models.Question, error) {
	cached, err := p.catalog.FetchLeastUsed(ctx, category, excludeIDs, 2*n)
	if err != nil {
		log.Printf("questionpipeline: catalog fetch failed: %v", err)
		cached = nil
	}

	if len(cached) >= n {
		rand.Shuffle(len(cached), func(i, j int) { cached[i], cached[j] = cached[j], cached[i] })
		chosen := cached[:n]
		ids := make([]string, len(chosen))
		for i, q := range chosen {
			ids[i] = q.ID
		}
		if err := p.catalog.IncrementTimesAsked(ctx, ids); err != nil {
			log.Printf("questionpipeline: increment times_asked failed: %v", err)
		}
		return chosen, nil
	}

	needed := n - len(cached)
	generated, err := p.generateFromProvider(ctx, category, difficulty, needed)
	if err != nil || len(generated) == 0 {
		if err != nil {
			log.Printf("questionpipeline: provider generation failed: %v", err)
		}
		if len(cached) == 0 {
			return nil, apperr.ErrQuizGenerationFailed
		}
		return cached, nil
	}

	if err := p.catalog.Persist(ctx, category, difficulty, generated); err != nil {
		log.Printf("questionpipeline: catalog persist failed: %v", err)
	}

	if len(generated) > needed {
		generated = generated[:needed]
	}
	result := append(cached, generated...)
	if len(result) == 0 {
		return nil, apperr.ErrQuizGenerationFailed
	}
	return result, nil
}

func (p *Pipeline) generateFromProvider(ctx context.Context, category, difficulty string, count int) ([]models.Question, error) {
	if p.provider == nil || count <= 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	text, err := p.provider.Generate(ctx, category, difficulty, count)
	if err != nil {
		return nil, err
	}
	return ParseProviderResponse(text)
}

var jsonArrayPattern = regexp.MustCompile(`(?s)\[.*\]`)

type rawQuestion struct {
	Text          string            `json:"text"`
	Options       map[string]string `json:"options"`
	CorrectAnswer string            `json:"correctAnswer"`
	TimeLimit     int               `json:"timeLimit"`
}

// ParseProviderResponse extracts the first bracketed JSON array from
// text and validates every element; a single invalid element rejects
// the whole batch.
func ParseProviderResponse(text string) ([]models.Question, error) {
	match := jsonArrayPattern.FindString(text)
	if match == "" {
		return nil, fmt.Errorf("questionpipeline: no JSON array found in provider response")
	}

	var raw []rawQuestion
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return nil, fmt.Errorf("questionpipeline: invalid JSON array in provider response: %w", err)
	}

	out := make([]models.Question, 0, len(raw))
	for _, r := range raw {
		if err := validateRaw(r); err != nil {
			return nil, err
		}
		out = append(out, models.Question{
			ID:            uuid.NewString(),
			Text:          r.Text,
			Options:       r.Options,
			CorrectAnswer: r.CorrectAnswer,
			TimeLimit:     r.TimeLimit,
		})
	}
	return out, nil
}

func validateRaw(r rawQuestion) error {
	if r.Text == "" {
		return fmt.Errorf("questionpipeline: question missing text")
	}
	for _, choice := range constants.AnswerChoices {
		if r.Options[choice] == "" {
			return fmt.Errorf("questionpipeline: question missing option %s", choice)
		}
	}
	valid := false
	for _, choice := range constants.AnswerChoices {
		if r.CorrectAnswer == choice {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("questionpipeline: invalid correctAnswer %q", r.CorrectAnswer)
	}
	return nil
}
