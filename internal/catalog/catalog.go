// Package catalog implements QuestionPipeline's Catalog dependency:
// a Postgres-backed question bank keyed by category, read on the hot
// path only by QuestionPipeline and written back with generated
// questions on a best-effort basis.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/emmanuelzz0/queezy/internal/models"
	"github.com/emmanuelzz0/queezy/pkg/database"
)

// Catalog is the interface QuestionPipeline consumes. Postgres is the
// only production implementation.
type Catalog interface {
	// FetchLeastUsed returns up to limit questions in category, excluding
	// excludeIDs, ordered by ascending times_asked (least-used first).
	FetchLeastUsed(ctx context.Context, category string, excludeIDs []string, limit int) ([]models.Question, error)
	// IncrementTimesAsked bumps the usage counter for the given ids.
	IncrementTimesAsked(ctx context.Context, ids []string) error
	// Persist inserts newly generated questions, swallowing duplicates.
	Persist(ctx context.Context, category, difficulty string, questions []models.Question) error
}

type Postgres struct {
	client *database.PostgresClient
}

func NewPostgres(client *database.PostgresClient) *Postgres {
	return &Postgres{client: client}
}

func (p *Postgres) FetchLeastUsed(ctx context.Context, category string, excludeIDs []string, limit int) ([]models.Question, error) {
	db := p.client.GetDB()

	query := `
		SELECT id, text, options, correct_answer, time_limit, COALESCE(image_url, '')
		FROM catalog_questions
		WHERE category = $1 AND NOT (id = ANY($2))
		ORDER BY times_asked ASC
		LIMIT $3`

	rows, err := db.QueryContext(ctx, query, category, pq.Array(excludeIDs), limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: fetch least used: %w", err)
	}
	defer rows.Close()

	var out []models.Question
	for rows.Next() {
		var q models.Question
		var optionsJSON []byte
		if err := rows.Scan(&q.ID, &q.Text, &optionsJSON, &q.CorrectAnswer, &q.TimeLimit, &q.ImageURL); err != nil {
			return nil, fmt.Errorf("catalog: scan question: %w", err)
		}
		if err := json.Unmarshal(optionsJSON, &q.Options); err != nil {
			return nil, fmt.Errorf("catalog: decode options: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (p *Postgres) IncrementTimesAsked(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := p.client.GetDB().ExecContext(ctx,
		`UPDATE catalog_questions SET times_asked = times_asked + 1 WHERE id = ANY($1)`,
		pq.Array(ids))
	return err
}

// Persist inserts each question with ON CONFLICT DO NOTHING so
// duplicate ids from a re-generation are silently dropped.
func (p *Postgres) Persist(ctx context.Context, category, difficulty string, questions []models.Question) error {
	if len(questions) == 0 {
		return nil
	}

	tx, err := p.client.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: begin persist tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO catalog_questions (id, category, difficulty, text, options, correct_answer, time_limit, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("catalog: prepare persist: %w", err)
	}
	defer stmt.Close()

	for _, q := range questions {
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		optionsJSON, err := json.Marshal(q.Options)
		if err != nil {
			continue
		}
		if _, err := stmt.ExecContext(ctx, q.ID, category, difficulty, q.Text, optionsJSON, q.CorrectAnswer, q.TimeLimit, nullableString(q.ImageURL)); err != nil {
			continue
		}
	}

	return tx.Commit()
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
