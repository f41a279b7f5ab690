package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-challenge/internal/domain"
)

// QuestionLoader loads the question bank from Postgres, options stored as JSONB.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context) ([]domain.BankQuestion, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, question_text, options, correct_answer FROM questions ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.BankQuestion
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, domain.ErrNoQuestions
	}
	return questions, nil
}

// SaveQuestions upserts the bank in order, used for seeding.
func (l *QuestionLoader) SaveQuestions(ctx context.Context, questions []domain.BankQuestion) error {
	batch := &pgx.Batch{}
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return err
		}
		options, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("marshal options: %w", err)
		}
		batch.Queue(`INSERT INTO questions (id, position, question_text, options, correct_answer)
VALUES ($1, $2, $3, $4::jsonb, $5)
ON CONFLICT (id) DO UPDATE SET position=EXCLUDED.position, question_text=EXCLUDED.question_text,
options=EXCLUDED.options, correct_answer=EXCLUDED.correct_answer`,
			q.ID, i, q.Text, string(options), q.CorrectAnswer)
	}
	results := l.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range questions {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("save question: %w", err)
		}
	}
	return nil
}

func scanQuestion(row pgx.Row) (domain.BankQuestion, error) {
	var (
		q   domain.BankQuestion
		raw []byte
	)
	if err := row.Scan(&q.ID, &q.Text, &raw, &q.CorrectAnswer); err != nil {
		return domain.BankQuestion{}, fmt.Errorf("scan question: %w", err)
	}
	if err := json.Unmarshal(raw, &q.Options); err != nil {
		return domain.BankQuestion{}, fmt.Errorf("unmarshal options for %s: %w", q.ID, err)
	}
	return q, nil
}
