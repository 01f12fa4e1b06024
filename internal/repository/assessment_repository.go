package repository

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-assessment/internal/model"
)

var questionColumns = []string{
	"assessment_id", "position", "question_id", "question_type", "question_text", "options",
	"correct_answer", "marks", "difficulty", "topic", "rubric", "expected_length", "source_content",
}

// AssessmentRepository handles assessment and assessment question data access.
type AssessmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(pool *pgxpool.Pool) *AssessmentRepository {
	return &AssessmentRepository{pool: pool}
}

// Create inserts the assessment and all of its questions in one transaction.
// The caller assigns the ID.
func (r *AssessmentRepository) Create(ctx context.Context, a *model.Assessment) error {
	if a.TopicsCovered == nil {
		a.TopicsCovered = []string{}
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO assessments (id, title, subject, assessment_type, duration, difficulty,
			 passing_percentage, number_of_questions, marks_per_question, total_marks, topics_covered,
			 document_filter, use_ai, generated_at, generation_method, source_count, status, created_by,
			 assessment_file)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
			 RETURNING created_at, updated_at`,
			a.ID, a.Title, a.Subject, a.AssessmentType, a.Duration, a.Difficulty,
			a.PassingPercentage, a.NumberOfQuestions, a.MarksPerQuestion, a.TotalMarks, a.TopicsCovered,
			a.DocumentFilter, a.UseAI, a.GeneratedAt, a.GenerationMethod, a.SourceCount, a.Status, a.CreatedBy,
			a.AssessmentFile,
		).Scan(&a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return err
		}
		return copyQuestions(ctx, tx, a.ID, a.Questions)
	})
}

func copyQuestions(ctx context.Context, tx pgx.Tx, assessmentID uuid.UUID, questions []model.Question) error {
	if len(questions) == 0 {
		return nil
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"assessment_questions"},
		questionColumns,
		pgx.CopyFromSlice(len(questions), func(i int) ([]interface{}, error) {
			q := questions[i]
			return []interface{}{
				assessmentID, i, q.ID, string(q.Type), q.Text, q.Options,
				q.CorrectAnswer, q.MarksOrDefault(), string(q.Difficulty), q.Topic, q.Rubric,
				q.ExpectedLength, q.SourceContent,
			}, nil
		}),
	)
	return err
}

// GetByID retrieves an assessment with its questions in their stored order.
func (r *AssessmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error) {
	a := &model.Assessment{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, subject, assessment_type, duration, difficulty, passing_percentage,
		 number_of_questions, marks_per_question, total_marks, topics_covered, document_filter, use_ai,
		 generated_at, generation_method, source_count, status, created_by, assessment_file,
		 created_at, updated_at
		 FROM assessments WHERE id = $1`, id,
	).Scan(&a.ID, &a.Title, &a.Subject, &a.AssessmentType, &a.Duration, &a.Difficulty, &a.PassingPercentage,
		&a.NumberOfQuestions, &a.MarksPerQuestion, &a.TotalMarks, &a.TopicsCovered, &a.DocumentFilter, &a.UseAI,
		&a.GeneratedAt, &a.GenerationMethod, &a.SourceCount, &a.Status, &a.CreatedBy, &a.AssessmentFile,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT question_id, question_type, question_text, options, correct_answer, marks, difficulty,
		 topic, rubric, expected_length, source_content
		 FROM assessment_questions WHERE assessment_id = $1 ORDER BY position`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	a.Questions = []model.Question{}
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.Type, &q.Text, &q.Options, &q.CorrectAnswer, &q.Marks, &q.Difficulty,
			&q.Topic, &q.Rubric, &q.ExpectedLength, &q.SourceContent); err != nil {
			return nil, err
		}
		a.Questions = append(a.Questions, q)
	}
	return a, rows.Err()
}

// ListPaginated retrieves assessment summaries, newest first.
func (r *AssessmentRepository) ListPaginated(ctx context.Context, filter model.AssessmentFilter, limit, offset int) ([]model.AssessmentSummary, int, error) {
	var conds []string
	var args []interface{}
	if filter.Subject != "" {
		args = append(args, filter.Subject)
		conds = append(conds, `subject = $`+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, `status = $`+strconv.Itoa(len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = ` WHERE ` + strings.Join(conds, ` AND `)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM assessments`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	argIdx := len(args) + 1
	query := `SELECT id, title, subject, assessment_type, difficulty, number_of_questions, total_marks,
		 generation_method, status, created_by, generated_at
		 FROM assessments` + where +
		` ORDER BY generated_at DESC LIMIT $` + strconv.Itoa(argIdx) + ` OFFSET $` + strconv.Itoa(argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []model.AssessmentSummary
	for rows.Next() {
		var s model.AssessmentSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.Subject, &s.AssessmentType, &s.Difficulty, &s.NumberOfQuestions,
			&s.TotalMarks, &s.GenerationMethod, &s.Status, &s.CreatedBy, &s.GeneratedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

// Update rewrites the assessment row. When replaceQuestions is set the stored
// questions are replaced by a.Questions within the same transaction.
// It returns pgx.ErrNoRows when the assessment does not exist.
func (r *AssessmentRepository) Update(ctx context.Context, a *model.Assessment, replaceQuestions bool) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`UPDATE assessments SET title = $1, subject = $2, duration = $3, difficulty = $4,
			 passing_percentage = $5, number_of_questions = $6, total_marks = $7, status = $8,
			 updated_at = CURRENT_TIMESTAMP
			 WHERE id = $9
			 RETURNING updated_at`,
			a.Title, a.Subject, a.Duration, a.Difficulty, a.PassingPercentage, a.NumberOfQuestions,
			a.TotalMarks, a.Status, a.ID,
		).Scan(&a.UpdatedAt)
		if err != nil {
			return err
		}
		if !replaceQuestions {
			return nil
		}
		if _, err := tx.Exec(ctx, `DELETE FROM assessment_questions WHERE assessment_id = $1`, a.ID); err != nil {
			return err
		}
		return copyQuestions(ctx, tx, a.ID, a.Questions)
	})
}

// Delete removes an assessment and, by cascade, its questions.
// It returns pgx.ErrNoRows when nothing was deleted.
func (r *AssessmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM assessments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
