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

// SearchPreviewChars is the length of the text excerpt returned by SearchText.
const SearchPreviewChars = 500

const curriculumColumns = `id, name, subject, grade, board, book_title, author, publisher, edition,
	number_of_chapters, topics, file_name, file_url, file_path, content_type, total_chunks,
	status, vector_indexed, ingest_error, created_by, created_at, updated_at`

// CurriculumRepository handles curriculum document data access.
type CurriculumRepository struct {
	pool *pgxpool.Pool
}

// NewCurriculumRepository creates a new CurriculumRepository.
func NewCurriculumRepository(pool *pgxpool.Pool) *CurriculumRepository {
	return &CurriculumRepository{pool: pool}
}

func scanCurriculum(row pgx.Row, c *model.Curriculum) error {
	return row.Scan(&c.ID, &c.Name, &c.Subject, &c.Grade, &c.Board, &c.BookTitle, &c.Author,
		&c.Publisher, &c.Edition, &c.NumberOfChapters, &c.Topics, &c.FileName, &c.FileURL,
		&c.FilePath, &c.ContentType, &c.TotalChunks, &c.Status, &c.VectorIndexed, &c.IngestError,
		&c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
}

// Create inserts a new curriculum row. The caller assigns the ID.
func (r *CurriculumRepository) Create(ctx context.Context, c *model.Curriculum) error {
	if c.Topics == nil {
		c.Topics = []string{}
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO curricula (id, name, subject, grade, board, book_title, author, publisher, edition,
		 number_of_chapters, topics, file_name, file_url, file_path, content_type, status, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 RETURNING created_at, updated_at`,
		c.ID, c.Name, c.Subject, c.Grade, c.Board, c.BookTitle, c.Author, c.Publisher, c.Edition,
		c.NumberOfChapters, c.Topics, c.FileName, c.FileURL, c.FilePath, c.ContentType, c.Status, c.CreatedBy,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

// GetByID retrieves a curriculum by ID, including its extracted text.
func (r *CurriculumRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Curriculum, error) {
	c := &model.Curriculum{}
	row := r.pool.QueryRow(ctx,
		`SELECT `+curriculumColumns+`, text_content FROM curricula WHERE id = $1`, id)
	err := row.Scan(&c.ID, &c.Name, &c.Subject, &c.Grade, &c.Board, &c.BookTitle, &c.Author,
		&c.Publisher, &c.Edition, &c.NumberOfChapters, &c.Topics, &c.FileName, &c.FileURL,
		&c.FilePath, &c.ContentType, &c.TotalChunks, &c.Status, &c.VectorIndexed, &c.IngestError,
		&c.CreatedBy, &c.CreatedAt, &c.UpdatedAt, &c.TextContent)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListPaginated retrieves curricula newest first, without their text content.
func (r *CurriculumRepository) ListPaginated(ctx context.Context, filter model.CurriculumFilter, limit, offset int) ([]model.Curriculum, int, error) {
	where, args := curriculumWhere(filter)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM curricula`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	argIdx := len(args) + 1
	query := `SELECT ` + curriculumColumns + ` FROM curricula` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(argIdx) + ` OFFSET $` + strconv.Itoa(argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var curricula []model.Curriculum
	for rows.Next() {
		var c model.Curriculum
		if err := scanCurriculum(rows, &c); err != nil {
			return nil, 0, err
		}
		curricula = append(curricula, c)
	}
	return curricula, total, rows.Err()
}

func curriculumWhere(filter model.CurriculumFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, cond+strconv.Itoa(len(args)))
	}
	if filter.Subject != "" {
		add(`subject = $`, filter.Subject)
	}
	if filter.Grade != "" {
		add(`grade = $`, filter.Grade)
	}
	if filter.Status != "" {
		add(`status = $`, filter.Status)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return ` WHERE ` + strings.Join(conds, ` AND `), args
}

// Update modifies a curriculum's descriptive metadata.
func (r *CurriculumRepository) Update(ctx context.Context, c *model.Curriculum) error {
	if c.Topics == nil {
		c.Topics = []string{}
	}
	return r.pool.QueryRow(ctx,
		`UPDATE curricula SET name = $1, subject = $2, grade = $3, board = $4, book_title = $5,
		 author = $6, publisher = $7, edition = $8, number_of_chapters = $9, topics = $10,
		 updated_at = CURRENT_TIMESTAMP
		 WHERE id = $11
		 RETURNING updated_at`,
		c.Name, c.Subject, c.Grade, c.Board, c.BookTitle, c.Author, c.Publisher, c.Edition,
		c.NumberOfChapters, c.Topics, c.ID,
	).Scan(&c.UpdatedAt)
}

// IngestResult is the outcome of one ingestion run.
type IngestResult struct {
	TextContent   string
	TotalChunks   int
	Status        model.IngestStatus
	VectorIndexed bool
	Error         string
}

// UpdateIngest records the extracted text and indexing outcome of a curriculum.
func (r *CurriculumRepository) UpdateIngest(ctx context.Context, id uuid.UUID, res IngestResult) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE curricula SET text_content = $1, total_chunks = $2, status = $3, vector_indexed = $4,
		 ingest_error = $5, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $6`,
		res.TextContent, res.TotalChunks, res.Status, res.VectorIndexed, res.Error, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdateStatus changes only the ingest status and error, keeping any stored text.
func (r *CurriculumRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.IngestStatus, ingestErr string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE curricula SET status = $1, ingest_error = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3`,
		status, ingestErr, id,
	)
	return err
}

// Delete removes a curriculum. It returns pgx.ErrNoRows when nothing was deleted.
func (r *CurriculumRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM curricula WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// GetTextPreview returns the first n characters of a curriculum's extracted text.
func (r *CurriculumRepository) GetTextPreview(ctx context.Context, id uuid.UUID, n int) (string, error) {
	var preview string
	err := r.pool.QueryRow(ctx,
		`SELECT LEFT(text_content, $2) FROM curricula WHERE id = $1`, id, n,
	).Scan(&preview)
	return preview, err
}

// SearchText does a case-insensitive substring match over text, file name, and topics.
// documentID narrows the search to one curriculum when non-nil.
func (r *CurriculumRepository) SearchText(ctx context.Context, query string, limit int, documentID *uuid.UUID) ([]model.CurriculumSearchHit, error) {
	sql := `SELECT id, file_name, LEFT(text_content, $2)
		 FROM curricula
		 WHERE (text_content ILIKE $1 OR file_name ILIKE $1 OR array_to_string(topics, ' ') ILIKE $1)`
	args := []interface{}{LikePattern(query), SearchPreviewChars}
	if documentID != nil {
		sql += ` AND id = $3`
		args = append(args, *documentID)
	}
	sql += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []model.CurriculumSearchHit
	for rows.Next() {
		var id uuid.UUID
		var h model.CurriculumSearchHit
		if err := rows.Scan(&id, &h.FileName, &h.Text); err != nil {
			return nil, err
		}
		h.DocumentID = id.String()
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// LikePattern wraps q for a substring ILIKE match, escaping LIKE metacharacters.
func LikePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}
