package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examprint/internal/model"
)

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

const examColumns = `e.id, e.course_id, e.hidden, e.owner_id, e.max_grade, e.visibility,
		e.title, e.text, e.created_at, e.updated_at,
		(SELECT COUNT(*) FROM exam_sets s WHERE s.exam_id = e.id),
		(SELECT COUNT(*) FROM exam_sessions ss WHERE ss.exam_id = e.id)`

func scanExam(row pgx.Row) (*model.Exam, error) {
	var (
		e   model.Exam
		vis int16
	)
	if err := row.Scan(&e.ID, &e.CourseID, &e.Hidden, &e.OwnerID, &e.MaxGrade, &vis,
		&e.Title, &e.Text, &e.CreatedAt, &e.UpdatedAt, &e.NumSets, &e.NumSessions); err != nil {
		return nil, err
	}
	e.Visibility = model.Visibility(vis)
	return &e, nil
}

// GetByID retrieves an exam by id.
func (r *ExamRepository) GetByID(ctx context.Context, id int64) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams e WHERE e.id = $1`, id))
}

// ListByCourse returns the exams of a course ordered by title. Hidden exams are
// included only when includeHidden is set.
func (r *ExamRepository) ListByCourse(ctx context.Context, courseID int64, includeHidden bool) ([]model.Exam, error) {
	query := `SELECT ` + examColumns + ` FROM exams e WHERE e.course_id = $1`
	if !includeHidden {
		query += ` AND NOT e.hidden`
	}
	query += ` ORDER BY e.title`

	rows, err := r.pool.Query(ctx, query, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}

// ExistsTitle reports whether another exam of the course already uses title.
func (r *ExamRepository) ExistsTitle(ctx context.Context, courseID int64, title string, excludeID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM exams WHERE course_id = $1 AND title = $2 AND id <> $3)`,
		courseID, title, excludeID,
	).Scan(&exists)
	return exists, err
}

// Create inserts a new exam.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO exams (course_id, hidden, owner_id, max_grade, visibility, title, text)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		e.CourseID, e.Hidden, e.OwnerID, e.MaxGrade, int16(e.Visibility), e.Title, e.Text,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	return mapUnique(err)
}

// Update changes the title, text and max grade of an exam.
func (r *ExamRepository) Update(ctx context.Context, e *model.Exam) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE exams SET title = $1, text = $2, max_grade = $3, updated_at = NOW()
		 WHERE id = $4
		 RETURNING updated_at`,
		e.Title, e.Text, e.MaxGrade, e.ID,
	).Scan(&e.UpdatedAt)
	return mapUnique(err)
}

// SetHidden hides or unhides an exam.
func (r *ExamRepository) SetHidden(ctx context.Context, id int64, hidden bool) error {
	return mustAffect(r.pool.Exec(ctx,
		`UPDATE exams SET hidden = $1, updated_at = NOW() WHERE id = $2`, hidden, id))
}

// SetVisibility replaces the result visibility bitmask.
func (r *ExamRepository) SetVisibility(ctx context.Context, id int64, v model.Visibility) error {
	return mustAffect(r.pool.Exec(ctx,
		`UPDATE exams SET visibility = $1, updated_at = NOW() WHERE id = $2`, int16(v), id))
}

// Delete removes an exam. Sets, questions, sessions, prints and their log go
// with it through ON DELETE CASCADE.
func (r *ExamRepository) Delete(ctx context.Context, id int64) error {
	return mustAffect(r.pool.Exec(ctx, `DELETE FROM exams WHERE id = $1`, id))
}
