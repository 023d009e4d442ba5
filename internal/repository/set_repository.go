package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examprint/internal/model"
)

// SetWriter holds the set operations that must run while the exam's sets are
// locked, so index reads and writes see a stable ordering.
type SetWriter interface {
	Get(ctx context.Context, setID int64) (*model.Set, error)
	MaxIndex(ctx context.Context, examID int64) (int, error)
	GetByIndex(ctx context.Context, examID int64, index int) (*model.Set, error)
	Insert(ctx context.Context, s *model.Set) error
	Delete(ctx context.Context, setID int64) error
	ShiftDown(ctx context.Context, examID int64, after int) error
	Swap(ctx context.Context, upper, lower *model.Set) error
}

// SetRepository handles question set data access.
type SetRepository struct {
	pool *pgxpool.Pool
}

// NewSetRepository creates a new SetRepository.
func NewSetRepository(pool *pgxpool.Pool) *SetRepository {
	return &SetRepository{pool: pool}
}

const setColumns = `s.id, s.exam_id, s.set_index, s.print_count, s.title,
		(SELECT COUNT(*) FROM exam_set_questions q WHERE q.set_id = s.id)`

func scanSet(row pgx.Row) (*model.Set, error) {
	var s model.Set
	if err := row.Scan(&s.ID, &s.ExamID, &s.Index, &s.PrintCount, &s.Title, &s.NumQuestions); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByID retrieves a set by id.
func (r *SetRepository) GetByID(ctx context.Context, id int64) (*model.Set, error) {
	return scanSet(r.pool.QueryRow(ctx, `SELECT `+setColumns+` FROM exam_sets s WHERE s.id = $1`, id))
}

// ListByExam returns the sets of an exam in index order.
func (r *SetRepository) ListByExam(ctx context.Context, examID int64) ([]model.Set, error) {
	return listSets(ctx, r.pool, examID)
}

func listSets(ctx context.Context, q querier, examID int64) ([]model.Set, error) {
	rows, err := q.Query(ctx,
		`SELECT `+setColumns+` FROM exam_sets s WHERE s.exam_id = $1 ORDER BY s.set_index`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []model.Set
	for rows.Next() {
		s, err := scanSet(rows)
		if err != nil {
			return nil, err
		}
		sets = append(sets, *s)
	}
	return sets, rows.Err()
}

// ExistsTitle reports whether another set of the exam already uses title.
func (r *SetRepository) ExistsTitle(ctx context.Context, examID int64, title string, excludeID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM exam_sets WHERE exam_id = $1 AND title = $2 AND id <> $3)`,
		examID, title, excludeID,
	).Scan(&exists)
	return exists, err
}

// Update changes the title and print count of a set. The exam id guards
// against editing a set through another exam.
func (r *SetRepository) Update(ctx context.Context, s *model.Set) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sets SET title = $1, print_count = $2 WHERE id = $3 AND exam_id = $4`,
		s.Title, s.PrintCount, s.ID, s.ExamID)
	return mustAffect(tag, mapUnique(err))
}

// WithExamLock runs fn in a transaction holding the advisory lock of examID.
// Writers of the same exam's sets queue behind each other; other exams and
// plain readers are unaffected.
func (r *SetRepository) WithExamLock(ctx context.Context, examID int64, fn func(SetWriter) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, examID); err != nil {
			return err
		}
		return fn(&setTx{tx: tx})
	})
}

// setTx implements SetWriter inside a locked transaction.
type setTx struct {
	tx pgx.Tx
}

func (w *setTx) Get(ctx context.Context, setID int64) (*model.Set, error) {
	return scanSet(w.tx.QueryRow(ctx, `SELECT `+setColumns+` FROM exam_sets s WHERE s.id = $1`, setID))
}

func (w *setTx) MaxIndex(ctx context.Context, examID int64) (int, error) {
	var maxIndex int
	err := w.tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(set_index), 0) FROM exam_sets WHERE exam_id = $1`, examID,
	).Scan(&maxIndex)
	return maxIndex, err
}

func (w *setTx) GetByIndex(ctx context.Context, examID int64, index int) (*model.Set, error) {
	return scanSet(w.tx.QueryRow(ctx,
		`SELECT `+setColumns+` FROM exam_sets s WHERE s.exam_id = $1 AND s.set_index = $2`,
		examID, index))
}

func (w *setTx) Insert(ctx context.Context, s *model.Set) error {
	err := w.tx.QueryRow(ctx,
		`INSERT INTO exam_sets (exam_id, set_index, print_count, title)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		s.ExamID, s.Index, s.PrintCount, s.Title,
	).Scan(&s.ID)
	return mapUnique(err)
}

// Delete removes a set. Its questions and their answers cascade.
func (w *setTx) Delete(ctx context.Context, setID int64) error {
	return mustAffect(w.tx.Exec(ctx, `DELETE FROM exam_sets WHERE id = $1`, setID))
}

func (w *setTx) ShiftDown(ctx context.Context, examID int64, after int) error {
	_, err := w.tx.Exec(ctx,
		`UPDATE exam_sets SET set_index = set_index - 1 WHERE exam_id = $1 AND set_index > $2`,
		examID, after)
	return err
}

// Swap exchanges the indexes of two sets of the same exam. upper moves to a
// negative placeholder first so the (exam, index) constraint never sees a
// duplicate between statements.
func (w *setTx) Swap(ctx context.Context, upper, lower *model.Set) error {
	if upper.ExamID != lower.ExamID {
		return errors.New("swap across exams")
	}
	steps := []struct {
		id    int64
		index int
	}{
		{upper.ID, -lower.Index},
		{lower.ID, upper.Index},
		{upper.ID, lower.Index},
	}
	for _, st := range steps {
		if err := mustAffect(w.tx.Exec(ctx,
			`UPDATE exam_sets SET set_index = $1 WHERE id = $2 AND exam_id = $3`,
			st.index, st.id, upper.ExamID)); err != nil {
			return err
		}
	}
	upper.Index, lower.Index = lower.Index, upper.Index
	return nil
}
