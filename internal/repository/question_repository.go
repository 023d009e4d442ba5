package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examprint/internal/model"
)

// QuestionRepository handles set questions and their answer options.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

const questionColumns = `q.id, q.set_id, s.exam_id, q.invalid, q.answer_type, q.shuffle,
		q.stem, q.feedback, q.media_ref`

// scanQuestion fails on an unknown answer type code: a question that cannot
// be scored must never be silently skipped.
func scanQuestion(row pgx.Row) (*model.SetQuestion, error) {
	var (
		q    model.SetQuestion
		code string
	)
	if err := row.Scan(&q.ID, &q.SetID, &q.ExamID, &q.Invalid, &code, &q.Shuffle,
		&q.Stem, &q.Feedback, &q.MediaRef); err != nil {
		return nil, err
	}
	t, err := model.ParseAnswerType(code)
	if err != nil {
		return nil, fmt.Errorf("question %d: %w", q.ID, err)
	}
	q.AnswerType = t
	return &q, nil
}

// GetByID retrieves a question with its options.
func (r *QuestionRepository) GetByID(ctx context.Context, id int64) (*model.SetQuestion, error) {
	q, err := scanQuestion(r.pool.QueryRow(ctx,
		`SELECT `+questionColumns+`
		 FROM exam_set_questions q JOIN exam_sets s ON s.id = q.set_id
		 WHERE q.id = $1`, id))
	if err != nil {
		return nil, err
	}
	opts, err := r.loadOptions(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	q.Options = opts[id]
	return q, nil
}

// ListBySet returns the questions of a set, with options, in insertion order.
func (r *QuestionRepository) ListBySet(ctx context.Context, setID int64) ([]model.SetQuestion, error) {
	return r.list(ctx,
		`SELECT `+questionColumns+`
		 FROM exam_set_questions q JOIN exam_sets s ON s.id = q.set_id
		 WHERE q.set_id = $1 ORDER BY q.id`, setID)
}

// GetMany returns the current state of the given questions keyed by id.
// Missing ids are simply absent from the map.
func (r *QuestionRepository) GetMany(ctx context.Context, ids []int64) (map[int64]*model.SetQuestion, error) {
	qs, err := r.list(ctx,
		`SELECT `+questionColumns+`
		 FROM exam_set_questions q JOIN exam_sets s ON s.id = q.set_id
		 WHERE q.id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]*model.SetQuestion, len(qs))
	for i := range qs {
		out[qs[i].ID] = &qs[i]
	}
	return out, nil
}

func (r *QuestionRepository) list(ctx context.Context, query string, args ...any) ([]model.SetQuestion, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		qs  []model.SetQuestion
		ids []int64
	)
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		qs = append(qs, *q)
		ids = append(ids, q.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return qs, nil
	}

	opts, err := r.loadOptions(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range qs {
		qs[i].Options = opts[qs[i].ID]
	}
	return qs, nil
}

func (r *QuestionRepository) loadOptions(ctx context.Context, ids []int64) (map[int64][]model.AnswerOption, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, option_index, text, feedback, media_ref, correct
		 FROM exam_set_answers
		 WHERE question_id = ANY($1)
		 ORDER BY question_id, option_index`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]model.AnswerOption, len(ids))
	for rows.Next() {
		var o model.AnswerOption
		if err := rows.Scan(&o.QuestionID, &o.Index, &o.Text, &o.Feedback, &o.MediaRef, &o.Correct); err != nil {
			return nil, err
		}
		out[o.QuestionID] = append(out[o.QuestionID], o)
	}
	return out, rows.Err()
}

// InsertBatch copies bank questions into a set in one transaction. Options are
// bulk loaded with COPY.
func (r *QuestionRepository) InsertBatch(ctx context.Context, setID int64, specs []model.QuestionSpec) ([]model.SetQuestion, error) {
	created := make([]model.SetQuestion, 0, len(specs))

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var examID int64
		if err := tx.QueryRow(ctx, `SELECT exam_id FROM exam_sets WHERE id = $1`, setID).Scan(&examID); err != nil {
			return err
		}

		var optionRows [][]any
		for _, spec := range specs {
			q := model.SetQuestion{
				SetID:      setID,
				ExamID:     examID,
				AnswerType: spec.AnswerType,
				Shuffle:    spec.Shuffle,
				Stem:       spec.Stem,
				Feedback:   spec.Feedback,
				MediaRef:   spec.MediaRef,
			}
			if err := tx.QueryRow(ctx,
				`INSERT INTO exam_set_questions (set_id, answer_type, shuffle, stem, feedback, media_ref)
				 VALUES ($1, $2, $3, $4, $5, $6)
				 RETURNING id`,
				setID, string(spec.AnswerType), spec.Shuffle, spec.Stem, spec.Feedback, spec.MediaRef,
			).Scan(&q.ID); err != nil {
				return err
			}

			for i, o := range spec.Options {
				q.Options = append(q.Options, model.AnswerOption{
					QuestionID: q.ID,
					Index:      i,
					Text:       o.Text,
					Feedback:   o.Feedback,
					MediaRef:   o.MediaRef,
					Correct:    o.Correct,
				})
				optionRows = append(optionRows, []any{q.ID, i, o.Text, o.Feedback, o.MediaRef, o.Correct})
			}
			created = append(created, q)
		}

		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"exam_set_answers"},
			[]string{"question_id", "option_index", "text", "feedback", "media_ref", "correct"},
			pgx.CopyFromRows(optionRows),
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Delete removes a question. Its options, and every printed copy of it,
// cascade.
func (r *QuestionRepository) Delete(ctx context.Context, id int64) error {
	return mustAffect(r.pool.Exec(ctx, `DELETE FROM exam_set_questions WHERE id = $1`, id))
}

// SetInvalid flips the validity flag of a question.
func (r *QuestionRepository) SetInvalid(ctx context.Context, id int64, invalid bool) error {
	return mustAffect(r.pool.Exec(ctx,
		`UPDATE exam_set_questions SET invalid = $1 WHERE id = $2`, invalid, id))
}
