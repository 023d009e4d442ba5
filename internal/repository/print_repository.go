package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examprint/internal/model"
	"github.com/stemsi/examprint/internal/scoring"
)

// ScoreCache is the advisory aggregate stored on a print.
type ScoreCache struct {
	PrintID      int64
	NumQsts      int
	NotBlank     int
	Score        float64
	NumQstsValid int
	ScoreValid   float64
}

// PrintRepository handles prints and their printed questions.
type PrintRepository struct {
	pool *pgxpool.Pool
}

// NewPrintRepository creates a new PrintRepository.
func NewPrintRepository(pool *pgxpool.Pool) *PrintRepository {
	return &PrintRepository{pool: pool}
}

const printColumns = `id, session_id, user_id, start_time, end_time, finished,
		num_qsts, num_qsts_not_blank, score, num_qsts_valid, score_valid`

func scanPrint(row pgx.Row) (*model.Print, error) {
	var p model.Print
	if err := row.Scan(&p.ID, &p.SessionID, &p.UserID, &p.StartTime, &p.EndTime, &p.Finished,
		&p.NumQsts, &p.NumQstsNotBlank, &p.Score, &p.NumQstsValid, &p.ScoreValid); err != nil {
		return nil, err
	}
	p.StartTime = p.StartTime.UTC()
	p.EndTime = p.EndTime.UTC()
	return &p, nil
}

// Create inserts a print and its printed questions in one transaction. A
// second print for the same (session, user) returns ErrDuplicate and leaves
// the first untouched.
func (r *PrintRepository) Create(ctx context.Context, p *model.Print) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO exam_prints (session_id, user_id, start_time, end_time, num_qsts)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (session_id, user_id) DO NOTHING
			 RETURNING id`,
			p.SessionID, p.UserID, p.StartTime, p.EndTime, len(p.Questions),
		).Scan(&p.ID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: print for session %d user %d", ErrDuplicate, p.SessionID, p.UserID)
		}
		if err != nil {
			return err
		}
		p.NumQsts = len(p.Questions)

		rows := make([][]any, len(p.Questions))
		for i := range p.Questions {
			q := &p.Questions[i]
			q.PrintID = p.ID
			rows[i] = []any{p.ID, q.Index, q.QuestionID, q.SetID, q.Score, scoring.FormatIndexList(q.OptionOrder), q.Answer}
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"exam_print_questions"},
			[]string{"print_id", "question_index", "question_id", "set_id", "score", "option_order", "answer"},
			pgx.CopyFromRows(rows),
		)
		return err
	})
}

// GetByID retrieves a print without its questions.
func (r *PrintRepository) GetByID(ctx context.Context, id int64) (*model.Print, error) {
	return scanPrint(r.pool.QueryRow(ctx, `SELECT `+printColumns+` FROM exam_prints WHERE id = $1`, id))
}

// GetBySessionAndUser retrieves the print of a user in a session.
func (r *PrintRepository) GetBySessionAndUser(ctx context.Context, sessionID, userID int64) (*model.Print, error) {
	return scanPrint(r.pool.QueryRow(ctx,
		`SELECT `+printColumns+` FROM exam_prints WHERE session_id = $1 AND user_id = $2`,
		sessionID, userID))
}

// ListBySession returns every print of a session ordered by user.
func (r *PrintRepository) ListBySession(ctx context.Context, sessionID int64) ([]model.Print, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+printColumns+` FROM exam_prints WHERE session_id = $1 ORDER BY user_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prints []model.Print
	for rows.Next() {
		p, err := scanPrint(rows)
		if err != nil {
			return nil, err
		}
		prints = append(prints, *p)
	}
	return prints, rows.Err()
}

// ListQuestions returns the printed questions of a print in index order. A
// stored option order that cannot be parsed aborts the whole read.
func (r *PrintRepository) ListQuestions(ctx context.Context, printID int64) ([]model.PrintedQuestion, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT print_id, question_index, question_id, set_id, score, option_order, answer
		 FROM exam_print_questions
		 WHERE print_id = $1
		 ORDER BY question_index`, printID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var qs []model.PrintedQuestion
	for rows.Next() {
		var (
			q     model.PrintedQuestion
			order string
		)
		if err := rows.Scan(&q.PrintID, &q.Index, &q.QuestionID, &q.SetID, &q.Score, &order, &q.Answer); err != nil {
			return nil, err
		}
		if q.OptionOrder, err = scoring.ParseIndexList(order); err != nil {
			return nil, fmt.Errorf("print %d question %d: %w", printID, q.Index, err)
		}
		qs = append(qs, q)
	}
	return qs, rows.Err()
}

// Activate turns a pre-created print into a started one by replacing the
// epoch dates with now. It is a no-op for prints already started.
func (r *PrintRepository) Activate(ctx context.Context, id int64, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_prints SET start_time = $1, end_time = $1
		 WHERE id = $2 AND start_time = $3`,
		now, id, model.Epoch)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpsertAnswer stores the answer and cached score of one printed question.
// Re-answering the same index overwrites the previous answer.
func (r *PrintRepository) UpsertAnswer(ctx context.Context, q *model.PrintedQuestion) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO exam_print_questions
		   (print_id, question_index, question_id, set_id, score, option_order, answer)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (print_id, question_index)
		 DO UPDATE SET score = EXCLUDED.score, answer = EXCLUDED.answer`,
		q.PrintID, q.Index, q.QuestionID, q.SetID, q.Score, scoring.FormatIndexList(q.OptionOrder), q.Answer)
	return err
}

// UpdateProgress records the latest activity time and the all-questions cache.
func (r *PrintRepository) UpdateProgress(ctx context.Context, id int64, at time.Time, notBlank int, score float64) error {
	return mustAffect(r.pool.Exec(ctx,
		`UPDATE exam_prints SET end_time = $1, num_qsts_not_blank = $2, score = $3 WHERE id = $4`,
		at, notBlank, score, id))
}

// Finish stamps the end time and final all-questions cache of a print.
func (r *PrintRepository) Finish(ctx context.Context, id int64, at time.Time, notBlank int, score float64) error {
	return mustAffect(r.pool.Exec(ctx,
		`UPDATE exam_prints
		 SET end_time = $1, finished = TRUE, num_qsts_not_blank = $2, score = $3
		 WHERE id = $4`,
		at, notBlank, score, id))
}

// UpdateScoreCaches writes a batch of recomputed aggregates with one statement.
func (r *PrintRepository) UpdateScoreCaches(ctx context.Context, batch []ScoreCache) error {
	if len(batch) == 0 {
		return nil
	}
	ids := make([]int64, len(batch))
	numQsts := make([]int32, len(batch))
	notBlank := make([]int32, len(batch))
	scores := make([]float64, len(batch))
	numValid := make([]int32, len(batch))
	scoresValid := make([]float64, len(batch))
	for i, c := range batch {
		ids[i] = c.PrintID
		numQsts[i] = int32(c.NumQsts)
		notBlank[i] = int32(c.NotBlank)
		scores[i] = c.Score
		numValid[i] = int32(c.NumQstsValid)
		scoresValid[i] = c.ScoreValid
	}

	_, err := r.pool.Exec(ctx,
		`UPDATE exam_prints AS p
		 SET num_qsts = t.num_qsts,
		     num_qsts_not_blank = t.not_blank,
		     score = t.score,
		     num_qsts_valid = t.num_valid,
		     score_valid = t.score_valid
		 FROM UNNEST($1::bigint[], $2::int[], $3::int[], $4::float8[], $5::int[], $6::float8[])
		   AS t (id, num_qsts, not_blank, score, num_valid, score_valid)
		 WHERE p.id = t.id`,
		ids, numQsts, notBlank, scores, numValid, scoresValid)
	return err
}

// UpdateScoreCache is the single-row fallback of UpdateScoreCaches.
func (r *PrintRepository) UpdateScoreCache(ctx context.Context, c ScoreCache) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_prints
		 SET num_qsts = $1, num_qsts_not_blank = $2, score = $3, num_qsts_valid = $4, score_valid = $5
		 WHERE id = $6`,
		c.NumQsts, c.NotBlank, c.Score, c.NumQstsValid, c.ScoreValid, c.PrintID)
	return err
}

// ListIDsByQuestion returns the prints that hold a copy of the question.
func (r *PrintRepository) ListIDsByQuestion(ctx context.Context, questionID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT print_id FROM exam_print_questions WHERE question_id = $1 ORDER BY print_id`,
		questionID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// ListIDsBySessions returns the prints of the given sessions.
func (r *PrintRepository) ListIDsBySessions(ctx context.Context, sessionIDs []int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM exam_prints WHERE session_id = ANY($1) ORDER BY id`, sessionIDs)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}
