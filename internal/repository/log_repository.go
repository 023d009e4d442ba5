package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examprint/internal/model"
)

// LatestClient holds the browser session and user agent most recently
// recorded for a print. The Has flags are false before the first record.
type LatestClient struct {
	BrowserSession string
	UserAgent      string
	HasSession     bool
	HasUserAgent   bool
}

// LogRepository handles the append-only access log.
type LogRepository struct {
	pool *pgxpool.Pool
}

// NewLogRepository creates a new LogRepository.
func NewLogRepository(pool *pgxpool.Pool) *LogRepository {
	return &LogRepository{pool: pool}
}

// Append inserts one log row and, in the same transaction, the browser
// session and user agent satellites when they differ from the latest ones
// recorded for the print. The generated id is the entry's sequence number.
func (r *LogRepository) Append(ctx context.Context, e *model.LogEntry) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`INSERT INTO exam_log (print_id, action, question_index, can_answer, click_time, ip)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			e.PrintID, int16(e.Action), e.QuestionIndex, e.CanAnswer, e.ClickTime, e.IP,
		).Scan(&e.ID); err != nil {
			return err
		}

		if e.BrowserSession != "" {
			if _, err := tx.Exec(ctx,
				`INSERT INTO exam_log_sessions (log_id, print_id, session_id)
				 SELECT $1::bigint, $2::bigint, $3::varchar
				 WHERE $3::varchar IS DISTINCT FROM (
				     SELECT session_id FROM exam_log_sessions
				     WHERE print_id = $2 ORDER BY log_id DESC LIMIT 1)`,
				e.ID, e.PrintID, e.BrowserSession); err != nil {
				return err
			}
		}
		if e.UserAgent != "" {
			if _, err := tx.Exec(ctx,
				`INSERT INTO exam_log_user_agents (log_id, print_id, user_agent)
				 SELECT $1::bigint, $2::bigint, $3::text
				 WHERE $3::text IS DISTINCT FROM (
				     SELECT user_agent FROM exam_log_user_agents
				     WHERE print_id = $2 ORDER BY log_id DESC LIMIT 1)`,
				e.ID, e.PrintID, e.UserAgent); err != nil {
				return err
			}
		}
		return nil
	})
}

// Latest returns the satellite values attached to the highest sequence
// number of the print.
func (r *LogRepository) Latest(ctx context.Context, printID int64) (LatestClient, error) {
	var out LatestClient

	err := r.pool.QueryRow(ctx,
		`SELECT session_id FROM exam_log_sessions WHERE print_id = $1 ORDER BY log_id DESC LIMIT 1`,
		printID).Scan(&out.BrowserSession)
	switch {
	case err == nil:
		out.HasSession = true
	case !errors.Is(err, pgx.ErrNoRows):
		return out, err
	}

	err = r.pool.QueryRow(ctx,
		`SELECT user_agent FROM exam_log_user_agents WHERE print_id = $1 ORDER BY log_id DESC LIMIT 1`,
		printID).Scan(&out.UserAgent)
	switch {
	case err == nil:
		out.HasUserAgent = true
	case !errors.Is(err, pgx.ErrNoRows):
		return out, err
	}
	return out, nil
}

// ListByPrint returns the whole log of a print in sequence order, each entry
// carrying the satellite values in effect at that point.
func (r *LogRepository) ListByPrint(ctx context.Context, printID int64) ([]model.LogEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT l.id, l.print_id, l.action, l.question_index, l.can_answer, l.click_time, l.ip,
		        COALESCE(s.session_id, ''), COALESCE(u.user_agent, '')
		 FROM exam_log l
		 LEFT JOIN LATERAL (
		     SELECT session_id FROM exam_log_sessions
		     WHERE print_id = l.print_id AND log_id <= l.id
		     ORDER BY log_id DESC LIMIT 1) s ON TRUE
		 LEFT JOIN LATERAL (
		     SELECT user_agent FROM exam_log_user_agents
		     WHERE print_id = l.print_id AND log_id <= l.id
		     ORDER BY log_id DESC LIMIT 1) u ON TRUE
		 WHERE l.print_id = $1
		 ORDER BY l.id`, printID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.LogEntry
	for rows.Next() {
		var (
			e      model.LogEntry
			action int16
		)
		if err := rows.Scan(&e.ID, &e.PrintID, &action, &e.QuestionIndex, &e.CanAnswer, &e.ClickTime,
			&e.IP, &e.BrowserSession, &e.UserAgent); err != nil {
			return nil, err
		}
		e.Action = model.ParseLogAction(int(action))
		e.ClickTime = e.ClickTime.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
