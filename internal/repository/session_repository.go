package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examprint/internal/model"
)

// SessionRepository handles exam session data access.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `ss.id, ss.exam_id, ss.hidden, ss.creator_id, ss.modality,
		ss.start_time, ss.end_time, ss.title, ss.show_results, ss.num_columns, ss.show_photos,
		COALESCE((SELECT array_agg(g.group_id ORDER BY g.group_id)
		          FROM exam_session_groups g WHERE g.session_id = ss.id), '{}')`

func scanSession(row pgx.Row) (*model.Session, error) {
	var (
		s    model.Session
		code string
	)
	if err := row.Scan(&s.ID, &s.ExamID, &s.Hidden, &s.CreatorID, &code,
		&s.StartTime, &s.EndTime, &s.Title, &s.ShowResults, &s.Columns, &s.ShowPhotos,
		&s.GroupIDs); err != nil {
		return nil, err
	}
	m, ok := model.ParseModality(code)
	if !ok {
		return nil, fmt.Errorf("session %d: unknown modality %q", s.ID, code)
	}
	s.Modality = m
	s.StartTime = s.StartTime.UTC()
	s.EndTime = s.EndTime.UTC()
	return &s, nil
}

// GetByID retrieves a session with its group restriction.
func (r *SessionRepository) GetByID(ctx context.Context, id int64) (*model.Session, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions ss WHERE ss.id = $1`, id))
}

// ListByExam returns the sessions of an exam, most recent first.
func (r *SessionRepository) ListByExam(ctx context.Context, examID int64) ([]model.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions ss
		 WHERE ss.exam_id = $1
		 ORDER BY ss.start_time DESC, ss.id DESC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// ListEndedBetween returns the ids of sessions whose end time falls in [from, to).
func (r *SessionRepository) ListEndedBetween(ctx context.Context, from, to time.Time) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM exam_sessions WHERE end_time >= $1 AND end_time < $2 ORDER BY id`, from, to)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, s *model.Session) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions
		   (exam_id, hidden, creator_id, modality, start_time, end_time, title,
		    show_results, num_columns, show_photos)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		s.ExamID, s.Hidden, s.CreatorID, string(s.Modality), s.StartTime, s.EndTime, s.Title,
		s.ShowResults, s.Columns, s.ShowPhotos,
	).Scan(&s.ID)
}

// Update changes the schedule and display settings of a session.
func (r *SessionRepository) Update(ctx context.Context, s *model.Session) error {
	return mustAffect(r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET modality = $1, start_time = $2, end_time = $3, title = $4,
		     num_columns = $5, show_photos = $6
		 WHERE id = $7 AND exam_id = $8`,
		string(s.Modality), s.StartTime, s.EndTime, s.Title, s.Columns, s.ShowPhotos, s.ID, s.ExamID))
}

// Delete removes a session with its prints and their log.
func (r *SessionRepository) Delete(ctx context.Context, id int64) error {
	return mustAffect(r.pool.Exec(ctx, `DELETE FROM exam_sessions WHERE id = $1`, id))
}

// SetHidden hides or unhides a session.
func (r *SessionRepository) SetHidden(ctx context.Context, id int64, hidden bool) error {
	return mustAffect(r.pool.Exec(ctx, `UPDATE exam_sessions SET hidden = $1 WHERE id = $2`, hidden, id))
}

// ToggleShowResults flips the "show user results" flag and returns its new value.
func (r *SessionRepository) ToggleShowResults(ctx context.Context, id int64) (bool, error) {
	var show bool
	err := r.pool.QueryRow(ctx,
		`UPDATE exam_sessions SET show_results = NOT show_results WHERE id = $1 RETURNING show_results`, id,
	).Scan(&show)
	return show, err
}

// ReplaceGroups sets the group restriction of a session. An empty list leaves
// the session open to every group.
func (r *SessionRepository) ReplaceGroups(ctx context.Context, sessionID int64, groupIDs []int64) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM exam_session_groups WHERE session_id = $1`, sessionID); err != nil {
			return err
		}
		if len(groupIDs) == 0 {
			return nil
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO exam_session_groups (session_id, group_id)
			 SELECT $1, g FROM UNNEST($2::bigint[]) AS g
			 ON CONFLICT DO NOTHING`,
			sessionID, groupIDs)
		return err
	})
}
