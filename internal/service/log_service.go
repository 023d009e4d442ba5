package service

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/stemsi/examprint/internal/model"
)

// LogService appends to and reads the per-print access log, and runs the
// client continuity checks against it.
type LogService struct {
	exams    ExamStore
	sessions SessionStore
	prints   PrintStore
	logs     LogStore
	notifier Notifier
	log      zerolog.Logger
}

// NewLogService creates a new LogService.
func NewLogService(exams ExamStore, sessions SessionStore, prints PrintStore, logs LogStore, notifier Notifier, log zerolog.Logger) *LogService {
	return &LogService{
		exams:    exams,
		sessions: sessions,
		prints:   prints,
		logs:     logs,
		notifier: notifier,
		log:      log.With().Str("component", "log_service").Logger(),
	}
}

// LogAccess appends one entry for p stamped with the caller's time, IP,
// browser session and user agent. Continuity is measured against the log as
// it was before this entry and returned alongside it; a mismatch is only
// reported, never enforced here.
func (s *LogService) LogAccess(ctx context.Context, rc model.RequestContext, p *model.Print, action model.LogAction, questionIndex int, canAnswer bool) (*model.LogEntry, model.Continuity, error) {
	cont, err := s.Continuity(ctx, rc, p.ID)
	if err != nil {
		return nil, cont, err
	}

	entry := &model.LogEntry{
		PrintID:        p.ID,
		Action:         action,
		QuestionIndex:  questionIndex,
		CanAnswer:      canAnswer,
		ClickTime:      rc.Now,
		IP:             rc.IP,
		BrowserSession: rc.BrowserSession,
		UserAgent:      rc.UserAgent,
	}
	if err := s.logs.Append(ctx, entry); err != nil {
		return nil, cont, internal("append log", err)
	}

	if cont.Suspicious() {
		s.log.Warn().
			Int64("print_id", p.ID).
			Int64("user_id", p.UserID).
			Bool("same_session", cont.SameSession).
			Bool("same_user_agent", cont.SameUserAgent).
			Str("ip", rc.IP).
			Msg("Client changed during print")
	}

	ev := model.MonitorEvent{
		Type:          "log",
		SessionID:     p.SessionID,
		PrintID:       p.ID,
		UserID:        p.UserID,
		Action:        action.String(),
		QuestionIndex: questionIndex,
		CanAnswer:     canAnswer,
		Suspicious:    cont.Suspicious(),
		At:            rc.Now,
	}
	if err := s.notifier.PublishMonitor(ctx, ev); err != nil {
		s.log.Debug().Err(err).Int64("session_id", p.SessionID).Msg("Monitor publish failed")
	}
	return entry, cont, nil
}

// Continuity compares the caller's browser session and user agent with the
// latest ones recorded for the print. A print without records is continuous.
func (s *LogService) Continuity(ctx context.Context, rc model.RequestContext, printID int64) (model.Continuity, error) {
	latest, err := s.logs.Latest(ctx, printID)
	if err != nil {
		return model.Continuity{SameSession: true, SameUserAgent: true}, internal("latest log client", err)
	}
	return model.Continuity{
		SameSession:   !latest.HasSession || latest.BrowserSession == rc.BrowserSession,
		SameUserAgent: !latest.HasUserAgent || latest.UserAgent == rc.UserAgent,
	}, nil
}

// CheckSessionContinuity reports whether the caller's browser session matches
// the latest one recorded for the print.
func (s *LogService) CheckSessionContinuity(ctx context.Context, rc model.RequestContext, printID int64) (bool, error) {
	c, err := s.Continuity(ctx, rc, printID)
	return c.SameSession, err
}

// CheckUserAgentContinuity reports whether the caller's user agent matches
// the latest one recorded for the print.
func (s *LogService) CheckUserAgentContinuity(ctx context.Context, rc model.RequestContext, printID int64) (bool, error) {
	c, err := s.Continuity(ctx, rc, printID)
	return c.SameUserAgent, err
}

// ListLog returns the whole log of a print. Only staff may read it.
func (s *LogService) ListLog(ctx context.Context, rc model.RequestContext, printID int64) ([]model.LogEntry, error) {
	if err := requireStaff(rc); err != nil {
		return nil, err
	}
	p, err := s.prints.GetByID(ctx, printID)
	if err != nil {
		return nil, notFound("print", err)
	}
	if _, _, err := loadSession(ctx, s.exams, s.sessions, rc, p.SessionID); err != nil {
		return nil, err
	}
	entries, err := s.logs.ListByPrint(ctx, printID)
	if err != nil {
		return nil, internal("list log", err)
	}
	if entries == nil {
		entries = []model.LogEntry{}
	}
	return entries, nil
}
