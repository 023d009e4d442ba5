package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stemsi/examprint/internal/model"
)

// SessionService schedules exam sessions and decides who may reach them.
type SessionService struct {
	exams    ExamStore
	sessions SessionStore
	groups   GroupStore
	log      zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(exams ExamStore, sessions SessionStore, groups GroupStore, log zerolog.Logger) *SessionService {
	return &SessionService{
		exams:    exams,
		sessions: sessions,
		groups:   groups,
		log:      log.With().Str("component", "session_service").Logger(),
	}
}

// CreateSession schedules a session of an exam. Results always start hidden
// from students; showing them is a separate toggle.
func (s *SessionService) CreateSession(ctx context.Context, rc model.RequestContext, examID int64, req *model.CreateSessionRequest) (*model.Session, error) {
	if err := requireEditor(rc); err != nil {
		return nil, err
	}
	if _, err := loadExam(ctx, s.exams, rc, examID); err != nil {
		return nil, err
	}

	session := &model.Session{
		ExamID:      examID,
		CreatorID:   rc.UserID,
		ShowResults: false,
		GroupIDs:    []int64{},
	}
	applySessionRequest(session, req)

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, internal("create session", err)
	}
	s.log.Info().
		Int64("exam_id", examID).
		Int64("session_id", session.ID).
		Time("start", session.StartTime).
		Time("end", session.EndTime).
		Msg("Session created")
	return session, nil
}

// UpdateSession changes the schedule and display settings of a session.
func (s *SessionService) UpdateSession(ctx context.Context, rc model.RequestContext, sessionID int64, req *model.UpdateSessionRequest) (*model.Session, error) {
	if err := requireEditor(rc); err != nil {
		return nil, err
	}
	session, _, err := loadSession(ctx, s.exams, s.sessions, rc, sessionID)
	if err != nil {
		return nil, err
	}
	applySessionRequest(session, req)
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, notFound("session", err)
	}
	return session, nil
}

func applySessionRequest(session *model.Session, req *model.CreateSessionRequest) {
	session.Modality = req.Modality
	session.StartTime = req.StartTime.UTC()
	session.EndTime = req.EndTime.UTC()
	session.Title = strings.TrimSpace(req.Title)
	session.Columns = req.Columns
	if session.Columns == 0 {
		session.Columns = 1
	}
	session.ShowPhotos = req.ShowPhotos
}

// RemoveSession deletes a session with its prints and their log.
func (s *SessionService) RemoveSession(ctx context.Context, rc model.RequestContext, sessionID int64) error {
	if err := requireEditor(rc); err != nil {
		return err
	}
	if _, _, err := loadSession(ctx, s.exams, s.sessions, rc, sessionID); err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return notFound("session", err)
	}
	s.log.Info().Int64("session_id", sessionID).Int64("user_id", rc.UserID).Msg("Session removed")
	return nil
}

// SetSessionHidden hides or unhides a session.
func (s *SessionService) SetSessionHidden(ctx context.Context, rc model.RequestContext, sessionID int64, hidden bool) error {
	if err := requireEditor(rc); err != nil {
		return err
	}
	if _, _, err := loadSession(ctx, s.exams, s.sessions, rc, sessionID); err != nil {
		return err
	}
	if err := s.sessions.SetHidden(ctx, sessionID, hidden); err != nil {
		return notFound("session", err)
	}
	return nil
}

// ToggleShowResults flips whether students may see their results and returns
// the new value.
func (s *SessionService) ToggleShowResults(ctx context.Context, rc model.RequestContext, sessionID int64) (bool, error) {
	if err := requireEditor(rc); err != nil {
		return false, err
	}
	if _, _, err := loadSession(ctx, s.exams, s.sessions, rc, sessionID); err != nil {
		return false, err
	}
	show, err := s.sessions.ToggleShowResults(ctx, sessionID)
	if err != nil {
		return false, notFound("session", err)
	}
	return show, nil
}

// RestrictToGroups limits a session to some groups of the course. An empty
// list removes the restriction.
func (s *SessionService) RestrictToGroups(ctx context.Context, rc model.RequestContext, sessionID int64, groupIDs []int64) (*model.Session, error) {
	if err := requireEditor(rc); err != nil {
		return nil, err
	}
	session, _, err := loadSession(ctx, s.exams, s.sessions, rc, sessionID)
	if err != nil {
		return nil, err
	}

	ids := slices.Clone(groupIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	if len(ids) > 0 {
		n, err := s.groups.CountInCourse(ctx, rc.CourseID, ids)
		if err != nil {
			return nil, internal("check groups", err)
		}
		if n != len(ids) {
			return nil, fmt.Errorf("%w: group of this course", ErrNotFound)
		}
	}

	if err := s.sessions.ReplaceGroups(ctx, sessionID, ids); err != nil {
		return nil, internal("replace session groups", err)
	}
	session.GroupIDs = ids
	return session, nil
}

// GetSession returns a session the caller may see.
func (s *SessionService) GetSession(ctx context.Context, rc model.RequestContext, sessionID int64) (*model.Session, error) {
	if err := requireMember(rc); err != nil {
		return nil, err
	}
	session, _, err := loadSession(ctx, s.exams, s.sessions, rc, sessionID)
	if err != nil {
		return nil, err
	}
	ok, err := s.CanAccessBasedOnGroups(ctx, rc, session)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrGroupRestricted
	}
	return session, nil
}

// ListSessions returns the sessions of an exam. Students do not see hidden
// sessions or sessions restricted to groups they are not in.
func (s *SessionService) ListSessions(ctx context.Context, rc model.RequestContext, examID int64) ([]model.Session, error) {
	if err := requireMember(rc); err != nil {
		return nil, err
	}
	if _, err := loadExam(ctx, s.exams, rc, examID); err != nil {
		return nil, err
	}
	all, err := s.sessions.ListByExam(ctx, examID)
	if err != nil {
		return nil, internal("list sessions", err)
	}
	if rc.Role.IsStaff() {
		if all == nil {
			all = []model.Session{}
		}
		return all, nil
	}

	mine, err := s.groups.UserGroups(ctx, rc.CourseID, rc.UserID)
	if err != nil {
		return nil, internal("load user groups", err)
	}
	visible := make([]model.Session, 0, len(all))
	for i := range all {
		if all[i].Hidden || !groupsAllow(all[i].GroupIDs, mine) {
			continue
		}
		visible = append(visible, all[i])
	}
	return visible, nil
}

// IsOpen reports whether the session accepts answers at now, regardless of
// its hidden flag.
func (s *SessionService) IsOpen(session *model.Session, rc model.RequestContext) bool {
	return session.IsOpen(rc.Now)
}

// CanAccessBasedOnGroups reports whether the caller may reach the session
// given its group restriction. Membership is read live, so it reflects the
// user's current groups. Staff always pass.
func (s *SessionService) CanAccessBasedOnGroups(ctx context.Context, rc model.RequestContext, session *model.Session) (bool, error) {
	return canAccessBasedOnGroups(ctx, s.groups, rc, session)
}

// CanAnswer reports whether the caller may submit answers to the session now.
func (s *SessionService) CanAnswer(ctx context.Context, rc model.RequestContext, exam *model.Exam, session *model.Session) (bool, error) {
	return canAnswer(ctx, s.groups, rc, exam, session)
}

func canAccessBasedOnGroups(ctx context.Context, groups GroupStore, rc model.RequestContext, session *model.Session) (bool, error) {
	if rc.Role.IsStaff() || len(session.GroupIDs) == 0 {
		return true, nil
	}
	mine, err := groups.UserGroups(ctx, rc.CourseID, rc.UserID)
	if err != nil {
		return false, internal("load user groups", err)
	}
	return groupsAllow(session.GroupIDs, mine), nil
}

func canAnswer(ctx context.Context, groups GroupStore, rc model.RequestContext, exam *model.Exam, session *model.Session) (bool, error) {
	if !session.IsOpen(rc.Now) {
		return false, nil
	}
	if !rc.Role.IsStaff() && (exam.Hidden || session.Hidden) {
		return false, nil
	}
	return canAccessBasedOnGroups(ctx, groups, rc, session)
}

// groupsAllow reports whether a restriction admits a user in mine. No
// restriction admits everybody.
func groupsAllow(restriction, mine []int64) bool {
	if len(restriction) == 0 {
		return true
	}
	for _, g := range mine {
		if slices.Contains(restriction, g) {
			return true
		}
	}
	return false
}
