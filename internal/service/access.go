package service

import (
	"context"
	"fmt"

	"github.com/stemsi/examprint/internal/model"
)

func requireEditor(rc model.RequestContext) error {
	if !rc.Role.CanEdit() {
		return ErrEditorOnly
	}
	return nil
}

func requireStaff(rc model.RequestContext) error {
	if !rc.Role.IsStaff() {
		return ErrStaffOnly
	}
	return nil
}

// requireMember rejects callers that are not enrolled in the course at all.
func requireMember(rc model.RequestContext) error {
	if rc.Role < model.RoleStudent || !rc.Role.Valid() {
		return fmt.Errorf("%w: not a member of the course", ErrPermissionDenied)
	}
	return nil
}

// loadExam fetches an exam of the caller's course. An exam of another course
// is reported as missing; a hidden exam is denied to non-staff.
func loadExam(ctx context.Context, exams ExamStore, rc model.RequestContext, examID int64) (*model.Exam, error) {
	exam, err := exams.GetByID(ctx, examID)
	if err != nil {
		return nil, notFound("exam", err)
	}
	if exam.CourseID != rc.CourseID {
		return nil, fmt.Errorf("%w: exam", ErrNotFound)
	}
	if exam.Hidden && !rc.Role.IsStaff() {
		return nil, fmt.Errorf("%w: exam is hidden", ErrPermissionDenied)
	}
	return exam, nil
}

// loadSession fetches a session and its exam, both checked against the
// caller's course and visibility.
func loadSession(ctx context.Context, exams ExamStore, sessions SessionStore, rc model.RequestContext, sessionID int64) (*model.Session, *model.Exam, error) {
	session, err := sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, nil, notFound("session", err)
	}
	exam, err := loadExam(ctx, exams, rc, session.ExamID)
	if err != nil {
		return nil, nil, err
	}
	if session.Hidden && !rc.Role.IsStaff() {
		return nil, nil, fmt.Errorf("%w: session is hidden", ErrPermissionDenied)
	}
	return session, exam, nil
}
