package service

import (
	"context"
	"time"

	"github.com/stemsi/examprint/internal/model"
	"github.com/stemsi/examprint/internal/repository"
)

// The stores below are the persistence each service needs. The repository
// package implements them on PostgreSQL.

type ExamStore interface {
	GetByID(ctx context.Context, id int64) (*model.Exam, error)
	ListByCourse(ctx context.Context, courseID int64, includeHidden bool) ([]model.Exam, error)
	ExistsTitle(ctx context.Context, courseID int64, title string, excludeID int64) (bool, error)
	Create(ctx context.Context, e *model.Exam) error
	Update(ctx context.Context, e *model.Exam) error
	SetHidden(ctx context.Context, id int64, hidden bool) error
	SetVisibility(ctx context.Context, id int64, v model.Visibility) error
	Delete(ctx context.Context, id int64) error
}

type SetStore interface {
	GetByID(ctx context.Context, id int64) (*model.Set, error)
	ListByExam(ctx context.Context, examID int64) ([]model.Set, error)
	ExistsTitle(ctx context.Context, examID int64, title string, excludeID int64) (bool, error)
	Update(ctx context.Context, s *model.Set) error
	WithExamLock(ctx context.Context, examID int64, fn func(repository.SetWriter) error) error
}

type QuestionStore interface {
	GetByID(ctx context.Context, id int64) (*model.SetQuestion, error)
	ListBySet(ctx context.Context, setID int64) ([]model.SetQuestion, error)
	GetMany(ctx context.Context, ids []int64) (map[int64]*model.SetQuestion, error)
	InsertBatch(ctx context.Context, setID int64, specs []model.QuestionSpec) ([]model.SetQuestion, error)
	Delete(ctx context.Context, id int64) error
	SetInvalid(ctx context.Context, id int64, invalid bool) error
}

type SessionStore interface {
	GetByID(ctx context.Context, id int64) (*model.Session, error)
	ListByExam(ctx context.Context, examID int64) ([]model.Session, error)
	ListEndedBetween(ctx context.Context, from, to time.Time) ([]int64, error)
	Create(ctx context.Context, s *model.Session) error
	Update(ctx context.Context, s *model.Session) error
	Delete(ctx context.Context, id int64) error
	SetHidden(ctx context.Context, id int64, hidden bool) error
	ToggleShowResults(ctx context.Context, id int64) (bool, error)
	ReplaceGroups(ctx context.Context, sessionID int64, groupIDs []int64) error
}

type GroupStore interface {
	UserGroups(ctx context.Context, courseID, userID int64) ([]int64, error)
	CountInCourse(ctx context.Context, courseID int64, ids []int64) (int, error)
}

type PrintStore interface {
	Create(ctx context.Context, p *model.Print) error
	GetByID(ctx context.Context, id int64) (*model.Print, error)
	GetBySessionAndUser(ctx context.Context, sessionID, userID int64) (*model.Print, error)
	ListBySession(ctx context.Context, sessionID int64) ([]model.Print, error)
	ListQuestions(ctx context.Context, printID int64) ([]model.PrintedQuestion, error)
	Activate(ctx context.Context, id int64, now time.Time) (bool, error)
	UpsertAnswer(ctx context.Context, q *model.PrintedQuestion) error
	UpdateProgress(ctx context.Context, id int64, at time.Time, notBlank int, score float64) error
	Finish(ctx context.Context, id int64, at time.Time, notBlank int, score float64) error
	ListIDsByQuestion(ctx context.Context, questionID int64) ([]int64, error)
	ListIDsBySessions(ctx context.Context, sessionIDs []int64) ([]int64, error)
}

type LogStore interface {
	Append(ctx context.Context, e *model.LogEntry) error
	Latest(ctx context.Context, printID int64) (repository.LatestClient, error)
	ListByPrint(ctx context.Context, printID int64) ([]model.LogEntry, error)
}

// Notifier carries the side effects that go through Redis: the live monitor
// channel and the re-score queue. Both are best effort.
type Notifier interface {
	PublishMonitor(ctx context.Context, ev model.MonitorEvent) error
	EnqueueRescore(ctx context.Context, printIDs ...int64) error
}

// RandomSource draws the permutations used to pick and order questions and
// options.
type RandomSource interface {
	Perm(n int) []int
}
