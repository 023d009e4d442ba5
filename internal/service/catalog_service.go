package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/examprint/internal/model"
	"github.com/stemsi/examprint/internal/repository"
	"github.com/stemsi/examprint/internal/scoring"
)

// CatalogService manages exams, their ordered sets and the questions copied
// into each set.
type CatalogService struct {
	exams           ExamStore
	sets            SetStore
	questions       QuestionStore
	prints          PrintStore
	notifier        Notifier
	defaultMaxGrade float64
	log             zerolog.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(
	exams ExamStore,
	sets SetStore,
	questions QuestionStore,
	prints PrintStore,
	notifier Notifier,
	defaultMaxGrade float64,
	log zerolog.Logger,
) *CatalogService {
	return &CatalogService{
		exams:           exams,
		sets:            sets,
		questions:       questions,
		prints:          prints,
		notifier:        notifier,
		defaultMaxGrade: defaultMaxGrade,
		log:             log.With().Str("component", "catalog_service").Logger(),
	}
}

// ─── Exams ──────────────────────────────────────────────────────────

// ListExams returns the exams of the caller's course. Students only see
// visible ones.
func (s *CatalogService) ListExams(ctx context.Context, rc model.RequestContext) ([]model.Exam, error) {
	if err := requireMember(rc); err != nil {
		return nil, err
	}
	exams, err := s.exams.ListByCourse(ctx, rc.CourseID, rc.Role.IsStaff())
	if err != nil {
		return nil, internal("list exams", err)
	}
	if exams == nil {
		exams = []model.Exam{}
	}
	return exams, nil
}

// GetExam returns one exam of the caller's course.
func (s *CatalogService) GetExam(ctx context.Context, rc model.RequestContext, examID int64) (*model.Exam, error) {
	if err := requireMember(rc); err != nil {
		return nil, err
	}
	return loadExam(ctx, s.exams, rc, examID)
}

// CheckIfSimilarExamExists reports whether another exam of the course has the
// same title. excludeID is the exam being edited, or 0.
func (s *CatalogService) CheckIfSimilarExamExists(ctx context.Context, courseID int64, title string, excludeID int64) (bool, error) {
	exists, err := s.exams.ExistsTitle(ctx, courseID, strings.TrimSpace(title), excludeID)
	if err != nil {
		return false, internal("check exam title", err)
	}
	return exists, nil
}

// CreateExam adds an exam to the caller's course.
func (s *CatalogService) CreateExam(ctx context.Context, rc model.RequestContext, req *model.CreateExamRequest) (*model.Exam, error) {
	if err := requireEditor(rc); err != nil {
		return nil, err
	}

	exam := &model.Exam{
		CourseID: rc.CourseID,
		OwnerID:  rc.UserID,
		MaxGrade: s.defaultMaxGrade,
		Title:    strings.TrimSpace(req.Title),
		Text:     req.Text,
	}
	if req.MaxGrade != nil {
		exam.MaxGrade = *req.MaxGrade
	}
	if req.Visibility != nil {
		exam.Visibility = req.Visibility.Sanitize()
	}

	if err := s.checkExamTitle(ctx, exam.CourseID, exam.Title, 0); err != nil {
		return nil, err
	}
	if err := s.exams.Create(ctx, exam); err != nil {
		if isDuplicate(err) {
			return nil, &NameConflictError{Field: "title", Value: exam.Title}
		}
		return nil, internal("create exam", err)
	}

	s.log.Info().Int64("exam_id", exam.ID).Int64("course_id", exam.CourseID).Msg("Exam created")
	return exam, nil
}

// UpdateExam renames, re-describes or re-scales an exam.
func (s *CatalogService) UpdateExam(ctx context.Context, rc model.RequestContext, examID int64, req *model.UpdateExamRequest) (*model.Exam, error) {
	if err := requireEditor(rc); err != nil {
		return nil, err
	}
	exam, err := loadExam(ctx, s.exams, rc, examID)
	if err != nil {
		return nil, err
	}

	exam.Title = strings.TrimSpace(req.Title)
	exam.Text = req.Text
	if req.MaxGrade != nil {
		exam.MaxGrade = *req.MaxGrade
	}

	if err := s.checkExamTitle(ctx, exam.CourseID, exam.Title, exam.ID); err != nil {
		return nil, err
	}
	if err := s.exams.Update(ctx, exam); err != nil {
		if isDuplicate(err) {
			return nil, &NameConflictError{Field: "title", Value: exam.Title}
		}
		return nil, notFound("exam", err)
	}
	return exam, nil
}

// SetExamHidden hides or unhides an exam.
func (s *CatalogService) SetExamHidden(ctx context.Context, rc model.RequestContext, examID int64, hidden bool) error {
	if err := requireEditor(rc); err != nil {
		return err
	}
	if _, err := loadExam(ctx, s.exams, rc, examID); err != nil {
		return err
	}
	if err := s.exams.SetHidden(ctx, examID, hidden); err != nil {
		return notFound("exam", err)
	}
	return nil
}

// SetExamVisibility replaces what students may see of their results.
// Undefined bits are dropped.
func (s *CatalogService) SetExamVisibility(ctx context.Context, rc model.RequestContext, examID int64, v model.Visibility) (model.Visibility, error) {
	if err := requireEditor(rc); err != nil {
		return 0, err
	}
	if _, err := loadExam(ctx, s.exams, rc, examID); err != nil {
		return 0, err
	}
	v = v.Sanitize()
	if err := s.exams.SetVisibility(ctx, examID, v); err != nil {
		return 0, notFound("exam", err)
	}
	return v, nil
}

// RemoveExam deletes an exam and everything it owns.
func (s *CatalogService) RemoveExam(ctx context.Context, rc model.RequestContext, examID int64) error {
	if err := requireEditor(rc); err != nil {
		return err
	}
	if _, err := loadExam(ctx, s.exams, rc, examID); err != nil {
		return err
	}
	if err := s.exams.Delete(ctx, examID); err != nil {
		return notFound("exam", err)
	}
	s.log.Info().Int64("exam_id", examID).Int64("user_id", rc.UserID).Msg("Exam removed")
	return nil
}

func (s *CatalogService) checkExamTitle(ctx context.Context, courseID int64, title string, excludeID int64) error {
	exists, err := s.CheckIfSimilarExamExists(ctx, courseID, title, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return &NameConflictError{Field: "title", Value: title}
	}
	return nil
}

// ─── Sets ───────────────────────────────────────────────────────────

// ListSets returns the sets of an exam in index order.
func (s *CatalogService) ListSets(ctx context.Context, rc model.RequestContext, examID int64) ([]model.Set, error) {
	if err := requireStaff(rc); err != nil {
		return nil, err
	}
	if _, err := loadExam(ctx, s.exams, rc, examID); err != nil {
		return nil, err
	}
	sets, err := s.sets.ListByExam(ctx, examID)
	if err != nil {
		return nil, internal("list sets", err)
	}
	if sets == nil {
		sets = []model.Set{}
	}
	return sets, nil
}

// CheckIfSimilarSetExists reports whether another set of the exam has the
// same title. excludeID is the set being edited, or 0.
func (s *CatalogService) CheckIfSimilarSetExists(ctx context.Context, examID int64, title string, excludeID int64) (bool, error) {
	exists, err := s.sets.ExistsTitle(ctx, examID, strings.TrimSpace(title), excludeID)
	if err != nil {
		return false, internal("check set title", err)
	}
	return exists, nil
}

// CreateSet appends a set to an exam. The requested index must be exactly
// one past the current last set; zero means "append".
func (s *CatalogService) CreateSet(ctx context.Context, rc model.RequestContext, examID int64, req *model.CreateSetRequest) (*model.Set, error) {
	if err := requireEditor(rc); err != nil {
		return nil, err
	}
	if _, err := loadExam(ctx, s.exams, rc, examID); err != nil {
		return nil, err
	}

	set := &model.Set{
		ExamID:     examID,
		PrintCount: req.PrintCount,
		Title:      strings.TrimSpace(req.Title),
	}
	if err := s.checkSetTitle(ctx, examID, set.Title, 0); err != nil {
		return nil, err
	}

	err := s.sets.WithExamLock(ctx, examID, func(w repository.SetWriter) error {
		last, err := w.MaxIndex(ctx, examID)
		if err != nil {
			return internal("max set index", err)
		}
		set.Index = req.Index
		if set.Index == 0 {
			set.Index = last + 1
		}
		if set.Index != last+1 {
			return fmt.Errorf("%w: got %d, next is %d", ErrSetIndexNotNext, set.Index, last+1)
		}
		if err := w.Insert(ctx, set); err != nil {
			if isDuplicate(err) {
				return &NameConflictError{Field: "title", Value: set.Title}
			}
			return internal("insert set", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("exam_id", examID).Int64("set_id", set.ID).Int("index", set.Index).Msg("Set created")
	return set, nil
}

// UpdateSet changes the title and print count of a set.
func (s *CatalogService) UpdateSet(ctx context.Context, rc model.RequestContext, examID, setID int64, req *model.UpdateSetRequest) (*model.Set, error) {
	if err := requireEditor(rc); err != nil {
		return nil, err
	}
	set, err := s.loadSet(ctx, rc, examID, setID)
	if err != nil {
		return nil, err
	}

	set.Title = strings.TrimSpace(req.Title)
	set.PrintCount = req.PrintCount
	if err := s.checkSetTitle(ctx, examID, set.Title, set.ID); err != nil {
		return nil, err
	}
	if err := s.sets.Update(ctx, set); err != nil {
		if isDuplicate(err) {
			return nil, &NameConflictError{Field: "title", Value: set.Title}
		}
		return nil, notFound("set", err)
	}
	return set, nil
}

// RemoveSet deletes a set with its questions and renumbers every later set of
// the exam down by one, keeping indexes contiguous.
func (s *CatalogService) RemoveSet(ctx context.Context, rc model.RequestContext, examID, setID int64) error {
	if err := requireEditor(rc); err != nil {
		return err
	}
	if _, err := s.loadSet(ctx, rc, examID, setID); err != nil {
		return err
	}
	printIDs, err := s.printsOfSet(ctx, setID)
	if err != nil {
		return err
	}

	err = s.sets.WithExamLock(ctx, examID, func(w repository.SetWriter) error {
		set, err := w.Get(ctx, setID)
		if err != nil {
			return notFound("set", err)
		}
		if set.ExamID != examID {
			return ErrSetNotInExam
		}
		if err := w.Delete(ctx, set.ID); err != nil {
			return notFound("set", err)
		}
		if err := w.ShiftDown(ctx, examID, set.Index); err != nil {
			return internal("renumber sets", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.enqueueRescore(ctx, printIDs)
	s.log.Info().Int64("exam_id", examID).Int64("set_id", setID).Msg("Set removed")
	return nil
}

// printsOfSet lists the prints holding any question of the set.
func (s *CatalogService) printsOfSet(ctx context.Context, setID int64) ([]int64, error) {
	qs, err := s.questions.ListBySet(ctx, setID)
	if err != nil {
		return nil, internal("list questions", err)
	}
	seen := make(map[int64]bool)
	var ids []int64
	for _, q := range qs {
		printIDs, err := s.prints.ListIDsByQuestion(ctx, q.ID)
		if err != nil {
			return nil, internal("list prints of question", err)
		}
		for _, id := range printIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// MoveSet swaps two adjacent sets of an exam.
func (s *CatalogService) MoveSet(ctx context.Context, rc model.RequestContext, examID int64, fromIndex, toIndex int) error {
	if err := requireEditor(rc); err != nil {
		return err
	}
	if _, err := loadExam(ctx, s.exams, rc, examID); err != nil {
		return err
	}
	if d := fromIndex - toIndex; d != 1 && d != -1 {
		return fmt.Errorf("%w: only adjacent sets can be swapped", ErrInvalidState)
	}

	upperIndex, lowerIndex := min(fromIndex, toIndex), max(fromIndex, toIndex)
	return s.sets.WithExamLock(ctx, examID, func(w repository.SetWriter) error {
		upper, err := w.GetByIndex(ctx, examID, upperIndex)
		if err != nil {
			return s.moveError(err)
		}
		lower, err := w.GetByIndex(ctx, examID, lowerIndex)
		if err != nil {
			return s.moveError(err)
		}
		if err := w.Swap(ctx, upper, lower); err != nil {
			return internal("swap sets", err)
		}
		return nil
	})
}

// MoveSetUp moves a set one position towards the start of the exam.
func (s *CatalogService) MoveSetUp(ctx context.Context, rc model.RequestContext, examID, setID int64) error {
	return s.moveSet(ctx, rc, examID, setID, model.MoveUp)
}

// MoveSetDown moves a set one position towards the end of the exam.
func (s *CatalogService) MoveSetDown(ctx context.Context, rc model.RequestContext, examID, setID int64) error {
	return s.moveSet(ctx, rc, examID, setID, model.MoveDown)
}

func (s *CatalogService) moveSet(ctx context.Context, rc model.RequestContext, examID, setID int64, dir model.MoveDirection) error {
	if err := requireEditor(rc); err != nil {
		return err
	}
	set, err := s.loadSet(ctx, rc, examID, setID)
	if err != nil {
		return err
	}
	to := set.Index + 1
	if dir == model.MoveUp {
		to = set.Index - 1
	}
	if to < 1 {
		return ErrSetMoveOutOfRange
	}
	return s.MoveSet(ctx, rc, examID, set.Index, to)
}

func (s *CatalogService) moveError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrSetMoveOutOfRange
	}
	return internal("load set by index", err)
}

func (s *CatalogService) loadSet(ctx context.Context, rc model.RequestContext, examID, setID int64) (*model.Set, error) {
	if _, err := loadExam(ctx, s.exams, rc, examID); err != nil {
		return nil, err
	}
	set, err := s.sets.GetByID(ctx, setID)
	if err != nil {
		return nil, notFound("set", err)
	}
	if set.ExamID != examID {
		return nil, ErrSetNotInExam
	}
	return set, nil
}

func (s *CatalogService) checkSetTitle(ctx context.Context, examID int64, title string, excludeID int64) error {
	exists, err := s.CheckIfSimilarSetExists(ctx, examID, title, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return &NameConflictError{Field: "title", Value: title}
	}
	return nil
}

// ─── Questions ──────────────────────────────────────────────────────

// ListSetQuestions returns the questions of a set with their options.
func (s *CatalogService) ListSetQuestions(ctx context.Context, rc model.RequestContext, examID, setID int64) ([]model.SetQuestion, error) {
	if err := requireStaff(rc); err != nil {
		return nil, err
	}
	if _, err := s.loadSet(ctx, rc, examID, setID); err != nil {
		return nil, err
	}
	qs, err := s.questions.ListBySet(ctx, setID)
	if err != nil {
		return nil, internal("list questions", err)
	}
	if qs == nil {
		qs = []model.SetQuestion{}
	}
	return qs, nil
}

// AddQuestionsToSet copies bank questions into a set. Each question must
// yield a usable answer key; the whole batch is rejected otherwise.
func (s *CatalogService) AddQuestionsToSet(ctx context.Context, rc model.RequestContext, examID, setID int64, specs []model.QuestionSpec) ([]model.SetQuestion, error) {
	if err := requireEditor(rc); err != nil {
		return nil, err
	}
	if _, err := s.loadSet(ctx, rc, examID, setID); err != nil {
		return nil, err
	}

	for i, spec := range specs {
		if err := checkQuestionSpec(&spec); err != nil {
			return nil, fmt.Errorf("%w: question %d: %v", ErrInvalidState, i, err)
		}
	}

	created, err := s.questions.InsertBatch(ctx, setID, specs)
	if err != nil {
		return nil, internal("insert questions", err)
	}
	s.log.Info().Int64("set_id", setID).Int("count", len(created)).Msg("Questions added to set")
	return created, nil
}

func checkQuestionSpec(spec *model.QuestionSpec) error {
	q := model.SetQuestion{AnswerType: spec.AnswerType}
	for i, o := range spec.Options {
		q.Options = append(q.Options, model.AnswerOption{Index: i, Text: o.Text, Correct: o.Correct})
	}
	if spec.AnswerType.IsChoice() && len(spec.Options) < 2 {
		return errors.New("choice questions need at least two options")
	}
	_, err := scoring.NewKey(&q)
	return err
}

// RemoveQuestion deletes a question from its set. Printed copies of it go
// too, so every affected print is queued for a cache refresh.
func (s *CatalogService) RemoveQuestion(ctx context.Context, rc model.RequestContext, examID, questionID int64) error {
	if err := requireEditor(rc); err != nil {
		return err
	}
	if _, err := s.loadQuestion(ctx, rc, examID, questionID); err != nil {
		return err
	}

	printIDs, err := s.prints.ListIDsByQuestion(ctx, questionID)
	if err != nil {
		return internal("list prints of question", err)
	}
	if err := s.questions.Delete(ctx, questionID); err != nil {
		return notFound("question", err)
	}
	s.enqueueRescore(ctx, printIDs)
	return nil
}

// InvalidateQuestion excludes a question from every valid-only score,
// including prints already finished.
func (s *CatalogService) InvalidateQuestion(ctx context.Context, rc model.RequestContext, examID, questionID int64) error {
	return s.SetQuestionValidity(ctx, rc, examID, questionID, false)
}

// ValidateQuestion reverts InvalidateQuestion.
func (s *CatalogService) ValidateQuestion(ctx context.Context, rc model.RequestContext, examID, questionID int64) error {
	return s.SetQuestionValidity(ctx, rc, examID, questionID, true)
}

// SetQuestionValidity flips the validity flag. Scores are always recomputed
// from the live flag; the prints holding the question are only queued so
// their advisory cache catches up.
func (s *CatalogService) SetQuestionValidity(ctx context.Context, rc model.RequestContext, examID, questionID int64, valid bool) error {
	if err := requireEditor(rc); err != nil {
		return err
	}
	if _, err := s.loadQuestion(ctx, rc, examID, questionID); err != nil {
		return err
	}
	if err := s.questions.SetInvalid(ctx, questionID, !valid); err != nil {
		return notFound("question", err)
	}

	printIDs, err := s.prints.ListIDsByQuestion(ctx, questionID)
	if err != nil {
		s.log.Warn().Err(err).Int64("question_id", questionID).Msg("Could not list prints to rescore")
		return nil
	}
	s.enqueueRescore(ctx, printIDs)

	s.log.Info().
		Int64("question_id", questionID).
		Bool("valid", valid).
		Int("prints", len(printIDs)).
		Msg("Question validity changed")
	return nil
}

func (s *CatalogService) loadQuestion(ctx context.Context, rc model.RequestContext, examID, questionID int64) (*model.SetQuestion, error) {
	if _, err := loadExam(ctx, s.exams, rc, examID); err != nil {
		return nil, err
	}
	q, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		return nil, notFound("question", err)
	}
	if q.ExamID != examID {
		return nil, fmt.Errorf("%w: question", ErrNotFound)
	}
	return q, nil
}

func (s *CatalogService) enqueueRescore(ctx context.Context, printIDs []int64) {
	if len(printIDs) == 0 {
		return
	}
	if err := s.notifier.EnqueueRescore(ctx, printIDs...); err != nil {
		s.log.Warn().Err(err).Int("prints", len(printIDs)).Msg("Failed to enqueue rescore")
	}
}
