package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/gosimple/slug"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/examprint/internal/model"
	"github.com/stemsi/examprint/internal/repository"
	"github.com/xuri/excelize/v2"
)

// ResultService recomputes print results from the printed answers and the
// live answer keys, and shapes them for whoever asks.
type ResultService struct {
	exams     ExamStore
	sessions  SessionStore
	prints    PrintStore
	questions QuestionStore
	log       zerolog.Logger
}

// NewResultService creates a new ResultService.
func NewResultService(exams ExamStore, sessions SessionStore, prints PrintStore, questions QuestionStore, log zerolog.Logger) *ResultService {
	return &ResultService{
		exams:     exams,
		sessions:  sessions,
		prints:    prints,
		questions: questions,
		log:       log.With().Str("component", "result_service").Logger(),
	}
}

// SessionExport is a spreadsheet of a session's results.
type SessionExport struct {
	Filename string
	Data     *bytes.Buffer
}

// Recompute scores a print from scratch and returns the values of its
// advisory cache.
func (s *ResultService) Recompute(ctx context.Context, printID int64) (repository.ScoreCache, error) {
	printed, err := s.prints.ListQuestions(ctx, printID)
	if err != nil {
		return repository.ScoreCache{}, internal("list printed questions", err)
	}
	graded, err := gradePrint(ctx, s.questions, printed)
	if err != nil {
		return repository.ScoreCache{}, err
	}
	all, valid := summarize(graded, 0)
	return repository.ScoreCache{
		PrintID:      printID,
		NumQsts:      all.NumQsts,
		NotBlank:     all.NotBlank,
		Score:        all.Score,
		NumQstsValid: valid.NumQsts,
		ScoreValid:   valid.Score,
	}, nil
}

// PrintResult returns the result of one print. Students only get their own,
// once the session shows results, trimmed by the exam's visibility mask.
func (s *ResultService) PrintResult(ctx context.Context, rc model.RequestContext, printID int64) (*model.PrintResult, error) {
	if err := requireMember(rc); err != nil {
		return nil, err
	}
	p, err := s.prints.GetByID(ctx, printID)
	if err != nil {
		return nil, notFound("print", err)
	}
	session, exam, err := loadSession(ctx, s.exams, s.sessions, rc, p.SessionID)
	if err != nil {
		return nil, err
	}
	if !rc.Role.IsStaff() {
		if p.UserID != rc.UserID {
			return nil, fmt.Errorf("%w: print of another user", ErrPermissionDenied)
		}
		if !session.ShowResults {
			return nil, ErrResultsHidden
		}
	}

	res, err := s.build(ctx, p, exam, true)
	if err != nil {
		return nil, err
	}
	if !rc.Role.IsStaff() {
		restrictResult(res, exam.Visibility)
	}
	return res, nil
}

// SessionResults lists result summaries of a session. Staff get every print;
// a student gets at most their own.
func (s *ResultService) SessionResults(ctx context.Context, rc model.RequestContext, sessionID int64) ([]model.PrintResult, error) {
	if err := requireMember(rc); err != nil {
		return nil, err
	}
	session, exam, err := loadSession(ctx, s.exams, s.sessions, rc, sessionID)
	if err != nil {
		return nil, err
	}

	if !rc.Role.IsStaff() {
		p, err := s.prints.GetBySessionAndUser(ctx, session.ID, rc.UserID)
		if errors.Is(err, pgx.ErrNoRows) {
			return []model.PrintResult{}, nil
		}
		if err != nil {
			return nil, internal("get print", err)
		}
		if !session.ShowResults {
			return nil, ErrResultsHidden
		}
		res, err := s.build(ctx, p, exam, false)
		if err != nil {
			return nil, err
		}
		restrictResult(res, exam.Visibility)
		return []model.PrintResult{*res}, nil
	}

	prints, err := s.prints.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, internal("list prints", err)
	}
	out := make([]model.PrintResult, 0, len(prints))
	for i := range prints {
		res, err := s.build(ctx, &prints[i], exam, false)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, nil
}

// ExportSession renders the session's results as an XLSX workbook.
func (s *ResultService) ExportSession(ctx context.Context, rc model.RequestContext, sessionID int64) (*SessionExport, error) {
	if err := requireStaff(rc); err != nil {
		return nil, err
	}
	session, exam, err := loadSession(ctx, s.exams, s.sessions, rc, sessionID)
	if err != nil {
		return nil, err
	}
	results, err := s.SessionResults(ctx, rc, sessionID)
	if err != nil {
		return nil, err
	}

	buf, err := writeResultsWorkbook(session, results)
	if err != nil {
		return nil, internal("write workbook", err)
	}
	s.log.Info().
		Int64("session_id", sessionID).
		Int("prints", len(results)).
		Msg("Session results exported")
	return &SessionExport{
		Filename: slug.Make(exam.Title+" "+session.Title) + ".xlsx",
		Data:     buf,
	}, nil
}

// build recomputes a print's result. Per-question details are only filled
// when withQuestions is set.
func (s *ResultService) build(ctx context.Context, p *model.Print, exam *model.Exam, withQuestions bool) (*model.PrintResult, error) {
	printed, err := s.prints.ListQuestions(ctx, p.ID)
	if err != nil {
		return nil, internal("list printed questions", err)
	}
	graded, err := gradePrint(ctx, s.questions, printed)
	if err != nil {
		return nil, err
	}
	all, valid := summarize(graded, exam.MaxGrade)

	res := &model.PrintResult{
		Print:       p.Summary(),
		All:         &all,
		Valid:       &valid,
		GradesMatch: all.NumQsts == valid.NumQsts,
	}
	if !withQuestions {
		return res, nil
	}

	res.Questions = make([]model.QuestionResult, 0, len(graded))
	for _, g := range graded {
		score := g.outcome.Score
		res.Questions = append(res.Questions, model.QuestionResult{
			Index:         g.printed.Index,
			QuestionID:    g.question.ID,
			Invalid:       g.question.Invalid,
			AnswerType:    g.question.AnswerType,
			Stem:          g.question.Stem,
			Feedback:      g.question.Feedback,
			Options:       slices.Clone(g.question.Options),
			OptionOrder:   g.printed.OptionOrder,
			Answer:        g.printed.Answer,
			Blank:         g.outcome.Blank,
			Score:         &score,
			CorrectAnswer: correctAnswer(g.question),
		})
	}
	return res, nil
}

// correctAnswer lists the texts that make up the right answer.
func correctAnswer(q *model.SetQuestion) []string {
	out := make([]string, 0, len(q.Options))
	for _, opt := range q.Options {
		if q.AnswerType.IsChoice() && !opt.Correct {
			continue
		}
		out = append(out, opt.Text)
	}
	return out
}

// restrictResult strips what the visibility mask does not let a student see.
func restrictResult(res *model.PrintResult, v model.Visibility) {
	if !v.Has(model.VisibleTotalScore) {
		res.All = nil
		res.Valid = nil
	}
	for i := range res.Questions {
		q := &res.Questions[i]
		if !v.Has(model.VisibleQuestionText) {
			q.Stem = ""
			q.Options = nil
			q.OptionOrder = nil
			q.Answer = ""
		}
		if !v.Has(model.VisibleFeedback) {
			q.Feedback = ""
			for j := range q.Options {
				q.Options[j].Feedback = ""
			}
		}
		if !v.Has(model.VisibleCorrectAnswer) {
			q.CorrectAnswer = nil
			for j := range q.Options {
				q.Options[j].Correct = false
			}
		}
		if !v.Has(model.VisibleEachScore) {
			q.Score = nil
		}
	}
}

var resultColumns = []any{
	"Print", "User", "Start", "End", "Finished",
	"Questions", "Not blank", "Score", "Grade",
	"Valid questions", "Valid score", "Valid grade",
}

func writeResultsWorkbook(session *model.Session, results []model.PrintResult) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Results"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(sheet, "A1", &resultColumns); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return nil, err
	}

	for i, r := range results {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{
			r.Print.ID,
			r.Print.UserID,
			r.Print.StartTime,
			r.Print.EndTime,
			r.Print.Finished,
			r.All.NumQsts,
			r.All.NotBlank,
			r.All.Score,
			r.All.Grade,
			r.Valid.NumQsts,
			r.Valid.Score,
			r.Valid.Grade,
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}
	if err := f.SetDocProps(&excelize.DocProperties{Title: session.Title}); err != nil {
		return nil, err
	}
	return f.WriteToBuffer()
}
