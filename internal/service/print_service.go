package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/examprint/internal/model"
)

// PrintService draws prints from an exam's sets and runs the attempt: start,
// resume, answer and finish.
type PrintService struct {
	exams        ExamStore
	sessions     SessionStore
	groups       GroupStore
	sets         SetStore
	questions    QuestionStore
	prints       PrintStore
	logs         *LogService
	notifier     Notifier
	rng          RandomSource
	maxQuestions int
	log          zerolog.Logger
}

// PrintDeps groups the collaborators of a PrintService.
type PrintDeps struct {
	Exams     ExamStore
	Sessions  SessionStore
	Groups    GroupStore
	Sets      SetStore
	Questions QuestionStore
	Prints    PrintStore
	Logs      *LogService
	Notifier  Notifier
	Rand      RandomSource
}

// NewPrintService creates a new PrintService. A nil Rand uses the global
// math/rand source.
func NewPrintService(deps PrintDeps, maxQuestions int, log zerolog.Logger) *PrintService {
	rng := deps.Rand
	if rng == nil {
		rng = globalRand{}
	}
	return &PrintService{
		exams:        deps.Exams,
		sessions:     deps.Sessions,
		groups:       deps.Groups,
		sets:         deps.Sets,
		questions:    deps.Questions,
		prints:       deps.Prints,
		logs:         deps.Logs,
		notifier:     deps.Notifier,
		rng:          rng,
		maxQuestions: maxQuestions,
		log:          log.With().Str("component", "print_service").Logger(),
	}
}

type globalRand struct{}

func (globalRand) Perm(n int) []int { return rand.Perm(n) }

// AnswerResult is what a student gets back after answering one question.
type AnswerResult struct {
	Question   model.PrintedQuestion `json:"question"`
	NotBlank   int                   `json:"num_questions_not_blank"`
	Continuity model.Continuity      `json:"continuity"`
}

// ─── Drawing ────────────────────────────────────────────────────────

// draw picks the questions of a new print. Sets contribute in index order,
// each up to its print count, and option orders are frozen here.
func (s *PrintService) draw(ctx context.Context, examID int64) ([]model.PrintedQuestion, error) {
	sets, err := s.sets.ListByExam(ctx, examID)
	if err != nil {
		return nil, internal("list sets", err)
	}

	var out []model.PrintedQuestion
	for _, set := range sets {
		if set.PrintCount <= 0 {
			continue
		}
		pool, err := s.questions.ListBySet(ctx, set.ID)
		if err != nil {
			return nil, internal("list set questions", err)
		}
		for _, q := range pickQuestions(pool, set.PrintCount, s.rng) {
			if len(out) >= s.maxQuestions {
				s.log.Warn().Int64("exam_id", examID).Int("max", s.maxQuestions).Msg("Print truncated")
				return out, nil
			}
			pq := model.PrintedQuestion{
				Index:      len(out),
				QuestionID: q.ID,
				SetID:      set.ID,
			}
			if q.AnswerType.IsChoice() {
				if len(q.Options) == 0 {
					return nil, fmt.Errorf("%w: choice question %d has no options", ErrInternal, q.ID)
				}
				pq.OptionOrder = s.optionOrder(q)
			}
			out = append(out, pq)
		}
	}
	if len(out) == 0 {
		return nil, ErrNothingToPrint
	}
	return out, nil
}

func (s *PrintService) optionOrder(q *model.SetQuestion) []int {
	if q.Shuffle {
		return s.rng.Perm(len(q.Options))
	}
	order := make([]int, len(q.Options))
	for i := range order {
		order[i] = i
	}
	return order
}

// pickQuestions takes up to count questions from pool at random. Valid
// questions are preferred; invalid ones only fill the remainder.
func pickQuestions(pool []model.SetQuestion, count int, rng RandomSource) []*model.SetQuestion {
	var valid, invalid []*model.SetQuestion
	for i := range pool {
		if pool[i].Invalid {
			invalid = append(invalid, &pool[i])
		} else {
			valid = append(valid, &pool[i])
		}
	}
	picked := make([]*model.SetQuestion, 0, min(count, len(pool)))
	for _, group := range [][]*model.SetQuestion{valid, invalid} {
		for _, i := range rng.Perm(len(group)) {
			if len(picked) == count {
				return picked
			}
			picked = append(picked, group[i])
		}
	}
	return picked
}

// ─── Creation ───────────────────────────────────────────────────────

// CreatePrint pre-creates a pending print of the session for userID. The
// student starts it later; until then its dates stay at the epoch.
func (s *PrintService) CreatePrint(ctx context.Context, rc model.RequestContext, sessionID, userID int64) (*model.Print, error) {
	if err := requireEditor(rc); err != nil {
		return nil, err
	}
	session, exam, err := loadSession(ctx, s.exams, s.sessions, rc, sessionID)
	if err != nil {
		return nil, err
	}
	p, err := s.createPrint(ctx, session, exam, userID, model.Epoch)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Int64("session_id", sessionID).
		Int64("user_id", userID).
		Int64("print_id", p.ID).
		Int64("created_by", rc.UserID).
		Msg("Print pre-created")
	return p, nil
}

func (s *PrintService) createPrint(ctx context.Context, session *model.Session, exam *model.Exam, userID int64, at time.Time) (*model.Print, error) {
	questions, err := s.draw(ctx, exam.ID)
	if err != nil {
		return nil, err
	}
	p := &model.Print{
		SessionID: session.ID,
		UserID:    userID,
		StartTime: at,
		EndTime:   at,
		NumQsts:   len(questions),
		Questions: questions,
	}
	if err := s.prints.Create(ctx, p); err != nil {
		if isDuplicate(err) {
			return nil, ErrPrintExists
		}
		return nil, internal("create print", err)
	}
	return p, nil
}

// ─── Attempt ────────────────────────────────────────────────────────

// StartOrResume opens the caller's print of a session. An existing print is
// resumed, activating it if it was pre-created. Otherwise a new print is
// drawn, which requires the session to accept answers now.
func (s *PrintService) StartOrResume(ctx context.Context, rc model.RequestContext, sessionID int64) (*model.Print, error) {
	session, exam, err := s.enter(ctx, rc, sessionID)
	if err != nil {
		return nil, err
	}
	can, err := canAnswer(ctx, s.groups, rc, exam, session)
	if err != nil {
		return nil, err
	}

	p, err := s.prints.GetBySessionAndUser(ctx, session.ID, rc.UserID)
	switch {
	case err == nil:
		return s.resume(ctx, rc, session, p, can)
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, internal("get print", err)
	}

	if !can {
		return nil, ErrSessionClosed
	}
	p, err = s.createPrint(ctx, session, exam, rc.UserID, rc.Now)
	if errors.Is(err, ErrPrintExists) {
		// Lost a race with another request of the same user.
		p, err = s.prints.GetBySessionAndUser(ctx, session.ID, rc.UserID)
		if err != nil {
			return nil, internal("get print", err)
		}
		return s.resume(ctx, rc, session, p, can)
	}
	if err != nil {
		return nil, err
	}

	if _, _, err := s.logs.LogAccess(ctx, rc, p, model.LogStart, model.NoQuestion, can); err != nil {
		return nil, err
	}
	s.log.Info().
		Int64("session_id", session.ID).
		Int64("user_id", rc.UserID).
		Int64("print_id", p.ID).
		Int("questions", len(p.Questions)).
		Msg("Print started")
	return p, nil
}

func (s *PrintService) resume(ctx context.Context, rc model.RequestContext, session *model.Session, p *model.Print, can bool) (*model.Print, error) {
	if p.State() == model.PrintPending {
		if !can {
			return nil, ErrSessionClosed
		}
		if _, err := s.prints.Activate(ctx, p.ID, rc.Now); err != nil {
			return nil, internal("activate print", err)
		}
		p.StartTime = rc.Now
		p.EndTime = rc.Now
	}
	if _, _, err := s.logs.LogAccess(ctx, rc, p, model.LogResume, model.NoQuestion, can); err != nil {
		return nil, err
	}
	return s.withQuestions(ctx, p)
}

// AnswerQuestion records the caller's answer to one printed question and
// refreshes the print's progress. The attempt is logged whether or not it is
// accepted. Re-sending the same answer leaves the print unchanged.
func (s *PrintService) AnswerQuestion(ctx context.Context, rc model.RequestContext, sessionID int64, index int, answer string) (*AnswerResult, error) {
	session, p, can, err := s.active(ctx, rc, sessionID)
	if err != nil {
		return nil, err
	}
	_, cont, err := s.logs.LogAccess(ctx, rc, p, model.LogAnswerQuestion, index, can)
	if err != nil {
		return nil, err
	}
	if !can {
		return nil, ErrSessionClosed
	}

	printed, err := s.prints.ListQuestions(ctx, p.ID)
	if err != nil {
		return nil, internal("list printed questions", err)
	}
	pos := -1
	for i := range printed {
		if printed[i].Index == index {
			pos = i
			break
		}
	}
	if pos < 0 {
		return nil, fmt.Errorf("%w: question %d of print", ErrNotFound, index)
	}

	pq := &printed[pos]
	q, err := s.questions.GetByID(ctx, pq.QuestionID)
	if err != nil {
		return nil, notFound("question", err)
	}
	pq.Answer = answer
	out, err := scoreOne(q, pq)
	if err != nil {
		return nil, err
	}
	if out.Blank {
		// Stored empty so the progress count agrees with grading.
		pq.Answer = ""
	}
	pq.Score = out.Score
	if err := s.prints.UpsertAnswer(ctx, pq); err != nil {
		return nil, internal("save answer", err)
	}

	notBlank, total := progress(printed)
	if err := s.prints.UpdateProgress(ctx, p.ID, rc.Now, notBlank, total); err != nil {
		return nil, internal("update print progress", err)
	}

	s.log.Debug().
		Int64("session_id", session.ID).
		Int64("print_id", p.ID).
		Int("index", index).
		Bool("blank", out.Blank).
		Msg("Answer stored")
	return &AnswerResult{Question: *pq, NotBlank: notBlank, Continuity: cont}, nil
}

// Finish closes the caller's print. Counters are recomputed from the printed
// questions and the print is queued for a full cache refresh.
func (s *PrintService) Finish(ctx context.Context, rc model.RequestContext, sessionID int64) (*model.Print, error) {
	session, p, can, err := s.active(ctx, rc, sessionID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.logs.LogAccess(ctx, rc, p, model.LogFinish, model.NoQuestion, can); err != nil {
		return nil, err
	}
	if !can {
		return nil, ErrSessionClosed
	}

	printed, err := s.prints.ListQuestions(ctx, p.ID)
	if err != nil {
		return nil, internal("list printed questions", err)
	}
	graded, err := gradePrint(ctx, s.questions, printed)
	if err != nil {
		return nil, err
	}
	notBlank, total := 0, 0.0
	for _, g := range graded {
		if !g.outcome.Blank {
			notBlank++
		}
		total += g.outcome.Score
	}
	if err := s.prints.Finish(ctx, p.ID, rc.Now, notBlank, total); err != nil {
		return nil, internal("finish print", err)
	}
	if err := s.notifier.EnqueueRescore(ctx, p.ID); err != nil {
		s.log.Warn().Err(err).Int64("print_id", p.ID).Msg("Failed to enqueue rescore")
	}

	p.Finished = true
	p.EndTime = rc.Now
	p.NumQstsNotBlank = notBlank
	p.Score = total
	p.Questions = printed
	s.log.Info().
		Int64("session_id", session.ID).
		Int64("print_id", p.ID).
		Int("not_blank", notBlank).
		Float64("score", total).
		Msg("Print finished")
	return p, nil
}

// GetOwnPrint returns the caller's print of a session without logging.
func (s *PrintService) GetOwnPrint(ctx context.Context, rc model.RequestContext, sessionID int64) (*model.Print, error) {
	session, _, err := s.enter(ctx, rc, sessionID)
	if err != nil {
		return nil, err
	}
	p, err := s.prints.GetBySessionAndUser(ctx, session.ID, rc.UserID)
	if err != nil {
		return nil, notFound("print", err)
	}
	return s.withQuestions(ctx, p)
}

// enter loads a session for a course member, enforcing the group restriction.
func (s *PrintService) enter(ctx context.Context, rc model.RequestContext, sessionID int64) (*model.Session, *model.Exam, error) {
	if err := requireMember(rc); err != nil {
		return nil, nil, err
	}
	session, exam, err := loadSession(ctx, s.exams, s.sessions, rc, sessionID)
	if err != nil {
		return nil, nil, err
	}
	ok, err := canAccessBasedOnGroups(ctx, s.groups, rc, session)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrGroupRestricted
	}
	return session, exam, nil
}

// active loads the caller's started print and whether it may take answers.
// A finished print only does so in sessions that are not online.
func (s *PrintService) active(ctx context.Context, rc model.RequestContext, sessionID int64) (*model.Session, *model.Print, bool, error) {
	session, exam, err := s.enter(ctx, rc, sessionID)
	if err != nil {
		return nil, nil, false, err
	}
	p, err := s.prints.GetBySessionAndUser(ctx, session.ID, rc.UserID)
	if err != nil {
		return nil, nil, false, notFound("print", err)
	}
	if p.State() == model.PrintPending {
		return nil, nil, false, ErrPrintNotStarted
	}
	can, err := canAnswer(ctx, s.groups, rc, exam, session)
	if err != nil {
		return nil, nil, false, err
	}
	if p.Finished && !session.AcceptsAnswersAfterFinish() {
		can = false
	}
	return session, p, can, nil
}

func (s *PrintService) withQuestions(ctx context.Context, p *model.Print) (*model.Print, error) {
	printed, err := s.prints.ListQuestions(ctx, p.ID)
	if err != nil {
		return nil, internal("list printed questions", err)
	}
	p.Questions = printed
	return p, nil
}

// progress counts answered questions and sums the cached per-question scores.
func progress(printed []model.PrintedQuestion) (notBlank int, score float64) {
	for i := range printed {
		if !printed[i].IsBlank() {
			notBlank++
		}
		score += printed[i].Score
	}
	return notBlank, score
}

// Sheet renders a print for the student taking it. Options of choice
// questions follow the print's frozen order; other answer types expose no
// options since those hold the accepted answers.
func (s *PrintService) Sheet(ctx context.Context, p *model.Print) (*model.Sheet, error) {
	printed := p.Questions
	if printed == nil {
		var err error
		if printed, err = s.prints.ListQuestions(ctx, p.ID); err != nil {
			return nil, internal("list printed questions", err)
		}
	}

	ids := make([]int64, 0, len(printed))
	for _, pq := range printed {
		ids = append(ids, pq.QuestionID)
	}
	current, err := s.questions.GetMany(ctx, ids)
	if err != nil {
		return nil, internal("load printed questions", err)
	}

	sheet := &model.Sheet{
		PrintID:         p.ID,
		SessionID:       p.SessionID,
		StartTime:       p.StartTime,
		EndTime:         p.EndTime,
		Finished:        p.Finished,
		NumQsts:         p.NumQsts,
		NumQstsNotBlank: p.NumQstsNotBlank,
		Questions:       make([]model.SheetQuestion, 0, len(printed)),
	}
	for _, pq := range printed {
		q, ok := current[pq.QuestionID]
		if !ok {
			return nil, fmt.Errorf("%w: printed question %d refers to missing question %d", ErrInternal, pq.Index, pq.QuestionID)
		}
		sq := model.SheetQuestion{
			Index:      pq.Index,
			AnswerType: q.AnswerType,
			Stem:       q.Stem,
			MediaRef:   q.MediaRef,
			Answer:     pq.Answer,
		}
		if q.AnswerType.IsChoice() {
			for _, pos := range pq.OptionOrder {
				if pos < 0 || pos >= len(q.Options) {
					return nil, fmt.Errorf("%w: option order of printed question %d out of range", ErrInternal, pq.Index)
				}
				opt := q.Options[pos]
				sq.Options = append(sq.Options, model.SheetOption{Index: opt.Index, Text: opt.Text, MediaRef: opt.MediaRef})
			}
		}
		sheet.Questions = append(sheet.Questions, sq)
	}
	return sheet, nil
}
