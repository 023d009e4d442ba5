package service

import (
	"context"
	"testing"
	"time"

	"github.com/stemsi/examprint/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenario is an exam with one set holding the given questions, all printed,
// and a session open around testNow.
type scenario struct {
	w       *world
	exam    *model.Exam
	set     *model.Set
	qs      []model.SetQuestion
	session *model.Session
}

func newScenario(t *testing.T, w *world, modality model.Modality, specs ...model.QuestionSpec) *scenario {
	t.Helper()
	ctx := context.Background()
	exam := createExam(t, w, "Algebra")
	set, err := w.catalog.CreateSet(ctx, teacherCtx(), exam.ID, &model.CreateSetRequest{
		Title:      "Part A",
		PrintCount: len(specs),
	})
	require.NoError(t, err)
	qs, err := w.catalog.AddQuestionsToSet(ctx, teacherCtx(), exam.ID, set.ID, specs)
	require.NoError(t, err)
	session := createSession(t, w, exam.ID, modality, testNow.Add(-time.Hour), testNow.Add(time.Hour))
	return &scenario{w: w, exam: exam, set: set, qs: qs, session: session}
}

func TestEndToEndGradingAndInvalidation(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	sc := newScenario(t, w, model.ModalityOnline, unique("4", "5", "6"), unique("8", "9", "10"))
	student := studentCtx(200)

	p, err := w.prints.StartOrResume(ctx, student, sc.session.ID)
	require.NoError(t, err)
	require.Len(t, p.Questions, 2)
	assert.Equal(t, 2, p.NumQsts)
	assert.Equal(t, model.PrintActive, p.State())

	_, err = w.prints.AnswerQuestion(ctx, student, sc.session.ID, 0, "0")
	require.NoError(t, err)
	res, err := w.prints.AnswerQuestion(ctx, student, sc.session.ID, 1, "1")
	require.NoError(t, err)
	assert.InDelta(t, -0.5, res.Question.Score, 1e-9)
	assert.Equal(t, 2, res.NotBlank)

	finished, err := w.prints.Finish(ctx, student, sc.session.ID)
	require.NoError(t, err)
	assert.True(t, finished.Finished)
	assert.InDelta(t, 0.5, finished.Score, 1e-9)
	assert.Contains(t, w.notifier.enqueued, p.ID)

	result, err := w.results.PrintResult(ctx, teacherCtx(), p.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, result.All.Score, 1e-9)
	assert.InDelta(t, 2.5, result.All.Grade, 1e-9)
	assert.Equal(t, 1, result.All.Correct)
	assert.Equal(t, 1, result.All.WrongNegative)
	assert.True(t, result.GradesMatch)

	// Invalidating the wrong question re-grades the finished print on read.
	require.NoError(t, w.catalog.InvalidateQuestion(ctx, teacherCtx(), sc.exam.ID, sc.qs[1].ID))

	result, err = w.results.PrintResult(ctx, teacherCtx(), p.ID)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, result.All.Grade, 1e-9)
	assert.Equal(t, 1, result.Valid.NumQsts)
	assert.InDelta(t, 1.0, result.Valid.Score, 1e-9)
	assert.InDelta(t, 10.0, result.Valid.Grade, 1e-9)
	assert.False(t, result.GradesMatch)

	cache, err := w.results.Recompute(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.NumQsts)
	assert.Equal(t, 1, cache.NumQstsValid)
	assert.InDelta(t, 1.0, cache.ScoreValid, 1e-9)
}

func TestStartOrResumeKeepsOnePrintPerUser(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	sc := newScenario(t, w, model.ModalityOnline, unique("a", "b"))
	student := studentCtx(200)

	first, err := w.prints.StartOrResume(ctx, student, sc.session.ID)
	require.NoError(t, err)
	second, err := w.prints.StartOrResume(ctx, student, sc.session.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = w.prints.CreatePrint(ctx, teacherCtx(), sc.session.ID, 200)
	assert.ErrorIs(t, err, ErrPrintExists)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	entries, err := w.logs.ListLog(ctx, teacherCtx(), first.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.LogStart, entries[0].Action)
	assert.Equal(t, model.LogResume, entries[1].Action)
}

func TestReanswerIsIdempotent(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	sc := newScenario(t, w, model.ModalityOnline, unique("a", "b", "c"), unique("d", "e"))
	student := studentCtx(200)

	p, err := w.prints.StartOrResume(ctx, student, sc.session.ID)
	require.NoError(t, err)

	_, err = w.prints.AnswerQuestion(ctx, student, sc.session.ID, 0, "2")
	require.NoError(t, err)
	before, err := w.prints.GetOwnPrint(ctx, student, sc.session.ID)
	require.NoError(t, err)

	_, err = w.prints.AnswerQuestion(ctx, student, sc.session.ID, 0, "2")
	require.NoError(t, err)
	after, err := w.prints.GetOwnPrint(ctx, student, sc.session.ID)
	require.NoError(t, err)

	assert.Equal(t, before.Questions, after.Questions)
	assert.Equal(t, before.NumQstsNotBlank, after.NumQstsNotBlank)
	assert.InDelta(t, before.Score, after.Score, 1e-9)
	assert.Equal(t, 1, after.NumQstsNotBlank)

	// An empty answer blanks the question again.
	_, err = w.prints.AnswerQuestion(ctx, student, sc.session.ID, 0, "")
	require.NoError(t, err)
	blanked, err := w.prints.GetOwnPrint(ctx, student, sc.session.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, blanked.NumQstsNotBlank)
	assert.Equal(t, p.ID, blanked.ID)
}

func TestAnswerOutsideShownOptionsStaysBlank(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	sc := newScenario(t, w, model.ModalityOnline, unique("a", "b", "c"))
	student := studentCtx(200)

	_, err := w.prints.StartOrResume(ctx, student, sc.session.ID)
	require.NoError(t, err)

	res, err := w.prints.AnswerQuestion(ctx, student, sc.session.ID, 0, "7")
	require.NoError(t, err)
	assert.Equal(t, 0, res.NotBlank)
	assert.Empty(t, res.Question.Answer)
	assert.Zero(t, res.Question.Score)

	finished, err := w.prints.Finish(ctx, student, sc.session.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, finished.NumQstsNotBlank)
}

func TestPreCreatedPrintIsPendingUntilStarted(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	sc := newScenario(t, w, model.ModalityPaper, unique("a", "b"))
	student := studentCtx(200)

	pre, err := w.prints.CreatePrint(ctx, teacherCtx(), sc.session.ID, 200)
	require.NoError(t, err)
	assert.Equal(t, model.PrintPending, pre.State())
	assert.True(t, pre.StartTime.Equal(model.Epoch))

	_, err = w.prints.AnswerQuestion(ctx, student, sc.session.ID, 0, "0")
	assert.ErrorIs(t, err, ErrPrintNotStarted)

	started, err := w.prints.StartOrResume(ctx, student, sc.session.ID)
	require.NoError(t, err)
	assert.Equal(t, pre.ID, started.ID)
	assert.Equal(t, model.PrintActive, started.State())
	assert.True(t, started.StartTime.Equal(testNow))
}

func TestStartOutsideSessionWindow(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	sc := newScenario(t, w, model.ModalityOnline, unique("a", "b"))

	late := studentCtx(200)
	late.Now = testNow.Add(2 * time.Hour)
	_, err := w.prints.StartOrResume(ctx, late, sc.session.ID)
	assert.ErrorIs(t, err, ErrSessionClosed)

	_, err = w.prints.GetOwnPrint(ctx, late, sc.session.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAnswersAfterFinishDependOnModality(t *testing.T) {
	tests := []struct {
		modality model.Modality
		accepted bool
	}{
		{model.ModalityOnline, false},
		{model.ModalityPaper, true},
		{model.ModalityNone, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.modality), func(t *testing.T) {
			w := newWorld()
			ctx := context.Background()
			sc := newScenario(t, w, tt.modality, unique("a", "b"))
			student := studentCtx(200)

			p, err := w.prints.StartOrResume(ctx, student, sc.session.ID)
			require.NoError(t, err)
			_, err = w.prints.Finish(ctx, student, sc.session.ID)
			require.NoError(t, err)

			_, err = w.prints.AnswerQuestion(ctx, student, sc.session.ID, 0, "0")
			if tt.accepted {
				require.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrSessionClosed)
			}

			entries, err := w.logs.ListLog(ctx, teacherCtx(), p.ID)
			require.NoError(t, err)
			last := entries[len(entries)-1]
			assert.Equal(t, model.LogAnswerQuestion, last.Action)
			assert.Equal(t, tt.accepted, last.CanAnswer)
		})
	}
}

func TestDrawPrefersValidQuestions(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	exam := createExam(t, w, "Algebra")
	set, err := w.catalog.CreateSet(ctx, teacherCtx(), exam.ID, &model.CreateSetRequest{Title: "A", PrintCount: 2})
	require.NoError(t, err)
	qs, err := w.catalog.AddQuestionsToSet(ctx, teacherCtx(), exam.ID, set.ID,
		[]model.QuestionSpec{unique("a", "b"), unique("c", "d"), unique("e", "f")})
	require.NoError(t, err)
	require.NoError(t, w.catalog.InvalidateQuestion(ctx, teacherCtx(), exam.ID, qs[0].ID))
	session := createSession(t, w, exam.ID, model.ModalityOnline, testNow, testNow.Add(time.Hour))

	p, err := w.prints.StartOrResume(ctx, studentCtx(200), session.ID)
	require.NoError(t, err)
	require.Len(t, p.Questions, 2)
	for i, pq := range p.Questions {
		assert.Equal(t, i, pq.Index)
		assert.NotEqual(t, qs[0].ID, pq.QuestionID)
		assert.Equal(t, set.ID, pq.SetID)
	}
}

func TestDrawCapsAtAvailableQuestions(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	exam := createExam(t, w, "Algebra")
	set, err := w.catalog.CreateSet(ctx, teacherCtx(), exam.ID, &model.CreateSetRequest{Title: "A", PrintCount: 5})
	require.NoError(t, err)
	_, err = w.catalog.AddQuestionsToSet(ctx, teacherCtx(), exam.ID, set.ID, []model.QuestionSpec{unique("a", "b")})
	require.NoError(t, err)
	session := createSession(t, w, exam.ID, model.ModalityOnline, testNow, testNow.Add(time.Hour))

	p, err := w.prints.StartOrResume(ctx, studentCtx(200), session.ID)
	require.NoError(t, err)
	assert.Len(t, p.Questions, 1)
}

func TestEmptyDrawIsRejected(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	exam := createExam(t, w, "Algebra")
	createSets(t, w, exam.ID, "Empty")
	session := createSession(t, w, exam.ID, model.ModalityOnline, testNow, testNow.Add(time.Hour))

	_, err := w.prints.StartOrResume(ctx, studentCtx(200), session.ID)
	assert.ErrorIs(t, err, ErrNothingToPrint)

	_, err = w.prints.GetOwnPrint(ctx, studentCtx(200), session.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestShuffledOptionsAreFrozenInThePrint(t *testing.T) {
	w := newWorldWithRand(reverseRand{})
	ctx := context.Background()
	spec := unique("right", "wrong", "also wrong")
	spec.Shuffle = true
	sc := newScenario(t, w, model.ModalityOnline, spec, unique("x", "y"))
	student := studentCtx(200)

	p, err := w.prints.StartOrResume(ctx, student, sc.session.ID)
	require.NoError(t, err)
	byQuestion := map[int64][]int{}
	for _, pq := range p.Questions {
		byQuestion[pq.QuestionID] = pq.OptionOrder
	}
	assert.Equal(t, []int{2, 1, 0}, byQuestion[sc.qs[0].ID])
	assert.Equal(t, []int{0, 1}, byQuestion[sc.qs[1].ID])

	// Answers name original option indexes whatever the on-screen order.
	var index int
	for _, pq := range p.Questions {
		if pq.QuestionID == sc.qs[0].ID {
			index = pq.Index
		}
	}
	res, err := w.prints.AnswerQuestion(ctx, student, sc.session.ID, index, "0")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Question.Score, 1e-9)
}

func TestSheetShowsOptionsInPrintedOrder(t *testing.T) {
	w := newWorldWithRand(reverseRand{})
	ctx := context.Background()
	spec := unique("right", "wrong", "also wrong")
	spec.Shuffle = true
	numeric := model.QuestionSpec{
		AnswerType: model.AnswerInt,
		Stem:       "How many?",
		Options:    []model.OptionSpec{{Text: "42", Correct: true}},
	}
	sc := newScenario(t, w, model.ModalityOnline, spec, numeric)
	student := studentCtx(200)

	p, err := w.prints.StartOrResume(ctx, student, sc.session.ID)
	require.NoError(t, err)

	sheet, err := w.prints.Sheet(ctx, p)
	require.NoError(t, err)
	require.Len(t, sheet.Questions, 2)
	assert.Equal(t, p.ID, sheet.PrintID)

	for _, q := range sheet.Questions {
		switch q.AnswerType {
		case model.AnswerUniqueChoice:
			require.Len(t, q.Options, 3)
			assert.Equal(t, "also wrong", q.Options[0].Text)
			assert.Equal(t, 2, q.Options[0].Index)
			assert.Equal(t, "right", q.Options[2].Text)
			assert.Equal(t, 0, q.Options[2].Index)
		case model.AnswerInt:
			assert.Empty(t, q.Options, "accepted answers must not leak")
			assert.Equal(t, "How many?", q.Stem)
		default:
			t.Fatalf("unexpected answer type %s", q.AnswerType)
		}
	}
}

func TestAnswerUnknownIndex(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	sc := newScenario(t, w, model.ModalityOnline, unique("a", "b"))
	student := studentCtx(200)

	_, err := w.prints.StartOrResume(ctx, student, sc.session.ID)
	require.NoError(t, err)
	_, err = w.prints.AnswerQuestion(ctx, student, sc.session.ID, 5, "0")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemovedQuestionShrinksPrints(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	sc := newScenario(t, w, model.ModalityOnline, unique("a", "b"), unique("c", "d"))
	student := studentCtx(200)

	p, err := w.prints.StartOrResume(ctx, student, sc.session.ID)
	require.NoError(t, err)
	require.NoError(t, w.catalog.RemoveQuestion(ctx, teacherCtx(), sc.exam.ID, sc.qs[0].ID))
	assert.Contains(t, w.notifier.enqueued, p.ID)

	cache, err := w.results.Recompute(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.NumQsts)
}
