package service

import (
	"context"
	"fmt"

	"github.com/stemsi/examprint/internal/model"
	"github.com/stemsi/examprint/internal/scoring"
)

// gradedQuestion is a printed question scored against the current state of
// its set question.
type gradedQuestion struct {
	printed  model.PrintedQuestion
	question *model.SetQuestion
	outcome  scoring.Outcome
}

// gradePrint scores every printed question with the live answer keys and
// validity flags. A printed question whose set question is gone, or whose key
// is malformed, aborts the whole computation.
func gradePrint(ctx context.Context, questions QuestionStore, printed []model.PrintedQuestion) ([]gradedQuestion, error) {
	if len(printed) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(printed))
	for _, pq := range printed {
		ids = append(ids, pq.QuestionID)
	}
	current, err := questions.GetMany(ctx, ids)
	if err != nil {
		return nil, internal("load printed questions", err)
	}

	graded := make([]gradedQuestion, 0, len(printed))
	for _, pq := range printed {
		q, ok := current[pq.QuestionID]
		if !ok {
			return nil, fmt.Errorf("%w: printed question %d refers to missing question %d", ErrInternal, pq.Index, pq.QuestionID)
		}
		out, err := scoreOne(q, &pq)
		if err != nil {
			return nil, err
		}
		graded = append(graded, gradedQuestion{printed: pq, question: q, outcome: out})
	}
	return graded, nil
}

func scoreOne(q *model.SetQuestion, pq *model.PrintedQuestion) (scoring.Outcome, error) {
	key, err := scoring.NewKey(q)
	if err != nil {
		return scoring.Outcome{}, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	out, err := scoring.Score(key, pq.Answer, pq.OptionOrder)
	if err != nil {
		return scoring.Outcome{}, fmt.Errorf("%w: question %d: %w", ErrInternal, q.ID, err)
	}
	return out, nil
}

// summarize folds graded questions into both tallies.
func summarize(graded []gradedQuestion, maxGrade float64) (all, valid model.ScoreTally) {
	items := make([]scoring.Scored, len(graded))
	for i, g := range graded {
		items[i] = scoring.Scored{Outcome: g.outcome, Invalid: g.question.Invalid}
	}
	return scoring.Summarize(items, maxGrade)
}
