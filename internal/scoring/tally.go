package scoring

import "github.com/stemsi/examprint/internal/model"

// Add folds one outcome into t.
func Add(t *model.ScoreTally, o Outcome) {
	t.NumQsts++
	if !o.Blank {
		t.NotBlank++
	}
	switch o.Bucket() {
	case BucketBlank:
		t.Blank++
	case BucketCorrect:
		t.Correct++
	case BucketWrongNegative:
		t.WrongNegative++
	case BucketWrongZero:
		t.WrongZero++
	case BucketWrongPositive:
		t.WrongPositive++
	}
	t.Score += o.Score
}

// Grade maps a score over numQsts questions onto [0, maxGrade]. The score is
// clamped to [0, numQsts] first; with no questions the grade is 0.
func Grade(maxGrade, score float64, numQsts int) float64 {
	if numQsts <= 0 {
		return 0
	}
	n := float64(numQsts)
	switch {
	case score < 0:
		score = 0
	case score > n:
		score = n
	}
	return maxGrade * score / n
}

// Scored pairs an outcome with the question's current validity.
type Scored struct {
	Outcome Outcome
	Invalid bool
}

// Summarize builds the all-questions and valid-only tallies and their grades.
func Summarize(items []Scored, maxGrade float64) (all, valid model.ScoreTally) {
	for _, it := range items {
		Add(&all, it.Outcome)
		if !it.Invalid {
			Add(&valid, it.Outcome)
		}
	}
	all.Grade = Grade(maxGrade, all.Score, all.NumQsts)
	valid.Grade = Grade(maxGrade, valid.Score, valid.NumQsts)
	return all, valid
}
