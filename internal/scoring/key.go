// Package scoring grades printed questions against their answer keys and
// aggregates the results into scores and grades.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/stemsi/examprint/internal/model"
)

// ErrMalformedKey is returned when a question's stored options cannot form an
// answer key. It is an integrity violation, never a student error.
var ErrMalformedKey = errors.New("malformed answer key")

// Key is the answer key of one question. The set of keys is closed: one type
// per model.AnswerType, and each one knows how to score a raw answer.
type Key interface {
	Type() model.AnswerType
	score(answer string, order []int) (Outcome, error)
}

// IntKey accepts exactly one integer.
type IntKey struct {
	Value int64
}

// FloatKey accepts any number in the closed range [Min, Max].
type FloatKey struct {
	Min, Max float64
}

// TrueFalseKey accepts "T" or "F".
type TrueFalseKey struct {
	Value bool
}

// ChoiceKey marks which options are correct. Multiple selects the
// multiple-choice formula.
type ChoiceKey struct {
	Multiple bool
	Correct  []bool
}

// TextKey accepts any of its normalized variants.
type TextKey struct {
	Accepted []string
}

func (IntKey) Type() model.AnswerType       { return model.AnswerInt }
func (FloatKey) Type() model.AnswerType     { return model.AnswerFloat }
func (TrueFalseKey) Type() model.AnswerType { return model.AnswerTrueFalse }
func (TextKey) Type() model.AnswerType      { return model.AnswerText }

func (k ChoiceKey) Type() model.AnswerType {
	if k.Multiple {
		return model.AnswerMultipleChoice
	}
	return model.AnswerUniqueChoice
}

// NewKey builds the answer key of q from its options.
func NewKey(q *model.SetQuestion) (Key, error) {
	switch q.AnswerType {
	case model.AnswerInt:
		if len(q.Options) == 0 {
			return nil, keyError(q, "no integer answer")
		}
		v, err := strconv.ParseInt(strings.TrimSpace(q.Options[0].Text), 10, 64)
		if err != nil {
			return nil, keyError(q, "integer answer %q", q.Options[0].Text)
		}
		return IntKey{Value: v}, nil

	case model.AnswerFloat:
		if len(q.Options) != 2 {
			return nil, keyError(q, "float range needs 2 bounds, got %d", len(q.Options))
		}
		lo, ok1 := parseFloat(q.Options[0].Text)
		hi, ok2 := parseFloat(q.Options[1].Text)
		if !ok1 || !ok2 {
			return nil, keyError(q, "float bounds %q, %q", q.Options[0].Text, q.Options[1].Text)
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		return FloatKey{Min: lo, Max: hi}, nil

	case model.AnswerTrueFalse:
		if len(q.Options) == 0 {
			return nil, keyError(q, "no true/false answer")
		}
		switch strings.TrimSpace(q.Options[0].Text) {
		case "T":
			return TrueFalseKey{Value: true}, nil
		case "F":
			return TrueFalseKey{Value: false}, nil
		}
		return nil, keyError(q, "true/false answer %q", q.Options[0].Text)

	case model.AnswerUniqueChoice, model.AnswerMultipleChoice:
		correct := make([]bool, len(q.Options))
		for i, opt := range q.Options {
			correct[i] = opt.Correct
		}
		return ChoiceKey{Multiple: q.AnswerType == model.AnswerMultipleChoice, Correct: correct}, nil

	case model.AnswerText:
		accepted := make([]string, 0, len(q.Options))
		for _, opt := range q.Options {
			if n := Normalize(opt.Text); n != "" {
				accepted = append(accepted, n)
			}
		}
		return TextKey{Accepted: accepted}, nil
	}
	return nil, keyError(q, "answer type %q", q.AnswerType)
}

func keyError(q *model.SetQuestion, format string, args ...any) error {
	return fmt.Errorf("%w: question %d: %s", ErrMalformedKey, q.ID, fmt.Sprintf(format, args...))
}

// parseFloat accepts both '.' and ',' as decimal separator. NaN and the
// infinities are not numbers an answer or a bound can hold.
func parseFloat(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
