package model

// Visibility is the per-exam bitmask of what a student may see of their own result.
type Visibility uint8

const (
	VisibleQuestionText Visibility = 1 << iota
	VisibleFeedback
	VisibleCorrectAnswer
	VisibleEachScore
	VisibleTotalScore
)

// VisibilityAll has every defined bit set.
const VisibilityAll = VisibleQuestionText | VisibleFeedback | VisibleCorrectAnswer | VisibleEachScore | VisibleTotalScore

// Has reports whether every bit of flag is set.
func (v Visibility) Has(flag Visibility) bool {
	return v&flag == flag
}

// Sanitize drops bits outside the defined set.
func (v Visibility) Sanitize() Visibility {
	return v & VisibilityAll
}
