package model

import "fmt"

// AnswerType is how a question expects to be answered. Stored as its string code.
type AnswerType string

const (
	AnswerInt            AnswerType = "int"
	AnswerFloat          AnswerType = "float"
	AnswerTrueFalse      AnswerType = "true_false"
	AnswerUniqueChoice   AnswerType = "unique_choice"
	AnswerMultipleChoice AnswerType = "multiple_choice"
	AnswerText           AnswerType = "text"
)

// AnswerTypes lists every defined answer type.
var AnswerTypes = []AnswerType{
	AnswerInt,
	AnswerFloat,
	AnswerTrueFalse,
	AnswerUniqueChoice,
	AnswerMultipleChoice,
	AnswerText,
}

// ParseAnswerType converts a stored code into an AnswerType.
func ParseAnswerType(code string) (AnswerType, error) {
	for _, t := range AnswerTypes {
		if string(t) == code {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown answer type %q", code)
}

// IsChoice reports whether answers are picked among options.
func (t AnswerType) IsChoice() bool {
	return t == AnswerUniqueChoice || t == AnswerMultipleChoice
}

// SetQuestion is a question snapshotted into a set. Invalid questions still
// belong to prints but drop out of the valid-only score.
type SetQuestion struct {
	ID         int64          `json:"id"`
	SetID      int64          `json:"set_id"`
	ExamID     int64          `json:"exam_id"`
	Invalid    bool           `json:"invalid"`
	AnswerType AnswerType     `json:"answer_type"`
	Shuffle    bool           `json:"shuffle"`
	Stem       string         `json:"stem"`
	Feedback   string         `json:"feedback"`
	MediaRef   *string        `json:"media_ref,omitempty"`
	Options    []AnswerOption `json:"options"`
}

// AnswerOption is one option of a question. For numeric, true/false and text
// questions the options hold the accepted answers instead of choices.
type AnswerOption struct {
	QuestionID int64   `json:"question_id"`
	Index      int     `json:"index"`
	Text       string  `json:"text"`
	Feedback   string  `json:"feedback"`
	MediaRef   *string `json:"media_ref,omitempty"`
	Correct    bool    `json:"correct"`
}

// QuestionSpec is a bank question to be copied into a set.
type QuestionSpec struct {
	AnswerType AnswerType   `json:"answer_type" binding:"required,answer_type"`
	Shuffle    bool         `json:"shuffle"`
	Stem       string       `json:"stem" binding:"required,max=65535"`
	Feedback   string       `json:"feedback" binding:"max=65535"`
	MediaRef   *string      `json:"media_ref" binding:"omitempty,max=255"`
	Options    []OptionSpec `json:"options" binding:"required,min=1,max=10,dive"`
}

// OptionSpec is one option of a QuestionSpec.
type OptionSpec struct {
	Text     string  `json:"text" binding:"max=65535"`
	Feedback string  `json:"feedback" binding:"max=65535"`
	MediaRef *string `json:"media_ref" binding:"omitempty,max=255"`
	Correct  bool    `json:"correct"`
}

// AddQuestionsRequest is the payload for copying bank questions into a set.
type AddQuestionsRequest struct {
	Questions []QuestionSpec `json:"questions" binding:"required,min=1,max=100,dive"`
}

// SetValidityRequest validates or invalidates a question.
type SetValidityRequest struct {
	Valid *bool `json:"valid" binding:"required"`
}
