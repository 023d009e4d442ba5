package model

import (
	"strings"
	"time"
)

// Epoch marks the dates of a print pre-created by a teacher and not yet
// started by its student.
var Epoch = time.Unix(0, 0).UTC()

// PrintState is derived from a print's dates and finish flag.
type PrintState string

const (
	PrintPending  PrintState = "pending"
	PrintActive   PrintState = "active"
	PrintFinished PrintState = "finished"
)

// Print is the unique materialization of one user attempting one session.
// NumQsts, NumQstsNotBlank, Score and the valid-only pair are advisory caches;
// results are always recomputed from the printed questions.
type Print struct {
	ID              int64     `json:"id"`
	SessionID       int64     `json:"session_id"`
	UserID          int64     `json:"user_id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Finished        bool      `json:"finished"`
	NumQsts         int       `json:"num_questions"`
	NumQstsNotBlank int       `json:"num_questions_not_blank"`
	Score           float64   `json:"score"`
	NumQstsValid    int       `json:"num_questions_valid"`
	ScoreValid      float64   `json:"score_valid"`

	Questions []PrintedQuestion `json:"questions,omitempty"`
}

// State reports where the print is in its lifecycle.
func (p *Print) State() PrintState {
	switch {
	case p.Finished:
		return PrintFinished
	case p.StartTime.Equal(Epoch):
		return PrintPending
	default:
		return PrintActive
	}
}

// PrintedQuestion is the frozen copy of one drawn question: which set question,
// from which set, and the on-screen order of its options. Answer is the raw
// string the user submitted.
type PrintedQuestion struct {
	PrintID     int64   `json:"print_id"`
	Index       int     `json:"index"`
	QuestionID  int64   `json:"question_id"`
	SetID       int64   `json:"set_id"`
	Score       float64 `json:"score"`
	OptionOrder []int   `json:"option_order"`
	Answer      string  `json:"answer"`
}

// IsBlank reports whether the question has no answer.
func (q *PrintedQuestion) IsBlank() bool {
	return strings.TrimSpace(q.Answer) == ""
}

// CreatePrintRequest is the payload a teacher uses to pre-create a print for a
// student, for example to produce a paper copy.
type CreatePrintRequest struct {
	UserID int64 `json:"user_id" binding:"required,min=1"`
}

// AnswerRequest carries the raw answer to one printed question. Choice answers
// are comma separated option indexes; an empty answer blanks the question.
type AnswerRequest struct {
	Answer string `json:"answer" binding:"max=1024"`
}
