package model

import "time"

// ScoreTally aggregates the scores of a group of printed questions.
type ScoreTally struct {
	NumQsts       int     `json:"num_questions"`
	NotBlank      int     `json:"not_blank"`
	Correct       int     `json:"correct"`
	WrongNegative int     `json:"wrong_negative"`
	WrongZero     int     `json:"wrong_zero"`
	WrongPositive int     `json:"wrong_positive"`
	Blank         int     `json:"blank"`
	Score         float64 `json:"score"`
	Grade         float64 `json:"grade"`
}

// QuestionResult is the per-question detail of a result. Fields a student is
// not allowed to see are left empty.
type QuestionResult struct {
	Index         int            `json:"index"`
	QuestionID    int64          `json:"question_id"`
	Invalid       bool           `json:"invalid"`
	AnswerType    AnswerType     `json:"answer_type"`
	Stem          string         `json:"stem,omitempty"`
	Feedback      string         `json:"feedback,omitempty"`
	Options       []AnswerOption `json:"options,omitempty"`
	OptionOrder   []int          `json:"option_order,omitempty"`
	Answer        string         `json:"answer,omitempty"`
	Blank         bool           `json:"blank"`
	Score         *float64       `json:"score,omitempty"`
	CorrectAnswer []string       `json:"correct_answer,omitempty"`
}

// PrintSummary identifies the print a result belongs to. It carries none of
// the print's cached score columns: scores come from the tallies only.
type PrintSummary struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"session_id"`
	UserID    int64     `json:"user_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Finished  bool      `json:"finished"`
	NumQsts   int       `json:"num_questions"`
}

// Summary returns the identifying part of p.
func (p *Print) Summary() PrintSummary {
	return PrintSummary{
		ID:        p.ID,
		SessionID: p.SessionID,
		UserID:    p.UserID,
		StartTime: p.StartTime,
		EndTime:   p.EndTime,
		Finished:  p.Finished,
		NumQsts:   p.NumQsts,
	}
}

// PrintResult is a print with both aggregates recomputed at read time.
// GradesMatch is true when no question of the print is currently invalid.
// All and Valid are nil when the student may not see the total score.
type PrintResult struct {
	Print       PrintSummary     `json:"print"`
	All         *ScoreTally      `json:"all,omitempty"`
	Valid       *ScoreTally      `json:"valid,omitempty"`
	GradesMatch bool             `json:"grades_match"`
	Questions   []QuestionResult `json:"questions,omitempty"`
}
