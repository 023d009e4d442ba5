package model

import "time"

// Sheet is what a student sees while taking a print: question content in
// printed order, options in their frozen display order, and the answers given
// so far. It never carries scores or answer keys.
type Sheet struct {
	PrintID         int64           `json:"print_id"`
	SessionID       int64           `json:"session_id"`
	StartTime       time.Time       `json:"start_time"`
	EndTime         time.Time       `json:"end_time"`
	Finished        bool            `json:"finished"`
	NumQsts         int             `json:"num_questions"`
	NumQstsNotBlank int             `json:"num_questions_not_blank"`
	Questions       []SheetQuestion `json:"questions"`
}

// SheetQuestion is one printed question as displayed.
type SheetQuestion struct {
	Index      int           `json:"index"`
	AnswerType AnswerType    `json:"answer_type"`
	Stem       string        `json:"stem"`
	MediaRef   *string       `json:"media_ref,omitempty"`
	Options    []SheetOption `json:"options,omitempty"`
	Answer     string        `json:"answer"`
}

// SheetOption is a choice as displayed. Index is the option's original index,
// the value a choice answer refers to.
type SheetOption struct {
	Index    int     `json:"index"`
	Text     string  `json:"text"`
	MediaRef *string `json:"media_ref,omitempty"`
}
