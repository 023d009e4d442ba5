package model

import "time"

// LogAction is the kind of action recorded in the access log. Codes are
// stored and must never be renumbered.
type LogAction int

const (
	LogUnknown        LogAction = 0
	LogStart          LogAction = 1
	LogResume         LogAction = 2
	LogAnswerQuestion LogAction = 3
	LogFinish         LogAction = 4
)

var logActionNames = map[LogAction]string{
	LogUnknown:        "unknown",
	LogStart:          "start",
	LogResume:         "resume",
	LogAnswerQuestion: "answer_question",
	LogFinish:         "finish",
}

func (a LogAction) String() string {
	if name, ok := logActionNames[a]; ok {
		return name
	}
	return logActionNames[LogUnknown]
}

// ParseLogAction maps a stored code back to an action. Unknown codes become LogUnknown.
func ParseLogAction(code int) LogAction {
	a := LogAction(code)
	if _, ok := logActionNames[a]; ok {
		return a
	}
	return LogUnknown
}

// NoQuestion is the question index recorded for actions not tied to a question.
const NoQuestion = -1

// LogEntry is one append-only row of a print's access log. ID is the sequence
// number. BrowserSession and UserAgent are the satellite values in effect for
// the entry.
type LogEntry struct {
	ID             int64     `json:"id"`
	PrintID        int64     `json:"print_id"`
	Action         LogAction `json:"action"`
	QuestionIndex  int       `json:"question_index"`
	CanAnswer      bool      `json:"can_answer"`
	ClickTime      time.Time `json:"click_time"`
	IP             string    `json:"ip"`
	BrowserSession string    `json:"browser_session,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
}

// Continuity is the result of comparing the acting client with the latest
// recorded one. Mismatches are advisory.
type Continuity struct {
	SameSession   bool `json:"same_session"`
	SameUserAgent bool `json:"same_user_agent"`
}

// Suspicious reports whether either fact changed.
func (c Continuity) Suspicious() bool {
	return !c.SameSession || !c.SameUserAgent
}

// MonitorEvent is published for every log append so staff can watch a
// session live.
type MonitorEvent struct {
	Type          string    `json:"type"`
	SessionID     int64     `json:"session_id"`
	PrintID       int64     `json:"print_id"`
	UserID        int64     `json:"user_id"`
	Action        string    `json:"action"`
	QuestionIndex int       `json:"question_index"`
	CanAnswer     bool      `json:"can_answer"`
	Suspicious    bool      `json:"suspicious"`
	At            time.Time `json:"at"`
}
