package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer Action = "answer"
	ActionFinish Action = "finish"
	ActionPing   Action = "ping"
)

// Request is one client message. Index and Answer are only read for
// ActionAnswer. Index is the printed position, starting at 0; an empty answer
// blanks the question.
type Request struct {
	Action Action `json:"action"`
	Index  int    `json:"index"`
	Answer string `json:"answer"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError    Event = "error"
	EventAnswered Event = "answered"
	EventFinished Event = "finished"
	EventPong     Event = "pong"
)

type AnsweredResponse struct {
	Event      Event `json:"event"`
	Index      int   `json:"index"`
	NotBlank   int   `json:"num_questions_not_blank"`
	SameDevice bool  `json:"same_device"`
}

type FinishedResponse struct {
	Event   Event `json:"event"`
	PrintID int64 `json:"print_id"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
