package model

// Set is an ordered group of questions inside an exam. Index is 1-based and
// contiguous within the exam.
type Set struct {
	ID         int64  `json:"id"`
	ExamID     int64  `json:"exam_id"`
	Index      int    `json:"index"`
	PrintCount int    `json:"print_count"`
	Title      string `json:"title"`

	NumQuestions int `json:"num_questions"`
}

// CreateSetRequest is the payload for appending a set. Index must be the next
// contiguous value; zero means "append".
type CreateSetRequest struct {
	Index      int    `json:"index" binding:"omitempty,min=1"`
	PrintCount int    `json:"print_count" binding:"min=0,max=100"`
	Title      string `json:"title" binding:"required,min=1,max=255"`
}

// UpdateSetRequest is the payload for editing a set.
type UpdateSetRequest struct {
	PrintCount int    `json:"print_count" binding:"min=0,max=100"`
	Title      string `json:"title" binding:"required,min=1,max=255"`
}

// MoveDirection is the only kind of reorder exposed: one step up or down.
type MoveDirection string

const (
	MoveUp   MoveDirection = "up"
	MoveDown MoveDirection = "down"
)

// MoveSetRequest is the payload for moving a set one position.
type MoveSetRequest struct {
	Direction MoveDirection `json:"direction" binding:"required,oneof=up down"`
}
