package model

import "time"

// Exam is a gradable assessment of a course. It owns sets and sessions.
type Exam struct {
	ID         int64      `json:"id"`
	CourseID   int64      `json:"course_id"`
	Hidden     bool       `json:"hidden"`
	OwnerID    int64      `json:"owner_id"`
	MaxGrade   float64    `json:"max_grade"`
	Visibility Visibility `json:"visibility"`
	Title      string     `json:"title"`
	Text       string     `json:"text"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	// Filled by list queries.
	NumSets     int `json:"num_sets"`
	NumSessions int `json:"num_sessions"`
}

// CreateExamRequest is the payload for creating an exam.
type CreateExamRequest struct {
	Title      string      `json:"title" binding:"required,min=1,max=255"`
	Text       string      `json:"text" binding:"max=65535"`
	MaxGrade   *float64    `json:"max_grade" binding:"omitempty,gte=0"`
	Visibility *Visibility `json:"visibility" binding:"omitempty,max=31"`
}

// UpdateExamRequest is the payload for editing an exam.
type UpdateExamRequest struct {
	Title    string   `json:"title" binding:"required,min=1,max=255"`
	Text     string   `json:"text" binding:"max=65535"`
	MaxGrade *float64 `json:"max_grade" binding:"omitempty,gte=0"`
}

// SetHiddenRequest toggles the hidden flag of an exam or a session.
type SetHiddenRequest struct {
	Hidden *bool `json:"hidden" binding:"required"`
}

// SetVisibilityRequest replaces the result visibility bitmask of an exam.
type SetVisibilityRequest struct {
	Visibility *Visibility `json:"visibility" binding:"required,max=31"`
}
