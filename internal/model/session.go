package model

import "time"

// Modality is how a session is administered.
type Modality string

const (
	ModalityNone   Modality = "none"
	ModalityOnline Modality = "online"
	ModalityPaper  Modality = "paper"
)

// ParseModality converts a stored code into a Modality.
func ParseModality(code string) (Modality, bool) {
	switch Modality(code) {
	case ModalityNone, ModalityOnline, ModalityPaper:
		return Modality(code), true
	}
	return "", false
}

// Session is one scheduled administration of an exam.
type Session struct {
	ID          int64     `json:"id"`
	ExamID      int64     `json:"exam_id"`
	Hidden      bool      `json:"hidden"`
	CreatorID   int64     `json:"creator_id"`
	Modality    Modality  `json:"modality"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Title       string    `json:"title"`
	ShowResults bool      `json:"show_results"`
	Columns     int       `json:"columns"`
	ShowPhotos  bool      `json:"show_photos"`
	GroupIDs    []int64   `json:"group_ids"`
}

// IsOpen reports whether now lies within [StartTime, EndTime].
func (s *Session) IsOpen(now time.Time) bool {
	return !now.Before(s.StartTime) && !now.After(s.EndTime)
}

// AcceptsAnswersAfterFinish reports whether a finished print may still be
// edited. Paper sessions are transcribed by teachers after the fact.
func (s *Session) AcceptsAnswersAfterFinish() bool {
	return s.Modality != ModalityOnline
}

// CreateSessionRequest is the payload for scheduling a session.
type CreateSessionRequest struct {
	Modality   Modality  `json:"modality" binding:"required,modality"`
	StartTime  time.Time `json:"start_time" binding:"required"`
	EndTime    time.Time `json:"end_time" binding:"required,gtefield=StartTime"`
	Title      string    `json:"title" binding:"required,min=1,max=255"`
	Columns    int       `json:"columns" binding:"omitempty,min=1,max=4"`
	ShowPhotos bool      `json:"show_photos"`
}

// UpdateSessionRequest is the payload for editing a session.
type UpdateSessionRequest = CreateSessionRequest

// RestrictGroupsRequest replaces the group restriction of a session. An empty
// list opens the session to every group.
type RestrictGroupsRequest struct {
	GroupIDs []int64 `json:"group_ids" binding:"omitempty,dive,min=1"`
}
