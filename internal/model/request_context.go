package model

import "time"

// RequestContext carries who is acting, in which course and when. It is built
// once per request and passed by value into every service call.
type RequestContext struct {
	CourseID int64
	UserID   int64
	Role     Role
	Now      time.Time

	// Client facts recorded in the access log.
	IP             string
	BrowserSession string
	UserAgent      string
}

// NewRequestContext returns a context stamped with now in UTC.
func NewRequestContext(courseID, userID int64, role Role, now time.Time) RequestContext {
	return RequestContext{
		CourseID: courseID,
		UserID:   userID,
		Role:     role,
		Now:      now.UTC(),
	}
}
