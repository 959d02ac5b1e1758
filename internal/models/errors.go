package models

import "errors"

var (
	ErrResourceUnavailable   = errors.New("resource unavailable")
	ErrMalformedEvent        = errors.New("malformed event")
	ErrCourseNotFound        = errors.New("course not found")
	ErrUnknownTarget         = errors.New("unknown navigation target")
	ErrSessionNotFound       = errors.New("session not found")
	ErrSessionClosed         = errors.New("session closed")
	ErrNoPendingConfirmation = errors.New("no pending confirmation")
)
