package admission

import "errors"

var (
	ErrNotTeacher        = errors.New("caller is not the session teacher")
	ErrDuplicateName     = errors.New("display name already in use")
	ErrEntrantNotWaiting = errors.New("entrant is not waiting in this session")
	ErrSessionFull       = errors.New("session is full")
	ErrNotInSession      = errors.New("connection is not in this session")
)
