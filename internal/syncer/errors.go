package syncer

import "errors"

var (
	ErrNotTeacher     = errors.New("caller is not the session teacher")
	ErrNotParticipant = errors.New("caller is not a participant")
	ErrNotAllowed     = errors.New("caller may not change this participant")
	ErrStrokeRejected = errors.New("stroke end has no page or points")
)
