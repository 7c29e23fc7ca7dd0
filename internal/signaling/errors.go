package signaling

import "errors"

var ErrTargetNotLive = errors.New("signal target is not connected")
