package roster

import "errors"

var ErrNotFound = errors.New("connection not in roster")
