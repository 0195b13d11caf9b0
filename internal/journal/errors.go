package journal

import "errors"

// ErrNotFound is returned when a command id is not in the journal.
var ErrNotFound = errors.New("command not found")
