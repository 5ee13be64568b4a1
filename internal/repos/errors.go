package repos

import "errors"

// ErrConflict is returned when an optimistic revision check fails: the
// row changed between the caller's read and its write. Callers retry
// against fresh state or give up.
var ErrConflict = errors.New("order revision conflict")
