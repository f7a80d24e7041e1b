package hygiene

import "errors"

// ErrNotFound reports that no record exists for the requested id.
var ErrNotFound = errors.New("record not found")
