package ports

import "errors"

// ErrNotFound is returned by repositories when a referenced template,
// instance, or event does not exist. Callers match with errors.Is.
var ErrNotFound = errors.New("not found")
