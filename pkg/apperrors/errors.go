package apperrors

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrValidation        = errors.New("validation failed")
	ErrLockNotAvailable  = errors.New("row lock not available")
	ErrDecryptionFailed  = errors.New("config was encrypted with a different key")
	ErrNoActiveGraph     = errors.New("container has no active graph")
	ErrUnknownEventType  = errors.New("unrecognized event type")
	ErrUnknownAdapter    = errors.New("unrecognized adapter type")
	ErrExportNotRunnable = errors.New("export is not in a runnable state")
)
