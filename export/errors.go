package export

import "errors"

var (
	// ErrWriteFailed indicates a layer document or manifest could not be written.
	ErrWriteFailed = errors.New("export write failed")

	// ErrModelRequired indicates a nil dataset model was passed.
	ErrModelRequired = errors.New("dataset model is required")
)
