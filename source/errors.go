package source

import "errors"

var (
	// ErrInvalidArray indicates a malformed .npy header or payload.
	ErrInvalidArray = errors.New("invalid npy array")

	// ErrUnsupportedArray indicates a well-formed array this package cannot decode.
	ErrUnsupportedArray = errors.New("unsupported npy array")

	// ErrDecoderNotFound indicates an archive without decoder weights.
	ErrDecoderNotFound = errors.New("decoder weights not found in archive")
)
