package dataset

import "errors"

var (
	// ErrUnknownDataset indicates a dataset id that is not in the catalog.
	ErrUnknownDataset = errors.New("unknown dataset")

	// ErrUnitOutOfRange indicates a unit the dataset does not have.
	ErrUnitOutOfRange = errors.New("unit out of range")

	// ErrInvalidUnitSpec indicates a unit selection that cannot be parsed.
	ErrInvalidUnitSpec = errors.New("invalid unit spec")
)
