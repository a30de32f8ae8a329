package pipeline

import "errors"

var (
	// ErrModelRequired is returned when a dataset model is not provided.
	ErrModelRequired = errors.New("dataset model required")

	// ErrCacheRequired is returned when a cache store is not provided.
	ErrCacheRequired = errors.New("cache store required")

	// ErrJournalRequired is returned when a label journal is not provided.
	ErrJournalRequired = errors.New("label journal required")

	// ErrSourceRequired is returned when a vector source is not provided.
	ErrSourceRequired = errors.New("vector source required")

	// ErrExporterRequired is returned when an exporter is not provided.
	ErrExporterRequired = errors.New("exporter required")
)
