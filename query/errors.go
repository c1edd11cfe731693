package query

import "errors"

var (
	// ErrRepositoryRequired is returned when a query repository is not provided.
	ErrRepositoryRequired = errors.New("query repository required")

	// ErrIngestionRepositoryRequired is returned when an ingestion repository is not provided.
	ErrIngestionRepositoryRequired = errors.New("ingestion repository required")

	// ErrIndexRequired is returned when a vector index is not provided.
	ErrIndexRequired = errors.New("vector index required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrGeneratorRequired is returned when a generator is not provided.
	ErrGeneratorRequired = errors.New("generator required")

	// ErrEstimatorRequired is returned when a token estimator is not provided.
	ErrEstimatorRequired = errors.New("token estimator required")
)
