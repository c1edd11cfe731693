package ingest

import "errors"

var (
	// ErrRepositoryRequired is returned when an ingestion repository is not provided.
	ErrRepositoryRequired = errors.New("ingestion repository required")

	// ErrIndexRequired is returned when a vector index is not provided.
	ErrIndexRequired = errors.New("vector index required")

	// ErrFetcherRequired is returned when a fetcher is not provided.
	ErrFetcherRequired = errors.New("fetcher required")

	// ErrExtractorRequired is returned when a content extractor is not provided.
	ErrExtractorRequired = errors.New("content extractor required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrEstimatorRequired is returned when a token estimator is not provided.
	ErrEstimatorRequired = errors.New("token estimator required")
)
