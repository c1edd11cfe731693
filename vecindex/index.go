// Copyright 2025 Sableridge Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package vecindex

import (
	"context"
	"errors"

	"github.com/sableridge/pagerag/core"
)

// MetricCosine is the only supported similarity metric. Stored as index
// metadata so an index created under a different metric is detected and
// rebuilt rather than silently mixed.
const MetricCosine = "cosine"

var (
	// ErrCountMismatch indicates chunks and vectors differ in length.
	ErrCountMismatch = errors.New("chunk and vector counts differ")

	// ErrDimensionMismatch indicates inconsistent vector dimensions.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Namespace scopes stored vectors to one device's ingestion.
type Namespace struct {
	DeviceId    string
	IngestionId string
}

// Match is a search hit: the stored chunk and its similarity score in
// [0, 1].
type Match struct {
	Chunk core.Chunk
	Score float32
}

// Index stores chunk embeddings and serves similarity search over a
// namespace. Implementations must be thread-safe.
type Index interface {
	// Store writes all chunks and their vectors into the namespace
	// atomically. vectors[i] belongs to chunks[i]; every vector must
	// share one dimension, and the first stored batch fixes the index
	// dimension for all later stores and searches. Nothing is written
	// when validation fails.
	Store(ctx context.Context, ns Namespace, chunks []core.Chunk, vectors [][]float32) error

	// Search returns chunks in the namespace whose similarity to the
	// (normalized) query vector is at least minScore, best first, up to
	// limit results. Ties break on chunk ordinal, earliest first. A
	// query vector whose dimension differs from the index's is rejected
	// with ErrDimensionMismatch.
	Search(ctx context.Context, ns Namespace, vector []float32, minScore float32, limit int) ([]Match, error)

	// DeleteNamespace removes all chunks and vectors in the namespace.
	DeleteNamespace(ctx context.Context, ns Namespace) error
}
