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


package ingest

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/sableridge/pagerag/ai"
	"github.com/sableridge/pagerag/chunker"
	"github.com/sableridge/pagerag/core"
	"github.com/sableridge/pagerag/storage"
	"github.com/sableridge/pagerag/token"
	"github.com/sableridge/pagerag/vecindex"
)

const (
	// DefaultTimeout bounds one ingestion end to end.
	DefaultTimeout = 300 * time.Second

	// DefaultMaxDocTokens caps how much of a page is chunked and
	// embedded; longer documents are truncated, not rejected.
	DefaultMaxDocTokens = 50_000
)

// Fetcher retrieves the raw HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// Extractor pulls readable text out of raw HTML.
type Extractor interface {
	Extract(src string) (string, error)
}

// Pipeline orchestrates asynchronous page ingestion. Work is submitted
// by row ID and executed on a worker pool; all outcomes land in the
// ingestion row, never in the caller's return value.
type Pipeline struct {
	ingestions storage.IngestionRepository
	index      vecindex.Index
	fetcher    Fetcher
	extractor  Extractor
	embedder   ai.Embedder
	estimator  token.Estimator
	splitter   *chunker.Chunker
	pool       *ants.Pool
	timeout    time.Duration
	maxTokens  int
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent ingestions.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithTimeout sets the per-ingestion deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Pipeline) error {
		if timeout > 0 {
			p.timeout = timeout
		}
		return nil
	}
}

// WithMaxDocTokens caps the document size in tokens before chunking.
func WithMaxDocTokens(maxTokens int) Option {
	return func(p *Pipeline) error {
		if maxTokens > 0 {
			p.maxTokens = maxTokens
		}
		return nil
	}
}

// WithChunker replaces the default splitter.
func WithChunker(splitter *chunker.Chunker) Option {
	return func(p *Pipeline) error {
		if splitter != nil {
			p.splitter = splitter
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "ingest")
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	ingestions storage.IngestionRepository,
	index vecindex.Index,
	fetcher Fetcher,
	extractor Extractor,
	embedder ai.Embedder,
	estimator token.Estimator,
	opts ...Option,
) (*Pipeline, error) {
	if ingestions == nil {
		return nil, ErrRepositoryRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	if fetcher == nil {
		return nil, ErrFetcherRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if estimator == nil {
		return nil, ErrEstimatorRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	splitter, err := chunker.New(estimator)
	if err != nil {
		pool.Release()
		return nil, err
	}

	p := &Pipeline{
		ingestions: ingestions,
		index:      index,
		fetcher:    fetcher,
		extractor:  extractor,
		embedder:   embedder,
		estimator:  estimator,
		splitter:   splitter,
		pool:       pool,
		timeout:    DefaultTimeout,
		maxTokens:  DefaultMaxDocTokens,
		logger:     slog.Default().With("component", "ingest"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Enqueue submits an ingestion row for asynchronous processing.
// Processing errors are recorded on the row, not returned here.
func (p *Pipeline) Enqueue(id string) error {
	return p.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := p.Process(ctx, id); err != nil {
			p.logger.Error("ingestion processing failed", "ingestion", id, "err", err)
		}
	})
}

// Process runs one ingestion synchronously. A row that is no longer
// PENDING is skipped, so duplicate dispatch and reconciler races are
// harmless. The returned error reports storage trouble only; pipeline
// failures are written to the row as stable error codes.
func (p *Pipeline) Process(ctx context.Context, id string) error {
	row, started, err := p.ingestions.BeginIngestion(ctx, id)
	if err != nil {
		return err
	}
	if !started {
		p.logger.Debug("skipping ingestion not in pending state", "ingestion", id, "status", row.Status)
		return nil
	}

	p.logger.Info("ingesting page", "ingestion", id, "url", row.URL)

	chunkCount, tokenCount, runErr := p.run(ctx, row)
	if runErr != nil {
		code := core.ErrorCode(runErr)
		p.logger.Warn("ingestion failed", "ingestion", id, "code", code, "err", runErr)
		return p.ingestions.FailIngestion(context.WithoutCancel(ctx), id, code, runErr.Error())
	}

	p.logger.Info("ingestion complete", "ingestion", id, "chunks", chunkCount, "tokens", tokenCount)
	return p.ingestions.CompleteIngestion(ctx, id, chunkCount, tokenCount)
}

// run executes the fetch -> extract -> chunk -> embed -> index stages.
func (p *Pipeline) run(ctx context.Context, row *core.Ingestion) (chunkCount, tokenCount int, err error) {
	src, err := p.fetcher.Fetch(ctx, row.URL)
	if err != nil {
		return 0, 0, err
	}

	text, err := p.extractor.Extract(src)
	if err != nil {
		return 0, 0, err
	}

	tokenCount = p.estimator.Count(text)
	if tokenCount > p.maxTokens {
		p.logger.Warn("document exceeds token cap, truncating",
			"ingestion", row.Id, "tokens", tokenCount, "cap", p.maxTokens)
		text = p.estimator.Truncate(text, p.maxTokens)
		tokenCount = p.estimator.Count(text)
	}

	pieces := p.splitter.Split(text)
	if len(pieces) == 0 {
		return 0, 0, core.NewCodedError(core.CodeNoContent, "page produced no chunks")
	}

	texts := make([]string, len(pieces))
	for i, piece := range pieces {
		texts[i] = piece.Text
	}

	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, 0, err
	}

	chunks := make([]core.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = core.Chunk{
			Id:          core.ChunkId(row.Id, piece.Ordinal),
			IngestionId: row.Id,
			DeviceId:    row.DeviceId,
			Text:        piece.Text,
			Ordinal:     piece.Ordinal,
			TokenCount:  piece.TokenCount,
		}
	}

	ns := vecindex.Namespace{DeviceId: row.DeviceId, IngestionId: row.Id}
	if err := p.index.Store(ctx, ns, chunks, vectors); err != nil {
		return 0, 0, err
	}

	return len(chunks), tokenCount, nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
