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


package query

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/sableridge/pagerag/ai"
	"github.com/sableridge/pagerag/core"
	"github.com/sableridge/pagerag/storage"
	"github.com/sableridge/pagerag/token"
	"github.com/sableridge/pagerag/vecindex"
)

const (
	// DefaultTimeout is the wall-clock bound on one query. A query still
	// running at the deadline is forced to FAILED with TASK_TIMEOUT.
	DefaultTimeout = 120 * time.Second

	// DefaultTopK bounds how many chunks a search returns.
	DefaultTopK = 5

	// DefaultMinScore is the similarity floor below which chunks are
	// considered irrelevant.
	DefaultMinScore = 0.6
)

// Pipeline orchestrates asynchronous question answering. Work is
// submitted by row ID and executed on a worker pool; all outcomes land
// in the query row.
type Pipeline struct {
	queries    storage.QueryRepository
	ingestions storage.IngestionRepository
	index      vecindex.Index
	embedder   ai.Embedder
	generator  ai.Generator
	assembler  *Assembler
	pool       *ants.Pool
	timeout    time.Duration
	topK       int
	minScore   float32
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent queries.
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

// WithTimeout sets the per-query wall-clock deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Pipeline) error {
		if timeout > 0 {
			p.timeout = timeout
		}
		return nil
	}
}

// WithTopK sets how many chunks a search may return.
func WithTopK(topK int) Option {
	return func(p *Pipeline) error {
		if topK > 0 {
			p.topK = topK
		}
		return nil
	}
}

// WithMinScore sets the similarity floor.
func WithMinScore(minScore float32) Option {
	return func(p *Pipeline) error {
		p.minScore = minScore
		return nil
	}
}

// WithAssembler replaces the default context assembler.
func WithAssembler(assembler *Assembler) Option {
	return func(p *Pipeline) error {
		if assembler != nil {
			p.assembler = assembler
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
		p.logger = logger.With("component", "query")
		return nil
	}
}

// NewPipeline creates a new query pipeline.
func NewPipeline(
	queries storage.QueryRepository,
	ingestions storage.IngestionRepository,
	index vecindex.Index,
	embedder ai.Embedder,
	generator ai.Generator,
	estimator token.Estimator,
	opts ...Option,
) (*Pipeline, error) {
	if queries == nil {
		return nil, ErrRepositoryRequired
	}
	if ingestions == nil {
		return nil, ErrIngestionRepositoryRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	if estimator == nil {
		return nil, ErrEstimatorRequired
	}

	assembler, err := NewAssembler(estimator)
	if err != nil {
		return nil, err
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		queries:    queries,
		ingestions: ingestions,
		index:      index,
		embedder:   embedder,
		generator:  generator,
		assembler:  assembler,
		pool:       pool,
		timeout:    DefaultTimeout,
		topK:       DefaultTopK,
		minScore:   DefaultMinScore,
		logger:     slog.Default().With("component", "query"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Enqueue submits a query row for asynchronous processing under the
// wall-clock deadline. Processing errors are recorded on the row, not
// returned here.
func (p *Pipeline) Enqueue(id string) error {
	return p.pool.Submit(func() {
		p.runWithTimeout(id)
	})
}

// runWithTimeout races Process against the wall clock. When the clock
// wins, the row is forced to FAILED and any late result is discarded by
// the repository's terminal guard.
func (p *Pipeline) runWithTimeout(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- p.Process(ctx, id)
	}()

	select {
	case err := <-done:
		if err != nil {
			p.logger.Error("query processing failed", "query", id, "err", err)
		}
	case <-ctx.Done():
		p.logger.Warn("query exceeded wall-clock deadline", "query", id, "timeout", p.timeout)
		if err := p.queries.FailQuery(context.Background(), id,
			core.CodeTaskTimeout, "query processing exceeded the time limit"); err != nil {
			p.logger.Error("failed to record query timeout", "query", id, "err", err)
		}
	}
}

// Process runs one query synchronously. A row that is no longer PENDING
// is skipped. The returned error reports storage trouble only; pipeline
// failures are written to the row as stable error codes.
func (p *Pipeline) Process(ctx context.Context, id string) error {
	row, started, err := p.queries.BeginQuery(ctx, id)
	if err != nil {
		return err
	}
	if !started {
		p.logger.Debug("skipping query not in pending state", "query", id, "status", row.Status)
		return nil
	}

	p.logger.Info("answering question", "query", id, "device", row.DeviceId)

	ingestion, err := p.ingestions.GetSuccessfulIngestion(ctx, row.DeviceId)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return p.fail(ctx, id, core.NewCodedError(core.CodeNoContent, "no successfully ingested page for this device"))
		}
		return err
	}

	vector, err := p.embedder.EmbedText(ctx, row.Question)
	if err != nil {
		return p.fail(ctx, id, err)
	}

	ns := vecindex.Namespace{DeviceId: row.DeviceId, IngestionId: ingestion.Id}
	matches, err := p.index.Search(ctx, ns, vector, p.minScore, p.topK)
	if err != nil {
		return p.fail(ctx, id, err)
	}
	if len(matches) == 0 {
		return p.fail(ctx, id, core.NewCodedError(core.CodeNoContent, "no relevant content for this question"))
	}

	contextText, used := p.assembler.Assemble(matches)
	if contextText == "" {
		return p.fail(ctx, id, core.NewCodedError(core.CodeNoContent, "no relevant content for this question"))
	}

	answer, err := p.generator.GenerateAnswer(ctx, row.Question, contextText)
	if err != nil {
		return p.fail(ctx, id, err)
	}

	sources := make([]core.Source, len(used))
	for i, match := range used {
		sources[i] = core.Source{
			IngestionId:    ingestion.Id,
			URL:            ingestion.URL,
			ChunkId:        match.Chunk.Id,
			RelevanceScore: match.Score,
			TextSnippet:    Snippet(match.Chunk.Text, p.assembler.snippetChars),
		}
	}

	stats := searchStats(matches)
	p.logger.Info("query complete", "query", id,
		"candidates", ingestion.ChunkCount,
		"matches", len(matches),
		"chunks_used", len(used),
		"score_min", stats.min,
		"score_avg", stats.avg,
		"score_max", stats.max,
		"refused", strings.Contains(answer.Text, ai.RefusalAnswer),
		"tokens", answer.TokenCount)
	return p.queries.CompleteQuery(ctx, id, answer.Text, sources, len(used), answer.TokenCount)
}

// scoreSummary aggregates similarity scores across retrieved matches.
type scoreSummary struct {
	min, avg, max float32
}

func searchStats(matches []vecindex.Match) scoreSummary {
	if len(matches) == 0 {
		return scoreSummary{}
	}
	s := scoreSummary{min: matches[0].Score, max: matches[0].Score}
	var sum float32
	for _, match := range matches {
		if match.Score < s.min {
			s.min = match.Score
		}
		if match.Score > s.max {
			s.max = match.Score
		}
		sum += match.Score
	}
	s.avg = sum / float32(len(matches))
	return s
}

// fail records a pipeline failure on the row with its stable code.
func (p *Pipeline) fail(ctx context.Context, id string, cause error) error {
	code := core.ErrorCode(cause)
	if errors.Is(cause, context.DeadlineExceeded) {
		code = core.CodeTaskTimeout
	}
	p.logger.Warn("query failed", "query", id, "code", code, "err", cause)
	return p.queries.FailQuery(context.WithoutCancel(ctx), id, code, cause.Error())
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
