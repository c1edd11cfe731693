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


package pagerag

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sableridge/pagerag/ai"
	"github.com/sableridge/pagerag/ai/openai"
	"github.com/sableridge/pagerag/core"
	"github.com/sableridge/pagerag/fetch"
	"github.com/sableridge/pagerag/ingest"
	"github.com/sableridge/pagerag/query"
	"github.com/sableridge/pagerag/resilience"
	"github.com/sableridge/pagerag/storage"
	badgerstore "github.com/sableridge/pagerag/storage/badger"
	"github.com/sableridge/pagerag/token"
	"github.com/sableridge/pagerag/vecindex"
)

// DefaultStuckAfter is how long a PROCESSING row may sit before the
// reconciliation sweep declares it abandoned.
const DefaultStuckAfter = 10 * time.Minute

const defaultFingerprintSalt = "pagerag-v1"

// Service is the root of the system: device registration, ingestion and
// query submission, status reads, and the reconciliation sweep.
type Service struct {
	repos       *badgerstore.Repositories
	index       vecindex.Index
	provider    ai.Provider
	ingestPipe  *ingest.Pipeline
	queryPipe   *query.Pipeline
	salt        string
	stuckAfter  time.Duration
	validateURL func(string) error
	logger      *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	aiConfig    *ai.Config
	provider    ai.Provider
	estimator   token.Estimator
	fetcher     ingest.Fetcher
	extractor   ingest.Extractor
	salt        string
	stuckAfter  time.Duration
	inMemory    bool
	validateURL func(string) error
	ingestOpts  []ingest.Option
	queryOpts   []query.Option
}

// WithAIConfig sets the OpenAI-compatible backend configuration.
// Ignored when a provider is injected directly.
func WithAIConfig(config *ai.Config) ServiceOption {
	return func(o *serviceOptions) {
		o.aiConfig = config
	}
}

// WithProvider injects an AI provider, bypassing the OpenAI client.
func WithProvider(provider ai.Provider) ServiceOption {
	return func(o *serviceOptions) {
		o.provider = provider
	}
}

// WithEstimator overrides the token estimator.
// Default is the deterministic heuristic.
func WithEstimator(estimator token.Estimator) ServiceOption {
	return func(o *serviceOptions) {
		if estimator != nil {
			o.estimator = estimator
		}
	}
}

// WithFetcher overrides the page fetcher.
func WithFetcher(fetcher ingest.Fetcher) ServiceOption {
	return func(o *serviceOptions) {
		if fetcher != nil {
			o.fetcher = fetcher
		}
	}
}

// WithExtractor overrides the content extractor.
func WithExtractor(extractor ingest.Extractor) ServiceOption {
	return func(o *serviceOptions) {
		if extractor != nil {
			o.extractor = extractor
		}
	}
}

// WithFingerprintSalt sets the salt mixed into device fingerprints.
func WithFingerprintSalt(salt string) ServiceOption {
	return func(o *serviceOptions) {
		if salt != "" {
			o.salt = salt
		}
	}
}

// WithStuckAfter sets the reconciliation cutoff for abandoned rows.
func WithStuckAfter(d time.Duration) ServiceOption {
	return func(o *serviceOptions) {
		if d > 0 {
			o.stuckAfter = d
		}
	}
}

// WithInMemory uses an in-memory database, ignoring the path.
func WithInMemory() ServiceOption {
	return func(o *serviceOptions) {
		o.inMemory = true
	}
}

// WithURLValidator overrides URL validation at submission.
func WithURLValidator(fn func(string) error) ServiceOption {
	return func(o *serviceOptions) {
		if fn != nil {
			o.validateURL = fn
		}
	}
}

// WithIngestOptions passes options through to the ingestion pipeline.
func WithIngestOptions(opts ...ingest.Option) ServiceOption {
	return func(o *serviceOptions) {
		o.ingestOpts = append(o.ingestOpts, opts...)
	}
}

// WithQueryOptions passes options through to the query pipeline.
func WithQueryOptions(opts ...query.Option) ServiceOption {
	return func(o *serviceOptions) {
		o.queryOpts = append(o.queryOpts, opts...)
	}
}

// NewService opens the database at filePath and wires the pipelines.
// Embedding and generation calls run behind independent circuit-breaker
// guards so one flaky dependency cannot take down the other path.
func NewService(filePath string, opts ...ServiceOption) (*Service, error) {
	options := &serviceOptions{
		aiConfig:    ai.DefaultConfig(),
		estimator:   token.Heuristic{},
		salt:        defaultFingerprintSalt,
		stuckAfter:  DefaultStuckAfter,
		validateURL: core.ValidateURL,
	}
	for _, opt := range opts {
		opt(options)
	}

	var repos *badgerstore.Repositories
	var err error
	if options.inMemory {
		repos, err = badgerstore.NewMemoryRepositories()
	} else {
		repos, err = badgerstore.NewRepositories(filePath)
	}
	if err != nil {
		return nil, err
	}

	index, err := vecindex.NewBadgerIndex(repos.Backend())
	if err != nil {
		repos.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			repos.Close()
			return nil, err
		}
	}

	embedder := ai.NewGuardedEmbedder(provider.Embedder(), resilience.NewGuard("embedding"))
	generator := ai.NewGuardedGenerator(provider.Generator(), resilience.NewGuard("generation"))

	fetcher := options.fetcher
	if fetcher == nil {
		fetcher = fetch.NewFetcher()
	}
	extractor := options.extractor
	if extractor == nil {
		extractor = fetch.NewContentExtractor()
	}

	ingestPipe, err := ingest.NewPipeline(repos.Ingestions, index, fetcher, extractor,
		embedder, options.estimator, options.ingestOpts...)
	if err != nil {
		provider.Close()
		repos.Close()
		return nil, err
	}

	queryPipe, err := query.NewPipeline(repos.Queries, repos.Ingestions, index,
		embedder, generator, options.estimator, options.queryOpts...)
	if err != nil {
		ingestPipe.Release()
		provider.Close()
		repos.Close()
		return nil, err
	}

	return &Service{
		repos:       repos,
		index:       index,
		provider:    provider,
		ingestPipe:  ingestPipe,
		queryPipe:   queryPipe,
		salt:        options.salt,
		stuckAfter:  options.stuckAfter,
		validateURL: options.validateURL,
		logger:      slog.Default().With("component", "service"),
	}, nil
}

// RegisterDevice finds or creates the device for a (model, OS) pair.
// The same pair always lands on the same device, so quota survives
// reinstallation.
func (s *Service) RegisterDevice(ctx context.Context, deviceModel, osVersion string) (*core.Device, error) {
	fingerprint := core.Fingerprint(deviceModel, osVersion, s.salt)

	device, err := s.repos.Devices.GetDeviceByFingerprint(ctx, fingerprint)
	if err == nil {
		if touchErr := s.repos.Devices.TouchDevice(ctx, device.Id); touchErr != nil {
			s.logger.Warn("failed to touch device", "device", device.Id, "err", touchErr)
		}
		return device, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	device = &core.Device{
		Id:             core.NewId(),
		Fingerprint:    fingerprint,
		DeviceModel:    deviceModel,
		OSVersion:      osVersion,
		QuotaRemaining: core.DefaultQueryQuota,
	}
	if err := s.repos.Devices.CreateDevice(ctx, device); err != nil {
		// Lost a registration race; the winner's row is the device.
		if errors.Is(err, storage.ErrDuplicateKey) {
			return s.repos.Devices.GetDeviceByFingerprint(ctx, fingerprint)
		}
		return nil, err
	}

	s.logger.Info("registered device", "device", device.Id, "model", deviceModel)
	return device, nil
}

// IngestURL validates the URL, creates a PENDING ingestion row, and
// enqueues it. A device keeps one page: the existence check and the
// create are one atomic write, so concurrent submissions admit exactly
// one row, and re-ingestion is allowed only after the previous attempt
// failed.
func (s *Service) IngestURL(ctx context.Context, deviceId, rawURL string) (*core.Ingestion, error) {
	if err := s.validateURL(rawURL); err != nil {
		return nil, err
	}
	if _, err := s.repos.Devices.GetDevice(ctx, deviceId); err != nil {
		return nil, err
	}

	ingestion := &core.Ingestion{
		Id:       core.NewId(),
		DeviceId: deviceId,
		URL:      rawURL,
		Status:   core.StatusPending,
	}
	if err := s.repos.Ingestions.CreateIngestionExclusive(ctx, ingestion); err != nil {
		return nil, err
	}
	if err := s.ingestPipe.Enqueue(ingestion.Id); err != nil {
		return nil, err
	}
	return ingestion, nil
}

// SubmitQuery validates the question, charges quota, creates a PENDING
// query row, and enqueues it. Validation failures and exhausted quota
// reject the submission before any row exists, so neither consumes
// quota.
func (s *Service) SubmitQuery(ctx context.Context, deviceId, question string) (*core.Query, error) {
	if err := core.ValidateQuestion(question); err != nil {
		return nil, err
	}

	q := &core.Query{
		Id:       core.NewId(),
		DeviceId: deviceId,
		Question: question,
		Status:   core.StatusPending,
	}
	if err := s.repos.Queries.CreateQueryWithQuota(ctx, q); err != nil {
		return nil, err
	}
	if err := s.queryPipe.Enqueue(q.Id); err != nil {
		return nil, err
	}
	return q, nil
}

// GetDevice returns the device row.
func (s *Service) GetDevice(ctx context.Context, id string) (*core.Device, error) {
	return s.repos.Devices.GetDevice(ctx, id)
}

// GetIngestion returns the ingestion row for status polling.
func (s *Service) GetIngestion(ctx context.Context, id string) (*core.Ingestion, error) {
	return s.repos.Ingestions.GetIngestion(ctx, id)
}

// GetQuery returns the query row for status polling.
func (s *Service) GetQuery(ctx context.Context, id string) (*core.Query, error) {
	return s.repos.Queries.GetQuery(ctx, id)
}

// ReconcileStuck fails PROCESSING rows abandoned by a crash or kill.
// Returns how many rows were swept.
func (s *Service) ReconcileStuck(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.stuckAfter)

	var ingestionCount, queryCount int
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		stuck, err := s.repos.Ingestions.ListStuckIngestions(gctx, cutoff)
		if err != nil {
			return err
		}
		for _, row := range stuck {
			if err := s.repos.Ingestions.FailIngestion(gctx, row.Id,
				core.CodeUnknownError, "processing was interrupted"); err != nil {
				return err
			}
			s.logger.Warn("swept stuck ingestion", "ingestion", row.Id)
		}
		ingestionCount = len(stuck)
		return nil
	})

	g.Go(func() error {
		stuck, err := s.repos.Queries.ListStuckQueries(gctx, cutoff)
		if err != nil {
			return err
		}
		for _, row := range stuck {
			if err := s.repos.Queries.FailQuery(gctx, row.Id,
				core.CodeTaskTimeout, "processing was interrupted"); err != nil {
				return err
			}
			s.logger.Warn("swept stuck query", "query", row.Id)
		}
		queryCount = len(stuck)
		return nil
	})

	if err := g.Wait(); err != nil {
		return 0, err
	}
	return ingestionCount + queryCount, nil
}

// Close releases the pipelines, the AI provider, and the database.
func (s *Service) Close() error {
	s.ingestPipe.Release()
	s.queryPipe.Release()

	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
	}
	if err := s.repos.Close(); err != nil {
		s.logger.Error("error closing storage", "err", err)
		return err
	}
	return nil
}
