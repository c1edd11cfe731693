package storage

import (
	"context"
	"time"

	"github.com/sableridge/pagerag/core"
)

// DeviceRepository provides operations for managing device identities and
// their query quotas. Implementations must be thread-safe and support
// concurrent access.
type DeviceRepository interface {
	// CreateDevice stores a new device and its fingerprint index entry.
	// Returns ErrDuplicateKey if the fingerprint is already registered.
	CreateDevice(ctx context.Context, device *core.Device) error

	// GetDevice retrieves a device by ID.
	// Returns ErrNotFound if the device doesn't exist.
	GetDevice(ctx context.Context, id string) (*core.Device, error)

	// GetDeviceByFingerprint retrieves a device by its fingerprint.
	// Returns ErrNotFound if no device matches.
	GetDeviceByFingerprint(ctx context.Context, fingerprint string) (*core.Device, error)

	// TouchDevice updates the device's LastSeenAt timestamp.
	// Returns ErrNotFound if the device doesn't exist.
	TouchDevice(ctx context.Context, id string) error
}

// IngestionRepository provides operations for managing ingestion rows and
// enforces their state machine: PENDING -> PROCESSING -> SUCCESS or FAILED.
// Transitions are monotonic; terminal rows are never modified.
type IngestionRepository interface {
	// CreateIngestion stores a new PENDING ingestion row.
	CreateIngestion(ctx context.Context, ingestion *core.Ingestion) error

	// CreateIngestionExclusive stores a new PENDING ingestion row only
	// when the device has no other non-FAILED ingestion. The existence
	// check and the create are atomic, so concurrent submissions for one
	// device admit exactly one row. Returns core.ErrAlreadyIngested when
	// a live row exists.
	CreateIngestionExclusive(ctx context.Context, ingestion *core.Ingestion) error

	// GetIngestion retrieves an ingestion by ID.
	// Returns ErrNotFound if the row doesn't exist.
	GetIngestion(ctx context.Context, id string) (*core.Ingestion, error)

	// GetIngestionsByDevice retrieves all of a device's ingestion rows,
	// newest first.
	GetIngestionsByDevice(ctx context.Context, deviceId string) ([]*core.Ingestion, error)

	// GetSuccessfulIngestion retrieves the device's most recent SUCCESS
	// ingestion. Returns ErrNotFound if the device has none.
	GetSuccessfulIngestion(ctx context.Context, deviceId string) (*core.Ingestion, error)

	// BeginIngestion transitions a PENDING row to PROCESSING and sets
	// StartedAt. When the row is no longer PENDING, started is false and
	// the row is returned unchanged, so duplicate dispatch is a no-op.
	BeginIngestion(ctx context.Context, id string) (ingestion *core.Ingestion, started bool, err error)

	// CompleteIngestion transitions a PROCESSING row to SUCCESS with the
	// final counts. A row already terminal is left untouched.
	CompleteIngestion(ctx context.Context, id string, chunkCount, tokenCount int) error

	// FailIngestion transitions a row to FAILED with a stable error code.
	// A row already terminal is left untouched.
	FailIngestion(ctx context.Context, id string, code, message string) error

	// ListStuckIngestions retrieves PROCESSING rows whose StartedAt is
	// before the cutoff, for the reconciliation sweep.
	ListStuckIngestions(ctx context.Context, cutoff time.Time) ([]*core.Ingestion, error)
}

// QueryRepository provides operations for managing query rows, with the
// same state-machine guarantees as IngestionRepository plus atomic quota
// accounting at submission time.
type QueryRepository interface {
	// CreateQueryWithQuota atomically decrements the owning device's
	// remaining quota and stores the new PENDING query row in the same
	// transaction. When the quota is already zero, no row is created, the
	// quota is unchanged, and core.ErrQuotaExhausted is returned.
	CreateQueryWithQuota(ctx context.Context, query *core.Query) error

	// GetQuery retrieves a query by ID.
	// Returns ErrNotFound if the row doesn't exist.
	GetQuery(ctx context.Context, id string) (*core.Query, error)

	// GetQueriesByDevice retrieves all of a device's query rows, newest
	// first.
	GetQueriesByDevice(ctx context.Context, deviceId string) ([]*core.Query, error)

	// BeginQuery transitions a PENDING row to PROCESSING; same contract
	// as BeginIngestion.
	BeginQuery(ctx context.Context, id string) (query *core.Query, started bool, err error)

	// CompleteQuery transitions a PROCESSING row to SUCCESS with the
	// answer and its sources. A row already terminal is left untouched.
	CompleteQuery(ctx context.Context, id string, answer string, sources []core.Source, chunksUsed, tokenCount int) error

	// FailQuery transitions a row to FAILED with a stable error code.
	// A row already terminal is left untouched.
	FailQuery(ctx context.Context, id string, code, message string) error

	// ListStuckQueries retrieves PROCESSING rows whose StartedAt is
	// before the cutoff, for the reconciliation sweep.
	ListStuckQueries(ctx context.Context, cutoff time.Time) ([]*core.Query, error)
}
