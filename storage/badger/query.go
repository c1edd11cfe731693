package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sableridge/pagerag/core"
	"github.com/sableridge/pagerag/storage"
)

// QueryRepository implements storage.QueryRepository for BadgerDB.
type QueryRepository struct {
	backend *Backend
}

var _ storage.QueryRepository = (*QueryRepository)(nil)

// NewQueryRepository creates a new QueryRepository.
func NewQueryRepository(backend *Backend) *QueryRepository {
	return &QueryRepository{backend: backend}
}

// CreateQueryWithQuota decrements the device's quota and stores the new
// PENDING row in one transaction. Concurrent submissions race on the
// device record; the conflict retry in the backend serializes them, so
// the quota can never go below zero.
func (r *QueryRepository) CreateQueryWithQuota(ctx context.Context, query *core.Query) error {
	return r.backend.WithRetryTx(func(tx *badger.Txn) error {
		device, err := readDevice(tx, query.DeviceId)
		if err != nil {
			return err
		}
		if device == nil {
			return storage.ErrNotFound
		}
		if device.QuotaRemaining <= 0 {
			return core.ErrQuotaExhausted
		}

		device.QuotaRemaining--
		device.LastSeenAt = time.Now().UTC()
		if err := tx.Set(makeDeviceKey(device.Id), storage.MarshalDevice(device)); err != nil {
			return err
		}

		if query.CreatedAt.IsZero() {
			query.CreatedAt = time.Now().UTC()
		}
		if query.Status == "" {
			query.Status = core.StatusPending
		}
		if err := tx.Set(makeQueryKey(query.Id), storage.MarshalQuery(query)); err != nil {
			return err
		}
		indexKey := makeQueryDeviceKey(query.DeviceId, query.CreatedAt, query.Id)
		if err := tx.Set(indexKey, []byte(query.Id)); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// GetQuery retrieves a query by ID.
func (r *QueryRepository) GetQuery(ctx context.Context, id string) (*core.Query, error) {
	var result *core.Query
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readQuery(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetQueriesByDevice retrieves all of a device's query rows, newest first.
func (r *QueryRepository) GetQueriesByDevice(ctx context.Context, deviceId string) ([]*core.Query, error) {
	var results []*core.Query
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		ids, err := listIndexedIds(tx, makeQueryDevicePrefix(deviceId))
		if err != nil {
			return err
		}
		for _, id := range ids {
			query, err := readQuery(tx, id)
			if err != nil {
				return err
			}
			if query != nil {
				results = append(results, query)
			}
		}
		return nil
	}, false)
	return results, err
}

// BeginQuery transitions a PENDING row to PROCESSING.
func (r *QueryRepository) BeginQuery(ctx context.Context, id string) (*core.Query, bool, error) {
	var result *core.Query
	var started bool
	err := r.backend.WithRetryTx(func(tx *badger.Txn) error {
		result = nil
		started = false

		query, err := readQuery(tx, id)
		if err != nil {
			return err
		}
		if query == nil {
			return storage.ErrNotFound
		}
		if query.Status != core.StatusPending {
			result = query
			return nil
		}

		query.Status = core.StatusProcessing
		query.StartedAt = time.Now().UTC()
		if err := tx.Set(makeQueryKey(id), storage.MarshalQuery(query)); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		result = query
		started = true
		return nil
	})
	return result, started, err
}

// CompleteQuery transitions a PROCESSING row to SUCCESS with the answer.
func (r *QueryRepository) CompleteQuery(ctx context.Context, id string, answer string, sources []core.Source, chunksUsed, tokenCount int) error {
	return r.backend.WithRetryTx(func(tx *badger.Txn) error {
		query, err := readQuery(tx, id)
		if err != nil {
			return err
		}
		if query == nil {
			return storage.ErrNotFound
		}
		// A result arriving after the timeout sweep marked the row
		// FAILED is silently discarded.
		if query.Status.IsTerminal() {
			return nil
		}

		query.Status = core.StatusSuccess
		query.Answer = answer
		query.Sources = sources
		query.ChunkCountUsed = chunksUsed
		query.TokenCount = tokenCount
		query.ErrorCode = ""
		query.ErrorMessage = ""
		query.CompletedAt = time.Now().UTC()
		if err := tx.Set(makeQueryKey(id), storage.MarshalQuery(query)); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// FailQuery transitions a row to FAILED with a stable error code.
func (r *QueryRepository) FailQuery(ctx context.Context, id string, code, message string) error {
	return r.backend.WithRetryTx(func(tx *badger.Txn) error {
		query, err := readQuery(tx, id)
		if err != nil {
			return err
		}
		if query == nil {
			return storage.ErrNotFound
		}
		if query.Status.IsTerminal() {
			return nil
		}

		query.Status = core.StatusFailed
		query.ErrorCode = code
		query.ErrorMessage = message
		query.CompletedAt = time.Now().UTC()
		if err := tx.Set(makeQueryKey(id), storage.MarshalQuery(query)); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// ListStuckQueries retrieves PROCESSING rows started before the cutoff.
func (r *QueryRepository) ListStuckQueries(ctx context.Context, cutoff time.Time) ([]*core.Query, error) {
	var results []*core.Query
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(queryPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var query *core.Query
			err := iter.Item().Value(func(val []byte) error {
				var unmarshalErr error
				query, unmarshalErr = storage.UnmarshalQuery(val)
				return unmarshalErr
			})
			if err != nil {
				return err
			}
			if query.Status == core.StatusProcessing && query.StartedAt.Before(cutoff) {
				results = append(results, query)
			}
		}
		return nil
	}, false)
	return results, err
}

// readQuery reads a query row from the transaction. Returns nil, nil
// when the key is absent.
func readQuery(tx *badger.Txn, id string) (*core.Query, error) {
	item, err := tx.Get(makeQueryKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var query *core.Query
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		query, unmarshalErr = storage.UnmarshalQuery(val)
		return unmarshalErr
	})
	return query, err
}
