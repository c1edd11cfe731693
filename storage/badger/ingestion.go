package badger

import (
	"bytes"
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sableridge/pagerag/core"
	"github.com/sableridge/pagerag/storage"
)

// IngestionRepository implements storage.IngestionRepository for BadgerDB.
type IngestionRepository struct {
	backend *Backend
}

var _ storage.IngestionRepository = (*IngestionRepository)(nil)

// NewIngestionRepository creates a new IngestionRepository.
func NewIngestionRepository(backend *Backend) *IngestionRepository {
	return &IngestionRepository{backend: backend}
}

// CreateIngestion stores a new PENDING ingestion row.
func (r *IngestionRepository) CreateIngestion(ctx context.Context, ingestion *core.Ingestion) error {
	return r.backend.WithRetryTx(func(tx *badger.Txn) error {
		return writeNewIngestion(tx, ingestion)
	})
}

// CreateIngestionExclusive stores a new PENDING row only when the device
// has no other non-FAILED ingestion. The active-pointer read and rewrite
// share one transaction, so racing submissions conflict and retry; the
// retried loser then sees the winner's row and is rejected.
func (r *IngestionRepository) CreateIngestionExclusive(ctx context.Context, ingestion *core.Ingestion) error {
	return r.backend.WithRetryTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeIngestionActiveKey(ingestion.DeviceId))
		if err == nil {
			var activeId string
			if valErr := item.Value(func(val []byte) error {
				activeId = string(val)
				return nil
			}); valErr != nil {
				return valErr
			}
			active, readErr := readIngestion(tx, activeId)
			if readErr != nil {
				return readErr
			}
			if active != nil && active.Status != core.StatusFailed {
				return core.ErrAlreadyIngested
			}
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		return writeNewIngestion(tx, ingestion)
	})
}

// writeNewIngestion writes the row, its device time index entry, and the
// device's active pointer.
func writeNewIngestion(tx *badger.Txn, ingestion *core.Ingestion) error {
	if ingestion.CreatedAt.IsZero() {
		ingestion.CreatedAt = time.Now().UTC()
	}
	if ingestion.Status == "" {
		ingestion.Status = core.StatusPending
	}

	if err := tx.Set(makeIngestionKey(ingestion.Id), storage.MarshalIngestion(ingestion)); err != nil {
		return err
	}
	indexKey := makeIngestionDeviceKey(ingestion.DeviceId, ingestion.CreatedAt, ingestion.Id)
	if err := tx.Set(indexKey, []byte(ingestion.Id)); err != nil {
		return err
	}
	if err := tx.Set(makeIngestionActiveKey(ingestion.DeviceId), []byte(ingestion.Id)); err != nil {
		return err
	}
	return tx.Commit()
}

// GetIngestion retrieves an ingestion by ID.
func (r *IngestionRepository) GetIngestion(ctx context.Context, id string) (*core.Ingestion, error) {
	var result *core.Ingestion
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readIngestion(tx, id)
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

// GetIngestionsByDevice retrieves all of a device's ingestion rows, newest first.
func (r *IngestionRepository) GetIngestionsByDevice(ctx context.Context, deviceId string) ([]*core.Ingestion, error) {
	var results []*core.Ingestion
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeIngestionDevicePrefix(deviceId)
		ids, err := listIndexedIds(tx, prefix)
		if err != nil {
			return err
		}
		for _, id := range ids {
			ingestion, err := readIngestion(tx, id)
			if err != nil {
				return err
			}
			if ingestion != nil {
				results = append(results, ingestion)
			}
		}
		return nil
	}, false)
	return results, err
}

// GetSuccessfulIngestion retrieves the device's most recent SUCCESS ingestion.
func (r *IngestionRepository) GetSuccessfulIngestion(ctx context.Context, deviceId string) (*core.Ingestion, error) {
	ingestions, err := r.GetIngestionsByDevice(ctx, deviceId)
	if err != nil {
		return nil, err
	}
	for _, ingestion := range ingestions {
		if ingestion.Status == core.StatusSuccess {
			return ingestion, nil
		}
	}
	return nil, storage.ErrNotFound
}

// BeginIngestion transitions a PENDING row to PROCESSING.
func (r *IngestionRepository) BeginIngestion(ctx context.Context, id string) (*core.Ingestion, bool, error) {
	var result *core.Ingestion
	var started bool
	err := r.backend.WithRetryTx(func(tx *badger.Txn) error {
		result = nil
		started = false

		ingestion, err := readIngestion(tx, id)
		if err != nil {
			return err
		}
		if ingestion == nil {
			return storage.ErrNotFound
		}
		if ingestion.Status != core.StatusPending {
			result = ingestion
			return nil
		}

		ingestion.Status = core.StatusProcessing
		ingestion.StartedAt = time.Now().UTC()
		if err := tx.Set(makeIngestionKey(id), storage.MarshalIngestion(ingestion)); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		result = ingestion
		started = true
		return nil
	})
	return result, started, err
}

// CompleteIngestion transitions a PROCESSING row to SUCCESS.
func (r *IngestionRepository) CompleteIngestion(ctx context.Context, id string, chunkCount, tokenCount int) error {
	return r.backend.WithRetryTx(func(tx *badger.Txn) error {
		ingestion, err := readIngestion(tx, id)
		if err != nil {
			return err
		}
		if ingestion == nil {
			return storage.ErrNotFound
		}
		// Terminal rows stay as they are; a late completion after a
		// timeout sweep is silently discarded.
		if ingestion.Status.IsTerminal() {
			return nil
		}

		ingestion.Status = core.StatusSuccess
		ingestion.ChunkCount = chunkCount
		ingestion.TokenCount = tokenCount
		ingestion.ErrorCode = ""
		ingestion.ErrorMessage = ""
		ingestion.CompletedAt = time.Now().UTC()
		if err := tx.Set(makeIngestionKey(id), storage.MarshalIngestion(ingestion)); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// FailIngestion transitions a row to FAILED with a stable error code.
func (r *IngestionRepository) FailIngestion(ctx context.Context, id string, code, message string) error {
	return r.backend.WithRetryTx(func(tx *badger.Txn) error {
		ingestion, err := readIngestion(tx, id)
		if err != nil {
			return err
		}
		if ingestion == nil {
			return storage.ErrNotFound
		}
		if ingestion.Status.IsTerminal() {
			return nil
		}

		ingestion.Status = core.StatusFailed
		ingestion.ErrorCode = code
		ingestion.ErrorMessage = message
		ingestion.CompletedAt = time.Now().UTC()
		if err := tx.Set(makeIngestionKey(id), storage.MarshalIngestion(ingestion)); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// ListStuckIngestions retrieves PROCESSING rows started before the cutoff.
func (r *IngestionRepository) ListStuckIngestions(ctx context.Context, cutoff time.Time) ([]*core.Ingestion, error) {
	var results []*core.Ingestion
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(ingestionPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var ingestion *core.Ingestion
			err := iter.Item().Value(func(val []byte) error {
				var unmarshalErr error
				ingestion, unmarshalErr = storage.UnmarshalIngestion(val)
				return unmarshalErr
			})
			if err != nil {
				return err
			}
			if ingestion.Status == core.StatusProcessing && ingestion.StartedAt.Before(cutoff) {
				results = append(results, ingestion)
			}
		}
		return nil
	}, false)
	return results, err
}

// readIngestion reads an ingestion row from the transaction. Returns
// nil, nil when the key is absent.
func readIngestion(tx *badger.Txn, id string) (*core.Ingestion, error) {
	item, err := tx.Get(makeIngestionKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var ingestion *core.Ingestion
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		ingestion, unmarshalErr = storage.UnmarshalIngestion(val)
		return unmarshalErr
	})
	return ingestion, err
}

// listIndexedIds walks a per-device time index in reverse, returning the
// referenced row IDs newest first.
func listIndexedIds(tx *badger.Txn, prefix []byte) ([]string, error) {
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	iter := tx.NewIterator(opts)
	defer iter.Close()

	// Seek just past the last possible key under the prefix.
	seekKey := append(append([]byte{}, prefix...), 0xff)

	var ids []string
	for iter.Seek(seekKey); iter.Valid(); iter.Next() {
		key := iter.Item().Key()
		if !bytes.HasPrefix(key, prefix) {
			break
		}
		var id string
		if err := iter.Item().Value(func(val []byte) error {
			id = string(val)
			return nil
		}); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
