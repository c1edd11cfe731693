package vecindex

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/sableridge/pagerag/core"
	"github.com/sableridge/pagerag/storage"
	badgerstore "github.com/sableridge/pagerag/storage/badger"
)

// Key prefixes for the vector keyspace
const (
	chunkKeyPrefix  = "vecc"
	vectorKeyPrefix = "vecv"
	metaKey         = "vecmeta"
	dimensionKey    = "vecdim"
)

// badgerIndex implements Index over a shared BadgerDB backend.
type badgerIndex struct {
	backend *badgerstore.Backend
	logger  *slog.Logger
}

var _ Index = (*badgerIndex)(nil)

// NewBadgerIndex builds a cosine index over the backend. An existing
// index recorded under a different metric is dropped and rebuilt empty.
func NewBadgerIndex(backend *badgerstore.Backend) (Index, error) {
	idx := &badgerIndex{
		backend: backend,
		logger:  slog.Default().With("component", "vecindex"),
	}
	if err := idx.ensureMetric(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *badgerIndex) ensureMetric() error {
	return idx.backend.WithRetryTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(metaKey))
		if err == nil {
			var metric string
			if err := item.Value(func(val []byte) error {
				metric = string(val)
				return nil
			}); err != nil {
				return err
			}
			if metric == MetricCosine {
				return nil
			}
			idx.logger.Warn("index metric changed, rebuilding", "old", metric, "new", MetricCosine)
			if err := deleteByPrefix(tx, []byte(chunkKeyPrefix+":")); err != nil {
				return err
			}
			if err := deleteByPrefix(tx, []byte(vectorKeyPrefix+":")); err != nil {
				return err
			}
			if err := tx.Delete([]byte(dimensionKey)); err != nil {
				return err
			}
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		if err := tx.Set([]byte(metaKey), []byte(MetricCosine)); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// Store writes all chunks and vectors in one transaction.
func (idx *badgerIndex) Store(ctx context.Context, ns Namespace, chunks []core.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks, %d vectors", ErrCountMismatch, len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}
	dim := len(vectors[0])
	for i, vector := range vectors {
		if len(vector) != dim || dim == 0 {
			return fmt.Errorf("%w: vector %d has dimension %d, want %d", ErrDimensionMismatch, i, len(vector), dim)
		}
	}

	return idx.backend.WithRetryTx(func(tx *badger.Txn) error {
		// The first stored batch fixes the index dimension; later batches
		// must agree with it.
		recorded, err := readDimension(tx)
		if err != nil {
			return err
		}
		if recorded == 0 {
			if err := tx.Set([]byte(dimensionKey), []byte(strconv.Itoa(dim))); err != nil {
				return err
			}
		} else if recorded != dim {
			return fmt.Errorf("%w: store dimension %d, index dimension %d", ErrDimensionMismatch, dim, recorded)
		}

		for i, chunk := range chunks {
			if err := tx.Set(makeChunkKey(ns, chunk.Id), storage.MarshalChunk(&chunk)); err != nil {
				return err
			}
			if err := tx.Set(makeVectorKey(ns, chunk.Id), storage.MarshalVector(vectors[i])); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// Search scans the namespace's vectors and returns the best matches.
func (idx *badgerIndex) Search(ctx context.Context, ns Namespace, vector []float32, minScore float32, limit int) ([]Match, error) {
	var matches []Match
	err := idx.backend.WithTx(func(tx *badger.Txn) error {
		recorded, err := readDimension(tx)
		if err != nil {
			return err
		}
		if recorded != 0 && len(vector) != recorded {
			return fmt.Errorf("%w: query dimension %d, index dimension %d", ErrDimensionMismatch, len(vector), recorded)
		}

		prefix := makeNamespacePrefix(vectorKeyPrefix, ns)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			chunkId := string(iter.Item().Key()[len(prefix):])

			var stored []float32
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				stored, err = storage.UnmarshalVector(val)
				return err
			}); err != nil {
				return err
			}

			// Cosine of normalized vectors is the dot product; map
			// [-1, 1] onto [0, 1].
			score := (dotProduct(vector, stored) + 1) / 2
			if score < minScore {
				continue
			}

			chunk, err := readChunk(tx, ns, chunkId)
			if err != nil {
				return err
			}
			matches = append(matches, Match{Chunk: *chunk, Score: score})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(matches, func(a, b Match) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return a.Chunk.Ordinal - b.Chunk.Ordinal
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// DeleteNamespace removes every chunk and vector in the namespace.
func (idx *badgerIndex) DeleteNamespace(ctx context.Context, ns Namespace) error {
	return idx.backend.WithRetryTx(func(tx *badger.Txn) error {
		if err := deleteByPrefix(tx, makeNamespacePrefix(chunkKeyPrefix, ns)); err != nil {
			return err
		}
		if err := deleteByPrefix(tx, makeNamespacePrefix(vectorKeyPrefix, ns)); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func makeChunkKey(ns Namespace, chunkId string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:%s", chunkKeyPrefix, ns.DeviceId, ns.IngestionId, chunkId))
}

func makeVectorKey(ns Namespace, chunkId string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:%s", vectorKeyPrefix, ns.DeviceId, ns.IngestionId, chunkId))
}

func makeNamespacePrefix(prefix string, ns Namespace) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:", prefix, ns.DeviceId, ns.IngestionId))
}

// readDimension returns the index's recorded vector dimension, or 0 when
// nothing has ever been stored.
func readDimension(tx *badger.Txn) (int, error) {
	item, err := tx.Get([]byte(dimensionKey))
	if err == badger.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var dim int
	err = item.Value(func(val []byte) error {
		var convErr error
		dim, convErr = strconv.Atoi(string(val))
		return convErr
	})
	return dim, err
}

func readChunk(tx *badger.Txn, ns Namespace, chunkId string) (*core.Chunk, error) {
	item, err := tx.Get(makeChunkKey(ns, chunkId))
	if err != nil {
		return nil, err
	}
	var chunk *core.Chunk
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		chunk, unmarshalErr = storage.UnmarshalChunk(val)
		return unmarshalErr
	})
	return chunk, err
}

func deleteByPrefix(tx *badger.Txn, prefix []byte) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	var keys [][]byte
	for iter.Rewind(); iter.Valid(); iter.Next() {
		keys = append(keys, iter.Item().KeyCopy(nil))
	}
	iter.Close()

	for _, key := range keys {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
