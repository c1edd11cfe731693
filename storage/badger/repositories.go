package badger

import "github.com/sableridge/pagerag/storage"

// Repositories bundles the storage interfaces over one shared backend.
type Repositories struct {
	backend *Backend

	Devices    storage.DeviceRepository
	Ingestions storage.IngestionRepository
	Queries    storage.QueryRepository
}

// NewRepositories opens a BadgerDB database at the given path and builds
// the repositories over it. Caller must Close when done.
func NewRepositories(filePath string) (*Repositories, error) {
	backend, err := OpenBackend(filePath, false)
	if err != nil {
		return nil, err
	}
	return newRepositories(backend), nil
}

func newRepositories(backend *Backend) *Repositories {
	return &Repositories{
		backend:    backend,
		Devices:    NewDeviceRepository(backend),
		Ingestions: NewIngestionRepository(backend),
		Queries:    NewQueryRepository(backend),
	}
}

// Backend exposes the shared backend for components that need raw
// transactions, such as the vector index.
func (r *Repositories) Backend() *Backend {
	return r.backend
}

// Close closes the underlying database.
func (r *Repositories) Close() error {
	return r.backend.Close()
}
