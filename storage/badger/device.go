package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sableridge/pagerag/core"
	"github.com/sableridge/pagerag/storage"
)

// DeviceRepository implements storage.DeviceRepository for BadgerDB.
type DeviceRepository struct {
	backend *Backend
}

var _ storage.DeviceRepository = (*DeviceRepository)(nil)

// NewDeviceRepository creates a new DeviceRepository.
func NewDeviceRepository(backend *Backend) *DeviceRepository {
	return &DeviceRepository{backend: backend}
}

// CreateDevice stores a new device and its fingerprint index entry.
func (r *DeviceRepository) CreateDevice(ctx context.Context, device *core.Device) error {
	return r.backend.WithRetryTx(func(tx *badger.Txn) error {
		fpKey := makeFingerprintKey(device.Fingerprint)
		if _, err := tx.Get(fpKey); err == nil {
			return storage.ErrDuplicateKey
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		now := time.Now().UTC()
		if device.CreatedAt.IsZero() {
			device.CreatedAt = now
		}
		if device.LastSeenAt.IsZero() {
			device.LastSeenAt = now
		}

		if err := tx.Set(makeDeviceKey(device.Id), storage.MarshalDevice(device)); err != nil {
			return err
		}
		if err := tx.Set(fpKey, []byte(device.Id)); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// GetDevice retrieves a device by ID.
func (r *DeviceRepository) GetDevice(ctx context.Context, id string) (*core.Device, error) {
	var result *core.Device
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readDevice(tx, id)
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

// GetDeviceByFingerprint retrieves a device by its fingerprint.
func (r *DeviceRepository) GetDeviceByFingerprint(ctx context.Context, fingerprint string) (*core.Device, error) {
	var result *core.Device
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeFingerprintKey(fingerprint))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}

		var deviceId string
		if err := item.Value(func(val []byte) error {
			deviceId = string(val)
			return nil
		}); err != nil {
			return err
		}

		result, err = readDevice(tx, deviceId)
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

// TouchDevice updates the device's LastSeenAt timestamp.
func (r *DeviceRepository) TouchDevice(ctx context.Context, id string) error {
	return r.backend.WithRetryTx(func(tx *badger.Txn) error {
		device, err := readDevice(tx, id)
		if err != nil {
			return err
		}
		if device == nil {
			return storage.ErrNotFound
		}

		device.LastSeenAt = time.Now().UTC()
		if err := tx.Set(makeDeviceKey(id), storage.MarshalDevice(device)); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// readDevice reads a device from the transaction. Returns nil, nil when
// the key is absent.
func readDevice(tx *badger.Txn, id string) (*core.Device, error) {
	item, err := tx.Get(makeDeviceKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var device *core.Device
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		device, unmarshalErr = storage.UnmarshalDevice(val)
		return unmarshalErr
	})
	return device, err
}
