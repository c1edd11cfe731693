package badger

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Key prefixes for different data types
const (
	devicePrefix            = "dev"
	deviceFingerprintPrefix = "devfp"
	ingestionPrefix         = "ing"
	ingestionDevicePrefix   = "ingdev"
	ingestionActivePrefix   = "ingact"
	queryPrefix             = "qry"
	queryDevicePrefix       = "qrydev"
)

// makeDeviceKey generates a key for a device by ID.
func makeDeviceKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", devicePrefix, id))
}

// makeFingerprintKey generates a key for the fingerprint index.
// The value is the device ID.
func makeFingerprintKey(fingerprint string) []byte {
	return []byte(fmt.Sprintf("%s:%s", deviceFingerprintPrefix, fingerprint))
}

// makeIngestionKey generates a key for an ingestion row by ID.
func makeIngestionKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", ingestionPrefix, id))
}

// makeIngestionDeviceKey generates a composite key for the per-device
// ingestion index. Format: prefix:deviceID:timestamp:rowID, with the
// timestamp in BigEndian order so lexicographic sort follows time.
func makeIngestionDeviceKey(deviceId string, createdAt time.Time, id string) []byte {
	return makeDeviceTimeKey(ingestionDevicePrefix, deviceId, createdAt, id)
}

// makeIngestionActiveKey generates the per-device pointer to the most
// recently created ingestion row. Reading and rewriting this key inside
// one transaction serializes concurrent submissions for a device.
func makeIngestionActiveKey(deviceId string) []byte {
	return []byte(fmt.Sprintf("%s:%s", ingestionActivePrefix, deviceId))
}

// makeIngestionDevicePrefix generates the iteration prefix for a device's
// ingestion index entries.
func makeIngestionDevicePrefix(deviceId string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", ingestionDevicePrefix, deviceId))
}

// makeQueryKey generates a key for a query row by ID.
func makeQueryKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", queryPrefix, id))
}

// makeQueryDeviceKey generates a composite key for the per-device query
// index. Same layout as the ingestion index.
func makeQueryDeviceKey(deviceId string, createdAt time.Time, id string) []byte {
	return makeDeviceTimeKey(queryDevicePrefix, deviceId, createdAt, id)
}

// makeQueryDevicePrefix generates the iteration prefix for a device's
// query index entries.
func makeQueryDevicePrefix(deviceId string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", queryDevicePrefix, deviceId))
}

// makeDeviceTimeKey builds prefix:deviceID:timestamp:rowID with an 8-byte
// BigEndian timestamp segment.
func makeDeviceTimeKey(prefix, deviceId string, createdAt time.Time, id string) []byte {
	head := []byte(fmt.Sprintf("%s:%s:", prefix, deviceId))
	buf := make([]byte, len(head)+8+1+len(id))
	offset := copy(buf, head)
	binary.BigEndian.PutUint64(buf[offset:], uint64(createdAt.UnixMicro()))
	offset += 8
	buf[offset] = ':'
	offset++
	copy(buf[offset:], id)
	return buf
}
