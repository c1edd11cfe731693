package core

import (
	"encoding/hex"
	"strings"

	"github.com/go-crypt/x/blake2b"
)

// Fingerprint derives the stable device fingerprint from the device-reported
// attributes and a server-side secret salt. Identical attributes always map
// to the same fingerprint, so returning devices are recognized without
// storing anything client-side.
func Fingerprint(deviceModel, osVersion, salt string) string {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(strings.TrimSpace(deviceModel)))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(osVersion)))
	h.Write([]byte{0})
	h.Write([]byte(salt))
	return hex.EncodeToString(h.Sum(nil))
}
