package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an Ingestion or Query row.
type Status string

const (
	// StatusPending means the row was accepted but no worker has picked it up.
	StatusPending Status = "PENDING"
	// StatusProcessing means a pipeline run owns the row.
	StatusProcessing Status = "PROCESSING"
	// StatusSuccess is the terminal success state.
	StatusSuccess Status = "SUCCESS"
	// StatusFailed is the terminal failure state.
	StatusFailed Status = "FAILED"
)

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// DefaultQueryQuota is the number of queries a fresh device may submit.
const DefaultQueryQuota = 3

// Device is the client identity anchor. A device owns at most one live
// ingestion and a bounded number of queries.
type Device struct {
	Id             string
	Fingerprint    string
	DeviceModel    string
	OSVersion      string
	QuotaRemaining int
	CreatedAt      time.Time
	LastSeenAt     time.Time
}

// Ingestion tracks one URL's processing lifecycle for a device.
// ChunkCount and TokenCount are populated only on SUCCESS; ErrorCode and
// ErrorMessage only on FAILED.
type Ingestion struct {
	Id           string
	DeviceId     string
	URL          string
	Status       Status
	ChunkCount   int
	TokenCount   int
	ErrorCode    string
	ErrorMessage string
	CreatedAt    time.Time
	StartedAt    time.Time
	CompletedAt  time.Time
}

// Query tracks one question's answering lifecycle for a device.
// Answer and Sources are populated only on SUCCESS.
type Query struct {
	Id             string
	DeviceId       string
	Question       string
	Status         Status
	Answer         string
	ChunkCountUsed int
	TokenCount     int
	Sources        []Source
	ErrorCode      string
	ErrorMessage   string
	CreatedAt      time.Time
	StartedAt      time.Time
	CompletedAt    time.Time
}

// Source cites one chunk that contributed to an answer.
type Source struct {
	IngestionId    string
	URL            string
	ChunkId        string
	RelevanceScore float32
	TextSnippet    string
}

// Chunk is a vector-index record: a bounded slice of extracted text together
// with its position in the source document. The embedding itself lives next
// to the record in the index, not on the struct.
type Chunk struct {
	Id          string
	IngestionId string
	DeviceId    string
	Text        string
	Ordinal     int
	TokenCount  int
}

// ChunkId derives the stable chunk identifier from its owning ingestion and
// ordinal position.
func ChunkId(ingestionId string, ordinal int) string {
	return fmt.Sprintf("%s_%d", ingestionId, ordinal)
}

// NewId returns a fresh row identifier.
func NewId() string {
	return uuid.NewString()
}
