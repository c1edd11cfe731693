package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Microsecond).UTC()
	q := Query{
		Id:             NewId(),
		DeviceId:       NewId(),
		Question:       "What does the warranty cover?",
		Status:         StatusSuccess,
		Answer:         "Two years of parts and labor.",
		ChunkCountUsed: 2,
		TokenCount:     137,
		Sources: []Source{
			{IngestionId: "ing-1", URL: "https://example.com", ChunkId: "ing-1_0", RelevanceScore: 0.91, TextSnippet: "warranty covers"},
			{IngestionId: "ing-1", URL: "https://example.com", ChunkId: "ing-1_3", RelevanceScore: 0.64, TextSnippet: "parts and labor"},
		},
		CreatedAt:   now,
		StartedAt:   now.Add(time.Second),
		CompletedAt: now.Add(3 * time.Second),
	}

	bs := make([]byte, QueryMUS.Size(q))
	n := QueryMUS.Marshal(q, bs)
	require.Equal(t, len(bs), n)

	got, n, err := QueryMUS.Unmarshal(bs)
	require.NoError(t, err)
	assert.Equal(t, len(bs), n)
	assert.Equal(t, q, got)
}

func TestIngestionRoundTripZeroTimes(t *testing.T) {
	g := Ingestion{
		Id:       NewId(),
		DeviceId: NewId(),
		URL:      "https://example.com/page",
		Status:   StatusPending,
		// StartedAt/CompletedAt deliberately zero
		CreatedAt: time.Now().Truncate(time.Microsecond).UTC(),
	}

	bs := make([]byte, IngestionMUS.Size(g))
	IngestionMUS.Marshal(g, bs)

	got, _, err := IngestionMUS.Unmarshal(bs)
	require.NoError(t, err)
	assert.Equal(t, g, got)
	assert.True(t, got.StartedAt.IsZero())
	assert.True(t, got.CompletedAt.IsZero())
}

func TestVectorRoundTrip(t *testing.T) {
	v := []float32{0.25, -0.5, 0.8291, 0}

	bs := make([]byte, VectorMUS.Size(v))
	VectorMUS.Marshal(v, bs)

	got, _, err := VectorMUS.Unmarshal(bs)
	require.NoError(t, err)
	assert.Equal(t, v, got)
}
