// Copyright 2025 Sableridge Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for every persisted record. Hand-written over the mus-go
// primitives; field order is part of the storage format and must not change
// without a migration.
var (
	DeviceMUS    = deviceMUS{}
	IngestionMUS = ingestionMUS{}
	QueryMUS     = queryMUS{}
	SourceMUS    = sourceMUS{}
	ChunkMUS     = chunkMUS{}
	VectorMUS    = vectorMUS{}
)

// Timestamps are stored as microseconds since the epoch; the zero time maps
// to 0 on the wire.

func marshalTime(t time.Time, bs []byte) (n int) {
	if t.IsZero() {
		return varint.Int64.Marshal(0, bs)
	}
	return varint.Int64.Marshal(t.UnixMicro(), bs)
}

func unmarshalTime(bs []byte) (t time.Time, n int, err error) {
	v, n, err := varint.Int64.Unmarshal(bs)
	if err != nil || v == 0 {
		return time.Time{}, n, err
	}
	return time.UnixMicro(v).UTC(), n, nil
}

func sizeTime(t time.Time) (size int) {
	if t.IsZero() {
		return varint.Int64.Size(0)
	}
	return varint.Int64.Size(t.UnixMicro())
}

type deviceMUS struct{}

func (deviceMUS) Marshal(d Device, bs []byte) (n int) {
	n = ord.String.Marshal(d.Id, bs)
	n += ord.String.Marshal(d.Fingerprint, bs[n:])
	n += ord.String.Marshal(d.DeviceModel, bs[n:])
	n += ord.String.Marshal(d.OSVersion, bs[n:])
	n += varint.Int.Marshal(d.QuotaRemaining, bs[n:])
	n += marshalTime(d.CreatedAt, bs[n:])
	n += marshalTime(d.LastSeenAt, bs[n:])
	return n
}

func (deviceMUS) Unmarshal(bs []byte) (d Device, n int, err error) {
	var m int
	if d.Id, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if d.Fingerprint, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + m, err
	}
	n += m
	if d.DeviceModel, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + m, err
	}
	n += m
	if d.OSVersion, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + m, err
	}
	n += m
	if d.QuotaRemaining, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return d, n + m, err
	}
	n += m
	if d.CreatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return d, n + m, err
	}
	n += m
	d.LastSeenAt, m, err = unmarshalTime(bs[n:])
	return d, n + m, err
}

func (deviceMUS) Size(d Device) (size int) {
	size = ord.String.Size(d.Id)
	size += ord.String.Size(d.Fingerprint)
	size += ord.String.Size(d.DeviceModel)
	size += ord.String.Size(d.OSVersion)
	size += varint.Int.Size(d.QuotaRemaining)
	size += sizeTime(d.CreatedAt)
	size += sizeTime(d.LastSeenAt)
	return size
}

type ingestionMUS struct{}

func (ingestionMUS) Marshal(g Ingestion, bs []byte) (n int) {
	n = ord.String.Marshal(g.Id, bs)
	n += ord.String.Marshal(g.DeviceId, bs[n:])
	n += ord.String.Marshal(g.URL, bs[n:])
	n += ord.String.Marshal(string(g.Status), bs[n:])
	n += varint.Int.Marshal(g.ChunkCount, bs[n:])
	n += varint.Int.Marshal(g.TokenCount, bs[n:])
	n += ord.String.Marshal(g.ErrorCode, bs[n:])
	n += ord.String.Marshal(g.ErrorMessage, bs[n:])
	n += marshalTime(g.CreatedAt, bs[n:])
	n += marshalTime(g.StartedAt, bs[n:])
	n += marshalTime(g.CompletedAt, bs[n:])
	return n
}

func (ingestionMUS) Unmarshal(bs []byte) (g Ingestion, n int, err error) {
	var (
		m      int
		status string
	)
	if g.Id, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if g.DeviceId, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return g, n + m, err
	}
	n += m
	if g.URL, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return g, n + m, err
	}
	n += m
	if status, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return g, n + m, err
	}
	g.Status = Status(status)
	n += m
	if g.ChunkCount, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return g, n + m, err
	}
	n += m
	if g.TokenCount, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return g, n + m, err
	}
	n += m
	if g.ErrorCode, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return g, n + m, err
	}
	n += m
	if g.ErrorMessage, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return g, n + m, err
	}
	n += m
	if g.CreatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return g, n + m, err
	}
	n += m
	if g.StartedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return g, n + m, err
	}
	n += m
	g.CompletedAt, m, err = unmarshalTime(bs[n:])
	return g, n + m, err
}

func (ingestionMUS) Size(g Ingestion) (size int) {
	size = ord.String.Size(g.Id)
	size += ord.String.Size(g.DeviceId)
	size += ord.String.Size(g.URL)
	size += ord.String.Size(string(g.Status))
	size += varint.Int.Size(g.ChunkCount)
	size += varint.Int.Size(g.TokenCount)
	size += ord.String.Size(g.ErrorCode)
	size += ord.String.Size(g.ErrorMessage)
	size += sizeTime(g.CreatedAt)
	size += sizeTime(g.StartedAt)
	size += sizeTime(g.CompletedAt)
	return size
}

type sourceMUS struct{}

func (sourceMUS) Marshal(s Source, bs []byte) (n int) {
	n = ord.String.Marshal(s.IngestionId, bs)
	n += ord.String.Marshal(s.URL, bs[n:])
	n += ord.String.Marshal(s.ChunkId, bs[n:])
	n += varint.Float32.Marshal(s.RelevanceScore, bs[n:])
	n += ord.String.Marshal(s.TextSnippet, bs[n:])
	return n
}

func (sourceMUS) Unmarshal(bs []byte) (s Source, n int, err error) {
	var m int
	if s.IngestionId, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if s.URL, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return s, n + m, err
	}
	n += m
	if s.ChunkId, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return s, n + m, err
	}
	n += m
	if s.RelevanceScore, m, err = varint.Float32.Unmarshal(bs[n:]); err != nil {
		return s, n + m, err
	}
	n += m
	s.TextSnippet, m, err = ord.String.Unmarshal(bs[n:])
	return s, n + m, err
}

func (sourceMUS) Size(s Source) (size int) {
	size = ord.String.Size(s.IngestionId)
	size += ord.String.Size(s.URL)
	size += ord.String.Size(s.ChunkId)
	size += varint.Float32.Size(s.RelevanceScore)
	size += ord.String.Size(s.TextSnippet)
	return size
}

type queryMUS struct{}

func (queryMUS) Marshal(q Query, bs []byte) (n int) {
	n = ord.String.Marshal(q.Id, bs)
	n += ord.String.Marshal(q.DeviceId, bs[n:])
	n += ord.String.Marshal(q.Question, bs[n:])
	n += ord.String.Marshal(string(q.Status), bs[n:])
	n += ord.String.Marshal(q.Answer, bs[n:])
	n += varint.Int.Marshal(q.ChunkCountUsed, bs[n:])
	n += varint.Int.Marshal(q.TokenCount, bs[n:])
	n += varint.Int.Marshal(len(q.Sources), bs[n:])
	for _, s := range q.Sources {
		n += SourceMUS.Marshal(s, bs[n:])
	}
	n += ord.String.Marshal(q.ErrorCode, bs[n:])
	n += ord.String.Marshal(q.ErrorMessage, bs[n:])
	n += marshalTime(q.CreatedAt, bs[n:])
	n += marshalTime(q.StartedAt, bs[n:])
	n += marshalTime(q.CompletedAt, bs[n:])
	return n
}

func (queryMUS) Unmarshal(bs []byte) (q Query, n int, err error) {
	var (
		m      int
		status string
		count  int
	)
	if q.Id, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if q.DeviceId, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return q, n + m, err
	}
	n += m
	if q.Question, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return q, n + m, err
	}
	n += m
	if status, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return q, n + m, err
	}
	q.Status = Status(status)
	n += m
	if q.Answer, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return q, n + m, err
	}
	n += m
	if q.ChunkCountUsed, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return q, n + m, err
	}
	n += m
	if q.TokenCount, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return q, n + m, err
	}
	n += m
	if count, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return q, n + m, err
	}
	n += m
	if count > 0 {
		q.Sources = make([]Source, count)
		for i := 0; i < count; i++ {
			if q.Sources[i], m, err = SourceMUS.Unmarshal(bs[n:]); err != nil {
				return q, n + m, err
			}
			n += m
		}
	}
	if q.ErrorCode, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return q, n + m, err
	}
	n += m
	if q.ErrorMessage, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return q, n + m, err
	}
	n += m
	if q.CreatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return q, n + m, err
	}
	n += m
	if q.StartedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return q, n + m, err
	}
	n += m
	q.CompletedAt, m, err = unmarshalTime(bs[n:])
	return q, n + m, err
}

func (queryMUS) Size(q Query) (size int) {
	size = ord.String.Size(q.Id)
	size += ord.String.Size(q.DeviceId)
	size += ord.String.Size(q.Question)
	size += ord.String.Size(string(q.Status))
	size += ord.String.Size(q.Answer)
	size += varint.Int.Size(q.ChunkCountUsed)
	size += varint.Int.Size(q.TokenCount)
	size += varint.Int.Size(len(q.Sources))
	for _, s := range q.Sources {
		size += SourceMUS.Size(s)
	}
	size += ord.String.Size(q.ErrorCode)
	size += ord.String.Size(q.ErrorMessage)
	size += sizeTime(q.CreatedAt)
	size += sizeTime(q.StartedAt)
	size += sizeTime(q.CompletedAt)
	return size
}

type chunkMUS struct{}

func (chunkMUS) Marshal(c Chunk, bs []byte) (n int) {
	n = ord.String.Marshal(c.Id, bs)
	n += ord.String.Marshal(c.IngestionId, bs[n:])
	n += ord.String.Marshal(c.DeviceId, bs[n:])
	n += ord.String.Marshal(c.Text, bs[n:])
	n += varint.Int.Marshal(c.Ordinal, bs[n:])
	n += varint.Int.Marshal(c.TokenCount, bs[n:])
	return n
}

func (chunkMUS) Unmarshal(bs []byte) (c Chunk, n int, err error) {
	var m int
	if c.Id, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if c.IngestionId, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return c, n + m, err
	}
	n += m
	if c.DeviceId, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return c, n + m, err
	}
	n += m
	if c.Text, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return c, n + m, err
	}
	n += m
	if c.Ordinal, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return c, n + m, err
	}
	n += m
	c.TokenCount, m, err = varint.Int.Unmarshal(bs[n:])
	return c, n + m, err
}

func (chunkMUS) Size(c Chunk) (size int) {
	size = ord.String.Size(c.Id)
	size += ord.String.Size(c.IngestionId)
	size += ord.String.Size(c.DeviceId)
	size += ord.String.Size(c.Text)
	size += varint.Int.Size(c.Ordinal)
	size += varint.Int.Size(c.TokenCount)
	return size
}

type vectorMUS struct{}

func (vectorMUS) Marshal(v []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += varint.Float32.Marshal(f, bs[n:])
	}
	return n
}

func (vectorMUS) Unmarshal(bs []byte) (v []float32, n int, err error) {
	var (
		m     int
		count int
	)
	if count, n, err = varint.Int.Unmarshal(bs); err != nil {
		return
	}
	if count == 0 {
		return nil, n, nil
	}
	v = make([]float32, count)
	for i := 0; i < count; i++ {
		if v[i], m, err = varint.Float32.Unmarshal(bs[n:]); err != nil {
			return v, n + m, err
		}
		n += m
	}
	return v, n, nil
}

func (vectorMUS) Size(v []float32) (size int) {
	size = varint.Int.Size(len(v))
	for _, f := range v {
		size += varint.Float32.Size(f)
	}
	return size
}
