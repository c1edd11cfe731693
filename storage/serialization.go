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


package storage

import (
	"github.com/sableridge/pagerag/core"
)

// MarshalDevice serializes a Device to bytes.
func MarshalDevice(device *core.Device) []byte {
	buf := make([]byte, core.DeviceMUS.Size(*device))
	core.DeviceMUS.Marshal(*device, buf)
	return buf
}

// UnmarshalDevice deserializes a Device from bytes.
func UnmarshalDevice(data []byte) (*core.Device, error) {
	device, _, err := core.DeviceMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// MarshalIngestion serializes an Ingestion to bytes.
func MarshalIngestion(ingestion *core.Ingestion) []byte {
	buf := make([]byte, core.IngestionMUS.Size(*ingestion))
	core.IngestionMUS.Marshal(*ingestion, buf)
	return buf
}

// UnmarshalIngestion deserializes an Ingestion from bytes.
func UnmarshalIngestion(data []byte) (*core.Ingestion, error) {
	ingestion, _, err := core.IngestionMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &ingestion, nil
}

// MarshalQuery serializes a Query to bytes.
func MarshalQuery(query *core.Query) []byte {
	buf := make([]byte, core.QueryMUS.Size(*query))
	core.QueryMUS.Marshal(*query, buf)
	return buf
}

// UnmarshalQuery deserializes a Query from bytes.
func UnmarshalQuery(data []byte) (*core.Query, error) {
	query, _, err := core.QueryMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &query, nil
}

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(chunk *core.Chunk) []byte {
	buf := make([]byte, core.ChunkMUS.Size(*chunk))
	core.ChunkMUS.Marshal(*chunk, buf)
	return buf
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	chunk, _, err := core.ChunkMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &chunk, nil
}

// MarshalVector serializes an embedding vector to bytes.
func MarshalVector(vector []float32) []byte {
	buf := make([]byte, core.VectorMUS.Size(vector))
	core.VectorMUS.Marshal(vector, buf)
	return buf
}

// UnmarshalVector deserializes an embedding vector from bytes.
func UnmarshalVector(data []byte) ([]float32, error) {
	vector, _, err := core.VectorMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return vector, nil
}
