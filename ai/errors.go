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


package ai

import "errors"

var (
	// ErrDimensionMismatch indicates the service returned a vector of an
	// unexpected dimension. Fatal, never retried.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrZeroVector indicates a degenerate all-zero embedding that cannot
	// be normalized to unit length.
	ErrZeroVector = errors.New("embedding has zero norm")

	// ErrCountMismatch indicates the service returned a different number
	// of vectors than texts submitted.
	ErrCountMismatch = errors.New("embedding count does not match input count")

	// ErrEmptyAnswer indicates the generation service returned no usable
	// answer text.
	ErrEmptyAnswer = errors.New("generation returned an empty answer")
)
