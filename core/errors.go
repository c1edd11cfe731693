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

import "errors"

// Stable error codes recorded on FAILED rows. Clients match on these
// strings, so they must never be renamed.
const (
	CodeNetworkTimeout  = "NETWORK_TIMEOUT"
	CodeHTTPError       = "HTTP_ERROR"
	CodeNoContent       = "NO_CONTENT"
	CodeUnknownError    = "UNKNOWN_ERROR"
	CodeInvalidQuestion = "INVALID_QUESTION"
	CodeQuotaExhausted  = "QUOTA_EXHAUSTED"
	CodeTaskTimeout     = "TASK_TIMEOUT"
)

// Domain validation errors
var (
	// ErrInvalidURL indicates a URL failed scheme or host validation.
	ErrInvalidURL = errors.New("invalid url")

	// ErrInvalidQuestion indicates a question failed length validation.
	ErrInvalidQuestion = errors.New("invalid question")

	// ErrQuotaExhausted indicates the device has no query quota left.
	ErrQuotaExhausted = errors.New("query quota exhausted")

	// ErrAlreadyIngested indicates the device already has a live ingestion.
	ErrAlreadyIngested = errors.New("device already has an ingestion in progress or completed")
)

// CodedError is a pipeline failure carrying the stable error code that is
// written to the row's ErrorCode field.
type CodedError struct {
	Code    string
	Message string
}

func (e *CodedError) Error() string {
	return e.Code + ": " + e.Message
}

// NewCodedError builds a CodedError for the given stable code.
func NewCodedError(code, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}

// ErrorCode extracts the stable code from err, falling back to
// CodeUnknownError for anything that is not a CodedError.
func ErrorCode(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeUnknownError
}
