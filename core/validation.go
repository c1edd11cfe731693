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
	"fmt"
	"net"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Question length bounds, in characters.
const (
	MinQuestionLength = 10
	MaxQuestionLength = 500
)

// ValidateQuestion checks question length before a Query row is created.
// Whitespace-only padding does not count toward the minimum.
func ValidateQuestion(question string) error {
	trimmed := strings.TrimSpace(question)
	n := utf8.RuneCountInString(trimmed)
	if n < MinQuestionLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrInvalidQuestion, MinQuestionLength)
	}
	if n > MaxQuestionLength {
		return fmt.Errorf("%w: must be at most %d characters", ErrInvalidQuestion, MaxQuestionLength)
	}
	return nil
}

// ValidateURL checks that a URL is http(s) and does not point at an
// internal or reserved host. IP checks cover literals only; no DNS
// resolution happens here.
func ValidateURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") ||
		strings.HasSuffix(lower, ".local") || strings.HasSuffix(lower, ".internal") {
		return fmt.Errorf("%w: internal host %q", ErrInvalidURL, host)
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
			ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
			return fmt.Errorf("%w: reserved address %q", ErrInvalidURL, host)
		}
	}
	return nil
}
