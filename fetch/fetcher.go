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


package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sableridge/pagerag/core"
)

// Fetch limits. The body cap truncates rather than fails: a huge page is
// still worth its first megabytes, and the token cap trims it later anyway.
const (
	DefaultTimeout      = 10 * time.Second
	DefaultMaxBodyBytes = 5 << 20
	maxRedirects        = 5
)

// Some sites serve bot-unfriendly stubs to unknown agents.
var browserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
}

// Fetcher retrieves raw HTML with bounded timeout, redirects, and body size.
type Fetcher struct {
	client  *http.Client
	maxBody int64
	logger  *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithTimeout bounds the whole request, connect through body read.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.client.Timeout = d
	}
}

// WithMaxBodyBytes caps how much of the response body is read.
func WithMaxBodyBytes(n int64) FetcherOption {
	return func(f *Fetcher) {
		f.maxBody = n
	}
}

// WithFetcherLogger sets the fetcher's logger.
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a Fetcher with default limits.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		maxBody: DefaultMaxBodyBytes,
		logger:  slog.Default().With("component", "fetcher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch GETs rawURL and returns the (possibly truncated) response body.
// Transport failures map to NETWORK_TIMEOUT, non-2xx statuses to HTTP_ERROR
// carrying the status code.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", core.NewCodedError(core.CodeUnknownError, fmt.Sprintf("building request: %v", err))
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("fetch failed", "url", rawURL, "error", err)
		return "", core.NewCodedError(core.CodeNetworkTimeout, fmt.Sprintf("fetching %s: %v", rawURL, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.logger.Warn("fetch returned error status", "url", rawURL, "status", resp.StatusCode)
		return "", core.NewCodedError(core.CodeHTTPError,
			fmt.Sprintf("HTTP %d fetching %s", resp.StatusCode, rawURL))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return "", core.NewCodedError(core.CodeNetworkTimeout, fmt.Sprintf("reading body of %s: %v", rawURL, err))
	}

	f.logger.Debug("fetched page", "url", rawURL, "bytes", len(body))
	return string(body), nil
}
