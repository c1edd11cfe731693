package pagerag

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sableridge/pagerag/ai/mock"
	"github.com/sableridge/pagerag/core"
	"github.com/sableridge/pagerag/storage"
)

const testEmbedDim = 8

func newTestService(t *testing.T, opts ...ServiceOption) (*Service, *mock.Provider) {
	t.Helper()

	provider := mock.NewProvider(testEmbedDim)
	base := []ServiceOption{
		WithInMemory(),
		WithProvider(provider),
		WithURLValidator(func(string) error { return nil }),
	}
	svc, err := NewService("", append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc, provider
}

func TestService_RegisterDevice(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.RegisterDevice(ctx, "Pixel 8", "Android 15")
	require.NoError(t, err)
	assert.Equal(t, core.DefaultQueryQuota, first.QuotaRemaining)

	// Same pair lands on the same device.
	again, err := svc.RegisterDevice(ctx, "Pixel 8", "Android 15")
	require.NoError(t, err)
	assert.Equal(t, first.Id, again.Id)

	// A different pair is a different device.
	other, err := svc.RegisterDevice(ctx, "Pixel 8", "Android 16")
	require.NoError(t, err)
	assert.NotEqual(t, first.Id, other.Id)
}

func TestService_SubmitQueryValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	device, err := svc.RegisterDevice(ctx, "Pixel 8", "Android 15")
	require.NoError(t, err)

	// Too-short questions are rejected before any row or quota charge.
	_, err = svc.SubmitQuery(ctx, device.Id, "short")
	assert.ErrorIs(t, err, core.ErrInvalidQuestion)

	updated, err := svc.GetDevice(ctx, device.Id)
	require.NoError(t, err)
	assert.Equal(t, core.DefaultQueryQuota, updated.QuotaRemaining)
}

func TestService_QuotaExhaustion(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	device, err := svc.RegisterDevice(ctx, "Pixel 8", "Android 15")
	require.NoError(t, err)

	for i := 0; i < core.DefaultQueryQuota; i++ {
		_, err := svc.SubmitQuery(ctx, device.Id, fmt.Sprintf("What is the price of item %d?", i))
		require.NoError(t, err)
	}

	updated, err := svc.GetDevice(ctx, device.Id)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.QuotaRemaining)

	_, err = svc.SubmitQuery(ctx, device.Id, "One question over the limit?")
	assert.ErrorIs(t, err, core.ErrQuotaExhausted)

	// The rejection changes nothing.
	updated, err = svc.GetDevice(ctx, device.Id)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.QuotaRemaining)
}

func TestService_IngestURLValidation(t *testing.T) {
	provider := mock.NewProvider(testEmbedDim)
	svc, err := NewService("", WithInMemory(), WithProvider(provider))
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	ctx := context.Background()

	device, err := svc.RegisterDevice(ctx, "Pixel 8", "Android 15")
	require.NoError(t, err)

	_, err = svc.IngestURL(ctx, device.Id, "ftp://example.com/file")
	assert.ErrorIs(t, err, core.ErrInvalidURL)

	_, err = svc.IngestURL(ctx, device.Id, "http://localhost/admin")
	assert.ErrorIs(t, err, core.ErrInvalidURL)

	_, err = svc.IngestURL(ctx, "unknown-device", "https://example.com/page")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestService_IngestAndQueryEndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>UltraBook 14</title></head><body>
<article>
<h1>UltraBook 14</h1>
<p>The UltraBook 14 is a lightweight laptop with a 14 inch display.</p>
<p>It costs $999 and ships with 16GB of memory and 512GB of storage.</p>
<p>Battery life reaches twelve hours under typical office workloads.</p>
</article>
</body></html>`)
	}))
	defer server.Close()

	svc, provider := newTestService(t)
	ctx := context.Background()

	// Collapse every embedding onto one direction so search always
	// clears the similarity floor.
	fixed := mock.DeterministicVector("fixed direction", testEmbedDim)
	provider.MockEmbedder().EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		vectors := make([][]float32, len(texts))
		for i := range texts {
			vectors[i] = fixed
		}
		return vectors, nil
	}

	device, err := svc.RegisterDevice(ctx, "Pixel 8", "Android 15")
	require.NoError(t, err)

	ingestion, err := svc.IngestURL(ctx, device.Id, server.URL)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, ingestion.Status)

	require.Eventually(t, func() bool {
		row, err := svc.GetIngestion(ctx, ingestion.Id)
		return err == nil && row.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)

	row, err := svc.GetIngestion(ctx, ingestion.Id)
	require.NoError(t, err)
	require.Equal(t, core.StatusSuccess, row.Status, "ingestion failed: %s %s", row.ErrorCode, row.ErrorMessage)
	assert.Greater(t, row.ChunkCount, 0)
	assert.Greater(t, row.TokenCount, 0)

	// Second ingestion for the same device is rejected while one exists.
	_, err = svc.IngestURL(ctx, device.Id, server.URL)
	assert.ErrorIs(t, err, core.ErrAlreadyIngested)

	q, err := svc.SubmitQuery(ctx, device.Id, "How much does the UltraBook cost?")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		row, err := svc.GetQuery(ctx, q.Id)
		return err == nil && row.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)

	answered, err := svc.GetQuery(ctx, q.Id)
	require.NoError(t, err)
	require.Equal(t, core.StatusSuccess, answered.Status, "query failed: %s %s", answered.ErrorCode, answered.ErrorMessage)
	assert.NotEmpty(t, answered.Answer)
	assert.NotEmpty(t, answered.Sources)
	assert.Equal(t, ingestion.Id, answered.Sources[0].IngestionId)
}

func TestService_ReingestAllowedAfterFailure(t *testing.T) {
	svc, _ := newTestService(t, WithFetcher(failingFetcher{}))
	ctx := context.Background()

	device, err := svc.RegisterDevice(ctx, "Pixel 8", "Android 15")
	require.NoError(t, err)

	ingestion, err := svc.IngestURL(ctx, device.Id, "https://example.com/page")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		row, err := svc.GetIngestion(ctx, ingestion.Id)
		return err == nil && row.Status == core.StatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	// The failed attempt does not block a retry.
	_, err = svc.IngestURL(ctx, device.Id, "https://example.com/page")
	require.NoError(t, err)
}

func TestService_ConcurrentIngestSingleWinner(t *testing.T) {
	release := make(chan struct{})
	svc, _ := newTestService(t, WithFetcher(blockedFetcher{release: release}))
	ctx := context.Background()

	device, err := svc.RegisterDevice(ctx, "Pixel 8", "Android 15")
	require.NoError(t, err)

	const submissions = 8
	var accepted, rejected atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < submissions; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.IngestURL(ctx, device.Id, "https://example.com/page")
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, core.ErrAlreadyIngested):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load(), "exactly one submission wins the race")
	assert.Equal(t, int32(submissions-1), rejected.Load())

	// Unblock the winner and let it reach a terminal state before teardown.
	close(release)
	require.Eventually(t, func() bool {
		rows, err := svc.repos.Ingestions.GetIngestionsByDevice(ctx, device.Id)
		return err == nil && len(rows) == 1 && rows[0].Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)
}

type blockedFetcher struct{ release chan struct{} }

func (f blockedFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	<-f.release
	return "", core.NewCodedError(core.CodeNoContent, "empty page")
}

type failingFetcher struct{}

func (failingFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	return "", core.NewCodedError(core.CodeNetworkTimeout, "fetch timed out")
}

func TestService_ReconcileStuck(t *testing.T) {
	svc, _ := newTestService(t, WithStuckAfter(time.Nanosecond))
	ctx := context.Background()

	device, err := svc.RegisterDevice(ctx, "Pixel 8", "Android 15")
	require.NoError(t, err)

	// Plant a PROCESSING row directly, as a crashed worker would leave it.
	ingestion := &core.Ingestion{
		Id:       core.NewId(),
		DeviceId: device.Id,
		URL:      "https://example.com/page",
		Status:   core.StatusPending,
	}
	require.NoError(t, svc.repos.Ingestions.CreateIngestion(ctx, ingestion))
	_, _, err = svc.repos.Ingestions.BeginIngestion(ctx, ingestion.Id)
	require.NoError(t, err)

	time.Sleep(time.Millisecond)

	swept, err := svc.ReconcileStuck(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	row, err := svc.GetIngestion(ctx, ingestion.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, row.Status)
	assert.Equal(t, core.CodeUnknownError, row.ErrorCode)
}
