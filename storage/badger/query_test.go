package badger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sableridge/pagerag/core"
	"github.com/sableridge/pagerag/storage"
)

func newTestQuery(deviceId string) *core.Query {
	return &core.Query{
		Id:       core.NewId(),
		DeviceId: deviceId,
		Question: "What is the price of the laptop?",
		Status:   core.StatusPending,
	}
}

func TestQueryRepository_CreateWithQuota(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	device := newTestDevice()
	require.NoError(t, repos.Devices.CreateDevice(ctx, device))

	query := newTestQuery(device.Id)
	require.NoError(t, repos.Queries.CreateQueryWithQuota(ctx, query))

	got, err := repos.Queries.GetQuery(ctx, query.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, got.Status)

	updated, err := repos.Devices.GetDevice(ctx, device.Id)
	require.NoError(t, err)
	assert.Equal(t, core.DefaultQueryQuota-1, updated.QuotaRemaining)
}

func TestQueryRepository_QuotaExhausted(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	device := newTestDevice()
	device.QuotaRemaining = 1
	require.NoError(t, repos.Devices.CreateDevice(ctx, device))

	require.NoError(t, repos.Queries.CreateQueryWithQuota(ctx, newTestQuery(device.Id)))

	rejected := newTestQuery(device.Id)
	err := repos.Queries.CreateQueryWithQuota(ctx, rejected)
	assert.ErrorIs(t, err, core.ErrQuotaExhausted)

	// The rejected row must not exist and the quota must stay at zero.
	_, err = repos.Queries.GetQuery(ctx, rejected.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	updated, err := repos.Devices.GetDevice(ctx, device.Id)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.QuotaRemaining)
}

func TestQueryRepository_ConcurrentSubmissions(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	device := newTestDevice()
	require.NoError(t, repos.Devices.CreateDevice(ctx, device))

	var accepted, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repos.Queries.CreateQueryWithQuota(ctx, newTestQuery(device.Id))
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, core.ErrQuotaExhausted):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(core.DefaultQueryQuota), accepted.Load())
	assert.Equal(t, int32(10-core.DefaultQueryQuota), rejected.Load())

	updated, err := repos.Devices.GetDevice(ctx, device.Id)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.QuotaRemaining)
}

func TestQueryRepository_BeginCompleteFail(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	device := newTestDevice()
	device.QuotaRemaining = 10
	require.NoError(t, repos.Devices.CreateDevice(ctx, device))

	t.Run("complete records answer and sources", func(t *testing.T) {
		query := newTestQuery(device.Id)
		require.NoError(t, repos.Queries.CreateQueryWithQuota(ctx, query))

		got, started, err := repos.Queries.BeginQuery(ctx, query.Id)
		require.NoError(t, err)
		assert.True(t, started)
		assert.Equal(t, core.StatusProcessing, got.Status)

		sources := []core.Source{{
			IngestionId:    "ing-1",
			URL:            "https://example.com/page",
			ChunkId:        core.ChunkId("ing-1", 0),
			RelevanceScore: 0.91,
			TextSnippet:    "The laptop costs $999.",
		}}
		require.NoError(t, repos.Queries.CompleteQuery(ctx, query.Id, "The laptop costs $999.", sources, 2, 180))

		final, err := repos.Queries.GetQuery(ctx, query.Id)
		require.NoError(t, err)
		assert.Equal(t, core.StatusSuccess, final.Status)
		assert.Equal(t, "The laptop costs $999.", final.Answer)
		require.Len(t, final.Sources, 1)
		assert.InDelta(t, 0.91, final.Sources[0].RelevanceScore, 1e-6)
		assert.Equal(t, 2, final.ChunkCountUsed)
	})

	t.Run("duplicate begin is a no-op", func(t *testing.T) {
		query := newTestQuery(device.Id)
		require.NoError(t, repos.Queries.CreateQueryWithQuota(ctx, query))

		_, started, err := repos.Queries.BeginQuery(ctx, query.Id)
		require.NoError(t, err)
		assert.True(t, started)

		_, started, err = repos.Queries.BeginQuery(ctx, query.Id)
		require.NoError(t, err)
		assert.False(t, started)
	})

	t.Run("late result after timeout is discarded", func(t *testing.T) {
		query := newTestQuery(device.Id)
		require.NoError(t, repos.Queries.CreateQueryWithQuota(ctx, query))
		_, _, err := repos.Queries.BeginQuery(ctx, query.Id)
		require.NoError(t, err)

		require.NoError(t, repos.Queries.FailQuery(ctx, query.Id, core.CodeTaskTimeout, "query timed out"))
		require.NoError(t, repos.Queries.CompleteQuery(ctx, query.Id, "late answer", nil, 1, 50))

		final, err := repos.Queries.GetQuery(ctx, query.Id)
		require.NoError(t, err)
		assert.Equal(t, core.StatusFailed, final.Status)
		assert.Equal(t, core.CodeTaskTimeout, final.ErrorCode)
		assert.Empty(t, final.Answer)
	})
}

func TestQueryRepository_ListByDeviceAndStuck(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	device := newTestDevice()
	device.QuotaRemaining = 10
	require.NoError(t, repos.Devices.CreateDevice(ctx, device))

	base := time.Now().UTC().Truncate(time.Second)
	var ids []string
	for i := 0; i < 3; i++ {
		query := newTestQuery(device.Id)
		query.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, repos.Queries.CreateQueryWithQuota(ctx, query))
		ids = append(ids, query.Id)
	}

	listed, err := repos.Queries.GetQueriesByDevice(ctx, device.Id)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, ids[2], listed[0].Id)
	assert.Equal(t, ids[0], listed[2].Id)

	_, _, err = repos.Queries.BeginQuery(ctx, ids[0])
	require.NoError(t, err)

	stuck, err := repos.Queries.ListStuckQueries(ctx, time.Now().UTC().Add(time.Second))
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, ids[0], stuck[0].Id)
}
