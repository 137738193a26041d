package resolver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinetick/cinetick/internal/tenant"
	"github.com/cinetick/cinetick/pkg/logger"
)

func TestResolveCachesProbeResult(t *testing.T) {
	var probes int32
	r := New(tenant.NewRegistry(), ProbeFunc(func(ctx context.Context, tenantID, cinemaID string) (string, error) {
		atomic.AddInt32(&probes, 1)
		return "east.example.com", nil
	}), logger.InitializeTestZapLogger())

	for i := 0; i < 3; i++ {
		dom, err := r.Resolve(context.Background(), tenant.TenantWM, "c-1001")
		require.NoError(t, err)
		assert.Equal(t, "east.example.com", dom)
	}
	assert.Equal(t, int32(1), probes, "cache hit must not re-probe")
}

func TestResolveFailedProbeFallsBackWithoutCaching(t *testing.T) {
	var probes int32
	r := New(tenant.NewRegistry(), ProbeFunc(func(ctx context.Context, tenantID, cinemaID string) (string, error) {
		atomic.AddInt32(&probes, 1)
		return "", errors.New("probe timeout")
	}), logger.InitializeTestZapLogger())

	dom, err := r.Resolve(context.Background(), tenant.TenantWM, "c-1001")
	require.NoError(t, err)
	assert.Equal(t, "ct.womovie.cn", dom)

	// Failure is not cached; the next resolve probes again.
	_, err = r.Resolve(context.Background(), tenant.TenantWM, "c-1001")
	require.NoError(t, err)
	assert.Equal(t, int32(2), probes)
}

func TestResolveUnknownTenant(t *testing.T) {
	r := New(tenant.NewRegistry(), ProbeFunc(func(ctx context.Context, tenantID, cinemaID string) (string, error) {
		t.Fatal("probe must not run for unknown tenants")
		return "", nil
	}), logger.InitializeTestZapLogger())

	_, err := r.Resolve(context.Background(), "nope", "c-1001")
	assert.ErrorIs(t, err, tenant.ErrUnknownTenant)
}

func TestResolveConcurrentMissesConverge(t *testing.T) {
	var probes int32
	r := New(tenant.NewRegistry(), ProbeFunc(func(ctx context.Context, tenantID, cinemaID string) (string, error) {
		atomic.AddInt32(&probes, 1)
		return "east.example.com", nil
	}), logger.InitializeTestZapLogger())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dom, err := r.Resolve(context.Background(), tenant.TenantWM, "c-1001")
			assert.NoError(t, err)
			assert.Equal(t, "east.example.com", dom)
		}()
	}
	wg.Wait()

	// Duplicate probes are allowed on a cold cache, but the cache converges.
	assert.GreaterOrEqual(t, probes, int32(1))
	dom, err := r.Resolve(context.Background(), tenant.TenantWM, "c-1001")
	require.NoError(t, err)
	assert.Equal(t, "east.example.com", dom)
}

func TestSeedAndSnapshot(t *testing.T) {
	r := New(tenant.NewRegistry(), ProbeFunc(func(ctx context.Context, tenantID, cinemaID string) (string, error) {
		t.Fatal("seeded entries must not probe")
		return "", nil
	}), logger.InitializeTestZapLogger())

	r.Seed(map[string]string{"c-1": "a.example.com", "": "skipped", "c-2": ""})

	dom, err := r.Resolve(context.Background(), tenant.TenantWM, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "a.example.com", dom)

	assert.Equal(t, map[string]string{"c-1": "a.example.com"}, r.Snapshot())
}

func TestInvalidateForcesReprobe(t *testing.T) {
	domains := []string{"old.example.com", "new.example.com"}
	var probes int32
	r := New(tenant.NewRegistry(), ProbeFunc(func(ctx context.Context, tenantID, cinemaID string) (string, error) {
		n := atomic.AddInt32(&probes, 1)
		return domains[n-1], nil
	}), logger.InitializeTestZapLogger())

	dom, err := r.Resolve(context.Background(), tenant.TenantWM, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "old.example.com", dom)

	r.Invalidate("c-1")

	dom, err = r.Resolve(context.Background(), tenant.TenantWM, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "new.example.com", dom)
}
