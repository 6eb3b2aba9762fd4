package csrf_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LucianaVC752/CajasDelCampo-sub000/credentials"
	"github.com/LucianaVC752/CajasDelCampo-sub000/credentials/storefakes"
	"github.com/LucianaVC752/CajasDelCampo-sub000/csrf"
	"github.com/stretchr/testify/require"
)

func setupCoordinator(t *testing.T, options ...csrf.Option) (*csrf.Coordinator, *credentials.Store) {
	t.Helper()
	store, err := credentials.NewStore(storefakes.NewFakeKeyValue())
	require.NoError(t, err)
	coordinator, err := csrf.NewCoordinator(store, options...)
	require.NoError(t, err)
	return coordinator, store
}

func TestNewCoordinator_RequiresStore(t *testing.T) {
	_, err := csrf.NewCoordinator(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "credential store is required")
}

func TestNeedsProtection(t *testing.T) {
	coordinator, _ := setupCoordinator(t)

	tests := []struct {
		method    string
		path      string
		protected bool
	}{
		{"GET", "/api/products", false},
		{"HEAD", "/api/products", false},
		{"OPTIONS", "/api/products", false},
		{"POST", "/api/orders", true},
		{"post", "/api/orders", true},
		{"PUT", "/api/users/profile", true},
		{"PATCH", "/api/subscriptions/3", true},
		{"DELETE", "/api/subscriptions/3", true},
		{"POST", "/api/auth/login", true},
		{"POST", "/api/csrf-token", false},
		{"POST", "/api/auth/refresh", false},
		{"POST", "/health", false},
		{"POST", "/apiary/orders", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			require.Equal(t, tt.protected, coordinator.NeedsProtection(tt.method, tt.path))
		})
	}
}

func TestToken_FetchesAndCaches(t *testing.T) {
	coordinator, _ := setupCoordinator(t)

	var fetches atomic.Int32
	coordinator.SetFetcher(func(ctx context.Context) (string, error) {
		fetches.Add(1)
		return "csrf-abc", nil
	})

	require.Equal(t, "csrf-abc", coordinator.Token(context.Background(), false))
	require.Equal(t, "csrf-abc", coordinator.Token(context.Background(), false))
	require.Equal(t, int32(1), fetches.Load(), "cached token reused within the window")
}

func TestToken_ForceRefreshBypassesCache(t *testing.T) {
	coordinator, _ := setupCoordinator(t)

	var fetches atomic.Int32
	coordinator.SetFetcher(func(ctx context.Context) (string, error) {
		n := fetches.Add(1)
		if n == 1 {
			return "csrf-1", nil
		}
		return "csrf-2", nil
	})

	require.Equal(t, "csrf-1", coordinator.Token(context.Background(), false))
	require.Equal(t, "csrf-2", coordinator.Token(context.Background(), true))
	require.Equal(t, int32(2), fetches.Load())
}

func TestToken_ExpiredCacheRefetches(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	coordinator, _ := setupCoordinator(t,
		csrf.WithTokenMaxAge(30*time.Minute),
		csrf.WithNowTime(func() time.Time { return now }))

	var fetches atomic.Int32
	coordinator.SetFetcher(func(ctx context.Context) (string, error) {
		fetches.Add(1)
		return "csrf-fresh", nil
	})

	require.Equal(t, "csrf-fresh", coordinator.Token(context.Background(), false))

	now = now.Add(31 * time.Minute)
	require.Equal(t, "csrf-fresh", coordinator.Token(context.Background(), false))
	require.Equal(t, int32(2), fetches.Load(), "stale cache and mirror trigger a refetch")
}

func TestToken_FallsBackToPersistedMirror(t *testing.T) {
	store, err := credentials.NewStore(storefakes.NewFakeKeyValue())
	require.NoError(t, err)
	require.NoError(t, store.StoreCSRFToken("mirrored", time.Now()))

	coordinator, err := csrf.NewCoordinator(store)
	require.NoError(t, err)
	coordinator.SetFetcher(func(ctx context.Context) (string, error) {
		t.Fatal("fetch must not happen while the mirror is fresh")
		return "", nil
	})

	require.Equal(t, "mirrored", coordinator.Token(context.Background(), false))
}

func TestToken_MirrorCarriesCoordinatorFetchInstant(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	coordinator, store := setupCoordinator(t,
		csrf.WithNowTime(func() time.Time { return now }))
	coordinator.SetFetcher(func(ctx context.Context) (string, error) {
		return "csrf-abc", nil
	})

	require.Equal(t, "csrf-abc", coordinator.Token(context.Background(), false))

	// The persisted mirror must be aged against the coordinator's clock, not
	// the store's, or a skew between the two makes a stale mirror look fresh.
	token, fetchedAt := store.CSRFToken()
	require.Equal(t, "csrf-abc", token)
	require.Equal(t, now.UnixMilli(), fetchedAt.UnixMilli())
}

func TestToken_FetchFailureYieldsEmpty(t *testing.T) {
	coordinator, _ := setupCoordinator(t)
	coordinator.SetFetcher(func(ctx context.Context) (string, error) {
		return "", errors.New("network down")
	})

	require.Empty(t, coordinator.Token(context.Background(), false))
}

func TestToken_NoFetcherYieldsEmpty(t *testing.T) {
	coordinator, _ := setupCoordinator(t)
	require.Empty(t, coordinator.Token(context.Background(), false))
}

func TestClear_DropsCacheAndMirror(t *testing.T) {
	coordinator, store := setupCoordinator(t)
	coordinator.SetFetcher(func(ctx context.Context) (string, error) {
		return "csrf-abc", nil
	})

	require.Equal(t, "csrf-abc", coordinator.Token(context.Background(), false))
	coordinator.Clear()

	token, _ := store.CSRFToken()
	require.Empty(t, token, "persisted mirror dropped")

	coordinator.SetFetcher(nil)
	require.Empty(t, coordinator.Token(context.Background(), false), "in-memory cache dropped")
}

func TestStartRenewal_RefetchesOnInterval(t *testing.T) {
	coordinator, _ := setupCoordinator(t,
		csrf.WithRenewalInterval(10*time.Millisecond))

	var fetches atomic.Int32
	coordinator.SetFetcher(func(ctx context.Context) (string, error) {
		fetches.Add(1)
		return "csrf-rotated", nil
	})

	stop := coordinator.StartRenewal()
	defer stop()

	require.Eventually(t, func() bool { return fetches.Load() >= 2 },
		time.Second, 5*time.Millisecond, "background renewal keeps refetching")
}

func TestStartRenewal_StopIsIdempotent(t *testing.T) {
	coordinator, _ := setupCoordinator(t, csrf.WithTokenMaxAge(time.Hour))

	stop := coordinator.StartRenewal()
	stop()
	stop()
}
