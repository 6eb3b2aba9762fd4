package credentials_test

import (
	"testing"
	"time"

	"github.com/LucianaVC752/CajasDelCampo-sub000/credentials"
	"github.com/LucianaVC752/CajasDelCampo-sub000/credentials/storefakes"
	errs "github.com/LucianaVC752/CajasDelCampo-sub000/internal/errors"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*credentials.Store, *storefakes.FakeKeyValue) {
	t.Helper()
	kv := storefakes.NewFakeKeyValue()
	store, err := credentials.NewStore(kv)
	require.NoError(t, err)
	return store, kv
}

func TestNewStore_RequiresBackend(t *testing.T) {
	_, err := credentials.NewStore(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "persistent store is required")
}

func TestStoreSession_RoundTrip(t *testing.T) {
	store, _ := newTestStore(t)

	user := credentials.User{ID: 1, Email: "x@y.com", Name: "X", Role: credentials.RoleCustomer}
	err := store.StoreSession("A", "B", &user)
	require.NoError(t, err)

	require.Equal(t, "A", store.LoadAccessToken())
	require.Equal(t, "B", store.LoadRefreshToken())

	loaded := store.LoadUser()
	require.NotNil(t, loaded)
	require.Equal(t, user, *loaded)
}

func TestStoreSession_SkipsEmptyValues(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.StoreSession("A", "B", nil))
	require.NoError(t, store.StoreSession("A2", "", nil))

	require.Equal(t, "A2", store.LoadAccessToken())
	require.Equal(t, "B", store.LoadRefreshToken(), "empty refresh token must not overwrite the stored one")
}

func TestStoreSession_TouchesActivity(t *testing.T) {
	kv := storefakes.NewFakeKeyValue()
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	store, err := credentials.NewStore(kv, credentials.WithNowTime(func() time.Time { return now }))
	require.NoError(t, err)

	require.NoError(t, store.StoreSession("tok", "", nil))
	require.Equal(t, now.UnixMilli(), store.LastActivity().UnixMilli())
}

func TestLoadUser_DropsNonWhitelistedFields(t *testing.T) {
	store, kv := newTestStore(t)

	// A snapshot written by an older build with extra fields must come back
	// reduced to the whitelisted set.
	err := kv.Set("cajasdelcampo.auth.user",
		`{"id":1,"email":"x@y.com","name":"X","role":"customer","password":"hunter2","phone":"555"}`)
	require.NoError(t, err)

	loaded := store.LoadUser()
	require.NotNil(t, loaded)
	require.Equal(t, credentials.User{ID: 1, Email: "x@y.com", Name: "X", Role: credentials.RoleCustomer}, *loaded)
}

func TestLoadUser_CorruptRecord(t *testing.T) {
	store, kv := newTestStore(t)

	require.NoError(t, kv.Set("cajasdelcampo.auth.user", "{not json"))
	require.Nil(t, store.LoadUser())
}

func TestClearAll_RemovesEveryNamespacedKey(t *testing.T) {
	transient := storefakes.NewFakeKeyValue()
	kv := storefakes.NewFakeKeyValue()
	store, err := credentials.NewStore(kv, credentials.WithTransient(transient))
	require.NoError(t, err)

	user := credentials.User{ID: 7, Email: "a@b.com", Name: "A", Role: credentials.RoleFarmer}
	require.NoError(t, store.StoreSession("tok", "ref", &user))
	require.NoError(t, store.StoreCSRFToken("csrf", time.Now()))
	store.StoreAttempts("obf-id", 3)
	store.StoreLockout("obf-id", time.Now().Add(time.Minute))
	require.NoError(t, transient.Set("cajasdelcampo.auth.access_token", "tok"))
	require.NoError(t, transient.Set("unrelated.key", "keep"))

	store.ClearAll()

	require.Empty(t, store.LoadAccessToken())
	require.Empty(t, store.LoadRefreshToken())
	require.Nil(t, store.LoadUser())
	require.True(t, store.LastActivity().IsZero())
	token, _ := store.CSRFToken()
	require.Empty(t, token)
	require.Zero(t, store.Attempts("obf-id"))
	require.True(t, store.Lockout("obf-id").IsZero())

	v, err := transient.Get("cajasdelcampo.auth.access_token")
	require.NoError(t, err)
	require.Empty(t, v, "transient mirror must be swept too")
	v, err = transient.Get("unrelated.key")
	require.NoError(t, err)
	require.Equal(t, "keep", v, "keys outside the namespace stay untouched")
}

func TestStore_BackendFailureDegradesToLoggedOut(t *testing.T) {
	store, kv := newTestStore(t)

	user := credentials.User{ID: 1, Email: "x@y.com", Name: "X", Role: credentials.RoleCustomer}
	require.NoError(t, store.StoreSession("tok", "ref", &user))

	kv.FailWith(errs.ErrStorageUnavailable)

	require.Empty(t, store.LoadAccessToken())
	require.Empty(t, store.LoadRefreshToken())
	require.Nil(t, store.LoadUser())
	require.True(t, store.LastActivity().IsZero())

	err := store.StoreSession("tok2", "ref2", &user)
	require.ErrorIs(t, err, errs.ErrStorageUnavailable, "writes report the failure so callers can log it")

	// ClearAll on a failing backend must not panic.
	store.ClearAll()
}

func TestCSRFToken_RoundTrip(t *testing.T) {
	store, _ := newTestStore(t)

	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	require.NoError(t, store.StoreCSRFToken("csrf-1", now))
	token, fetchedAt := store.CSRFToken()
	require.Equal(t, "csrf-1", token)
	require.Equal(t, now.UnixMilli(), fetchedAt.UnixMilli())

	store.ClearCSRFToken()
	token, fetchedAt = store.CSRFToken()
	require.Empty(t, token)
	require.True(t, fetchedAt.IsZero())
}

func TestThrottleCounters_RoundTrip(t *testing.T) {
	store, _ := newTestStore(t)

	require.Zero(t, store.Attempts("obf"))
	store.StoreAttempts("obf", 4)
	require.Equal(t, 4, store.Attempts("obf"))

	until := time.Now().Add(15 * time.Minute)
	store.StoreLockout("obf", until)
	require.Equal(t, until.UnixMilli(), store.Lockout("obf").UnixMilli())

	store.ClearThrottle("obf")
	require.Zero(t, store.Attempts("obf"))
	require.True(t, store.Lockout("obf").IsZero())
}

func TestClientID_MintedOnceAndStable(t *testing.T) {
	store, _ := newTestStore(t)

	first := store.ClientID()
	require.NotEmpty(t, first)
	require.Equal(t, first, store.ClientID())
}
