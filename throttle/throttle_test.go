package throttle_test

import (
	"testing"
	"time"

	"github.com/LucianaVC752/CajasDelCampo-sub000/credentials"
	"github.com/LucianaVC752/CajasDelCampo-sub000/credentials/storefakes"
	"github.com/LucianaVC752/CajasDelCampo-sub000/throttle"
	"github.com/stretchr/testify/require"
)

const testIdentifier = "shopper@example.com"

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time {
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func setupThrottle(t *testing.T) (*throttle.Throttle, *clock) {
	t.Helper()

	c := &clock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	store, err := credentials.NewStore(storefakes.NewFakeKeyValue())
	require.NoError(t, err)

	th, err := throttle.New(store, throttle.WithNowTime(c.Now))
	require.NoError(t, err)
	return th, c
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := throttle.New(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "credential store is required")
}

func TestRecordFailure_CountsUpToLockout(t *testing.T) {
	th, _ := setupThrottle(t)

	for i := 1; i <= 4; i++ {
		fs := th.RecordFailure(testIdentifier)
		require.False(t, fs.Locked, "attempt %d must not lock", i)
		require.Equal(t, i, fs.Attempts)
		require.Equal(t, 5-i, fs.RemainingAttempts)
	}

	require.False(t, th.CheckLock(testIdentifier).Locked)

	fifth := th.RecordFailure(testIdentifier)
	require.True(t, fifth.Locked)
	require.Equal(t, 5, fifth.Attempts)
	require.Equal(t, 15, fifth.RemainingMinutes)
}

func TestRecordFailure_WhileLockedDoesNotIncrement(t *testing.T) {
	th, _ := setupThrottle(t)

	for i := 0; i < 5; i++ {
		th.RecordFailure(testIdentifier)
	}

	sixth := th.RecordFailure(testIdentifier)
	require.True(t, sixth.Locked)
	require.Equal(t, 5, sixth.Attempts, "attempts unchanged while locked")
}

func TestCheckLock_RemainingMinutesRoundsUp(t *testing.T) {
	th, c := setupThrottle(t)

	for i := 0; i < 5; i++ {
		th.RecordFailure(testIdentifier)
	}

	c.Advance(14*time.Minute + 30*time.Second)

	ls := th.CheckLock(testIdentifier)
	require.True(t, ls.Locked)
	require.Equal(t, 1, ls.RemainingMinutes)
}

func TestCheckLock_UnlocksAfterWindow(t *testing.T) {
	th, c := setupThrottle(t)

	for i := 0; i < 5; i++ {
		th.RecordFailure(testIdentifier)
	}
	require.True(t, th.CheckLock(testIdentifier).Locked)

	c.Advance(16 * time.Minute)
	require.False(t, th.CheckLock(testIdentifier).Locked)

	// The stale counter survives the expired window, so a single further
	// failure re-locks immediately.
	fs := th.RecordFailure(testIdentifier)
	require.True(t, fs.Locked)
	require.Equal(t, 6, fs.Attempts)
}

func TestClear_ResetsCounterAndLock(t *testing.T) {
	th, _ := setupThrottle(t)

	for i := 0; i < 5; i++ {
		th.RecordFailure(testIdentifier)
	}
	require.True(t, th.CheckLock(testIdentifier).Locked)

	th.Clear(testIdentifier)

	require.False(t, th.CheckLock(testIdentifier).Locked)
	fs := th.RecordFailure(testIdentifier)
	require.False(t, fs.Locked)
	require.Equal(t, 1, fs.Attempts, "fresh sequence starts counting at 1")
}

func TestThrottle_IdentifiersAreIndependent(t *testing.T) {
	th, _ := setupThrottle(t)

	for i := 0; i < 5; i++ {
		th.RecordFailure(testIdentifier)
	}
	require.True(t, th.CheckLock(testIdentifier).Locked)
	require.False(t, th.CheckLock("other@example.com").Locked)

	fs := th.RecordFailure("other@example.com")
	require.False(t, fs.Locked)
	require.Equal(t, 1, fs.Attempts)
}

func TestObfuscateIdentifier_DistinctAndDecodable(t *testing.T) {
	a := throttle.ObfuscateIdentifier("a@b.com")
	b := throttle.ObfuscateIdentifier("a@b.co")
	require.NotEqual(t, a, b)
	require.NotEqual(t, "a@b.com", a, "raw identifier never used as a key")
}
