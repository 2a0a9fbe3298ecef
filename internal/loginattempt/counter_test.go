package loginattempt

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newCounter(t *testing.T, max int, window time.Duration) *Counter {
	t.Helper()
	c, err := NewCounter(max, window)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestNewCounter_Validation(t *testing.T) {
	_, err := NewCounter(0, time.Minute)
	require.Error(t, err)
	_, err = NewCounter(3, 0)
	require.Error(t, err)
}

func TestNewCounter_Capacity(t *testing.T) {
	c := newCounter(t, 3, time.Minute)
	require.EqualValues(t, DefaultCapacity, c.Capacity())

	small, err := NewCounter(3, time.Minute, WithCapacity(64))
	require.NoError(t, err)
	t.Cleanup(small.Close)
	require.EqualValues(t, 64, small.Capacity())
	require.Equal(t, 1, small.RecordFailure("a@x.com"))

	ignored, err := NewCounter(3, time.Minute, WithCapacity(0))
	require.NoError(t, err)
	t.Cleanup(ignored.Close)
	require.EqualValues(t, DefaultCapacity, ignored.Capacity())
}

func TestCounter_ThresholdArithmetic(t *testing.T) {
	c := newCounter(t, 2, time.Minute)

	require.False(t, c.IsChallengeRequired("a@x.com"))
	require.Equal(t, 1, c.RecordFailure("a@x.com"))
	require.False(t, c.IsChallengeRequired("a@x.com"))
	require.Equal(t, 2, c.RecordFailure("a@x.com"))
	require.True(t, c.IsChallengeRequired("a@x.com"))

	c.RecordSuccess("a@x.com")
	require.False(t, c.IsChallengeRequired("a@x.com"))
	require.Equal(t, 0, c.Count("a@x.com"))
}

func TestCounter_NormalizesIdentity(t *testing.T) {
	c := newCounter(t, 2, time.Minute)

	c.RecordFailure("  A@X.com ")
	c.RecordFailure("a@x.COM")
	require.True(t, c.IsChallengeRequired("a@x.com"))
	require.False(t, c.IsChallengeRequired("b@x.com"))
}

func TestCounter_BlankIdentitiesShareBucket(t *testing.T) {
	c := newCounter(t, 2, time.Minute)

	c.RecordFailure("")
	c.RecordFailure("   ")
	require.True(t, c.IsChallengeRequired("\t"))
	require.Equal(t, 2, c.Count(""))
}

func TestCounter_WindowExpires(t *testing.T) {
	c := newCounter(t, 1, 150*time.Millisecond)

	c.RecordFailure("a@x.com")
	require.True(t, c.IsChallengeRequired("a@x.com"))
	time.Sleep(300 * time.Millisecond)
	require.False(t, c.IsChallengeRequired("a@x.com"))
	require.Equal(t, 1, c.RecordFailure("a@x.com"), "count restarts after the window lapses")
}

func TestCounter_FailureRestartsWindow(t *testing.T) {
	c := newCounter(t, 2, 400*time.Millisecond)

	c.RecordFailure("a@x.com")
	time.Sleep(250 * time.Millisecond)
	c.RecordFailure("a@x.com")
	time.Sleep(250 * time.Millisecond)
	require.True(t, c.IsChallengeRequired("a@x.com"), "second failure should have extended the window")
}

func TestCounter_ConcurrentFailures(t *testing.T) {
	c := newCounter(t, 100, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordFailure("a@x.com")
		}()
	}
	wg.Wait()
	require.Equal(t, 50, c.Count("a@x.com"))
}
