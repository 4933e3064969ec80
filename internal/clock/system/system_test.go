package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNowReturnsUTC(t *testing.T) {
	t.Parallel()

	clk := New()

	before := time.Now().UTC().Add(-time.Second)
	got := clk.Now()
	after := time.Now().UTC().Add(time.Second)

	require.Equal(t, time.UTC, got.Location())
	require.False(t, got.Before(before), "timestamp %v precedes lower bound %v", got, before)
	require.False(t, got.After(after), "timestamp %v exceeds upper bound %v", got, after)
}

func TestNowIsNonDecreasing(t *testing.T) {
	t.Parallel()

	clk := New()
	prev := clk.Now()
	for i := 0; i < 10; i++ {
		cur := clk.Now()
		require.False(t, cur.Before(prev))
		prev = cur
	}
}
