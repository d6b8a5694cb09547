package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/repopulse/repopulse/pkg/api"
)

func testCache(t *testing.T) (*SnapshotCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewSnapshotCache(client), mr
}

func TestSnapshotCache_RoundTrip(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()

	c.Set(ctx, api.AnalysisResult{
		AnalysisID: "abc123",
		Status:     api.StatusAnalyzing,
		RepoName:   "acme/widgets",
	})

	got, ok := c.Get(ctx, "abc123")
	require.True(t, ok, "expected cache hit")
	require.Equal(t, "abc123", got.AnalysisID)
	require.Equal(t, "acme/widgets", got.RepoName)
}

func TestSnapshotCache_Miss(t *testing.T) {
	c, _ := testCache(t)
	_, ok := c.Get(context.Background(), "missing")
	require.False(t, ok)
}

func TestSnapshotCache_TerminalPinnedLonger(t *testing.T) {
	c, mr := testCache(t)
	ctx := context.Background()

	c.Set(ctx, api.AnalysisResult{AnalysisID: "running", Status: api.StatusAnalyzing})
	c.Set(ctx, api.AnalysisResult{AnalysisID: "done", Status: api.StatusCompleted})

	require.Equal(t, 10*time.Minute, mr.TTL("repopulse:analysis:running"))
	require.Equal(t, 24*time.Hour, mr.TTL("repopulse:analysis:done"))
}

func TestSnapshotCache_CorruptEntryIsAMiss(t *testing.T) {
	c, mr := testCache(t)
	mr.Set("repopulse:analysis:abc123", "{not json")

	_, ok := c.Get(context.Background(), "abc123")
	require.False(t, ok, "corrupt entry must degrade to a miss")
}

func TestSnapshotCache_IgnoresEmptyID(t *testing.T) {
	c, mr := testCache(t)
	c.Set(context.Background(), api.AnalysisResult{})
	require.Empty(t, mr.Keys())
}

func TestSnapshotCache_DownRedisDegrades(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewSnapshotCache(client)
	mr.Close()

	ctx := context.Background()
	c.Set(ctx, api.AnalysisResult{AnalysisID: "abc123"}) // must not panic or block
	_, ok := c.Get(ctx, "abc123")
	require.False(t, ok, "expected miss when redis is down")
}
