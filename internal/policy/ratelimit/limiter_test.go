package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterWaitDelaysSameHost(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 10, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://news.naver.com/main/list.naver"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://news.naver.com/main/list.naver?page=2"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiterHostsAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 1, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://news.naver.com/a"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://api-gw.entertain.naver.com/b"))
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiterDisabledNeverWaits(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(ctx, "https://news.naver.com/"))
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiterWaitHonorsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 0.1, Burst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://news.naver.com/"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, l.Wait(ctx, "https://news.naver.com/"))
}

func TestHostOf(t *testing.T) {
	t.Parallel()

	require.Equal(t, "news.naver.com", hostOf("https://news.naver.com:443/x"))
	require.Equal(t, "unknown", hostOf("::not a url"))
	require.Equal(t, "unknown", hostOf("/relative"))
}
