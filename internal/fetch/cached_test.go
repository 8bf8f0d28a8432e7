package fetch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingImporter struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (c *countingImporter) Import(_ context.Context, url string) (*JobDescription, error) {
	c.calls.Add(1)
	time.Sleep(c.delay)
	if c.err != nil {
		return nil, c.err
	}
	return &JobDescription{URL: url, Text: "posting"}, nil
}

func TestCachedImporter_ReusesResults(t *testing.T) {
	inner := &countingImporter{}
	c, err := NewCachedImporter(inner, 10, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	_, err = c.Import(ctx, "https://jobs.lever.co/acme/1?utm_source=x")
	require.NoError(t, err)
	_, err = c.Import(ctx, "https://jobs.lever.co/acme/1#apply")
	require.NoError(t, err)
	assert.EqualValues(t, 1, inner.calls.Load())

	c.Invalidate("https://jobs.lever.co/acme/1")
	_, err = c.Import(ctx, "https://jobs.lever.co/acme/1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, inner.calls.Load())
}

func TestCachedImporter_CollapsesConcurrentImports(t *testing.T) {
	inner := &countingImporter{delay: 50 * time.Millisecond}
	c, err := NewCachedImporter(inner, 10, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Import(context.Background(), "https://example.com/job")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, inner.calls.Load())
}

func TestCachedImporter_DoesNotCacheErrors(t *testing.T) {
	inner := &countingImporter{err: errors.New("down")}
	c, err := NewCachedImporter(inner, 10, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Import(context.Background(), "https://example.com/job")
	assert.Error(t, err)
	_, err = c.Import(context.Background(), "https://example.com/job")
	assert.Error(t, err)
	assert.EqualValues(t, 2, inner.calls.Load())
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "https://example.com/jobs?id=1", cacheKey("https://EXAMPLE.com/jobs?id=1&utm_campaign=a#top"))
}
