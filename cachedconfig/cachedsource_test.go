package cachedconfig_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omarluq/livecfg/cachedconfig"
)

// fetchCountingSource counts ConfigForPath calls against the inner source.
type fetchCountingSource struct {
	inner   *cachedconfig.TestSource
	fetches atomic.Int32
}

func (f *fetchCountingSource) ConfigForPath(path string) (cachedconfig.SourceEntry, error) {
	f.fetches.Add(1)
	return f.inner.ConfigForPath(path)
}

func (f *fetchCountingSource) PathsToRefresh(paths []string) []string {
	return f.inner.PathsToRefresh(paths)
}

func TestCachedSourceServesFromCache(t *testing.T) {
	t.Parallel()

	inner := cachedconfig.NewTestSource()
	inner.InsertConfig("p", `{"value":1}`, "1")
	counting := &fetchCountingSource{inner: inner}

	src, err := cachedconfig.NewCachedSource(counting, time.Minute)
	require.NoError(t, err)
	defer src.Close()

	entry, err := src.ConfigForPath("p")
	require.NoError(t, err)
	require.Equal(t, `{"value":1}`, string(entry.Contents))
	require.Equal(t, int32(1), counting.fetches.Load())
	src.WaitForCache()

	entry, err = src.ConfigForPath("p")
	require.NoError(t, err)
	assert.Equal(t, `{"value":1}`, string(entry.Contents))
	assert.Equal(t, int32(1), counting.fetches.Load(), "second read should be a cache hit")
}

func TestCachedSourceInvalidatesOnRefresh(t *testing.T) {
	t.Parallel()

	inner := cachedconfig.NewTestSource()
	inner.InsertConfig("p", `{"value":1}`, "1")
	counting := &fetchCountingSource{inner: inner}

	src, err := cachedconfig.NewCachedSource(counting, time.Minute)
	require.NoError(t, err)
	defer src.Close()

	_, err = src.ConfigForPath("p")
	require.NoError(t, err)
	src.WaitForCache()

	// The inner source reports a change: the cached entry must not survive.
	inner.InsertConfig("p", `{"value":2}`, "2")
	inner.InsertToRefresh("p")
	changed := src.PathsToRefresh([]string{"p"})
	require.Equal(t, []string{"p"}, changed)

	entry, err := src.ConfigForPath("p")
	require.NoError(t, err)
	assert.Equal(t, `{"value":2}`, string(entry.Contents))
	assert.Equal(t, int32(2), counting.fetches.Load())
}

func TestCachedSourcePropagatesErrors(t *testing.T) {
	t.Parallel()

	src, err := cachedconfig.NewCachedSource(cachedconfig.NewTestSource(), time.Minute)
	require.NoError(t, err)
	defer src.Close()

	_, err = src.ConfigForPath("missing")
	require.ErrorIs(t, err, cachedconfig.ErrNotFound)
}
