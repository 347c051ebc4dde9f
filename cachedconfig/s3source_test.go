package cachedconfig_test

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omarluq/livecfg/cachedconfig"
)

// stubS3 implements cachedconfig.S3API over an in-memory object map.
type stubS3 struct {
	mu      sync.Mutex
	objects map[string]struct {
		body string
		etag string
	}
	lastKey string
}

func newStubS3() *stubS3 {
	return &stubS3{objects: make(map[string]struct {
		body string
		etag string
	})}
}

func (s *stubS3) put(key, body, etag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = struct {
		body string
		etag string
	}{body, etag}
}

func (s *stubS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastKey = aws.ToString(params.Key)
	obj, ok := s.objects[s.lastKey]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader([]byte(obj.body))),
		ETag: aws.String(obj.etag),
	}, nil
}

func (s *stubS3) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastKey = aws.ToString(params.Key)
	obj, ok := s.objects[s.lastKey]
	if !ok {
		return nil, &s3types.NotFound{}
	}
	return &s3.HeadObjectOutput{ETag: aws.String(obj.etag)}, nil
}

func TestS3SourceConfigForPath(t *testing.T) {
	t.Parallel()

	stub := newStubS3()
	stub.put("configs/tuning", `{"value":1}`, `"e1"`)

	src := cachedconfig.NewS3Source(stub, "bucket", "configs")

	entry, err := src.ConfigForPath("tuning")
	require.NoError(t, err)
	assert.Equal(t, `{"value":1}`, string(entry.Contents))
	assert.Equal(t, cachedconfig.ModificationTime(`"e1"`), entry.ModTime)
	assert.Equal(t, "configs/tuning", stub.lastKey)
}

func TestS3SourceNoPrefix(t *testing.T) {
	t.Parallel()

	stub := newStubS3()
	stub.put("tuning", `{"value":1}`, `"e1"`)

	src := cachedconfig.NewS3Source(stub, "bucket", "")

	_, err := src.ConfigForPath("tuning")
	require.NoError(t, err)
	assert.Equal(t, "tuning", stub.lastKey)
}

func TestS3SourceNotFound(t *testing.T) {
	t.Parallel()

	src := cachedconfig.NewS3Source(newStubS3(), "bucket", "configs")

	_, err := src.ConfigForPath("missing")
	require.ErrorIs(t, err, cachedconfig.ErrNotFound)
}

func TestS3SourcePathsToRefresh(t *testing.T) {
	t.Parallel()

	stub := newStubS3()
	stub.put("configs/tuning", `{"value":1}`, `"e1"`)

	src := cachedconfig.NewS3Source(stub, "bucket", "configs")

	// A never-probed path is reported once; the probe records its ETag.
	require.Equal(t, []string{"tuning"}, src.PathsToRefresh([]string{"tuning"}))
	assert.Empty(t, src.PathsToRefresh([]string{"tuning"}))

	stub.put("configs/tuning", `{"value":2}`, `"e2"`)
	assert.Equal(t, []string{"tuning"}, src.PathsToRefresh([]string{"tuning"}))
	assert.Empty(t, src.PathsToRefresh([]string{"tuning"}))
}

func TestS3SourceFetchDoesNotConsumeChange(t *testing.T) {
	t.Parallel()

	stub := newStubS3()
	stub.put("configs/tuning", `{"value":1}`, `"e1"`)

	src := cachedconfig.NewS3Source(stub, "bucket", "configs")

	// Sync the probe state with the current generation.
	require.Equal(t, []string{"tuning"}, src.PathsToRefresh([]string{"tuning"}))
	require.Empty(t, src.PathsToRefresh([]string{"tuning"}))

	stub.put("configs/tuning", `{"value":2}`, `"e2"`)

	// A fetch between probes (a late registration) sees the new content...
	entry, err := src.ConfigForPath("tuning")
	require.NoError(t, err)
	require.Equal(t, `{"value":2}`, string(entry.Contents))

	// ...and must not stop the next probe from reporting the change.
	assert.Equal(t, []string{"tuning"}, src.PathsToRefresh([]string{"tuning"}))
}

func TestS3SourceProbeFailureIncludesPath(t *testing.T) {
	t.Parallel()

	src := cachedconfig.NewS3Source(newStubS3(), "bucket", "configs")

	// The object vanished; the path is reported so the store's fetch
	// surfaces the error.
	assert.Equal(t, []string{"gone"}, src.PathsToRefresh([]string{"gone"}))
}
