package cachedconfig

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

// S3API is the subset of the S3 client the source uses. It is satisfied by
// *s3.Client and by test stubs.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Source serves config paths from objects under {prefix}/{path} in one
// bucket. The object ETag is the modification marker; PathsToRefresh probes
// with HeadObject, so detection costs one metadata request per path instead
// of a full download.
type S3Source struct {
	client  S3API
	bucket  string
	prefix  string
	timeout time.Duration
	log     zerolog.Logger

	mu sync.Mutex
	// observed holds ETags as of the last probe; ConfigForPath never
	// writes it.
	observed map[string]ModificationTime
}

// NewS3Source builds an S3 source over an existing client.
func NewS3Source(client S3API, bucket, prefix string) *S3Source {
	return &S3Source{
		client:   client,
		bucket:   bucket,
		prefix:   strings.TrimSuffix(prefix, "/"),
		timeout:  10 * time.Second,
		log:      packageLogger().With().Str("source", "s3").Str("bucket", bucket).Logger(),
		observed: make(map[string]ModificationTime),
	}
}

// NewS3SourceFromEnv builds an S3 source using the default AWS credential
// chain (environment, shared config, instance role).
func NewS3SourceFromEnv(ctx context.Context, bucket, prefix string) (*S3Source, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("cachedconfig: load AWS config: %w", err)
	}
	return NewS3Source(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func (s *S3Source) key(path string) string {
	if s.prefix == "" {
		return path
	}
	return s.prefix + "/" + path
}

// ConfigForPath downloads the backing object and returns its contents at
// the object's current ETag.
func (s *S3Source) ConfigForPath(path string) (SourceEntry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return SourceEntry{}, fmt.Errorf("cachedconfig: %q: %w", path, ErrNotFound)
		}
		return SourceEntry{}, fmt.Errorf("cachedconfig: get s3://%s/%s: %w", s.bucket, s.key(path), err)
	}
	defer func() {
		if cerr := out.Body.Close(); cerr != nil {
			s.log.Debug().Err(cerr).Msg("failed to close object body")
		}
	}()

	contents, err := io.ReadAll(out.Body)
	if err != nil {
		return SourceEntry{}, fmt.Errorf("cachedconfig: read s3://%s/%s: %w", s.bucket, s.key(path), err)
	}

	// Fetches never touch the probe state: a registration between two probes
	// must not consume the change edge the next probe would report to the
	// path's existing entities.
	return SourceEntry{Contents: contents, ModTime: ModificationTime(aws.ToString(out.ETag))}, nil
}

// PathsToRefresh returns the candidates whose object ETag differs from the
// one the previous probe observed. Paths never probed before and paths that
// fail to probe are included; the store's follow-up fetch either surfaces
// the error or lands on the entity's marker check.
func (s *S3Source) PathsToRefresh(paths []string) []string {
	var changed []string
	for _, path := range paths {
		marker, err := s.probeMarker(path)
		if err != nil {
			s.log.Debug().Err(err).Str("path", path).Msg("refresh probe failed")
			changed = append(changed, path)
			continue
		}

		s.mu.Lock()
		observed, ok := s.observed[path]
		if !ok || observed != marker {
			s.observed[path] = marker
			changed = append(changed, path)
		}
		s.mu.Unlock()
	}
	return changed
}

// probeMarker heads one object under its own request timeout, so a slow
// probe cannot starve the rest of the batch.
func (s *S3Source) probeMarker(path string) (ModificationTime, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
	})
	if err != nil {
		return "", err
	}
	return ModificationTime(aws.ToString(out.ETag)), nil
}
