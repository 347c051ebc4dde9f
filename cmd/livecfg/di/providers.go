package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/do/v2"
	"github.com/samber/mo"

	"github.com/omarluq/livecfg/cachedconfig"
)

// Service wrapper types for DI registration.

// LoggerService wraps the zerolog logger for DI.
type LoggerService struct {
	Logger *zerolog.Logger
}

// SourceService wraps the configured config source.
type SourceService struct {
	Source cachedconfig.Source
	cached *cachedconfig.CachedSource
}

// StoreService wraps the config store.
type StoreService struct {
	Store *cachedconfig.ConfigStore
}

// RegisterSingletons registers all service providers as singletons.
// Services are registered in dependency order:
// 1. Logger (depends on Settings)
// 2. Source (depends on Settings, Logger)
// 3. Store (depends on Settings, Source, Logger).
func RegisterSingletons(i do.Injector) {
	do.Provide(i, NewLogger)
	do.Provide(i, NewSource)
	do.Provide(i, NewStore)
}

// NewLogger creates the zerolog logger from settings and installs it as the
// cachedconfig package logger so library logs share the CLI's output.
func NewLogger(i do.Injector) (*LoggerService, error) {
	settings := do.MustInvoke[Settings](i)

	logger, err := buildLogger(settings.LogLevel, settings.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	cachedconfig.SetLogger(&logger)

	return &LoggerService{Logger: &logger}, nil
}

// NewSource creates the config source selected by the settings, optionally
// wrapped in a read-memoizing cache.
func NewSource(i do.Injector) (*SourceService, error) {
	settings := do.MustInvoke[Settings](i)

	source, err := buildSource(settings)
	if err != nil {
		return nil, err
	}

	svc := &SourceService{Source: source}
	if settings.CacheTTL > 0 {
		cached, err := cachedconfig.NewCachedSource(source, settings.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to create source cache: %w", err)
		}
		svc.Source = cached
		svc.cached = cached
	}
	return svc, nil
}

func buildSource(settings Settings) (cachedconfig.Source, error) {
	selected := 0
	for _, set := range []bool{settings.Dir != "", settings.URL != "", settings.S3Bucket != ""} {
		if set {
			selected++
		}
	}
	if selected != 1 {
		return nil, errors.New("exactly one of --dir, --url, or --s3-bucket is required")
	}

	switch {
	case settings.Dir != "":
		return cachedconfig.NewFileSource(settings.Dir, settings.Ext)
	case settings.URL != "":
		return cachedconfig.NewHTTPSource(settings.URL)
	default:
		return cachedconfig.NewS3SourceFromEnv(context.Background(), settings.S3Bucket, settings.S3Prefix)
	}
}

// Shutdown implements do.Shutdowner for graceful cache cleanup.
func (s *SourceService) Shutdown() error {
	if s.cached != nil {
		s.cached.Close()
	}
	return nil
}

// NewStore creates the config store over the configured source.
func NewStore(i do.Injector) (*StoreService, error) {
	settings := do.MustInvoke[Settings](i)
	sourceSvc := do.MustInvoke[*SourceService](i)
	loggerSvc := do.MustInvoke[*LoggerService](i)

	interval := mo.None[time.Duration]()
	if settings.PollInterval > 0 {
		interval = mo.Some(settings.PollInterval)
	}

	store := cachedconfig.NewConfigStore(sourceSvc.Source, interval, loggerSvc.Logger)
	return &StoreService{Store: store}, nil
}

// Shutdown implements do.Shutdowner for graceful store shutdown.
func (s *StoreService) Shutdown() error {
	if s.Store == nil {
		return nil
	}
	if err := s.Store.Close(); err != nil && !errors.Is(err, cachedconfig.ErrClosed) {
		return err
	}
	return nil
}
