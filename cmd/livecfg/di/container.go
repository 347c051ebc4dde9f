// Package di provides dependency injection using samber/do v2.
// It creates and configures the DI container with all service providers.
package di

import (
	"fmt"
	"time"

	"github.com/samber/do/v2"
)

// Settings carries the source selection and logging options resolved from
// command-line flags. Exactly one of Dir, URL, or S3Bucket must be set.
type Settings struct {
	Dir      string
	Ext      string
	URL      string
	S3Bucket string
	S3Prefix string

	// CacheTTL > 0 wraps the source in a read-memoizing decorator.
	CacheTTL time.Duration

	// PollInterval > 0 enables the store's background updater.
	PollInterval time.Duration

	LogLevel  string
	LogFormat string
}

// Container wraps the do.Injector with livecfg specific configuration.
type Container struct {
	injector *do.RootScope
}

// NewContainer creates and configures the DI container. All service
// providers are registered during container creation; services initialize
// lazily on first Invoke.
func NewContainer(settings Settings) (*Container, error) {
	injector := do.New()

	do.ProvideValue(injector, settings)
	RegisterSingletons(injector)

	return &Container{
		injector: injector,
	}, nil
}

// Injector returns the underlying do.Injector for service resolution.
func (c *Container) Injector() *do.RootScope {
	return c.injector
}

// Invoke resolves a service from the container.
// Returns an error if the service is not registered or fails to initialize.
func Invoke[T any](c *Container) (T, error) {
	return do.Invoke[T](c.injector)
}

// MustInvoke resolves a service from the container or panics.
// Use this only during application startup where errors are fatal.
func MustInvoke[T any](c *Container) T {
	return do.MustInvoke[T](c.injector)
}

// Shutdown gracefully shuts down all services in reverse order of
// initialization. Services implementing do.Shutdowner have their Shutdown
// method called.
func (c *Container) Shutdown() error {
	report := c.injector.Shutdown()
	if report != nil && !report.Succeed {
		return fmt.Errorf("shutdown failed: %s", report.Error())
	}
	return nil
}
