// Package registry keeps one sync orchestrator per store and exposes the engine's entry points:
// full and selective syncs, explicit pushes and ERP webhooks.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	erpsync "github.com/peteski22/erpbridge/internal/sync"
)

// Factory builds the orchestrator for a store.
type Factory func(storeID string) (*erpsync.Orchestrator, error)

// VersionSource reports a per-store credentials version. A changed version rebuilds the store's orchestrator.
type VersionSource interface {
	CredentialsVersion(ctx context.Context, storeID string) (int64, error)
}

// Deduper guards webhook deliveries so each is applied once.
type Deduper interface {
	// Claim claims key for processing. An existing claim reports claimed as false,
	// and done as true once its delivery was applied.
	Claim(ctx context.Context, key string) (claimed bool, done bool, err error)

	// Complete marks a claimed delivery as applied.
	Complete(ctx context.Context, key string) error

	// Release drops a claim so the delivery can be retried.
	Release(ctx context.Context, key string) error
}

// Config holds the configuration for creating a Registry.
type Config struct {
	// Deduper drops repeated webhook deliveries. Optional.
	Deduper Deduper

	// Factory builds orchestrators on first use.
	Factory Factory

	// Logger is the structured logger.
	Logger *slog.Logger

	// Versions invalidates cached orchestrators when credentials change. Optional.
	Versions VersionSource
}

// validate checks that all required Config fields are set.
func (c *Config) validate() error {
	var errs []error
	if c.Factory == nil {
		errs = append(errs, errors.New("orchestrator factory is required"))
	}
	return errors.Join(errs...)
}

type entry struct {
	orch    *erpsync.Orchestrator
	version int64
}

// Registry caches orchestrators by store id.
type Registry struct {
	deduper  Deduper
	factory  Factory
	logger   *slog.Logger
	validate *validator.Validate
	versions VersionSource

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]entry
}

// New creates an empty registry.
func New(cfg Config) (*Registry, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		deduper:  cfg.Deduper,
		factory:  cfg.Factory,
		logger:   logger,
		validate: validator.New(),
		versions: cfg.Versions,
		entries:  make(map[string]entry),
	}, nil
}

// Instance returns the store's orchestrator, building it on first use or after a credentials change.
// Concurrent first calls for a store share one construction.
func (r *Registry) Instance(ctx context.Context, storeID string) (*erpsync.Orchestrator, error) {
	if storeID == "" {
		return nil, errors.New("store ID is required")
	}

	version, versioned := r.credentialsVersion(ctx, storeID)

	r.mu.RLock()
	e, ok := r.entries[storeID]
	r.mu.RUnlock()
	if ok && (!versioned || e.version == version) {
		return e.orch, nil
	}

	key := storeID + "@" + strconv.FormatInt(version, 10)
	v, err, _ := r.group.Do(key, func() (any, error) {
		r.mu.RLock()
		e, ok := r.entries[storeID]
		r.mu.RUnlock()
		if ok && e.version == version {
			return e.orch, nil
		}

		orch, err := r.factory(storeID)
		if err != nil {
			return nil, fmt.Errorf("creating orchestrator for store %s: %w", storeID, err)
		}

		r.mu.Lock()
		r.entries[storeID] = entry{orch: orch, version: version}
		r.mu.Unlock()

		if ok {
			r.logger.Info("rebuilt orchestrator after credentials change", "store_id", storeID, "version", version)
		}
		return orch, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*erpsync.Orchestrator), nil
}

// Invalidate drops the store's cached orchestrator. The next call builds a fresh one.
func (r *Registry) Invalidate(storeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, storeID)
}

// Len returns the number of cached orchestrators.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// credentialsVersion reads the store's version. A failed read keeps whatever is cached.
func (r *Registry) credentialsVersion(ctx context.Context, storeID string) (int64, bool) {
	if r.versions == nil {
		return 0, false
	}

	version, err := r.versions.CredentialsVersion(ctx, storeID)
	if err != nil {
		r.logger.Warn("credentials version unavailable, using cached orchestrator", "store_id", storeID, "error", err)
		r.mu.RLock()
		e := r.entries[storeID]
		r.mu.RUnlock()
		return e.version, false
	}
	return version, true
}
