package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/peteski22/erpbridge/internal/mapper"
)

const (
	defaultBatchSize   = 100
	defaultConcurrency = 8
)

// Config holds the configuration for creating an Orchestrator.
type Config struct {
	// BatchSize caps the rows fetched per table. Default is 100.
	BatchSize int

	// Clock returns the current time. Default is time.Now.
	Clock func() time.Time

	// Concurrency caps in-flight ERP pushes. Default is 8.
	Concurrency int

	// Credentials supplies the store's ERP credentials on first use.
	Credentials CredentialsProvider

	// DryRun logs ERP writes instead of performing them.
	DryRun bool

	// Logger is the structured logger.
	Logger *slog.Logger

	// NewClient builds the ERP client once credentials are loaded.
	NewClient ClientFactory

	// StateStore records per-table completion times. Optional.
	StateStore StateStore

	// StoreID is the store this orchestrator serves.
	StoreID string

	// Stores are the local entity repositories.
	Stores Stores

	// SubmitOrders submits Sales Orders after creating them.
	SubmitOrders bool
}

// validate checks that all required Config fields are set.
func (c *Config) validate() error {
	var errs []error
	if c.StoreID == "" {
		errs = append(errs, errors.New("store ID is required"))
	}
	if c.Credentials == nil {
		errs = append(errs, errors.New("credentials provider is required"))
	}
	if c.NewClient == nil {
		errs = append(errs, errors.New("ERP client factory is required"))
	}
	if c.BatchSize < 0 {
		errs = append(errs, errors.New("batch size cannot be negative"))
	}
	if c.Concurrency < 0 {
		errs = append(errs, errors.New("concurrency cannot be negative"))
	}
	if c.Stores.Addresses == nil || c.Stores.Categories == nil || c.Stores.Customers == nil ||
		c.Stores.Orders == nil || c.Stores.Products == nil {
		errs = append(errs, errors.New("all entity stores are required"))
	}
	return errors.Join(errs...)
}

// Orchestrator drives ERP synchronization for one store.
// The ERP client is created lazily on first use and reused afterwards.
type Orchestrator struct {
	batchSize    int
	clock        func() time.Time
	concurrency  int
	credentials  CredentialsProvider
	dryRun       bool
	logger       *slog.Logger
	newClient    ClientFactory
	stateStore   StateStore
	storeID      string
	stores       Stores
	submitOrders bool

	mu       sync.Mutex
	client   ERPClient
	location *time.Location
	mappers  *mapper.Mappers
	state    State
}

// New creates an orchestrator. No credentials are loaded until the first sync or webhook.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = defaultBatchSize
	}

	concurrency := cfg.Concurrency
	if concurrency == 0 {
		concurrency = defaultConcurrency
	}

	return &Orchestrator{
		batchSize:    batchSize,
		clock:        clock,
		concurrency:  concurrency,
		credentials:  cfg.Credentials,
		dryRun:       cfg.DryRun,
		logger:       logger.With("store_id", cfg.StoreID),
		newClient:    cfg.NewClient,
		stateStore:   cfg.StateStore,
		storeID:      cfg.StoreID,
		stores:       cfg.Stores,
		submitOrders: cfg.SubmitOrders,
		state:        StateUninitialized,
	}, nil
}

// StoreID returns the store this orchestrator serves.
func (o *Orchestrator) StoreID() string {
	return o.storeID
}

// State returns the lifecycle state of the ERP connection.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// InitializeERPClient loads the store's credentials and builds the ERP client.
// It is a no-op once ready. Missing credentials are fatal for the call; a later call tries again.
func (o *Orchestrator) InitializeERPClient(ctx context.Context) error {
	_, _, err := o.connection(ctx)
	return err
}

// connection returns the ERP client and mappers, initializing them on first use.
func (o *Orchestrator) connection(ctx context.Context) (ERPClient, *mapper.Mappers, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateReady {
		return o.client, o.mappers, nil
	}

	o.state = StateInitializing
	client, mappers, err := o.connect(ctx)
	if err != nil {
		o.state = StateUninitialized
		return nil, nil, err
	}

	o.client = client
	o.mappers = mappers
	o.state = StateReady
	o.logger.Info("ERP client initialized", "dry_run", o.dryRun)
	return client, mappers, nil
}

// erpLocation returns the zone of the ERP's naive timestamps. It is UTC until credentials are loaded.
func (o *Orchestrator) erpLocation() *time.Location {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.location == nil {
		return time.UTC
	}
	return o.location
}

// connect must be called with mu held.
func (o *Orchestrator) connect(ctx context.Context) (ERPClient, *mapper.Mappers, error) {
	creds, err := o.credentials.StoreERPConfig(ctx, o.storeID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading ERP config for store %s: %w", o.storeID, err)
	}
	if creds == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrMissingERPConfig, o.storeID)
	}
	if err := creds.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrMissingERPConfig, o.storeID, err)
	}
	o.location = creds.Location()

	client, err := o.newClient(*creds)
	if err != nil {
		return nil, nil, fmt.Errorf("creating ERP client: %w", err)
	}
	if o.dryRun {
		client = newDryRunClient(client, o.logger)
	}

	mappers, err := mapper.New(mapper.Config{
		Client:      client,
		Concurrency: o.concurrency,
		Defaults: mapper.Defaults{
			CustomerGroup: creds.DefaultCustomerGroup,
			Territory:     creds.DefaultTerritory,
		},
		Logger: o.logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating mappers: %w", err)
	}

	return client, mappers, nil
}
