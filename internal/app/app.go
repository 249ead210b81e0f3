// Package app wires the sync engine to its collaborators for the Lambda and CLI entry points.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/redis/go-redis/v9"

	"github.com/peteski22/erpbridge/internal/cache"
	"github.com/peteski22/erpbridge/internal/config"
	"github.com/peteski22/erpbridge/internal/erp"
	"github.com/peteski22/erpbridge/internal/registry"
	"github.com/peteski22/erpbridge/internal/storage"
	erpsync "github.com/peteski22/erpbridge/internal/sync"
)

const userAgent = "erpbridge/1.0"

// App is a wired sync engine.
type App struct {
	// Registry serves the engine's entry points.
	Registry *registry.Registry

	// Sync holds the orchestrator settings the app was built with.
	Sync config.Sync

	// Versions tracks credential versions, or nil without Redis.
	Versions *cache.Versions

	closers []func() error
}

// Close releases the app's connections.
func (a *App) Close() error {
	var errs []error
	for _, closeFn := range a.closers {
		errs = append(errs, closeFn())
	}
	return errors.Join(errs...)
}

// engine collects everything an orchestrator needs besides its store id.
type engine struct {
	credentials erpsync.CredentialsProvider
	erpOptions  []erp.Option
	logger      *slog.Logger
	state       erpsync.StateStore
	stores      erpsync.Stores
	sync        config.Sync
}

// factory builds orchestrators for the registry.
func (e engine) factory() registry.Factory {
	newClient := erpsync.NewERPClientFactory(e.erpOptions...)
	return func(storeID string) (*erpsync.Orchestrator, error) {
		return erpsync.New(erpsync.Config{
			BatchSize:    e.sync.BatchSize,
			Concurrency:  e.sync.Concurrency,
			Credentials:  e.credentials,
			DryRun:       e.sync.DryRun,
			Logger:       e.logger,
			NewClient:    newClient,
			StateStore:   e.state,
			StoreID:      storeID,
			Stores:       e.stores,
			SubmitOrders: e.sync.SubmitOrders,
		})
	}
}

// NewFromSettings wires the engine for AWS: DynamoDB entities, Secrets Manager credentials
// and SSM sync state, with Redis when configured.
func NewFromSettings(ctx context.Context, settings *config.Settings, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	stores, err := DynamoDBStores(dynamodb.NewFromConfig(awsCfg), settings.DynamoDB)
	if err != nil {
		return nil, err
	}

	credentials, err := storage.NewCredentialStore(secretsmanager.NewFromConfig(awsCfg), settings.ERP.SecretPrefix)
	if err != nil {
		return nil, fmt.Errorf("creating credential store: %w", err)
	}

	state, err := storage.NewStateStore(ssm.NewFromConfig(awsCfg), settings.SSM.ParameterPrefix)
	if err != nil {
		return nil, fmt.Errorf("creating state store: %w", err)
	}

	return build(ctx, engine{
		credentials: credentials,
		erpOptions:  []erp.Option{erp.WithTimeout(settings.ERP.Timeout), erp.WithUserAgent(userAgent)},
		logger:      logger,
		state:       state,
		stores:      stores,
		sync:        settings.Sync,
	}, settings.Cache)
}

// NewLocal wires the engine for the CLI. Credentials come from the local config file,
// entities from DynamoDB or a fixtures file, and sync state from a local file.
func NewLocal(ctx context.Context, local *config.LocalConfig, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var stores erpsync.Stores
	var err error
	if local.DynamoDBTablePrefix != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		stores, err = DynamoDBStores(dynamodb.NewFromConfig(awsCfg), config.DynamoDB{TablePrefix: local.DynamoDBTablePrefix})
		if err != nil {
			return nil, err
		}
	} else {
		stores, err = LoadFixtures(local.FixturesFile)
		if err != nil {
			return nil, err
		}
	}

	var state erpsync.StateStore = storage.NewNoopStateStore(time.Time{})
	if !local.Sync.DryRun {
		path, err := config.StateFilePath()
		if err != nil {
			return nil, err
		}
		if state, err = storage.NewFileStateStore(path); err != nil {
			return nil, fmt.Errorf("creating state store: %w", err)
		}
	}

	return build(ctx, engine{
		credentials: local,
		erpOptions:  []erp.Option{erp.WithUserAgent(userAgent)},
		logger:      logger,
		state:       state,
		stores:      stores,
		sync:        local.Sync,
	}, config.Cache{Addr: local.RedisAddr})
}

// build connects Redis when configured and creates the registry.
func build(ctx context.Context, e engine, cacheCfg config.Cache) (*App, error) {
	app := &App{Sync: e.sync}
	regCfg := registry.Config{Factory: e.factory(), Logger: e.logger}

	if cacheCfg.Addr != "" {
		client, err := cache.New(ctx, cacheCfg.Addr)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, client.Close)

		if err := attachCache(app, &regCfg, client, cacheCfg.DedupTTL); err != nil {
			_ = app.Close()
			return nil, err
		}
	}

	reg, err := registry.New(regCfg)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("creating registry: %w", err)
	}
	app.Registry = reg
	return app, nil
}

func attachCache(app *App, regCfg *registry.Config, client redis.Cmdable, ttl time.Duration) error {
	versions, err := cache.NewVersions(client, "")
	if err != nil {
		return err
	}
	deduper, err := cache.NewWebhookDeduper(client, "", ttl)
	if err != nil {
		return err
	}

	app.Versions = versions
	regCfg.Versions = versions
	regCfg.Deduper = deduper
	return nil
}
