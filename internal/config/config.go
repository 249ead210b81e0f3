// Package config provides configuration loading from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// EnvDryRun logs ERP writes instead of performing them.
	EnvDryRun = "DRY_RUN"

	// EnvDynamoDBTablePrefix prefixes the DynamoDB entity table names.
	EnvDynamoDBTablePrefix = "DYNAMODB_TABLE_PREFIX"

	// EnvERPSecretPrefix prefixes the Secrets Manager secret holding each store's ERP credentials.
	EnvERPSecretPrefix = "ERP_SECRET_PREFIX"

	// EnvERPTimeout is the ERP request timeout, e.g. 30s.
	EnvERPTimeout = "ERP_TIMEOUT"

	// EnvRedisAddr is the Redis address for credential versions and webhook dedup (optional).
	EnvRedisAddr = "REDIS_ADDR"

	// EnvSSMParameterPrefix prefixes the SSM parameters recording sync times.
	EnvSSMParameterPrefix = "SSM_PARAMETER_PREFIX"

	// EnvSubmitOrders submits Sales Orders after creating them.
	EnvSubmitOrders = "SUBMIT_ORDERS"

	// EnvSyncBatchSize caps the rows pushed per table and run.
	EnvSyncBatchSize = "SYNC_BATCH_SIZE"

	// EnvSyncConcurrency caps in-flight ERP pushes.
	EnvSyncConcurrency = "SYNC_CONCURRENCY"

	// EnvSyncStoreIDs lists the stores a scheduled sync covers when the event names none.
	EnvSyncStoreIDs = "SYNC_STORE_IDS"

	// EnvSyncTables lists the tables a scheduled sync pushes when the event names none.
	EnvSyncTables = "SYNC_TABLES"

	// EnvWebhookDedupTTL is how long webhook deliveries are remembered, e.g. 24h.
	EnvWebhookDedupTTL = "WEBHOOK_DEDUP_TTL"
)

const (
	defaultBatchSize   = 100
	defaultConcurrency = 8
	defaultDedupTTL    = 24 * time.Hour
	defaultERPTimeout  = 30 * time.Second
	defaultSyncTables  = "products,customers,orders"
)

// Cache holds Redis configuration.
type Cache struct {
	// Addr is the Redis address. Empty disables the cache.
	Addr string

	// DedupTTL is how long webhook deliveries are remembered.
	DedupTTL time.Duration
}

// DynamoDB holds AWS DynamoDB configuration.
type DynamoDB struct {
	// TablePrefix prefixes every entity table, e.g. "shop" gives "shop-products".
	TablePrefix string
}

// TableName returns the DynamoDB table for an entity, e.g. products.
func (d DynamoDB) TableName(entity string) string {
	return d.TablePrefix + "-" + entity
}

// ERP holds ERP client configuration shared by every store.
type ERP struct {
	// SecretPrefix prefixes the per-store credential secrets.
	SecretPrefix string

	// Timeout is the ERP request timeout.
	Timeout time.Duration
}

// SSM holds AWS Systems Manager Parameter Store configuration.
type SSM struct {
	// ParameterPrefix prefixes the per-store sync time parameters.
	ParameterPrefix string
}

// Sync holds orchestrator settings.
type Sync struct {
	// BatchSize caps the rows pushed per table and run.
	BatchSize int

	// Concurrency caps in-flight ERP pushes.
	Concurrency int

	// DryRun logs ERP writes instead of performing them.
	DryRun bool

	// StoreIDs are the stores a scheduled sync covers by default.
	StoreIDs []string

	// SubmitOrders submits Sales Orders after creating them.
	SubmitOrders bool

	// Tables are pushed by a scheduled sync by default.
	Tables []string
}

// Settings holds all configuration for the application.
type Settings struct {
	// Cache contains Redis settings.
	Cache Cache

	// DynamoDB contains AWS DynamoDB settings.
	DynamoDB DynamoDB

	// ERP contains ERP client settings.
	ERP ERP

	// SSM contains AWS Systems Manager Parameter Store settings.
	SSM SSM

	// Sync contains orchestrator settings.
	Sync Sync
}

func (s *Settings) validate() error {
	var errs []error

	if s.DynamoDB.TablePrefix == "" {
		errs = append(errs, requiredError(EnvDynamoDBTablePrefix))
	}
	if s.ERP.SecretPrefix == "" {
		errs = append(errs, requiredError(EnvERPSecretPrefix))
	}
	if s.SSM.ParameterPrefix == "" {
		errs = append(errs, requiredError(EnvSSMParameterPrefix))
	}
	if s.Sync.BatchSize <= 0 {
		errs = append(errs, positiveError(EnvSyncBatchSize))
	}
	if s.Sync.Concurrency <= 0 {
		errs = append(errs, positiveError(EnvSyncConcurrency))
	}
	if s.ERP.Timeout <= 0 {
		errs = append(errs, positiveError(EnvERPTimeout))
	}
	if s.Cache.DedupTTL <= 0 {
		errs = append(errs, positiveError(EnvWebhookDedupTTL))
	}

	return errors.Join(errs...)
}

// Load reads configuration from environment variables.
func Load() (*Settings, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	batchSize, err := envInt(EnvSyncBatchSize, defaultBatchSize)
	collect(err)
	concurrency, err := envInt(EnvSyncConcurrency, defaultConcurrency)
	collect(err)
	dryRun, err := envBool(EnvDryRun)
	collect(err)
	submitOrders, err := envBool(EnvSubmitOrders)
	collect(err)
	timeout, err := envDuration(EnvERPTimeout, defaultERPTimeout)
	collect(err)
	dedupTTL, err := envDuration(EnvWebhookDedupTTL, defaultDedupTTL)
	collect(err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	cfg := &Settings{
		Cache: Cache{
			Addr:     strings.TrimSpace(os.Getenv(EnvRedisAddr)),
			DedupTTL: dedupTTL,
		},
		DynamoDB: DynamoDB{
			TablePrefix: strings.TrimSpace(os.Getenv(EnvDynamoDBTablePrefix)),
		},
		ERP: ERP{
			SecretPrefix: strings.TrimSpace(os.Getenv(EnvERPSecretPrefix)),
			Timeout:      timeout,
		},
		SSM: SSM{
			ParameterPrefix: strings.TrimSpace(os.Getenv(EnvSSMParameterPrefix)),
		},
		Sync: Sync{
			BatchSize:    batchSize,
			Concurrency:  concurrency,
			DryRun:       dryRun,
			StoreIDs:     splitList(os.Getenv(EnvSyncStoreIDs)),
			SubmitOrders: submitOrders,
			Tables:       splitList(envOrDefault(EnvSyncTables, defaultSyncTables)),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envOrDefault(key string, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, raw)
	}
	return n, nil
}

func envBool(key string) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, raw)
	}
	return b, nil
}

func envDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration, got %q", key, raw)
	}
	return d, nil
}

// splitList splits a comma separated list, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func requiredError(envVar string) error {
	return fmt.Errorf("%s is required", envVar)
}

func positiveError(envVar string) error {
	return fmt.Errorf("%s must be positive", envVar)
}
