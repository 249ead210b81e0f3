package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/peteski22/erpbridge/internal/erp"
)

const (
	configDirName  = ".erpbridge"
	configFileName = "config.yaml"
	stateFileName  = "state.json"
)

// LocalConfig holds configuration loaded from a local file.
type LocalConfig struct {
	// DynamoDBTablePrefix selects DynamoDB entity tables. Empty uses FixturesFile.
	DynamoDBTablePrefix string

	// FixturesFile is a JSON file of local entities loaded into memory.
	FixturesFile string

	// RedisAddr enables credential versions and webhook dedup when set.
	RedisAddr string

	// Stores maps store ids to their ERP credentials.
	Stores map[string]erp.Credentials

	// Sync contains orchestrator settings.
	Sync Sync
}

// localConfig represents the local configuration file structure.
type localConfig struct {
	Data   localData                  `yaml:"data"`
	Redis  localRedis                 `yaml:"redis"`
	Stores map[string]erp.Credentials `yaml:"stores"`
	Sync   localSync                  `yaml:"sync"`
}

// localData represents the data section of the config file.
type localData struct {
	DynamoDBTablePrefix string `yaml:"dynamodb_table_prefix"`
	FixturesFile        string `yaml:"fixtures_file"`
}

// localRedis represents the redis section of the config file.
type localRedis struct {
	Addr string `yaml:"addr"`
}

// localSync represents the sync section of the config file.
type localSync struct {
	BatchSize    int      `yaml:"batch_size"`
	Concurrency  int      `yaml:"concurrency"`
	DryRun       bool     `yaml:"dry_run"`
	SubmitOrders bool     `yaml:"submit_orders"`
	Tables       []string `yaml:"tables"`
}

// ConfigDir returns the erpbridge configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, configDirName), nil
}

// ConfigFilePath returns the path to the local config file.
func ConfigFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// StateFilePath returns the path to the local sync state file.
func StateFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, stateFileName), nil
}

// LoadLocal loads configuration from the local config file.
func LoadLocal() (*LocalConfig, error) {
	configPath, err := ConfigFilePath()
	if err != nil {
		return nil, err
	}
	return loadLocalFile(configPath)
}

func loadLocalFile(configPath string) (*LocalConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s (run 'erpbridge init' to create)", configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var local localConfig
	if err := yaml.Unmarshal(data, &local); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &LocalConfig{
		DynamoDBTablePrefix: strings.TrimSpace(local.Data.DynamoDBTablePrefix),
		FixturesFile:        strings.TrimSpace(local.Data.FixturesFile),
		RedisAddr:           strings.TrimSpace(local.Redis.Addr),
		Stores:              local.Stores,
		Sync: Sync{
			BatchSize:    local.Sync.BatchSize,
			Concurrency:  local.Sync.Concurrency,
			DryRun:       local.Sync.DryRun,
			SubmitOrders: local.Sync.SubmitOrders,
			Tables:       local.Sync.Tables,
		},
	}

	if cfg.Sync.BatchSize == 0 {
		cfg.Sync.BatchSize = defaultBatchSize
	}
	if cfg.Sync.Concurrency == 0 {
		cfg.Sync.Concurrency = defaultConcurrency
	}
	if len(cfg.Sync.Tables) == 0 {
		cfg.Sync.Tables = splitList(defaultSyncTables)
	}
	if cfg.FixturesFile != "" && !filepath.IsAbs(cfg.FixturesFile) {
		cfg.FixturesFile = filepath.Join(filepath.Dir(configPath), cfg.FixturesFile)
	}
	cfg.Sync.StoreIDs = cfg.StoreIDs()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LocalConfigExists checks if a local config file exists.
func LocalConfigExists() bool {
	configPath, err := ConfigFilePath()
	if err != nil {
		return false
	}
	_, err = os.Stat(configPath)
	return err == nil
}

// StoreERPConfig returns the store's ERP credentials, or nil when the store is not configured.
func (c *LocalConfig) StoreERPConfig(_ context.Context, storeID string) (*erp.Credentials, error) {
	creds, ok := c.Stores[storeID]
	if !ok {
		return nil, nil
	}
	return &creds, nil
}

// StoreIDs returns the configured store ids in sorted order.
func (c *LocalConfig) StoreIDs() []string {
	ids := make([]string, 0, len(c.Stores))
	for id := range c.Stores {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// validate checks that required fields are set.
func (c *LocalConfig) validate() error {
	var errs []error

	if len(c.Stores) == 0 {
		errs = append(errs, errors.New("stores must configure at least one store"))
	}
	for _, id := range c.StoreIDs() {
		creds := c.Stores[id]
		if err := creds.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("stores.%s: %w", id, err))
		}
	}
	if c.DynamoDBTablePrefix == "" && c.FixturesFile == "" {
		errs = append(errs, errors.New("data.dynamodb_table_prefix or data.fixtures_file is required"))
	}
	if c.Sync.BatchSize < 0 {
		errs = append(errs, errors.New("sync.batch_size cannot be negative"))
	}
	if c.Sync.Concurrency < 0 {
		errs = append(errs, errors.New("sync.concurrency cannot be negative"))
	}

	return errors.Join(errs...)
}
