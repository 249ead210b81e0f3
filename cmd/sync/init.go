package main

import (
	"fmt"
	"io"
	"os"

	"github.com/peteski22/erpbridge/internal/config"
)

const configTemplate = `# erpbridge configuration

stores:
  # One entry per store, keyed by store id.
  shop-1:
    # ERP site URL and API credentials (User -> API Access -> Generate Keys).
    base_url: "https://erp.example.com"
    api_key: ""
    api_secret: ""
    # Optional defaults for new customers.
    default_customer_group: ""
    default_territory: ""
    store_name: ""
    # Zone the ERP writes timestamps in, e.g. Asia/Kolkata. Default is UTC.
    time_zone: ""

data:
  # Either a DynamoDB table prefix (tables are <prefix>-products, <prefix>-orders, ...)
  dynamodb_table_prefix: ""
  # or a JSON fixtures file, relative to this directory.
  fixtures_file: "fixtures.json"

redis:
  # Optional: enables credential versions and webhook dedup.
  addr: ""

sync:
  batch_size: 100
  concurrency: 8
  dry_run: false
  submit_orders: false
  tables: ["categories", "products", "customers", "addresses", "orders"]
`

// runInit creates a sample configuration file.
func runInit(w io.Writer) error {
	configDir, err := config.ConfigDir()
	if err != nil {
		return fmt.Errorf("getting config directory: %w", err)
	}

	configPath, err := config.ConfigFilePath()
	if err != nil {
		return fmt.Errorf("getting config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s", configPath)
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	statePath, err := config.StateFilePath()
	if err != nil {
		return fmt.Errorf("getting state path: %w", err)
	}

	fmt.Fprintln(w, "Created config file:", configPath)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Next steps:")
	fmt.Fprintln(w, "  1. Edit the config file with your ERP credentials and data source")
	fmt.Fprintln(w, "  2. Run 'erpbridge run --dry-run' to test")
	fmt.Fprintln(w, "  3. Run 'erpbridge run' to push to the ERP")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Sync state will be stored at: %s\n", statePath)

	return nil
}
