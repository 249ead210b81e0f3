package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/peteski22/erpbridge/internal/app"
	"github.com/peteski22/erpbridge/internal/config"
	"github.com/peteski22/erpbridge/internal/mapper"
	"github.com/peteski22/erpbridge/internal/registry"
	erpsync "github.com/peteski22/erpbridge/internal/sync"
)

const (
	pushOrders   = "orders"
	pushProducts = "products"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	Verbose bool
}

// logger returns a text logger on stderr.
func (o *rootOptions) logger() *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newRootCommand creates the erpbridge CLI.
func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "erpbridge",
		Short:         "Sync a commerce backend with an ERP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(newInitCommand())
	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newPushCommand(opts))
	cmd.AddCommand(newStatusCommand(opts))
	cmd.AddCommand(newWebhookCommand(opts))
	cmd.AddCommand(newCredentialsCommand(opts))

	return cmd
}

func newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a sample configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.OutOrStdout())
		},
	}
}

// runOptions holds flags for the run command.
type runOptions struct {
	*rootOptions
	BatchSize int
	DryRun    bool
	StoreIDs  []string
	Tables    []string
}

func newRunCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Push local tables to the ERP",
		Long: `Push the most recently changed rows of each table to the ERP.

Tables are synced in the order given. Stores and tables default to the config file.

Example:
  erpbridge run --store shop-1 --tables categories,products --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 0, "rows per table (default from config)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "log ERP writes without performing them")
	cmd.Flags().StringSliceVar(&opts.StoreIDs, "store", nil, "store ids to sync (default all configured stores)")
	cmd.Flags().StringSliceVar(&opts.Tables, "tables", nil, "tables to sync (default from config)")

	return cmd
}

func runSync(ctx context.Context, w io.Writer, opts *runOptions) error {
	engine, local, err := openLocal(ctx, opts.rootOptions, opts.DryRun)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	storeIDs := opts.StoreIDs
	if len(storeIDs) == 0 {
		storeIDs = local.Sync.StoreIDs
	}
	tables := opts.Tables
	if len(tables) == 0 {
		tables = local.Sync.Tables
	}

	var errs []error
	for _, storeID := range storeIDs {
		results, err := engine.Registry.SyncTables(ctx, registry.SyncConfig{
			BatchSize: opts.BatchSize,
			StoreID:   storeID,
			Tables:    tables,
		})
		printTableResults(w, storeID, tables, results)
		if err != nil {
			errs = append(errs, fmt.Errorf("store %s: %w", storeID, err))
		}
	}
	return errors.Join(errs...)
}

// pushOptions holds flags for the push command.
type pushOptions struct {
	*rootOptions
	DryRun  bool
	IDs     []string
	StoreID string
}

func newPushCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &pushOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "push <products|orders>",
		Short: "Push products or orders to the ERP",
		Long: `Push products or orders to the ERP. Without --id the most recently changed
rows are pushed; with --id each named record is created or updated.

Example:
  erpbridge push products --store shop-1 --id p1 --id p2`,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{pushProducts, pushOrders},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPush(cmd.Context(), cmd.OutOrStdout(), opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "log ERP writes without performing them")
	cmd.Flags().StringSliceVar(&opts.IDs, "id", nil, "record ids to push")
	cmd.Flags().StringVar(&opts.StoreID, "store", "", "store id (required)")
	_ = cmd.MarkFlagRequired("store")

	return cmd
}

func runPush(ctx context.Context, w io.Writer, opts *pushOptions, kind string) error {
	engine, _, err := openLocal(ctx, opts.rootOptions, opts.DryRun)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	var results []mapper.Result
	switch kind {
	case pushProducts:
		results, err = engine.Registry.SyncProductsToERP(ctx, opts.StoreID, opts.IDs)
	case pushOrders:
		results, err = engine.Registry.SyncOrdersToERP(ctx, opts.StoreID, opts.IDs)
	default:
		return fmt.Errorf("unknown push target %q", kind)
	}
	if err != nil {
		return err
	}

	printTableResults(w, opts.StoreID, []string{kind}, erpsync.TableResults{kind: results})
	return nil
}

// statusOptions holds flags for the status command.
type statusOptions struct {
	*rootOptions
	StoreIDs []string
	Tables   []string
}

func newStatusCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &statusOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show when each table last finished syncing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.StoreIDs, "store", nil, "store ids (default all configured stores)")
	cmd.Flags().StringSliceVar(&opts.Tables, "tables", nil, "tables (default from config)")

	return cmd
}

func runStatus(ctx context.Context, w io.Writer, opts *statusOptions) error {
	engine, local, err := openLocal(ctx, opts.rootOptions, false)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	storeIDs := opts.StoreIDs
	if len(storeIDs) == 0 {
		storeIDs = local.Sync.StoreIDs
	}
	tables := opts.Tables
	if len(tables) == 0 {
		tables = local.Sync.Tables
	}

	var errs []error
	for _, storeID := range storeIDs {
		synced, err := engine.Registry.LastSyncTimes(ctx, storeID, tables)
		if err != nil {
			errs = append(errs, fmt.Errorf("store %s: %w", storeID, err))
			continue
		}
		for _, table := range tables {
			if t, ok := synced[table]; ok {
				fmt.Fprintf(w, "%s %s: last synced %s\n", storeID, table, t.UTC().Format(time.RFC3339))
			} else {
				fmt.Fprintf(w, "%s %s: never synced\n", storeID, table)
			}
		}
	}
	return errors.Join(errs...)
}

// webhookOptions holds flags for the webhook command.
type webhookOptions struct {
	*rootOptions
	Action   string
	Data     string
	Doctype  string
	Modified string
	Name     string
	StoreID  string
}

func newWebhookCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &webhookOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Apply an ERP change to local records",
		Long: `Apply an ERP document change to local records, as if the ERP had delivered a webhook.

Example:
  erpbridge webhook --store shop-1 --doctype "Sales Order" --name SO-0001`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWebhook(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Action, "action", "on_update", "ERP event name")
	cmd.Flags().StringVar(&opts.Data, "data", "", "event data as a JSON object")
	cmd.Flags().StringVar(&opts.Doctype, "doctype", "", "ERP doctype (required)")
	cmd.Flags().StringVar(&opts.Modified, "modified", "", "ERP modified timestamp of the delivery")
	cmd.Flags().StringVar(&opts.Name, "name", "", "ERP record name (required)")
	cmd.Flags().StringVar(&opts.StoreID, "store", "", "store id (required)")
	_ = cmd.MarkFlagRequired("doctype")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("store")

	return cmd
}

func runWebhook(ctx context.Context, w io.Writer, opts *webhookOptions) error {
	payload, err := opts.payload()
	if err != nil {
		return err
	}

	engine, _, err := openLocal(ctx, opts.rootOptions, false)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	res, err := engine.Registry.HandleERPWebhook(ctx, opts.StoreID, payload)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// payload builds the webhook payload from the flags.
func (o *webhookOptions) payload() (erpsync.WebhookPayload, error) {
	data := map[string]any{}
	if o.Data != "" {
		if err := json.Unmarshal([]byte(o.Data), &data); err != nil {
			return erpsync.WebhookPayload{}, fmt.Errorf("parsing --data: %w", err)
		}
	}
	if o.Modified != "" {
		data["modified"] = o.Modified
	}

	return erpsync.WebhookPayload{
		Action:  o.Action,
		Data:    data,
		Doctype: o.Doctype,
		Name:    o.Name,
		StoreID: o.StoreID,
	}, nil
}

// openLocal wires the engine from the local config file.
func openLocal(ctx context.Context, opts *rootOptions, dryRun bool) (*app.App, *config.LocalConfig, error) {
	local, err := config.LoadLocal()
	if err != nil {
		return nil, nil, err
	}
	if dryRun {
		local.Sync.DryRun = true
	}

	engine, err := app.NewLocal(ctx, local, opts.logger())
	if err != nil {
		return nil, nil, err
	}
	return engine, local, nil
}

// printTableResults writes a per-table summary followed by each failure.
func printTableResults(w io.Writer, storeID string, tables []string, results erpsync.TableResults) {
	for _, table := range tables {
		res, ok := results[table]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s %s: %d total, %d created, %d updated, %d exists, %d skipped, %d failed\n",
			storeID,
			table,
			len(res),
			mapper.Count(res, mapper.ActionCreated),
			mapper.Count(res, mapper.ActionUpdated),
			mapper.Count(res, mapper.ActionExists),
			mapper.Count(res, mapper.ActionSkipped),
			mapper.Count(res, mapper.ActionFailed))

		for _, r := range res {
			if r.Action == mapper.ActionFailed {
				fmt.Fprintf(w, "  failed %s: %v\n", r.Item, r.Err)
			}
		}
	}
}
