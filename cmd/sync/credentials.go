package main

import (
	"context"
	"fmt"
	"io"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/spf13/cobra"

	"github.com/peteski22/erpbridge/internal/cache"
	"github.com/peteski22/erpbridge/internal/erp"
	"github.com/peteski22/erpbridge/internal/storage"
)

// credentialSaver persists a store's ERP credentials.
type credentialSaver interface {
	SaveStoreERPConfig(ctx context.Context, storeID string, creds erp.Credentials) error
}

// versionBumper marks a store's credentials as changed.
type versionBumper interface {
	Bump(ctx context.Context, storeID string) (int64, error)
}

// credentialsOptions holds flags for the credentials set command.
type credentialsOptions struct {
	*rootOptions
	Credentials  erp.Credentials
	RedisAddr    string
	SecretPrefix string
	StoreID      string
}

func newCredentialsCommand(rootOpts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage per-store ERP credentials in AWS Secrets Manager",
	}
	cmd.AddCommand(newCredentialsSetCommand(rootOpts))
	return cmd
}

func newCredentialsSetCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &credentialsOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store a store's ERP credentials",
		Long: `Store a store's ERP credentials in AWS Secrets Manager.

With --redis the store's credentials version is bumped so running engines
reconnect with the new credentials.

Example:
  erpbridge credentials set --store shop-1 --base-url https://erp.example.com \
    --api-key KEY --api-secret SECRET --secret-prefix erpbridge/stores/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCredentialsSet(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Credentials.APIKey, "api-key", "", "ERP API key (required)")
	cmd.Flags().StringVar(&opts.Credentials.APISecret, "api-secret", "", "ERP API secret (required)")
	cmd.Flags().StringVar(&opts.Credentials.BaseURL, "base-url", "", "ERP site URL (required)")
	cmd.Flags().StringVar(&opts.Credentials.DefaultCustomerGroup, "customer-group", "", "default customer group")
	cmd.Flags().StringVar(&opts.Credentials.DefaultTerritory, "territory", "", "default territory")
	cmd.Flags().StringVar(&opts.Credentials.StoreName, "store-name", "", "store display name")
	cmd.Flags().StringVar(&opts.Credentials.TimeZone, "time-zone", "", "IANA zone of the ERP's timestamps (default UTC)")
	cmd.Flags().StringVar(&opts.RedisAddr, "redis", "", "Redis address for credential versions")
	cmd.Flags().StringVar(&opts.SecretPrefix, "secret-prefix", "", "Secrets Manager secret name prefix (required)")
	cmd.Flags().StringVar(&opts.StoreID, "store", "", "store id (required)")
	_ = cmd.MarkFlagRequired("secret-prefix")
	_ = cmd.MarkFlagRequired("store")

	return cmd
}

func runCredentialsSet(ctx context.Context, w io.Writer, opts *credentialsOptions) error {
	if err := opts.Credentials.Validate(); err != nil {
		return fmt.Errorf("invalid credentials: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("loading AWS config: %w", err)
	}
	store, err := storage.NewCredentialStore(secretsmanager.NewFromConfig(awsCfg), opts.SecretPrefix)
	if err != nil {
		return fmt.Errorf("creating credential store: %w", err)
	}

	var versions versionBumper
	if opts.RedisAddr != "" {
		client, err := cache.New(ctx, opts.RedisAddr)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		if versions, err = cache.NewVersions(client, ""); err != nil {
			return err
		}
	}

	return saveCredentials(ctx, w, store, versions, opts.StoreID, opts.Credentials)
}

// saveCredentials stores the credentials and bumps the store's version when versions is set.
func saveCredentials(
	ctx context.Context,
	w io.Writer,
	store credentialSaver,
	versions versionBumper,
	storeID string,
	creds erp.Credentials,
) error {
	if err := store.SaveStoreERPConfig(ctx, storeID, creds); err != nil {
		return fmt.Errorf("saving credentials for store %s: %w", storeID, err)
	}
	fmt.Fprintf(w, "Saved ERP credentials for store %s\n", storeID)

	if versions == nil {
		return nil
	}
	version, err := versions.Bump(ctx, storeID)
	if err != nil {
		return fmt.Errorf("bumping credentials version for store %s: %w", storeID, err)
	}
	fmt.Fprintf(w, "Credentials version is now %d\n", version)
	return nil
}
