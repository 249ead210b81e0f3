package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/peteski22/erpbridge/internal/erp"
)

// SecretsManagerAPI defines the Secrets Manager operations used by the credential store.
type SecretsManagerAPI interface {
	// CreateSecret creates a new secret.
	CreateSecret(
		ctx context.Context,
		params *secretsmanager.CreateSecretInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.CreateSecretOutput, error)

	// GetSecretValue retrieves a secret value.
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)

	// PutSecretValue stores a secret value.
	PutSecretValue(
		ctx context.Context,
		params *secretsmanager.PutSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.PutSecretValueOutput, error)
}

// CredentialStore keeps per-store ERP credentials as JSON secrets named prefix + store ID.
type CredentialStore struct {
	// client is the Secrets Manager API client.
	client SecretsManagerAPI

	// prefix is prepended to the store ID to form the secret name.
	prefix string
}

// NewCredentialStore creates a new Secrets Manager-backed credential store.
func NewCredentialStore(client SecretsManagerAPI, prefix string) (*CredentialStore, error) {
	if client == nil {
		return nil, errors.New("secrets manager client is required")
	}
	if prefix == "" {
		return nil, errors.New("secret prefix is required")
	}

	return &CredentialStore{
		client: client,
		prefix: prefix,
	}, nil
}

// StoreERPConfig returns the store's ERP credentials, or nil when no secret exists.
func (c *CredentialStore) StoreERPConfig(ctx context.Context, storeID string) (*erp.Credentials, error) {
	if storeID == "" {
		return nil, errors.New("store ID is required")
	}

	output, err := c.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(c.secretName(storeID)),
	})
	if err != nil {
		var notFoundErr *types.ResourceNotFoundException
		if errors.As(err, &notFoundErr) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting secret from Secrets Manager: %w", err)
	}

	if output.SecretString == nil {
		return nil, errors.New("secret has no string value")
	}

	var creds erp.Credentials
	if err := json.Unmarshal([]byte(*output.SecretString), &creds); err != nil {
		return nil, fmt.Errorf("parsing credentials secret: %w", err)
	}

	return &creds, nil
}

// SaveStoreERPConfig stores the store's ERP credentials, creating the secret on first save.
func (c *CredentialStore) SaveStoreERPConfig(ctx context.Context, storeID string, creds erp.Credentials) error {
	if storeID == "" {
		return errors.New("store ID is required")
	}
	if err := creds.Validate(); err != nil {
		return fmt.Errorf("invalid credentials: %w", err)
	}

	value, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	_, err = c.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(c.secretName(storeID)),
		SecretString: aws.String(string(value)),
	})
	if err == nil {
		return nil
	}

	var notFoundErr *types.ResourceNotFoundException
	if !errors.As(err, &notFoundErr) {
		return fmt.Errorf("putting secret to Secrets Manager: %w", err)
	}

	_, err = c.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(c.secretName(storeID)),
		SecretString: aws.String(string(value)),
	})
	if err != nil {
		return fmt.Errorf("creating secret in Secrets Manager: %w", err)
	}

	return nil
}

func (c *CredentialStore) secretName(storeID string) string {
	return c.prefix + storeID
}
