package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

const lastSyncSuffix = "last-sync-time"

// SSMAPI defines the SSM operations used by the state store.
type SSMAPI interface {
	// GetParameter retrieves a parameter from SSM.
	GetParameter(
		ctx context.Context,
		params *ssm.GetParameterInput,
		optFns ...func(*ssm.Options),
	) (*ssm.GetParameterOutput, error)

	// PutParameter stores a parameter in SSM.
	PutParameter(
		ctx context.Context,
		params *ssm.PutParameterInput,
		optFns ...func(*ssm.Options),
	) (*ssm.PutParameterOutput, error)
}

// StateStore records per-store, per-table sync times in AWS SSM Parameter Store.
// Parameters are named {prefix}/{storeID}/{table}/last-sync-time.
type StateStore struct {
	// client is the SSM API client.
	client SSMAPI

	// prefix is the parameter path prefix.
	prefix string
}

// NewStateStore creates a new SSM-backed state store.
func NewStateStore(client SSMAPI, prefix string) (*StateStore, error) {
	if client == nil {
		return nil, errors.New("ssm client is required")
	}
	if prefix == "" {
		return nil, errors.New("parameter prefix is required")
	}

	return &StateStore{
		client: client,
		prefix: strings.TrimSuffix(prefix, "/"),
	}, nil
}

// LastSyncTime returns when the table last finished syncing, or the zero time.
func (s *StateStore) LastSyncTime(ctx context.Context, storeID string, table string) (time.Time, error) {
	name := s.parameterName(storeID, table)
	output, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name: aws.String(name),
	})
	if err != nil {
		// A table that never synced has no parameter.
		var notFoundErr *types.ParameterNotFound
		if errors.As(err, &notFoundErr) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("getting parameter %s from SSM: %w", name, err)
	}

	if output.Parameter == nil || output.Parameter.Value == nil {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339, *output.Parameter.Value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing sync time from parameter %s: %w", name, err)
	}

	return t, nil
}

// SetLastSyncTime records when the table finished syncing.
func (s *StateStore) SetLastSyncTime(ctx context.Context, storeID string, table string, t time.Time) error {
	name := s.parameterName(storeID, table)
	_, err := s.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(name),
		Overwrite: aws.Bool(true),
		Type:      types.ParameterTypeString,
		Value:     aws.String(t.UTC().Format(time.RFC3339)),
	})
	if err != nil {
		return fmt.Errorf("putting parameter %s to SSM: %w", name, err)
	}

	return nil
}

func (s *StateStore) parameterName(storeID string, table string) string {
	return strings.Join([]string{s.prefix, storeID, table, lastSyncSuffix}, "/")
}
