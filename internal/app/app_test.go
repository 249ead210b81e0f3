package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/peteski22/erpbridge/internal/config"
	"github.com/peteski22/erpbridge/internal/erp"
	"github.com/peteski22/erpbridge/internal/mapper"
	"github.com/peteski22/erpbridge/internal/registry"
	erpsync "github.com/peteski22/erpbridge/internal/sync"
)

// erpServer is a minimal ERP REST API that stores created Items.
type erpServer struct {
	mu    sync.Mutex
	auth  []string
	items []map[string]any
}

func (s *erpServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = append(s.auth, r.Header.Get("Authorization"))

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/resource/Item":
		_ = json.NewEncoder(w).Encode(map[string]any{"data": s.items})
	case r.Method == http.MethodPost && r.URL.Path == "/api/resource/Item":
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		body["name"] = body["item_code"]
		body["doctype"] = "Item"
		s.items = append(s.items, body)
		_ = json.NewEncoder(w).Encode(map[string]any{"data": body})
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"exc_type":"DoesNotExistError"}`))
	}
}

func TestNewLocal(t *testing.T) {
	// Cannot use t.Parallel() with t.Setenv().
	home := t.TempDir()
	t.Setenv("HOME", home)

	server := &erpServer{}
	srv := httptest.NewServer(server)
	t.Cleanup(srv.Close)

	mr := miniredis.RunT(t)
	local := &config.LocalConfig{
		FixturesFile: writeFixtures(t, fixturesJSON),
		RedisAddr:    mr.Addr(),
		Stores: map[string]erp.Credentials{
			"s1": {APIKey: "key", APISecret: "secret", BaseURL: srv.URL},
		},
		Sync: config.Sync{BatchSize: 10, Concurrency: 2},
	}
	ctx := context.Background()

	app, err := NewLocal(ctx, local, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, app.Close()) })
	require.NotNil(t, app.Versions)

	results, err := app.Registry.SyncTables(ctx, registry.SyncConfig{
		StoreID: "s1",
		Tables:  []string{erpsync.TableProducts},
	})
	require.NoError(t, err)
	require.Len(t, results[erpsync.TableProducts], 1)
	require.Equal(t, mapper.ActionCreated, results[erpsync.TableProducts][0].Action)

	server.mu.Lock()
	require.Len(t, server.items, 1)
	require.Equal(t, "p1", server.items[0]["custom_external_id"])
	require.Equal(t, 12.5, server.items[0]["standard_rate"])
	for _, auth := range server.auth {
		require.Equal(t, "token key:secret", auth)
	}
	server.mu.Unlock()

	state, err := os.ReadFile(filepath.Join(home, ".erpbridge", "state.json"))
	require.NoError(t, err)
	require.Contains(t, string(state), `"products"`)

	results, err = app.Registry.SyncTables(ctx, registry.SyncConfig{
		StoreID: "s1",
		Tables:  []string{erpsync.TableProducts},
	})
	require.NoError(t, err)
	require.Equal(t, mapper.ActionExists, results[erpsync.TableProducts][0].Action)

	_, err = app.Registry.SyncTables(ctx, registry.SyncConfig{StoreID: "s9", Tables: []string{erpsync.TableProducts}})
	require.ErrorIs(t, err, erpsync.ErrMissingERPConfig)
}

func TestNewLocal_DryRun(t *testing.T) {
	// Cannot use t.Parallel() with t.Setenv().
	home := t.TempDir()
	t.Setenv("HOME", home)

	server := &erpServer{}
	srv := httptest.NewServer(server)
	t.Cleanup(srv.Close)

	local := &config.LocalConfig{
		FixturesFile: writeFixtures(t, fixturesJSON),
		Stores: map[string]erp.Credentials{
			"s1": {APIKey: "key", APISecret: "secret", BaseURL: srv.URL},
		},
		Sync: config.Sync{DryRun: true},
	}
	ctx := context.Background()

	app, err := NewLocal(ctx, local, nil)
	require.NoError(t, err)
	require.Nil(t, app.Versions)

	results, err := app.Registry.SyncAll(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, mapper.ActionCreated, results[erpsync.TableProducts][0].Action)

	server.mu.Lock()
	require.Empty(t, server.items)
	server.mu.Unlock()

	_, err = os.Stat(filepath.Join(home, ".erpbridge", "state.json"))
	require.True(t, os.IsNotExist(err))
}

func TestNewLocal_Errors(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		local  func(t *testing.T) *config.LocalConfig
		errMsg string
	}{
		"missing fixtures": {
			local: func(t *testing.T) *config.LocalConfig {
				return &config.LocalConfig{FixturesFile: filepath.Join(t.TempDir(), "none.json"), Sync: config.Sync{DryRun: true}}
			},
			errMsg: "reading fixtures file",
		},
		"redis unreachable": {
			local: func(t *testing.T) *config.LocalConfig {
				mr := miniredis.RunT(t)
				addr := mr.Addr()
				mr.Close()
				return &config.LocalConfig{
					FixturesFile: writeFixtures(t, fixturesJSON),
					RedisAddr:    addr,
					Sync:         config.Sync{DryRun: true},
				}
			},
			errMsg: "pinging redis",
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			app, err := NewLocal(context.Background(), tc.local(t), nil)

			require.Error(t, err)
			require.Contains(t, err.Error(), tc.errMsg)
			require.Nil(t, app)
		})
	}
}
