package postgres

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/reportdsl/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSN(t *testing.T) {
	tests := []struct {
		name   string
		config adapter.Config
		want   string
	}{
		{
			name:   "defaults",
			config: adapter.Config{Database: "reports"},
			want:   "host=localhost port=5432 dbname=reports sslmode=disable",
		},
		{
			name: "credentials",
			config: adapter.Config{
				Host:     "db.internal",
				Port:     5433,
				Database: "reports",
				Username: "burst",
				Password: "secret",
			},
			want: "host=db.internal port=5433 dbname=reports sslmode=disable user=burst password=secret",
		},
		{
			name: "sslmode and extra options",
			config: adapter.Config{
				Host:     "prod.example.com",
				Database: "reports",
				Options:  map[string]string{"sslmode": "require", "connect_timeout": "5", "application_name": "x"},
			},
			want: "host=prod.example.com port=5432 dbname=reports sslmode=require application_name=x connect_timeout=5",
		},
		{
			name:   "quoted values",
			config: adapter.Config{Database: "my reports", Password: `it's\here`},
			want:   `host=localhost port=5432 dbname='my reports' sslmode=disable password='it\'s\\here'`,
		},
		{
			name:   "empty database",
			config: adapter.Config{},
			want:   "host=localhost port=5432 dbname='' sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildPostgresDSN(tt.config))
		})
	}
}

func TestTableIdentifier(t *testing.T) {
	assert.Equal(t, `"sales"`, tableIdentifier("sales").Sanitize())
	assert.Equal(t, `"staging"."sales"`, tableIdentifier("staging.sales").Sanitize())
	assert.Equal(t, `"Order"`, tableIdentifier("Order").Sanitize())
}

func TestReadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte("region,amount\nEU,300\nUS,\n"), 0o600))

	header, records, err := readCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"region", "amount"}, header)
	assert.Equal(t, [][]any{{"EU", "300"}, {"US", nil}}, records)

	_, _, err = readCSV(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open CSV file")
}

func TestAdapter_ConnectRejectsBadSettings(t *testing.T) {
	adp := New(nil)
	err := adp.Connect(context.Background(), adapter.Config{
		Database: "reports",
		Options:  map[string]string{"sslmode": "sometimes"},
	})
	require.Error(t, err)
	assert.False(t, adp.IsConnected())
}

func TestNew(t *testing.T) {
	adp := New(nil)

	require.NotNil(t, adp)
	assert.Nil(t, adp.DB, "DB should be nil before Connect")
	assert.False(t, adp.IsConnected())
	assert.Equal(t, "postgres", adp.DialectName())
	assert.Equal(t, "$1", adp.Placeholder(1), "postgres binds with numbered markers")
	assert.Equal(t, "$3", adp.Placeholder(3))
}

func TestAdapter_NotConnected(t *testing.T) {
	tests := []struct {
		name      string
		operation func(ctx context.Context, adp *Adapter) error
	}{
		{
			name: "exec",
			operation: func(ctx context.Context, adp *Adapter) error {
				return adp.Exec(ctx, "SELECT 1")
			},
		},
		{
			name: "query",
			operation: func(ctx context.Context, adp *Adapter) error {
				_, err := adp.Query(ctx, "SELECT 1")
				return err
			},
		},
		{
			name: "load csv",
			operation: func(ctx context.Context, adp *Adapter) error {
				return adp.LoadCSV(ctx, "sales", "sales.csv")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.operation(context.Background(), New(nil))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "not established")
		})
	}
}

func TestAdapter_Registry(t *testing.T) {
	require.True(t, adapter.IsRegistered("postgres"))

	factory, ok := adapter.Get("postgres")
	require.True(t, ok)

	pg, ok := factory(nil).(*Adapter)
	require.True(t, ok, "factory should return *Adapter")
	assert.Equal(t, "postgres", pg.DialectName())
}

func TestAdapter_Close(t *testing.T) {
	assert.NoError(t, New(nil).Close())
}
