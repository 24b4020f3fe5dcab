package adapter

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownAdapterError_Error(t *testing.T) {
	err := &UnknownAdapterError{
		Type:      "fake_db",
		Available: []string{"duckdb", "postgres"},
	}

	msg := err.Error()
	assert.Contains(t, msg, "fake_db", "error should mention the unknown type")
	assert.Contains(t, msg, "duckdb")
	assert.Contains(t, msg, "reportdsl.yaml", "error should mention the config file")
}

func TestRegister(t *testing.T) {
	Register("test_adapter_internal", func(_ *slog.Logger) Adapter { return &BaseSQLAdapterStub{} })

	assert.True(t, IsRegistered("test_adapter_internal"))
	assert.Contains(t, ListAdapters(), "test_adapter_internal")

	factory, ok := Get("test_adapter_internal")
	require.True(t, ok)
	assert.NotNil(t, factory)

	a, err := NewAdapter(Config{Type: "test_adapter_internal"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "stub", a.DialectName())
}

func TestNewAdapter_EmptyType(t *testing.T) {
	_, err := NewAdapter(Config{}, nil)
	require.Error(t, err)
	assert.Equal(t, "adapter type not specified", err.Error())
}

func TestNewAdapter_UnknownType(t *testing.T) {
	_, err := NewAdapter(Config{Type: "oracle"}, nil)
	require.Error(t, err)

	var unknown *UnknownAdapterError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "oracle", unknown.Type)
}

// BaseSQLAdapterStub is a minimal adapter for registry tests.
type BaseSQLAdapterStub struct {
	BaseSQLAdapter
}

func (s *BaseSQLAdapterStub) Connect(_ context.Context, cfg Config) error {
	s.Cfg = cfg
	return nil
}

func (s *BaseSQLAdapterStub) DialectName() string { return "stub" }
