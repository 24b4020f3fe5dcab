package datasource

import (
	"context"
	"testing"

	"github.com/leapstack-labs/reportdsl/pkg/preview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter(t *testing.T) {
	called := ""
	fake := func(kind preview.Kind) preview.Executor {
		return preview.ExecutorFunc(func(context.Context, preview.DataSource, map[string]any) (*preview.Result, error) {
			called = string(kind)
			return &preview.Result{}, nil
		})
	}

	r := NewRouter().
		Handle(preview.KindSQL, fake(preview.KindSQL)).
		Handle(preview.KindScript, fake(preview.KindScript)).
		Handle(preview.KindBackend, nil)

	assert.True(t, r.Has(preview.KindSQL))
	assert.False(t, r.Has(preview.KindBackend), "nil executors are not registered")

	_, err := r.Execute(context.Background(), preview.DataSource{Kind: preview.KindScript}, nil)
	require.NoError(t, err)
	assert.Equal(t, "script", called)

	_, err = r.Execute(context.Background(), preview.DataSource{Kind: preview.KindBackend}, nil)
	require.Error(t, err)
	assert.Equal(t, `no "backend" data source configured`, err.Error())
}

func TestRouter_WithBridge(t *testing.T) {
	r := NewRouter().Handle(preview.KindScript, NewScriptExecutor(ScriptConfig{}))
	bridge := preview.NewBridge(preview.Config{Executor: r, Limit: 2})

	res, err := bridge.RunPreview(context.Background(), preview.DataSource{
		Kind:   preview.KindScript,
		Script: `rows = [{"n": i} for i in range(5)]`,
	}, nil)
	require.NoError(t, err)
	assert.True(t, res.IsPreview)
	assert.Len(t, res.ReportData, 2)
	assert.Equal(t, 5, res.TotalRows)
}
