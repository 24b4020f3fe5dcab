package datasource

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/reportdsl/pkg/adapter"
	"github.com/leapstack-labs/reportdsl/pkg/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOptions(t *testing.T) {
	specs, err := params.ProjectScript(`
reportParameters {
    parameter(id: 'country', type: String, ui: [control: 'select', options: ['DE', 'FR']])
    parameter(id: 'region', type: String, ui: [control: 'select', options: "SELECT code, name FROM regions WHERE country = :country"])
    parameter(id: 'year', type: Integer, ui: [control: 'select', options: "SELECT DISTINCT year FROM sales"])
}
`)
	require.NoError(t, err)

	a, mock := newMockAdapter(t, adapter.PlaceholderQuestion)
	mock.ExpectQuery("SELECT code, name FROM regions WHERE country = ?").
		WithArgs("DE").
		WillReturnRows(sqlmock.NewRows([]string{"code", "name"}).AddRow("BY", "Bavaria").AddRow("BE", nil))
	mock.ExpectQuery("SELECT DISTINCT year FROM sales").
		WillReturnRows(sqlmock.NewRows([]string{"year"}).AddRow(int64(2023)).AddRow(int64(2024)))

	ex := NewSQLExecutor(SQLConfig{Adapter: a})
	require.NoError(t, LoadOptions(context.Background(), ex, specs, map[string]any{"country": "DE"}))

	assert.Equal(t, []params.Option{{Value: "DE", Label: "DE"}, {Value: "FR", Label: "FR"}}, specs[0].UI.Options.Items)
	assert.Equal(t, []params.Option{{Value: "BY", Label: "Bavaria"}, {Value: "BE", Label: "BE"}}, specs[1].UI.Options.Items)
	assert.Equal(t, []params.Option{{Value: int64(2023), Label: "2023"}, {Value: int64(2024), Label: "2024"}}, specs[2].UI.Options.Items)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadOptions_Error(t *testing.T) {
	specs, err := params.ProjectScript(`
reportParameters {
    parameter(id: 'region', type: String, ui: [options: "SELECT code FROM regions WHERE country = :country"])
}
`)
	require.NoError(t, err)

	a, _ := newMockAdapter(t, adapter.PlaceholderQuestion)
	err = LoadOptions(context.Background(), NewSQLExecutor(SQLConfig{Adapter: a}), specs, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `options for "region"`)
	assert.Contains(t, err.Error(), `unknown parameter "country"`)
}
