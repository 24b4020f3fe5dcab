package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseSQLAdapter_Close(t *testing.T) {
	tests := []struct {
		name    string
		setupDB bool
	}{
		{name: "close with nil DB", setupDB: false},
		{name: "close with open DB", setupDB: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &BaseSQLAdapter{}
			if tt.setupDB {
				db, mock, err := sqlmock.New()
				require.NoError(t, err)
				mock.ExpectClose()
				base.DB = db
			}
			assert.NoError(t, base.Close())
		})
	}
}

func TestBaseSQLAdapter_Exec(t *testing.T) {
	tests := []struct {
		name      string
		setupDB   bool
		setupMock func(mock sqlmock.Sqlmock)
		sql       string
		args      []any
		errMsg    string
	}{
		{
			name:   "exec without connection",
			sql:    "SELECT 1",
			errMsg: "database connection not established",
		},
		{
			name:    "exec success",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("SET memory_limit").WillReturnResult(sqlmock.NewResult(0, 0))
			},
			sql: "SET memory_limit = '1GB'",
		},
		{
			name:    "exec with args",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("DELETE FROM orders").WithArgs("North").WillReturnResult(sqlmock.NewResult(0, 3))
			},
			sql:  "DELETE FROM orders WHERE region = ?",
			args: []any{"North"},
		},
		{
			name:    "exec with error",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INVALID SQL").WillReturnError(assert.AnError)
			},
			sql:    "INVALID SQL",
			errMsg: "failed to execute SQL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &BaseSQLAdapter{}
			if tt.setupDB {
				db, mock, err := sqlmock.New()
				require.NoError(t, err)
				defer func() { _ = db.Close() }()
				if tt.setupMock != nil {
					tt.setupMock(mock)
				}
				base.DB = db
			}

			err := base.Exec(context.Background(), tt.sql, tt.args...)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBaseSQLAdapter_Query(t *testing.T) {
	tests := []struct {
		name      string
		setupDB   bool
		setupMock func(mock sqlmock.Sqlmock)
		sql       string
		args      []any
		errMsg    string
	}{
		{
			name:   "query without connection",
			sql:    "SELECT 1",
			errMsg: "database connection not established",
		},
		{
			name:    "query with bound args",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"region", "total"}).AddRow("North", 10)
				mock.ExpectQuery("SELECT region").WithArgs("2024-01-01").WillReturnRows(rows)
			},
			sql:  "SELECT region, total FROM sales WHERE day >= ?",
			args: []any{"2024-01-01"},
		},
		{
			name:    "query with error",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("INVALID").WillReturnError(assert.AnError)
			},
			sql:    "INVALID SQL",
			errMsg: "failed to execute query",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &BaseSQLAdapter{}
			if tt.setupDB {
				db, mock, err := sqlmock.New()
				require.NoError(t, err)
				defer func() { _ = db.Close() }()
				if tt.setupMock != nil {
					tt.setupMock(mock)
				}
				base.DB = db
			}

			rows, err := base.Query(context.Background(), tt.sql, tt.args...)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Nil(t, rows)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, rows)
			_ = rows.Close()
		})
	}
}

func TestBaseSQLAdapter_Placeholder(t *testing.T) {
	question := &BaseSQLAdapter{}
	dollar := &BaseSQLAdapter{Style: PlaceholderDollar}

	assert.Equal(t, "?", question.Placeholder(1))
	assert.Equal(t, "?", question.Placeholder(3))
	assert.Equal(t, "$1", dollar.Placeholder(1))
	assert.Equal(t, "$12", dollar.Placeholder(12))
}

func TestBaseSQLAdapter_IsConnected(t *testing.T) {
	base := &BaseSQLAdapter{}
	assert.False(t, base.IsConnected())

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	base.DB = db
	assert.True(t, base.IsConnected())
}

func TestCollect(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	stamp := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		limit     int
		wantRows  int
		wantTotal int
	}{
		{name: "no limit keeps every row", limit: 0, wantRows: 3, wantTotal: 3},
		{name: "limit truncates but counts", limit: 2, wantRows: 2, wantTotal: 3},
		{name: "limit above row count", limit: 10, wantRows: 3, wantTotal: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()

			mock.ExpectQuery("SELECT").WillReturnRows(
				sqlmock.NewRows([]string{"region", "day", "updated"}).
					AddRow([]byte("North"), day, stamp).
					AddRow("South", day, stamp).
					AddRow(nil, day, stamp),
			)

			base := &BaseSQLAdapter{DB: db}
			rows, err := base.Query(context.Background(), "SELECT region, day, updated FROM sales")
			require.NoError(t, err)

			table, err := Collect(rows, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, []string{"region", "day", "updated"}, table.Columns)
			assert.Len(t, table.Rows, tt.wantRows)
			assert.Equal(t, tt.wantTotal, table.Total)

			first := table.Rows[0]
			assert.Equal(t, "North", first["region"], "[]byte should become string")
			assert.Equal(t, "2024-03-01", first["day"])
			assert.Equal(t, "2024-03-01T09:30:00Z", first["updated"])
		})
	}
}

func TestCollect_RowError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"n"}).AddRow(1).AddRow(2).RowError(1, assert.AnError),
	)

	base := &BaseSQLAdapter{DB: db}
	rows, err := base.Query(context.Background(), "SELECT n FROM t")
	require.NoError(t, err)

	_, err = Collect(rows, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error iterating rows")
}
