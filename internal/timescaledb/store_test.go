package timescaledb

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"

	"logwhisperer/config"
	"logwhisperer/internal/model"
)

type fakeRow struct {
	hypertable bool
	err        error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*bool)) = r.hypertable
	return nil
}

type fakeDB struct {
	statements []string
	args       [][]any
	row        fakeRow
	execErr    error
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.statements = append(f.statements, sql)
	f.args = append(f.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), f.execErr
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return f.row
}

func TestPublish(t *testing.T) {
	db := &fakeDB{}
	store := &timescaleReportStore{db: db, tableName: reportsTableName}
	created := time.Date(2024, 2, 2, 2, 2, 2, 0, time.UTC)

	err := store.Publish(context.Background(), &model.Report{
		ID: "1b4e28ba-2fa1-11d2-883f-0016d3cca427", CreatedAt: created, Source: "journal",
		Model: "mistral", Summary: "fine", MessageCount: 12, Path: "reports/x.md",
	})
	require.NoError(t, err)

	require.Len(t, db.statements, 1)
	assert.True(t, strings.HasPrefix(db.statements[0], "INSERT INTO log_summaries"))
	assert.Equal(t, []any{created, "1b4e28ba-2fa1-11d2-883f-0016d3cca427", "journal", "mistral", "fine", false, 12, "reports/x.md"}, db.args[0])
}

func TestPublish_Error(t *testing.T) {
	store := &timescaleReportStore{db: &fakeDB{execErr: errors.New("connection refused")}, tableName: reportsTableName}

	assert.Error(t, store.Publish(context.Background(), &model.Report{}))
}

func TestEnsureTable(t *testing.T) {
	t.Run("creates hypertable", func(t *testing.T) {
		db := &fakeDB{}
		store := &timescaleReportStore{db: db, tableName: reportsTableName}

		require.NoError(t, store.ensureTable(context.Background()))
		require.Len(t, db.statements, 2)
		assert.Contains(t, db.statements[0], "CREATE TABLE IF NOT EXISTS log_summaries")
		assert.Contains(t, db.statements[1], "create_hypertable('log_summaries', 'time'")
	})

	t.Run("already a hypertable", func(t *testing.T) {
		db := &fakeDB{row: fakeRow{hypertable: true}}
		store := &timescaleReportStore{db: db, tableName: reportsTableName}

		require.NoError(t, store.ensureTable(context.Background()))
		assert.Len(t, db.statements, 1)
	})

	t.Run("plain postgres", func(t *testing.T) {
		db := &fakeDB{row: fakeRow{err: errors.New(`relation "timescaledb_information.hypertables" does not exist`)}}
		store := &timescaleReportStore{db: db, tableName: reportsTableName}

		require.NoError(t, store.ensureTable(context.Background()))
		assert.Len(t, db.statements, 1)
	})
}

func TestNewReportStore_Validation(t *testing.T) {
	_, err := NewReportStore(fxtest.NewLifecycle(t), &config.Config{})
	assert.Error(t, err)

	_, err = NewReportStore(fxtest.NewLifecycle(t), &config.Config{TimescaleDB: config.TimescaleDBConfig{DSN: "://bad"}})
	assert.Error(t, err)
}
