package timescaledb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"

	"logwhisperer/config"
	"logwhisperer/internal/model"
	"logwhisperer/internal/report"
)

const (
	reportsTableName = "log_summaries"
	colTime          = "time"
	colReportID      = "report_id"
	colSource        = "source"
	colModel         = "model"
	colSummary       = "summary"
	colFailed        = "failed"
	colMessageCount  = "message_count"
	colPath          = "report_path"
)

// dbtx is the part of *pgxpool.Pool the store needs.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type timescaleReportStore struct {
	db        dbtx
	tableName string
}

// NewReportStore returns a sink recording one row per report. The pool connects lazily;
// the table (a hypertable when the extension is available) is ensured on start.
func NewReportStore(lc fx.Lifecycle, cfg *config.Config) (report.Sink, error) {
	if cfg.TimescaleDB.DSN == "" {
		return nil, errors.New("timescaledb DSN missing")
	}
	poolConfig, err := pgxpool.ParseConfig(cfg.TimescaleDB.DSN)
	if err != nil {
		log.Error().Err(err).Msg("Failed to parse TimescaleDB DSN")
		return nil, fmt.Errorf("invalid TimescaleDB DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create TimescaleDB pool: %w", err)
	}

	store := &timescaleReportStore{db: pool, tableName: reportsTableName}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			setupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := pool.Ping(setupCtx); err != nil {
				log.Warn().Err(err).Msg("Failed to ping TimescaleDB, report rows will be retried per cycle")
				return nil
			}
			if err := store.ensureTable(setupCtx); err != nil {
				log.Warn().Err(err).Msg("Failed to ensure report table")
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Closing TimescaleDB connection pool...")
			pool.Close()
			return nil
		},
	})
	return store, nil
}

func (s *timescaleReportStore) Name() string { return "timescaledb" }

func (s *timescaleReportStore) ensureTable(ctx context.Context) error {
	createTableSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			%s TIMESTAMPTZ NOT NULL,
			%s UUID NOT NULL,
			%s TEXT NOT NULL,
			%s TEXT NOT NULL,
			%s TEXT NOT NULL,
			%s BOOLEAN NOT NULL,
			%s INTEGER NOT NULL,
			%s TEXT
		);`,
		s.tableName, colTime, colReportID, colSource, colModel, colSummary, colFailed, colMessageCount, colPath)
	if _, err := s.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.tableName, err)
	}

	var isHypertable bool
	checkHyperSQL := `SELECT EXISTS (
		SELECT 1 FROM timescaledb_information.hypertables WHERE hypertable_name = $1
	);`
	if err := s.db.QueryRow(ctx, checkHyperSQL, s.tableName).Scan(&isHypertable); err != nil {
		// Plain PostgreSQL has no timescaledb_information schema.
		log.Info().Str("table", s.tableName).Msg("TimescaleDB not available, using a plain table")
		return nil
	}
	if !isHypertable {
		createHyperSQL := fmt.Sprintf(
			"SELECT create_hypertable('%s', '%s', if_not_exists => TRUE, chunk_time_interval => INTERVAL '7 days');",
			s.tableName, colTime)
		if _, err := s.db.Exec(ctx, createHyperSQL); err != nil && !strings.Contains(err.Error(), "already a hypertable") {
			log.Warn().Err(err).Str("table", s.tableName).Msg("Failed to create hypertable (continuing)")
		}
	}
	log.Info().Str("table", s.tableName).Msg("Ensured report table exists.")
	return nil
}

func (s *timescaleReportStore) Publish(ctx context.Context, r *model.Report) error {
	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8);",
		s.tableName, colTime, colReportID, colSource, colModel, colSummary, colFailed, colMessageCount, colPath)

	if _, err := s.db.Exec(ctx, insertSQL,
		r.CreatedAt, r.ID, r.Source, r.Model, r.Summary, r.Failed(), r.MessageCount, r.Path,
	); err != nil {
		return fmt.Errorf("timescaledb insert failed: %w", err)
	}
	return nil
}
