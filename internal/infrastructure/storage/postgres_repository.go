package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"NarrativeScorer/internal/domain"
	"NarrativeScorer/internal/ports"
)

const reportsTable = "narrative_reports"

// Schema creates the reports table. Summary columns are kept beside the
// full JSON document so reviewers can query without decoding it.
const Schema = `CREATE TABLE IF NOT EXISTS narrative_reports (
    run_id            TEXT PRIMARY KEY,
    entry_id          TEXT NOT NULL,
    status            TEXT NOT NULL,
    overall_index     DOUBLE PRECISION NOT NULL,
    scored_count      INTEGER NOT NULL,
    impression        TEXT NOT NULL,
    degraded          BOOLEAN NOT NULL,
    deadline_exceeded BOOLEAN NOT NULL,
    flags             TEXT[] NOT NULL DEFAULT '{}',
    unavailable       TEXT[] NOT NULL DEFAULT '{}',
    report            JSONB NOT NULL,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// ErrReportNotFound is returned by LoadReport for unknown run ids.
var ErrReportNotFound = errors.New("report not found")

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository persists analysis reports into Postgres.
type PostgresRepository struct {
	db *sql.DB
}

var _ ports.ReportRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Open connects through lib/pq and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the reports table when it is missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// SaveReport upserts the report snapshot keyed by run id.
func (r *PostgresRepository) SaveReport(ctx context.Context, report domain.AnalysisReport) error {
	if r.db == nil {
		return nil
	}

	query, args, err := saveQuery(report)
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}

	return nil
}

// LoadReport returns the stored report for runID.
func (r *PostgresRepository) LoadReport(ctx context.Context, runID string) (domain.AnalysisReport, error) {
	if r.db == nil {
		return domain.AnalysisReport{}, ErrReportNotFound
	}

	query, args, err := loadQuery(runID)
	if err != nil {
		return domain.AnalysisReport{}, err
	}

	var raw []byte
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AnalysisReport{}, fmt.Errorf("run %s: %w", runID, ErrReportNotFound)
		}
		return domain.AnalysisReport{}, fmt.Errorf("query report: %w", err)
	}

	var report domain.AnalysisReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return domain.AnalysisReport{}, fmt.Errorf("decode report %s: %w", runID, err)
	}
	return report, nil
}

func saveQuery(report domain.AnalysisReport) (string, []interface{}, error) {
	if report.RunID == "" {
		return "", nil, errors.New("report has no run id")
	}

	doc, err := json.Marshal(report)
	if err != nil {
		return "", nil, fmt.Errorf("encode report: %w", err)
	}

	query, args, err := psql.Insert(reportsTable).
		Columns("run_id", "entry_id", "status", "overall_index", "scored_count", "impression",
			"degraded", "deadline_exceeded", "flags", "unavailable", "report").
		Values(report.RunID, report.EntryID, string(report.Status), report.OverallIndex, report.ScoredCount,
			report.Impression, report.Degraded, report.DeadlineExceeded,
			pq.Array(nonNil(report.Flags)), pq.Array(nonNil(report.Unavailable)), string(doc)).
		Suffix(`ON CONFLICT (run_id) DO UPDATE
              SET status = EXCLUDED.status,
                  overall_index = EXCLUDED.overall_index,
                  scored_count = EXCLUDED.scored_count,
                  impression = EXCLUDED.impression,
                  degraded = EXCLUDED.degraded,
                  deadline_exceeded = EXCLUDED.deadline_exceeded,
                  flags = EXCLUDED.flags,
                  unavailable = EXCLUDED.unavailable,
                  report = EXCLUDED.report,
                  updated_at = NOW()`).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build upsert: %w", err)
	}
	return query, args, nil
}

func loadQuery(runID string) (string, []interface{}, error) {
	query, args, err := psql.Select("report").
		From(reportsTable).
		Where(sq.Eq{"run_id": runID}).
		Limit(1).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build select: %w", err)
	}
	return query, args, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
