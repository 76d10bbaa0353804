// Package store persists index analysis records in PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"rsmetrics/internal/models"
)

// ErrNoDSN is returned by DSNFromEnv when no database is configured
var ErrNoDSN = errors.New("POSTGRES_DB not set; set env vars or DATABASE_URL")

const schema = `
CREATE TABLE IF NOT EXISTS index_statistics (
	id                      BIGSERIAL PRIMARY KEY,
	run_id                  TEXT NOT NULL,
	index_name              TEXT NOT NULL,
	file_name               TEXT NOT NULL,
	path                    TEXT NOT NULL,
	count                   BIGINT NOT NULL,
	mean                    DOUBLE PRECISION NOT NULL,
	median                  DOUBLE PRECISION NOT NULL,
	std                     DOUBLE PRECISION NOT NULL,
	variance                DOUBLE PRECISION NOT NULL,
	min                     DOUBLE PRECISION NOT NULL,
	max                     DOUBLE PRECISION NOT NULL,
	value_range             DOUBLE PRECISION NOT NULL,
	percentile_25           DOUBLE PRECISION NOT NULL,
	percentile_75           DOUBLE PRECISION NOT NULL,
	iqr                     DOUBLE PRECISION NOT NULL,
	skewness                DOUBLE PRECISION NOT NULL,
	kurtosis                DOUBLE PRECISION NOT NULL,
	shapiro_statistic       DOUBLE PRECISION,
	shapiro_p_value         DOUBLE PRECISION,
	dagostino_statistic     DOUBLE PRECISION,
	dagostino_p_value       DOUBLE PRECISION,
	anderson_statistic      DOUBLE PRECISION,
	anderson_critical_value DOUBLE PRECISION,
	is_normal               BOOLEAN NOT NULL,
	reasons                 TEXT[] NOT NULL DEFAULT '{}',
	created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS index_statistics_run_id_idx ON index_statistics (run_id);
`

const insertRow = `
INSERT INTO index_statistics (
	run_id, index_name, file_name, path,
	count, mean, median, std, variance, min, max, value_range,
	percentile_25, percentile_75, iqr, skewness, kurtosis,
	shapiro_statistic, shapiro_p_value, dagostino_statistic, dagostino_p_value,
	anderson_statistic, anderson_critical_value, is_normal, reasons, created_at
) VALUES (
	:run_id, :index_name, :file_name, :path,
	:count, :mean, :median, :std, :variance, :min, :max, :value_range,
	:percentile_25, :percentile_75, :iqr, :skewness, :kurtosis,
	:shapiro_statistic, :shapiro_p_value, :dagostino_statistic, :dagostino_p_value,
	:anderson_statistic, :anderson_critical_value, :is_normal, :reasons, :created_at
)`

// row mirrors one index_statistics record
type row struct {
	ID        int64     `db:"id"`
	RunID     string    `db:"run_id"`
	IndexName string    `db:"index_name"`
	FileName  string    `db:"file_name"`
	Path      string    `db:"path"`
	CreatedAt time.Time `db:"created_at"`

	Count        int64   `db:"count"`
	Mean         float64 `db:"mean"`
	Median       float64 `db:"median"`
	Std          float64 `db:"std"`
	Var          float64 `db:"variance"`
	Min          float64 `db:"min"`
	Max          float64 `db:"max"`
	Range        float64 `db:"value_range"`
	Percentile25 float64 `db:"percentile_25"`
	Percentile75 float64 `db:"percentile_75"`
	IQR          float64 `db:"iqr"`
	Skewness     float64 `db:"skewness"`
	Kurtosis     float64 `db:"kurtosis"`

	ShapiroStatistic      sql.NullFloat64 `db:"shapiro_statistic"`
	ShapiroPValue         sql.NullFloat64 `db:"shapiro_p_value"`
	DAgostinoStatistic    sql.NullFloat64 `db:"dagostino_statistic"`
	DAgostinoPValue       sql.NullFloat64 `db:"dagostino_p_value"`
	AndersonStatistic     sql.NullFloat64 `db:"anderson_statistic"`
	AndersonCriticalValue sql.NullFloat64 `db:"anderson_critical_value"`
	IsNormal              bool            `db:"is_normal"`
	Reasons               pq.StringArray  `db:"reasons"`
}

// Store writes and reads analysis records
type Store struct {
	db *sqlx.DB
}

// New wraps an open connection
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to the PostgreSQL database at dsn and checks the connection
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return New(db), nil
}

// Close releases the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the index_statistics table when it does not exist
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// SaveRecords inserts records under runID in one transaction, stamped with
// createdAt
func (s *Store) SaveRecords(ctx context.Context, runID string, createdAt time.Time, records []*models.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, r := range records {
		if _, err := tx.NamedExecContext(ctx, insertRow, toRow(runID, createdAt, r)); err != nil {
			return fmt.Errorf("failed to insert %s: %w", r.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit records: %w", err)
	}
	return nil
}

// ListRun returns the records stored under runID ordered by index name
func (s *Store) ListRun(ctx context.Context, runID string) ([]*models.IndexRecord, error) {
	var rows []row
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM index_statistics
		WHERE run_id = $1
		ORDER BY index_name, id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list run %s: %w", runID, err)
	}

	records := make([]*models.IndexRecord, 0, len(rows))
	for i := range rows {
		records = append(records, fromRow(&rows[i]))
	}
	return records, nil
}

// BuildDSN formats a key/value connection string
func BuildDSN(host, port, user, password, dbname string) string {
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", host, port, user, password, dbname)
}

// DSNFromEnv builds a connection string from the POSTGRES_* variables,
// falling back to DATABASE_URL when POSTGRES_DB is unset
func DSNFromEnv() (string, error) {
	dbname := os.Getenv("POSTGRES_DB")
	if dbname == "" {
		if url := os.Getenv("DATABASE_URL"); url != "" {
			return url, nil
		}
		return "", ErrNoDSN
	}
	return BuildDSN(
		os.Getenv("POSTGRES_HOST"),
		os.Getenv("POSTGRES_PORT"),
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		dbname,
	), nil
}

func toRow(runID string, createdAt time.Time, r *models.IndexRecord) *row {
	s := r.Stats
	out := &row{
		RunID:        runID,
		IndexName:    r.Name,
		FileName:     r.FileName,
		Path:         r.Path,
		CreatedAt:    createdAt,
		Count:        int64(s.Count),
		Mean:         s.Mean,
		Median:       s.Median,
		Std:          s.Std,
		Var:          s.Var,
		Min:          s.Min,
		Max:          s.Max,
		Range:        s.Range,
		Percentile25: s.Percentile25,
		Percentile75: s.Percentile75,
		IQR:          s.IQR,
		Skewness:     s.Skewness,
		Kurtosis:     s.Kurtosis,
		IsNormal:     r.Verdict.IsNormal,
		Reasons:      pq.StringArray(r.Verdict.Reasons),
	}
	if out.Reasons == nil {
		out.Reasons = pq.StringArray{}
	}

	if t := r.Tests.Shapiro; t != nil {
		out.ShapiroStatistic = sql.NullFloat64{Float64: t.Statistic, Valid: true}
		out.ShapiroPValue = sql.NullFloat64{Float64: t.PValue, Valid: true}
	}
	if t := r.Tests.DAgostino; t != nil {
		out.DAgostinoStatistic = sql.NullFloat64{Float64: t.Statistic, Valid: true}
		out.DAgostinoPValue = sql.NullFloat64{Float64: t.PValue, Valid: true}
	}
	if t := r.Tests.Anderson; t != nil {
		out.AndersonStatistic = sql.NullFloat64{Float64: t.Statistic, Valid: true}
		out.AndersonCriticalValue = sql.NullFloat64{Float64: t.CriticalValue, Valid: true}
	}
	return out
}

func fromRow(in *row) *models.IndexRecord {
	r := &models.IndexRecord{
		Name:     in.IndexName,
		FileName: in.FileName,
		Path:     in.Path,
		Stats: models.BasicStats{
			Count:        int(in.Count),
			Mean:         in.Mean,
			Median:       in.Median,
			Std:          in.Std,
			Var:          in.Var,
			Min:          in.Min,
			Max:          in.Max,
			Range:        in.Range,
			Percentile25: in.Percentile25,
			Percentile75: in.Percentile75,
			IQR:          in.IQR,
			Skewness:     in.Skewness,
			Kurtosis:     in.Kurtosis,
		},
		Verdict: models.NormalityVerdict{
			IsNormal: in.IsNormal,
			Reasons:  []string(in.Reasons),
		},
	}

	if in.ShapiroStatistic.Valid {
		r.Tests.Shapiro = &models.TestResult{Statistic: in.ShapiroStatistic.Float64, PValue: in.ShapiroPValue.Float64}
	}
	if in.DAgostinoStatistic.Valid {
		r.Tests.DAgostino = &models.TestResult{Statistic: in.DAgostinoStatistic.Float64, PValue: in.DAgostinoPValue.Float64}
	}
	if in.AndersonStatistic.Valid {
		r.Tests.Anderson = &models.AndersonResult{Statistic: in.AndersonStatistic.Float64, CriticalValue: in.AndersonCriticalValue.Float64}
	}
	return r
}
