package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rsmetrics/internal/models"
)

func sampleRecords() []*models.IndexRecord {
	return []*models.IndexRecord{
		{
			Name:     "MSI",
			FileName: "rs_metrics_finland_20240401_MSI",
			Path:     "/exports/rs_metrics_finland_20240401_MSI.tif",
			Stats:    models.BasicStats{Count: 1000, Mean: 0.7, Median: 0.61, Std: 0.3, Skewness: 2.0},
			Tests: models.NormalityTestResults{
				Shapiro:   &models.TestResult{Statistic: 0.83, PValue: 1e-30},
				DAgostino: &models.TestResult{Statistic: 410, PValue: 1e-90},
				Anderson:  &models.AndersonResult{Statistic: 45.1, CriticalValue: 0.786},
			},
			Verdict: models.NormalityVerdict{
				Reasons: []string{"Significant right-skewed distribution (skewness = 2.000)"},
			},
		},
		{
			Name:     "EVI",
			FileName: "rs_metrics_finland_20240401_EVI",
			Path:     "/exports/rs_metrics_finland_20240401_EVI.tif",
			Stats:    models.BasicStats{Count: 4, Mean: 0.45},
			Verdict:  models.NormalityVerdict{IsNormal: true},
		},
	}
}

func TestRowConversion(t *testing.T) {
	created := time.Date(2024, time.April, 1, 12, 0, 0, 0, time.UTC)

	for _, r := range sampleRecords() {
		in := toRow("run-1", created, r)
		assert.Equal(t, "run-1", in.RunID)
		assert.Equal(t, created, in.CreatedAt)
		assert.NotNil(t, in.Reasons)

		out := fromRow(in)
		assert.Equal(t, r.Name, out.Name)
		assert.Equal(t, r.Stats, out.Stats)
		assert.Equal(t, r.Tests, out.Tests)
		assert.Equal(t, r.Verdict.IsNormal, out.Verdict.IsNormal)
		assert.ElementsMatch(t, r.Verdict.Reasons, out.Verdict.Reasons)
	}
}

func TestRowConversionMissingTests(t *testing.T) {
	in := toRow("run-1", time.Now(), sampleRecords()[1])
	assert.False(t, in.ShapiroStatistic.Valid)
	assert.False(t, in.DAgostinoPValue.Valid)
	assert.False(t, in.AndersonCriticalValue.Valid)

	out := fromRow(in)
	assert.Nil(t, out.Tests.Shapiro)
	assert.Nil(t, out.Tests.DAgostino)
	assert.Nil(t, out.Tests.Anderson)
}

func TestBuildDSN(t *testing.T) {
	assert.Equal(t,
		"host=localhost port=5432 user=rs password=secret dbname=metrics sslmode=disable",
		BuildDSN("", "", "rs", "secret", "metrics"))
	assert.Equal(t,
		"host=db port=6543 user=rs password= dbname=metrics sslmode=disable",
		BuildDSN("db", "6543", "rs", "", "metrics"))
}

func TestDSNFromEnv(t *testing.T) {
	t.Setenv("POSTGRES_DB", "")
	t.Setenv("DATABASE_URL", "")
	_, err := DSNFromEnv()
	assert.ErrorIs(t, err, ErrNoDSN)

	t.Setenv("DATABASE_URL", "postgres://rs@db/metrics")
	dsn, err := DSNFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "postgres://rs@db/metrics", dsn)

	t.Setenv("POSTGRES_DB", "metrics")
	t.Setenv("POSTGRES_HOST", "pg")
	t.Setenv("POSTGRES_PORT", "")
	t.Setenv("POSTGRES_USER", "rs")
	t.Setenv("POSTGRES_PASSWORD", "pw")
	dsn, err = DSNFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "host=pg port=5432 user=rs password=pw dbname=metrics sslmode=disable", dsn)
}

// Runs against a real database when RSMETRICS_TEST_DATABASE_URL is set
func TestStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("RSMETRICS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("RSMETRICS_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx))

	runID := uuid.NewString()
	records := sampleRecords()
	require.NoError(t, s.SaveRecords(ctx, runID, time.Now().UTC(), records))

	got, err := s.ListRun(ctx, runID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Ordered by index name
	assert.Equal(t, "EVI", got[0].Name)
	assert.Equal(t, "MSI", got[1].Name)
	assert.Equal(t, records[0].Stats, got[1].Stats)
	assert.Equal(t, records[0].Tests, got[1].Tests)
	assert.Equal(t, records[0].Verdict, got[1].Verdict)
	assert.Nil(t, got[0].Tests.Shapiro)

	empty, err := s.ListRun(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, s.SaveRecords(ctx, runID, time.Now(), nil))
}
