package models

// BasicStats is the fixed set of descriptive statistics computed for a
// sample of valid raster values
type BasicStats struct {
	Count        int     `json:"count"`
	Mean         float64 `json:"mean"`
	Median       float64 `json:"median"`
	Std          float64 `json:"std"`
	Var          float64 `json:"var"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Range        float64 `json:"range"`
	Percentile25 float64 `json:"percentile_25"`
	Percentile75 float64 `json:"percentile_75"`
	IQR          float64 `json:"iqr"`
	Skewness     float64 `json:"skewness"`
	Kurtosis     float64 `json:"kurtosis"`
}

// BasicStatsColumns are the column names of BasicStats in table order
var BasicStatsColumns = []string{
	"count", "mean", "median", "std", "var", "min", "max", "range",
	"percentile_25", "percentile_75", "iqr", "skewness", "kurtosis",
}

// Values returns the statistics in BasicStatsColumns order
func (s BasicStats) Values() []float64 {
	return []float64{
		float64(s.Count), s.Mean, s.Median, s.Std, s.Var, s.Min, s.Max, s.Range,
		s.Percentile25, s.Percentile75, s.IQR, s.Skewness, s.Kurtosis,
	}
}

// TestResult is the outcome of a normality test reporting a p-value
type TestResult struct {
	Statistic float64 `json:"statistic"`
	PValue    float64 `json:"p_value"`
}

// AndersonResult is the outcome of the Anderson-Darling test together with
// the critical value at the 5% significance level
type AndersonResult struct {
	Statistic     float64 `json:"statistic"`
	CriticalValue float64 `json:"critical_value"`
}

// NormalityTestResults groups the three normality tests. A nil field means
// the test was not run on the sample.
type NormalityTestResults struct {
	Shapiro   *TestResult     `json:"shapiro,omitempty"`
	DAgostino *TestResult     `json:"dagostino,omitempty"`
	Anderson  *AndersonResult `json:"anderson,omitempty"`
}

// NormalityEvidence is everything the normality interpretation looks at.
// Each check is skipped when its field is nil.
type NormalityEvidence struct {
	Tests    NormalityTestResults
	Skewness *float64
}

// NormalityVerdict is the combined normal/non-normal decision
type NormalityVerdict struct {
	IsNormal bool     `json:"is_normal"`
	Reasons  []string `json:"reasons"`
}

// IndexRecord is the analysis result for one index raster
type IndexRecord struct {
	// Name is the index name extracted from the file name (e.g. "EVI")
	Name string `json:"name"`

	// FileName is the file name without directory and extension
	FileName string `json:"file_name"`

	// Path is the raster path the record was computed from
	Path string `json:"path"`

	Stats   BasicStats           `json:"stats"`
	Tests   NormalityTestResults `json:"tests"`
	Verdict NormalityVerdict     `json:"verdict"`
}

// Evidence builds the interpretation input from the record's statistics
// and test results
func (r *IndexRecord) Evidence() NormalityEvidence {
	skew := r.Stats.Skewness
	return NormalityEvidence{Tests: r.Tests, Skewness: &skew}
}
