package analysis

import (
	"encoding/json"
	"os"
	"sort"
	"time"
)

// RunManifest describes a statistics run
type RunManifest struct {
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	InputDir  string    `json:"input_directory,omitempty"`
	Indices   []string  `json:"indices"`
	Files     []string  `json:"files_analyzed"`
	Failed    []string  `json:"failed_indices,omitempty"`
	Artifacts []string  `json:"artifacts"`
}

// NewManifest summarizes report together with the artifacts written by the
// analyzer
func (a *Analyzer) NewManifest(report *StatisticsReport, inputDir string) *RunManifest {
	m := &RunManifest{
		RunID:     report.RunID,
		Timestamp: report.Timestamp,
		InputDir:  inputDir,
		Indices:   []string{},
		Files:     []string{},
		Artifacts: a.Artifacts(),
	}
	for _, r := range report.Records {
		m.Indices = append(m.Indices, r.Name)
		m.Files = append(m.Files, r.Path)
	}
	for name := range report.Failed {
		m.Failed = append(m.Failed, name)
	}
	sort.Strings(m.Failed)
	return m
}

// SaveManifest writes m as <prefix>_metadata.json in the output directory
// and returns its path. Without an output directory nothing is written.
func (a *Analyzer) SaveManifest(m *RunManifest, prefix string) (string, error) {
	if a.params.OutputDir == "" {
		return "", nil
	}

	path := a.outputPath(prefix + manifestSuffix)
	var werr error
	a.sink(sinkManifest, path, func(path string) error {
		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			werr = err
			return err
		}
		werr = os.WriteFile(path, data, 0644)
		return werr
	})
	if werr != nil {
		return "", werr
	}
	return path, nil
}
