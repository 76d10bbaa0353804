package analysis

import (
	"fmt"
	"sort"

	"gonum.org/v1/plot/vg"

	"rsmetrics/pkg/statistics"
	"rsmetrics/pkg/visualization"
)

// comparisonRowHeight is the height of one index row in the comparison figure
const comparisonRowHeight = 9 * vg.Centimeter

// CompareIndices computes the basic statistics of each raster in paths,
// keyed by index name, and returns them as a table with one row per index
// sorted by name. No normality tests are run.
//
// An empty map yields an empty table. Read and empty-sample errors abort
// the comparison. With an output directory configured the comparison
// figure and the CSV and XLSX tables are written; their failures are
// logged only.
func (a *Analyzer) CompareIndices(paths map[string]string) (*ComparisonTable, error) {
	names := make([]string, 0, len(paths))
	for name := range paths {
		names = append(names, name)
	}
	sort.Strings(names)

	keepData := a.params.OutputDir != "" && a.params.SavePlots
	data := make(map[string][]float64)

	table := newComparisonTable()
	for _, name := range names {
		fmt.Fprintf(a.out, "\nAnalyzing %s...\n", name)

		values, _, _, err := a.calc.LoadRasterData(paths[name])
		if err != nil {
			return nil, fmt.Errorf("compare %s: %w", name, err)
		}

		stats, err := statistics.CalculateBasicStats(values)
		if err != nil {
			return nil, fmt.Errorf("compare %s: %w", name, err)
		}

		table.Rows = append(table.Rows, ComparisonRow{Index: name, Stats: stats})
		if keepData {
			data[name] = values
		}
	}

	if a.params.OutputDir != "" {
		a.writeComparisonArtifacts(table, data)
	}

	a.printComparisonResults(table)

	return table, nil
}

func (a *Analyzer) writeComparisonArtifacts(table *ComparisonTable, data map[string][]float64) {
	if a.params.SavePlots && table.Len() > 0 {
		a.sink(sinkPlot, a.outputPath(comparisonPlotFile), func(path string) error {
			grid, err := visualization.ComparisonPlots(data, table.Stats())
			if err != nil {
				return err
			}
			height := comparisonRowHeight * vg.Length(len(grid))
			return visualization.SavePlotGrid(grid, 30*vg.Centimeter, height, path)
		})
	}

	a.sink(sinkCSV, a.outputPath(comparisonCSVFile), table.SaveCSV)

	if a.params.SaveXLSX {
		a.sink(sinkXLSX, a.outputPath(comparisonXLSXFile), table.SaveXLSX)
	}
}
