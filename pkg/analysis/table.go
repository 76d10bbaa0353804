package analysis

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/xuri/excelize/v2"

	"rsmetrics/internal/models"
)

const comparisonSheet = "Comparison"

// ComparisonRow holds the statistics of one index
type ComparisonRow struct {
	Index string
	Stats models.BasicStats
}

// ComparisonTable holds one row per index and one column per statistic.
// Rows are sorted by index name.
type ComparisonTable struct {
	Columns []string
	Rows    []ComparisonRow
}

func newComparisonTable() *ComparisonTable {
	return &ComparisonTable{
		Columns: models.BasicStatsColumns,
		Rows:    []ComparisonRow{},
	}
}

// Len returns the number of rows
func (t *ComparisonTable) Len() int {
	return len(t.Rows)
}

// Row returns the row of the named index
func (t *ComparisonTable) Row(index string) (ComparisonRow, bool) {
	for _, r := range t.Rows {
		if r.Index == index {
			return r, true
		}
	}
	return ComparisonRow{}, false
}

// Stats returns the statistics keyed by index name
func (t *ComparisonTable) Stats() map[string]models.BasicStats {
	out := make(map[string]models.BasicStats, len(t.Rows))
	for _, r := range t.Rows {
		out[r.Index] = r.Stats
	}
	return out
}

func (t *ComparisonTable) header() []string {
	return append([]string{"index"}, t.Columns...)
}

// WriteCSV writes the table with a header row. The first column holds the
// index name.
func (t *ComparisonTable) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.header()); err != nil {
		return err
	}
	for _, r := range t.Rows {
		record := []string{r.Index}
		for _, v := range r.Stats.Values() {
			record = append(record, formatFloat(v))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the table to a CSV file
func (t *ComparisonTable) SaveCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := t.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// SaveXLSX writes the table to a single-sheet spreadsheet
func (t *ComparisonTable) SaveXLSX(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(comparisonSheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	for i, h := range t.header() {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(comparisonSheet, cell, h); err != nil {
			return err
		}
	}

	for r, row := range t.Rows {
		rowIdx := r + 2
		cell, _ := excelize.CoordinatesToCellName(1, rowIdx)
		if err := f.SetCellValue(comparisonSheet, cell, row.Index); err != nil {
			return err
		}
		for c, v := range row.Stats.Values() {
			cell, _ := excelize.CoordinatesToCellName(c+2, rowIdx)
			if err := f.SetCellValue(comparisonSheet, cell, v); err != nil {
				return err
			}
		}
	}

	return f.SaveAs(path)
}

// String renders the table as aligned text
func (t *ComparisonTable) String() string {
	if len(t.Rows) == 0 {
		return "(no indices)\n"
	}

	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, strings.Join(t.header(), "\t")+"\t")
	for _, r := range t.Rows {
		cells := []string{r.Index}
		for i, v := range r.Stats.Values() {
			if i == 0 {
				cells = append(cells, strconv.Itoa(r.Stats.Count))
				continue
			}
			cells = append(cells, strconv.FormatFloat(v, 'f', 4, 64))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}
	tw.Flush()
	return sb.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
