// Package visualization renders distribution plots and raster quicklooks
// for index analyses.
package visualization

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"rsmetrics/internal/models"
)

// ErrDegenerateData is returned when a sample has too few distinct values
// to draw a distribution
var ErrDegenerateData = errors.New("not enough distinct values to plot")

const (
	// maxQQPoints caps the number of points drawn in a Q-Q plot
	maxQQPoints = 1000

	// maxKDEPoints caps the number of values the density estimate sums over
	maxKDEPoints = 2000

	// kdeGridSize is the number of points the density curve is evaluated at
	kdeGridSize = 200
)

var (
	meanColor   = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	medianColor = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	curveColor  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
)

// FormatTitle turns a raster path into a plot title: the file stem with
// underscores replaced by spaces, each word capitalized, followed by
// "Distribution". "rs_metrics_finland_20240401_EVI.tif" becomes
// "Rs Metrics Finland 20240401 Evi Distribution".
func FormatTitle(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	words := strings.Fields(strings.ReplaceAll(stem, "_", " "))
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(append(words, "Distribution"), " ")
}

// DistributionPlots builds a 2x2 grid describing one sample: a histogram
// with mean and median markers, a normal Q-Q plot, a box plot and a
// kernel density estimate.
func DistributionPlots(values []float64, name string, s models.BasicStats) ([][]*plot.Plot, error) {
	if err := checkPlottable(values); err != nil {
		return nil, err
	}

	hist, err := histogramPlot(values, name+" - Histogram", s)
	if err != nil {
		return nil, err
	}
	qq, err := qqPlot(values, name+" - Q-Q Plot")
	if err != nil {
		return nil, err
	}
	box, err := boxPlot(values, name+" - Box Plot")
	if err != nil {
		return nil, err
	}
	kde, err := densityPlot(values, name+" - Density Distribution")
	if err != nil {
		return nil, err
	}

	return [][]*plot.Plot{
		{hist, qq},
		{box, kde},
	}, nil
}

// ComparisonPlots builds one row per index, sorted by index name, holding
// the index histogram with mean and median markers and its Q-Q plot. An
// index with constant values gets a marked-value row instead.
func ComparisonPlots(data map[string][]float64, stats map[string]models.BasicStats) ([][]*plot.Plot, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("no indices to compare")
	}

	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	grid := make([][]*plot.Plot, 0, len(names))
	for _, name := range names {
		values := data[name]
		if checkPlottable(values) != nil {
			row, err := constantRow(values, name)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			grid = append(grid, row)
			continue
		}

		hist, err := histogramPlot(values, name+" - Distribution", stats[name])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		qq, err := qqPlot(values, name+" - Q-Q Plot")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		grid = append(grid, []*plot.Plot{hist, qq})
	}

	return grid, nil
}

// SavePlotGrid draws a grid of plots on one canvas and saves it as a PNG
// image. All rows must have the same number of columns.
func SavePlotGrid(grid [][]*plot.Plot, width, height vg.Length, filename string) error {
	if len(grid) == 0 || len(grid[0]) == 0 {
		return fmt.Errorf("empty plot grid")
	}

	img := vgimg.New(width, height)
	dc := draw.New(img)

	tiles := draw.Tiles{
		Rows:      len(grid),
		Cols:      len(grid[0]),
		PadX:      vg.Millimeter * 4,
		PadY:      vg.Millimeter * 4,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}

	canvases := plot.Align(grid, tiles, dc)
	for j := range grid {
		for i, p := range grid[j] {
			if p != nil {
				p.Draw(canvases[j][i])
			}
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// constantRow stands in for an index whose values cannot be binned: the
// distribution panel marks the single value and the Q-Q panel stays empty
func constantRow(values []float64, name string) ([]*plot.Plot, error) {
	hist := plot.New()
	qq := plot.New()
	qq.Title.Text = name + " - Q-Q Plot (not applicable)"

	if len(values) == 0 {
		hist.Title.Text = name + " - Distribution (no valid values)"
		return []*plot.Plot{hist, qq}, nil
	}

	hist.Title.Text = name + " - Distribution (constant)"
	hist.X.Label.Text = "Value"
	hist.Y.Label.Text = "Frequency"
	line, err := verticalLine(values[0], float64(len(values)), meanColor)
	if err != nil {
		return nil, err
	}
	line.LineStyle.Dashes = nil
	hist.Add(line)
	hist.Legend.Add(fmt.Sprintf("Value: %.3f (n=%d)", values[0], len(values)), line)
	return []*plot.Plot{hist, qq}, nil
}

func checkPlottable(values []float64) error {
	if len(values) < 2 {
		return ErrDegenerateData
	}
	for _, v := range values[1:] {
		if v != values[0] {
			return nil
		}
	}
	return ErrDegenerateData
}

func histogramPlot(values []float64, title string, s models.BasicStats) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Value"
	p.Y.Label.Text = "Frequency"

	h, err := plotter.NewHist(plotter.Values(values), histogramBins(len(values)))
	if err != nil {
		return nil, err
	}
	p.Add(h)

	var top float64
	for _, b := range h.Bins {
		top = math.Max(top, b.Weight)
	}

	mean, err := verticalLine(s.Mean, top, meanColor)
	if err != nil {
		return nil, err
	}
	median, err := verticalLine(s.Median, top, medianColor)
	if err != nil {
		return nil, err
	}
	p.Add(mean, median)
	p.Legend.Add(fmt.Sprintf("Mean: %.3f", s.Mean), mean)
	p.Legend.Add(fmt.Sprintf("Median: %.3f", s.Median), median)
	p.Legend.Top = true

	return p, nil
}

// histogramBins follows Sturges' rule, bounded to keep plots readable
func histogramBins(n int) int {
	bins := int(math.Ceil(math.Log2(float64(n)))) + 1
	return max(10, min(bins, 100))
}

func verticalLine(x, top float64, c color.Color) (*plotter.Line, error) {
	l, err := plotter.NewLine(plotter.XYs{{X: x, Y: 0}, {X: x, Y: top}})
	if err != nil {
		return nil, err
	}
	l.LineStyle.Color = c
	l.LineStyle.Width = vg.Points(1.5)
	l.LineStyle.Dashes = []vg.Length{vg.Points(5), vg.Points(3)}
	return l, nil
}

// qqPlot plots ordered values against normal quantiles at Filliben's
// plotting positions, with the least-squares reference line
func qqPlot(values []float64, title string) (*plot.Plot, error) {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	step := max(1, n/maxQQPoints)

	var pts plotter.XYs
	for i := 0; i < n; i += step {
		pts = append(pts, plotter.XY{
			X: distuv.UnitNormal.Quantile(fillibenPosition(i, n)),
			Y: sorted[i],
		})
	}

	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, pt := range pts {
		xs[i], ys[i] = pt.X, pt.Y
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Theoretical quantiles"
	p.Y.Label.Text = "Ordered values"

	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}
	sc.GlyphStyle.Color = curveColor
	sc.GlyphStyle.Radius = vg.Points(1.5)

	fit := plotter.NewFunction(func(x float64) float64 { return alpha + beta*x })
	fit.Color = meanColor
	fit.Width = vg.Points(1)

	p.Add(sc, fit)
	return p, nil
}

// fillibenPosition is the median of the i-th (0-based) uniform order
// statistic among n
func fillibenPosition(i, n int) float64 {
	last := math.Pow(0.5, 1/float64(n))
	switch i {
	case 0:
		return 1 - last
	case n - 1:
		return last
	}
	return (float64(i+1) - 0.3175) / (float64(n) + 0.365)
}

func boxPlot(values []float64, title string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "Value"

	b, err := plotter.NewBoxPlot(vg.Points(40), 0, plotter.Values(values))
	if err != nil {
		return nil, err
	}
	b.FillColor = curveColor
	p.Add(b)
	p.HideX()

	return p, nil
}

// densityPlot draws a Gaussian kernel density estimate with Scott's
// bandwidth
func densityPlot(values []float64, title string) (*plot.Plot, error) {
	sample := thin(values, maxKDEPoints)
	sd := stat.StdDev(sample, nil)
	bw := sd * math.Pow(float64(len(sample)), -0.2)
	if bw == 0 || math.IsNaN(bw) {
		return nil, ErrDegenerateData
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	lo -= 3 * bw
	hi += 3 * bw

	kernel := distuv.Normal{Mu: 0, Sigma: bw}
	pts := make(plotter.XYs, kdeGridSize)
	for i := range pts {
		x := lo + (hi-lo)*float64(i)/float64(kdeGridSize-1)
		var d float64
		for _, v := range sample {
			d += kernel.Prob(x - v)
		}
		pts[i] = plotter.XY{X: x, Y: d / float64(len(sample))}
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Value"
	p.Y.Label.Text = "Density"

	l, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	l.LineStyle.Color = curveColor
	l.LineStyle.Width = vg.Points(1.5)
	p.Add(l)

	return p, nil
}

// thin returns at most limit values taken at an even stride
func thin(values []float64, limit int) []float64 {
	if len(values) <= limit {
		return values
	}
	step := float64(len(values)) / float64(limit)
	out := make([]float64, limit)
	for i := range out {
		out[i] = values[int(float64(i)*step)]
	}
	return out
}
