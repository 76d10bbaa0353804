package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"rsmetrics/internal/models"
	"rsmetrics/pkg/raster"
	"rsmetrics/pkg/visualization"
)

func newInspectCmd(a *app) *cobra.Command {
	var row, col int
	var window string

	cmd := &cobra.Command{
		Use:   "inspect <raster>",
		Short: "Print a raster's metadata and the values of a row, a column or a window",
		Long: `Print a raster's metadata and, optionally, the pixel values along a row,
a column or inside a window given as x,y,width,height. Nodata pixels print as NaN.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := raster.NewReader().ReadBand(args[0])
			if err != nil {
				return err
			}
			printMetadata(a.out, args[0], r)

			viewer := visualization.NewViewer(r)
			f := cmd.Flags()
			switch {
			case f.Changed("row"):
				values, err := viewer.ExtractProfile("row", row)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "\nRow %d:\n", row)
				printValues(a.out, values, len(values))

			case f.Changed("col"):
				values, err := viewer.ExtractProfile("col", col)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "\nColumn %d:\n", col)
				printValues(a.out, values, 1)

			case f.Changed("window"):
				x, y, w, h, err := parseWindow(window)
				if err != nil {
					return err
				}
				values, err := viewer.ExtractWindow(x, y, w, h)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "\nWindow %dx%d at (%d, %d):\n", w, h, x, y)
				printValues(a.out, values, w)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&row, "row", 0, "print the values of this row")
	cmd.Flags().IntVar(&col, "col", 0, "print the values of this column")
	cmd.Flags().StringVar(&window, "window", "", "print the values inside x,y,width,height")
	cmd.MarkFlagsMutuallyExclusive("row", "col", "window")
	return cmd
}

func printMetadata(out io.Writer, path string, r *models.Raster) {
	m := r.Metadata
	fmt.Fprintf(out, "File: %s\n", path)
	fmt.Fprintf(out, "Driver: %s\n", m.Driver)
	fmt.Fprintf(out, "Size: %d x %d, %d band(s), %s\n", m.Width, m.Height, m.BandCount, m.DataType)
	if r.NoData != nil {
		fmt.Fprintf(out, "NoData: %g\n", *r.NoData)
	} else {
		fmt.Fprintln(out, "NoData: none")
	}
	if m.HasGeoTransform {
		gt := m.GeoTransform
		fmt.Fprintf(out, "Origin: (%g, %g), pixel size: (%g, %g)\n", gt[0], gt[3], gt[1], gt[5])
	}
	fmt.Fprintf(out, "Valid pixels: %d of %d\n", len(r.ValidValues()), len(r.Pixels))
}

// printValues prints values perLine to a line
func printValues(out io.Writer, values []float64, perLine int) {
	cells := make([]string, 0, perLine)
	for i, v := range values {
		cells = append(cells, strconv.FormatFloat(v, 'f', 4, 64))
		if len(cells) == perLine || i == len(values)-1 {
			fmt.Fprintln(out, strings.Join(cells, " "))
			cells = cells[:0]
		}
	}
}

// parseWindow parses "x,y,width,height"
func parseWindow(s string) (x, y, w, h int, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return 0, 0, 0, 0, fmt.Errorf("invalid window %q (want x,y,width,height)", s)
	}
	nums := make([]int, 4)
	for i, p := range parts {
		nums[i], err = strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, 0, 0, 0, fmt.Errorf("invalid window %q: %w", s, err)
		}
	}
	return nums[0], nums[1], nums[2], nums[3], nil
}
