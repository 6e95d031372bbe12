// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runstat

import (
	"fmt"
	"image/color"
	"math"

	"github.com/aclements/go-moremath/stats"
	"github.com/google/renameio/v2"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const (
	chartWidth  = 30 * vg.Centimeter
	chartHeight = 12 * vg.Centimeter
	chartDPI    = 150
)

// RenderChart writes the comparison's speedup curve as a PNG at path.
// Queries are plotted in ascending speedup order, which turns the
// distribution into an S-curve: the crossing of the dashed reference
// line at 1.0 splits regressions from improvements at a glance. The
// file is replaced atomically.
func (cmp *Comparison) RenderChart(path string) error {
	pts := make(plotter.XYs, len(cmp.Rows))
	var finite []float64
	for i, r := range cmp.Rows {
		s := r.Speedup()
		pts[i].X = float64(i + 1)
		pts[i].Y = s
		if !math.IsNaN(s) && !math.IsInf(s, 0) {
			finite = append(finite, s)
		}
	}
	sample := stats.Sample{Xs: finite}

	pl := plot.New()
	pl.Title.Text = fmt.Sprintf("%s vs %s: total time speedup (mean %.2f, median %.2f)",
		cmp.Baseline, cmp.Other, sample.Mean(), sample.Quantile(0.5))
	pl.X.Label.Text = "queries, ascending by speedup"
	pl.Y.Label.Text = fmt.Sprintf("%s total time / %s total time", cmp.Baseline, cmp.Other)

	grid := plotter.NewGrid()
	grid.Vertical.Color = nil
	pl.Add(grid)

	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return err
	}
	points.GlyphStyle.Shape = draw.CircleGlyph{}
	points.GlyphStyle.Radius = vg.Points(2)
	pl.Add(line, points)

	n := len(cmp.Rows)
	if n < 1 {
		n = 1
	}
	ref, err := plotter.NewLine(plotter.XYs{{X: 1, Y: 1}, {X: float64(n), Y: 1}})
	if err != nil {
		return err
	}
	ref.LineStyle.Color = color.Gray{Y: 0xaa}
	ref.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	pl.Add(ref)

	// Force the unit ratio onto the graph so the reference line is
	// always in frame.
	if pl.Y.Min > 1 {
		pl.Y.Min = 1
	}
	if pl.Y.Max < 1 {
		pl.Y.Max = 1
	}

	can := vgimg.PngCanvas{Canvas: vgimg.NewWith(
		vgimg.UseWH(chartWidth, chartHeight),
		vgimg.UseDPI(chartDPI),
		vgimg.UseBackgroundColor(color.White),
	)}
	pl.Draw(draw.New(can))

	pf, err := renameio.NewPendingFile(path, renameio.WithStaticPermissions(0o644))
	if err != nil {
		return err
	}
	defer pf.Cleanup()
	if _, err := can.WriteTo(pf); err != nil {
		return err
	}
	return pf.CloseAtomicallyReplace()
}
