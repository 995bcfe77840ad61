package viz

import (
	"fmt"
	"math"

	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	plotWidth  = 70
	plotHeight = 15
)

// PlotFieldProfile plots |B| and each component of a field sampled along a
// line, against the distance along the line.
func PlotFieldProfile(values []r3.Vec, length float64, caption string) string {
	if len(values) == 0 {
		return ""
	}
	series := make([][]float64, 4)
	for i := range series {
		series[i] = make([]float64, len(values))
	}
	for i, b := range values {
		series[0][i] = r3.Norm(b)
		series[1][i] = b.X
		series[2][i] = b.Y
		series[3][i] = b.Z
	}
	return asciigraph.PlotMany(series,
		asciigraph.Height(plotHeight),
		asciigraph.Width(plotWidth),
		asciigraph.SeriesColors(asciigraph.White, asciigraph.Red, asciigraph.Green, asciigraph.Blue),
		asciigraph.SeriesLegends("|B|", "Bx", "By", "Bz"),
		asciigraph.Caption(fmt.Sprintf("%s [T] over %.4g cm", caption, length)))
}

// PlotSeries plots one quantity, dropping non-finite values.
func PlotSeries(values []float64, caption string) string {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return ""
	}
	return asciigraph.Plot(finite,
		asciigraph.Height(plotHeight),
		asciigraph.Width(plotWidth),
		asciigraph.Caption(caption))
}
