// Package metric computes accuracy statistics for a flow estimate
// against ground truth, independent of any file format.
package metric

import (
	"math"

	"github.com/axruff/gpuflow/internal/image"
)

// EndpointError summarises the Euclidean distance between an estimated
// flow field and ground truth, evaluated over ground-truth pixels whose
// value is finite and reasonable (ground truth commonly marks unknown
// flow with +/-Inf, NaN, or a large finite sentinel magnitude, all of
// which are excluded from every statistic).
type EndpointError struct {
	Mean  float64
	Max   float64
	Sum   float64
	Count int
}

// Compute evaluates EndpointError between (u, v) and (gtU, gtV), which
// must share the same actual size.
func Compute(u, v, gtU, gtV *image.Image) EndpointError {
	w, h := u.ActualWidth(), u.ActualHeight()
	var e EndpointError
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			guX, guY := float64(gtU.PixelR(x, y)), float64(gtV.PixelR(x, y))
			if !isFinite(guX) || !isFinite(guY) {
				continue
			}
			dx := float64(u.PixelR(x, y)) - guX
			dy := float64(v.PixelR(x, y)) - guY
			d := math.Hypot(dx, dy)
			e.Sum += d
			e.Count++
			if d > e.Max {
				e.Max = d
			}
		}
	}
	if e.Count > 0 {
		e.Mean = e.Sum / float64(e.Count)
	}
	return e
}

// maxValidFlow bounds ground-truth magnitude: real .flo files sometimes
// mark unknown flow with a large finite sentinel (e.g. 1e9) rather than
// actual Infinity.
const maxValidFlow = 1e6

func isFinite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v) && math.Abs(v) <= maxValidFlow
}
