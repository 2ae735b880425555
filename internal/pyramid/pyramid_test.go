package pyramid

import (
	"math"
	"testing"

	"github.com/axruff/gpuflow/internal/image"
	"github.com/axruff/gpuflow/internal/metric"
	"github.com/axruff/gpuflow/internal/solver"
)

func translatedPair(n, dx, dy int) (img1, img2 *image.Image) {
	img1 = image.New(n, n, 1, 1)
	img2 = image.New(n, n, 1, 1)
	val := func(x, y int) float32 {
		return float32(128 + 64*math.Sin(float64(x)*0.4) + 32*math.Cos(float64(y)*0.3))
	}
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			img1.SetPixelR(x, y, val(x, y))
		}
	}
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			img2.SetPixelR(x, y, val(x-dx, y-dy))
		}
	}
	return img1, img2
}

func TestDriverRecoversWholeImageTranslation(t *testing.T) {
	n := 32
	dx, dy := 3, -2
	img1, img2 := translatedPair(n, dx, dy)

	d := NewDriver(n, n)
	s := solver.NewLinear(8, 1.9, n, n)
	u, v := d.Run(img1, img2, 5, 0.9, 20, s)

	if u.ActualWidth() != n || u.ActualHeight() != n {
		t.Fatalf("result shape = (%d,%d), want (%d,%d)", u.ActualWidth(), u.ActualHeight(), n, n)
	}

	var sumU, sumV float32
	count := 0
	for y := 8; y < n-8; y++ {
		for x := 8; x < n-8; x++ {
			sumU += u.PixelR(x, y)
			sumV += v.PixelR(x, y)
			count++
		}
	}
	meanU, meanV := sumU/float32(count), sumV/float32(count)
	if diff := meanU - float32(dx); diff > 1 || diff < -1 {
		t.Errorf("mean du = %v, want near %d", meanU, dx)
	}
	if diff := meanV - float32(dy); diff > 1 || diff < -1 {
		t.Errorf("mean dv = %v, want near %d", meanV, dy)
	}
}

// TestDriverEndpointErrorRegression pins the reference parameter set
// (alpha=4, omega=1, warp_scale=0.9, iterations=30, warp_levels=15)
// against a synthetic translated pair with a known ground-truth flow,
// guarding against a regression that silently worsens accuracy. The
// teacher pack ships no rub1/rub2 fixture, so this substitutes a
// generated pair of the same kind spec.md's scenario S1 describes.
func TestDriverEndpointErrorRegression(t *testing.T) {
	const n = 48
	dx, dy := 2, 1
	img1, img2 := translatedPair(n, dx, dy)

	gtU := image.New(n, n, 0, 0)
	gtV := image.New(n, n, 0, 0)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			gtU.SetPixelR(x, y, float32(dx))
			gtV.SetPixelR(x, y, float32(dy))
		}
	}

	d := NewDriver(n, n)
	s := solver.NewLinear(4, 1, n, n)
	u, v := d.Run(img1, img2, 15, 0.9, 30, s)

	e := metric.Compute(u, v, gtU, gtV)
	const meanThreshold, maxThreshold = 0.75, 3.0
	if e.Mean > meanThreshold {
		t.Errorf("mean endpoint error = %v, regression threshold %v", e.Mean, meanThreshold)
	}
	if e.Max > maxThreshold {
		t.Errorf("max endpoint error = %v, regression threshold %v", e.Max, maxThreshold)
	}
}
