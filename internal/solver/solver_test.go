package solver

import (
	"math"
	"testing"

	"github.com/axruff/gpuflow/internal/image"
)

// syntheticPair builds a smooth greyscale pattern and its copy shifted by
// (dx, dy) whole pixels, so there's no interpolation error to confound a
// direct check of the solver's recovered flow.
func syntheticPair(n, dx, dy int) (img1, img2 *image.Image) {
	img1 = image.New(n, n, 1, 1)
	img2 = image.New(n, n, 1, 1)
	val := func(x, y int) float32 {
		return float32(math.Sin(float64(x)*0.3) + math.Cos(float64(y)*0.25))
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
	img1.FillBoundaries()
	img2.FillBoundaries()
	return img1, img2
}

// syntheticPairWH is syntheticPair generalized to independent width and
// height, used to exercise solvers with anisotropic grid spacing
// (hx != hy), which a square image can never produce.
func syntheticPairWH(w, h, dx, dy int) (img1, img2 *image.Image) {
	img1 = image.New(w, h, 1, 1)
	img2 = image.New(w, h, 1, 1)
	val := func(x, y int) float32 {
		return float32(math.Sin(float64(x)*0.3) + math.Cos(float64(y)*0.25))
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img1.SetPixelR(x, y, val(x, y))
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img2.SetPixelR(x, y, val(x-dx, y-dy))
		}
	}
	img1.FillBoundaries()
	img2.FillBoundaries()
	return img1, img2
}

// TestLinearSolverRecoversTranslationNonSquareGrid uses a non-square
// image with hx != hy, the combination that exposes H_x = alpha/hx^2 and
// H_y = alpha/hy^2 being collapsed into a single flat weight: a flat
// weight biases the data/smoothness balance on whichever axis has the
// larger spacing, which a square, hx == hy test can never surface.
func TestLinearSolverRecoversTranslationNonSquareGrid(t *testing.T) {
	w, h := 32, 20
	dx, dy := 2, -1
	hx, hy := float32(1), float32(1.6)
	img1, img2 := syntheticPairWH(w, h, dx, dy)

	u := image.New(w, h, 1, 1)
	v := image.New(w, h, 1, 1)
	warped := image.New(w, h, 1, 1)
	image.BackwardRegister(img1, img2, warped, u, v, hx, hy)
	warped.FillBoundaries()

	s := NewLinear(8, 1.9, w, h)
	s.Precompute(img1, warped, u, v, hx, hy)
	for i := 0; i < 200; i++ {
		s.Sweep()
	}

	du, dv := s.Du(), s.Dv()
	for y := 4; y < h-4; y++ {
		for x := 4; x < w-4; x++ {
			if diff := du.PixelR(x, y) - float32(dx); diff > 0.5 || diff < -0.5 {
				t.Fatalf("du(%d,%d) = %v, want near %d", x, y, du.PixelR(x, y), dx)
			}
			if diff := dv.PixelR(x, y) - float32(dy); diff > 0.5 || diff < -0.5 {
				t.Fatalf("dv(%d,%d) = %v, want near %d", x, y, dv.PixelR(x, y), dy)
			}
		}
	}
}

// TestRobustSolverRecoversTranslationNonSquareGrid is the robust-solver
// counterpart to TestLinearSolverRecoversTranslationNonSquareGrid,
// exercising the harmonic-mean psi weighting under hx != hy.
func TestRobustSolverRecoversTranslationNonSquareGrid(t *testing.T) {
	w, h := 32, 20
	dx, dy := 1, 2
	hx, hy := float32(1), float32(1.6)
	img1, img2 := syntheticPairWH(w, h, dx, dy)

	u := image.New(w, h, 1, 1)
	v := image.New(w, h, 1, 1)
	warped := image.New(w, h, 1, 1)
	image.BackwardRegister(img1, img2, warped, u, v, hx, hy)
	warped.FillBoundaries()

	s := NewRobust(8, 1.9, 0.001, 0.001, 10, w, h)
	s.Precompute(img1, warped, u, v, hx, hy)
	for i := 0; i < 30; i++ {
		s.Sweep()
	}

	du, dv := s.Du(), s.Dv()
	for y := 4; y < h-4; y++ {
		for x := 4; x < w-4; x++ {
			if diff := du.PixelR(x, y) - float32(dx); diff > 0.5 || diff < -0.5 {
				t.Fatalf("du(%d,%d) = %v, want near %d", x, y, du.PixelR(x, y), dx)
			}
			if diff := dv.PixelR(x, y) - float32(dy); diff > 0.5 || diff < -0.5 {
				t.Fatalf("dv(%d,%d) = %v, want near %d", x, y, dv.PixelR(x, y), dy)
			}
		}
	}
}

func TestLinearSolverRecoversTranslation(t *testing.T) {
	n := 24
	dx, dy := 2, -1
	img1, img2 := syntheticPair(n, dx, dy)

	u := image.New(n, n, 1, 1)
	v := image.New(n, n, 1, 1)
	warped := image.New(n, n, 1, 1)

	// No flow yet: warp is identity, so img2Warped == img2.
	image.BackwardRegister(img1, img2, warped, u, v, 1, 1)
	warped.FillBoundaries()

	s := NewLinear(8, 1.9, n, n)
	s.Precompute(img1, warped, u, v, 1, 1)
	for i := 0; i < 200; i++ {
		s.Sweep()
	}

	du, dv := s.Du(), s.Dv()
	for y := 4; y < n-4; y++ {
		for x := 4; x < n-4; x++ {
			if diff := du.PixelR(x, y) - float32(dx); diff > 0.5 || diff < -0.5 {
				t.Fatalf("du(%d,%d) = %v, want near %d", x, y, du.PixelR(x, y), dx)
			}
			if diff := dv.PixelR(x, y) - float32(dy); diff > 0.5 || diff < -0.5 {
				t.Fatalf("dv(%d,%d) = %v, want near %d", x, y, dv.PixelR(x, y), dy)
			}
		}
	}
}

func TestRobustSolverRecoversTranslation(t *testing.T) {
	n := 24
	dx, dy := 1, 2
	img1, img2 := syntheticPair(n, dx, dy)

	u := image.New(n, n, 1, 1)
	v := image.New(n, n, 1, 1)
	warped := image.New(n, n, 1, 1)
	image.BackwardRegister(img1, img2, warped, u, v, 1, 1)
	warped.FillBoundaries()

	s := NewRobust(8, 1.9, 0.001, 0.001, 10, n, n)
	s.Precompute(img1, warped, u, v, 1, 1)
	for i := 0; i < 30; i++ {
		s.Sweep()
	}

	du, dv := s.Du(), s.Dv()
	for y := 4; y < n-4; y++ {
		for x := 4; x < n-4; x++ {
			if diff := du.PixelR(x, y) - float32(dx); diff > 0.5 || diff < -0.5 {
				t.Fatalf("du(%d,%d) = %v, want near %d", x, y, du.PixelR(x, y), dx)
			}
			if diff := dv.PixelR(x, y) - float32(dy); diff > 0.5 || diff < -0.5 {
				t.Fatalf("dv(%d,%d) = %v, want near %d", x, y, dv.PixelR(x, y), dy)
			}
		}
	}
}

func TestSolverInterfaceSatisfiedByBothVariants(t *testing.T) {
	var _ Solver = NewLinear(4, 1, 8, 8)
	var _ Solver = NewRobust(4, 1, 0.001, 0.001, 5, 8, 8)
}
