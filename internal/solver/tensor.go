// Package solver implements the per-level numerical solve: given a pair
// of images (the first, and the second backward-warped by the current
// flow estimate) it produces a flow increment (du, dv) via successive
// over-relaxation. Two variants are provided: a linear solver with a
// fixed quadratic penalty, and a flow-driven robust solver with
// per-pixel diffusion/data weights recomputed once per outer iteration.
package solver

import "github.com/axruff/gpuflow/internal/image"

// tensor holds the five independent entries of the per-pixel motion
// tensor (J11, J22, J12, J13, J23), built from the central-difference
// image derivatives. Storage is a flat row-major buffer reused across
// pyramid levels by capacity rather than reallocated per level.
type tensor struct {
	capW, capH int
	w, h       int
	j11, j22, j12, j13, j23 []float32
}

func (t *tensor) ensure(w, h int) {
	if w*h > t.capW*t.capH {
		n := w * h
		t.j11 = make([]float32, n)
		t.j22 = make([]float32, n)
		t.j12 = make([]float32, n)
		t.j13 = make([]float32, n)
		t.j23 = make([]float32, n)
		t.capW, t.capH = w, h
	}
	t.w, t.h = w, h
}

func (t *tensor) idx(x, y int) int { return y*t.w + x }

// compute fills the tensor from img1 and the backward-warped img2 at
// grid spacing (hx, hy). Both images must already have their boundary
// halo filled, since the central differences read one pixel past the
// actual region on every side.
func (t *tensor) compute(img1, img2w *image.Image, hx, hy float32) {
	w, h := img1.ActualWidth(), img1.ActualHeight()
	t.ensure(w, h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			fx := ((img1.PixelR(x+1, y) - img1.PixelR(x-1, y)) +
				(img2w.PixelR(x+1, y) - img2w.PixelR(x-1, y))) / (4 * hx)
			fy := ((img1.PixelR(x, y+1) - img1.PixelR(x, y-1)) +
				(img2w.PixelR(x, y+1) - img2w.PixelR(x, y-1))) / (4 * hy)
			ft := img2w.PixelR(x, y) - img1.PixelR(x, y)

			i := t.idx(x, y)
			t.j11[i] = fx * fx
			t.j22[i] = fy * fy
			t.j12[i] = fx * fy
			t.j13[i] = fx * ft
			t.j23[i] = fy * ft
		}
	}
}
