package pyramid

import (
	"github.com/axruff/gpuflow/internal/image"
	"github.com/axruff/gpuflow/internal/solver"
)

// scratch holds every buffer the driver needs for one run, sized once at
// full resolution and reused level to level by shrinking actual size.
type scratch struct {
	img1Res, img2Res, img2Warped *image.Image
	uRes, vRes                   *image.Image
	tmp                          *image.Image
}

func newScratch(w, h int) *scratch {
	return &scratch{
		img1Res:    image.New(w, h, 1, 1),
		img2Res:    image.New(w, h, 1, 1),
		img2Warped: image.New(w, h, 1, 1),
		uRes:       image.New(w, h, 1, 1),
		vRes:       image.New(w, h, 1, 1),
		tmp:        image.New(w, h, 1, 1),
	}
}

// Driver runs the coarse-to-fine warping loop against one solver
// implementation, reusing its scratch buffers across runs of the same or
// smaller resolution.
type Driver struct {
	s *scratch
	w, h int
}

// NewDriver allocates a Driver whose scratch buffers have capacity for
// images up to (maxW, maxH).
func NewDriver(maxW, maxH int) *Driver {
	return &Driver{s: newScratch(maxW, maxH), w: maxW, h: maxH}
}

// Run estimates the flow field between img1 and img2 (both at full
// resolution) via at most warpLevels pyramid levels (see Levels) scaled by warpScale, taking
// iterations solver.Sweep calls per level. It returns the accumulated
// flow field (u, v) at full resolution.
func (d *Driver) Run(img1, img2 *image.Image, warpLevels int, warpScale float32, iterations int, s solver.Solver) (u, v *image.Image) {
	fullW, fullH := img1.ActualWidth(), img1.ActualHeight()
	levels := Levels(fullW, fullH, warpLevels, warpScale)

	u = image.New(d.w, d.h, 1, 1)
	v = image.New(d.w, d.h, 1, 1)

	for i, lv := range levels {
		image.Resample(img1, d.s.img1Res, d.s.tmp, lv.Width, lv.Height)
		image.Resample(img2, d.s.img2Res, d.s.tmp, lv.Width, lv.Height)
		d.s.img1Res.FillBoundaries()
		d.s.img2Res.FillBoundaries()

		if i == 0 {
			// Coarsest level: no previous estimate to resample from.
			u.SetActualSize(lv.Width, lv.Height)
			v.SetActualSize(lv.Width, lv.Height)
			u.Zero()
			v.Zero()
		} else {
			image.Resample(u, d.s.uRes, d.s.tmp, lv.Width, lv.Height)
			image.Resample(v, d.s.vRes, d.s.tmp, lv.Width, lv.Height)
			u.CopyFrom(d.s.uRes)
			v.CopyFrom(d.s.vRes)
		}

		image.BackwardRegister(d.s.img1Res, d.s.img2Res, d.s.img2Warped, u, v, lv.Hx, lv.Hy)
		d.s.img2Warped.FillBoundaries()

		s.Precompute(d.s.img1Res, d.s.img2Warped, u, v, lv.Hx, lv.Hy)
		for k := 0; k < iterations; k++ {
			s.Sweep()
		}
		u.AddAssign(s.Du())
		v.AddAssign(s.Dv())
	}

	return u, v
}
