// Package pyramid drives the coarse-to-fine warping loop shared by every
// solver variant: build a geometric image pyramid, then at each level
// resample the running flow estimate, warp the second image backward,
// and hand off to a solver for one level's worth of SOR sweeps.
package pyramid

import "math"

// Level describes one pyramid level's geometry: its pixel dimensions and
// the grid spacing (Hx, Hy) used by the solver's derivative stencils.
type Level struct {
	Width, Height int
	Hx, Hy        float32
}

// Levels returns the pyramid levels from coarsest (index 0) to the
// original resolution (last index), for an image of size (w, h) with at
// most warpLevels levels and a per-level scale factor in (0, 1).
//
// Level i (0 at the top of the loop, counting from the coarsest) has
// dimensions ceil(w*scale^k) x ceil(h*scale^k) where k counts down from
// the coarsest level to 0 at full resolution. The pyramid stops earlier
// than warpLevels once either dimension would drop below 4; if the level
// that triggered the stop has either dimension equal to 1, the coarsest
// level that still met the bound is dropped as well.
func Levels(w, h, warpLevels int, scale float32) []Level {
	maxLevels := computeMaxLevels(w, h, warpLevels, scale)

	out := make([]Level, 0, maxLevels)
	for k := maxLevels - 1; k >= 0; k-- {
		lw := int(math.Ceil(float64(w) * math.Pow(float64(scale), float64(k))))
		lh := int(math.Ceil(float64(h) * math.Pow(float64(scale), float64(k))))
		if lw < 1 {
			lw = 1
		}
		if lh < 1 {
			lh = 1
		}
		out = append(out, Level{
			Width:  lw,
			Height: lh,
			Hx:     float32(w) / float32(lw),
			Hy:     float32(h) / float32(lh),
		})
	}
	return out
}

// computeMaxLevels mirrors the original implementation's warp-level
// search: walk down from level 0 while both dimensions stay >= 4,
// stopping one level early (decrementing the count) if the level that
// first dropped below 4 did so by hitting exactly 1 in either dimension.
func computeMaxLevels(w, h, warpLevels int, scale float32) int {
	count := 0
	cw, ch := float64(w), float64(h)
	for i := 0; i < warpLevels; i++ {
		iw := int(math.Ceil(cw))
		ih := int(math.Ceil(ch))
		if iw < 4 || ih < 4 {
			if iw == 1 || ih == 1 {
				count--
			}
			break
		}
		count++
		cw *= float64(scale)
		ch *= float64(scale)
	}
	if count < 1 {
		count = 1
	}
	return count
}
