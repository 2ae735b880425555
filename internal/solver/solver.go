package solver

import (
	"fmt"

	"github.com/axruff/gpuflow/internal/image"
)

// Solver is the capability set the pyramid driver calls into for one
// pyramid level: precompute whatever per-level state the variant needs,
// then take as many sweeps as the caller's iteration budget allows. Each
// implementation owns its own ping-pong buffers and reuses them across
// levels by capacity.
type Solver interface {
	// Precompute resets the solver for a new pyramid level. img1 and
	// img2Warped must already have their boundary halo filled; u and v
	// are the flow estimate accumulated by previous levels (read-only
	// for the duration of the level's sweeps).
	Precompute(img1, img2Warped, u, v *image.Image, hx, hy float32)

	// Sweep advances the solver's flow increment by one iteration unit.
	// For the linear solver this is a single Jacobi SOR sweep; for the
	// robust solver it is one outer iteration (diffusion/data weight
	// recompute followed by its configured inner sweeps).
	Sweep()

	// Du and Dv return the current flow increment. The returned images
	// are owned by the solver and are only valid until the next call to
	// Precompute or Sweep.
	Du() *image.Image
	Dv() *image.Image
}

func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}

// harmonicMean returns the face-centred harmonic mean of two diffusivity
// samples, the standard averaging used to place a nonlinear diffusion
// coefficient on the face between two grid cells.
func harmonicMean(a, b float32) float32 {
	return 2 * a * b / (a + b)
}
