package software

import (
	"math"

	"github.com/axruff/gpuflow/gpucore"
)

// RegisterAll registers every flow kernel with both a (so Submit can
// resolve a dispatched pipeline back to its Go implementation) and
// pipeline (so callers can Dispatch by label exactly as they would
// against backend/wgpuflow). Shader modules carry no real bytecode
// here — the label is the only thing Submit looks at.
func RegisterAll(a *Adapter, pipeline *gpucore.Pipeline) error {
	kernels := map[string]Kernel{
		"tensor":         TensorKernel,
		"sweep_linear":   SweepLinearKernel,
		"weights_robust": WeightsRobustKernel,
		"sweep_robust":   SweepRobustKernel,
	}
	for label, fn := range kernels {
		a.RegisterKernel(label, fn)
		if err := pipeline.RegisterKernel(label, nil); err != nil {
			return err
		}
	}
	return nil
}

// Kernels in this file are the CPU stand-ins for the WGSL compute
// shaders backend/wgpuflow compiles via naga; they implement the exact
// per-pixel formulas used by internal/solver, operating on flat
// row-major buffers with no halo: where a stencil reaches past the
// border, each kernel decides what the out-of-range neighbour reads
// (TensorKernel mirrors the index, the robust weights read zero).
//
// By the software.Adapter convention, every kernel's last bound buffer
// is a small parameter vector: [width, height, ...kernel-specific
// scalars].

func at(buf []float32, w, x, y int) float32 { return buf[y*w+x] }
func set(buf []float32, w, x, y int, v float32) { buf[y*w+x] = v }

// TensorKernel computes the motion tensor (J11, J22, J12, J13, J23) from
// img1 and the backward-warped img2. Buffers: [img1, img2w, j11, j22,
// j12, j13, j23, params(width, height, hx, hy)].
func TensorKernel(buffers [][]float32, w, h int) {
	img1, img2w := buffers[0], buffers[1]
	j11, j22, j12, j13, j23 := buffers[2], buffers[3], buffers[4], buffers[5], buffers[6]
	params := buffers[7]
	hx, hy := params[2], params[3]

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			xm, xp := mirrorIdx(x-1, w), mirrorIdx(x+1, w)
			ym, yp := mirrorIdx(y-1, h), mirrorIdx(y+1, h)

			fx := ((at(img1, w, xp, y) - at(img1, w, xm, y)) +
				(at(img2w, w, xp, y) - at(img2w, w, xm, y))) / (4 * hx)
			fy := ((at(img1, w, x, yp) - at(img1, w, x, ym)) +
				(at(img2w, w, x, yp) - at(img2w, w, x, ym))) / (4 * hy)
			ft := at(img2w, w, x, y) - at(img1, w, x, y)

			set(j11, w, x, y, fx*fx)
			set(j22, w, x, y, fy*fy)
			set(j12, w, x, y, fx*fy)
			set(j13, w, x, y, fx*ft)
			set(j23, w, x, y, fy*ft)
		}
	}
}

func clampIdx(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// mirrorIdx reflects an out-of-range index back into [0, n-1] the same
// way image.Image.FillBoundaries mirrors its halo (index -1 reads back
// index 1, not index 0), so TensorKernel's derivatives agree with the
// host solver's at the image border.
func mirrorIdx(i, n int) int {
	if i < 0 {
		return -i
	}
	if i >= n {
		return 2*(n-1) - i
	}
	return i
}

// neighborWeights returns the Neumann boundary weights (0 toward any
// missing side), each scaled by H_x = alpha/hx^2 or H_y = alpha/hy^2, and
// their sum for pixel (x, y) of a w x h grid.
func neighborWeights(x, y, w, h int, hxw, hyw float32) (xp, xm, yp, ym, sumw float32) {
	if x < w-1 {
		xp = hxw
	}
	if x > 0 {
		xm = hxw
	}
	if y < h-1 {
		yp = hyw
	}
	if y > 0 {
		ym = hyw
	}
	sumw = xp + xm + yp + ym
	return
}

// harmonicMean returns the face-centred harmonic mean of two diffusivity
// samples, the standard averaging used to place a nonlinear diffusion
// coefficient on the face between two grid cells.
func harmonicMean(a, b float32) float32 {
	return 2 * a * b / (a + b)
}

// SweepLinearKernel performs one Jacobi SOR sweep of the linear solver.
// Buffers: [u, v, duOld, dvOld, duNew, dvNew, j11, j22, j12, j13, j23,
// params(width, height, alpha, omega, hx, hy)].
func SweepLinearKernel(buffers [][]float32, w, h int) {
	u, v := buffers[0], buffers[1]
	duOld, dvOld := buffers[2], buffers[3]
	duNew, dvNew := buffers[4], buffers[5]
	j11, j22, j12, j13, j23 := buffers[6], buffers[7], buffers[8], buffers[9], buffers[10]
	params := buffers[11]
	alpha, omega, hx, hy := params[2], params[3], params[4], params[5]
	hxw, hyw := alpha/(hx*hx), alpha/(hy*hy)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			xp, xm, yp, ym, sumw := neighborWeights(x, y, w, h, hxw, hyw)
			xpI, xmI, ypI, ymI := clampIdx(x+1, w), clampIdx(x-1, w), clampIdx(y+1, h), clampIdx(y-1, h)

			uSum := xp*(at(u, w, xpI, y)+at(duOld, w, xpI, y)) +
				xm*(at(u, w, xmI, y)+at(duOld, w, xmI, y)) +
				yp*(at(u, w, x, ypI)+at(duOld, w, x, ypI)) +
				ym*(at(u, w, x, ymI)+at(duOld, w, x, ymI))
			vSum := xp*(at(v, w, xpI, y)+at(dvOld, w, xpI, y)) +
				xm*(at(v, w, xmI, y)+at(dvOld, w, xmI, y)) +
				yp*(at(v, w, x, ypI)+at(dvOld, w, x, ypI)) +
				ym*(at(v, w, x, ymI)+at(dvOld, w, x, ymI))

			i11, i22, i12, i13, i23 := at(j11, w, x, y), at(j22, w, x, y), at(j12, w, x, y), at(j13, w, x, y), at(j23, w, x, y)

			duGS := (uSum - sumw*at(u, w, x, y) - i12*at(dvOld, w, x, y) - i13) / (sumw + i11)
			dvGS := (vSum - sumw*at(v, w, x, y) - i12*at(duOld, w, x, y) - i23) / (sumw + i22)

			set(duNew, w, x, y, (1-omega)*at(duOld, w, x, y)+omega*duGS)
			set(dvNew, w, x, y, (1-omega)*at(dvOld, w, x, y)+omega*dvGS)
		}
	}
}

// WeightsRobustKernel recomputes the diffusion weight psi and data
// weight xi from the current (u+du, v+dv) estimate. Buffers: [u, v,
// duOld, dvOld, psi, xi, j11, j22, j12, j13, j23, params(width, height,
// hx, hy, eSmooth, eData)].
func WeightsRobustKernel(buffers [][]float32, w, h int) {
	u, v := buffers[0], buffers[1]
	duOld, dvOld := buffers[2], buffers[3]
	psi, xi := buffers[4], buffers[5]
	j11, j22, j12, j13, j23 := buffers[6], buffers[7], buffers[8], buffers[9], buffers[10]
	params := buffers[11]
	hx, hy, eSmooth, eData := params[2], params[3], params[4], params[5]

	// total reads 0 outside [0,w)x[0,h): u, v, duOld and dvOld never have
	// their halo filled (only their actual region is ever written), so
	// the host solver's equivalent central difference always sees zero
	// past the image border, not a clamped edge value.
	total := func(base, delta []float32, x, y int) float32 {
		if x < 0 || x >= w || y < 0 || y >= h {
			return 0
		}
		return at(base, w, x, y) + at(delta, w, x, y)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			ux := (total(u, duOld, x+1, y) - total(u, duOld, x-1, y)) / (2 * hx)
			uy := (total(u, duOld, x, y+1) - total(u, duOld, x, y-1)) / (2 * hy)
			vx := (total(v, dvOld, x+1, y) - total(v, dvOld, x-1, y)) / (2 * hx)
			vy := (total(v, dvOld, x, y+1) - total(v, dvOld, x, y-1)) / (2 * hy)

			gradSq := ux*ux + uy*uy + vx*vx + vy*vy
			set(psi, w, x, y, 1/float32(math.Sqrt(float64(gradSq+eSmooth))))

			i11, i22, i12, i13, i23 := at(j11, w, x, y), at(j22, w, x, y), at(j12, w, x, y), at(j13, w, x, y), at(j23, w, x, y)
			du, dv := at(duOld, w, x, y), at(dvOld, w, x, y)
			r := i11*du + i12*dv + i13 + i12*du + i22*dv + i23
			set(xi, w, x, y, 1/float32(math.Sqrt(float64(r*r+eData))))
		}
	}
}

// SweepRobustKernel performs one inner Jacobi SOR sweep of the robust
// solver, using the psi/xi weights frozen for the current outer
// iteration. Each directional smoothness weight is the face-centred
// harmonic mean of psi at (x, y) and psi at that neighbour, divided by
// hx^2 or hy^2 — alpha plays no part here, since psi already carries the
// full smoothness weighting for this solver. Buffers: [u, v, duOld,
// dvOld, duNew, dvNew, j11, j22, j12, j13, j23, psi, xi, params(width,
// height, alpha, omega, hx, hy)].
func SweepRobustKernel(buffers [][]float32, w, h int) {
	u, v := buffers[0], buffers[1]
	duOld, dvOld := buffers[2], buffers[3]
	duNew, dvNew := buffers[4], buffers[5]
	j11, j22, j12, j13, j23 := buffers[6], buffers[7], buffers[8], buffers[9], buffers[10]
	psi, xi := buffers[11], buffers[12]
	params := buffers[13]
	omega, hx, hy := params[3], params[4], params[5]
	hx2, hy2 := hx*hx, hy*hy

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p, xiV := at(psi, w, x, y), at(xi, w, x, y)
			xp, xm, yp, ym := float32(0), float32(0), float32(0), float32(0)
			if x < w-1 {
				xp = harmonicMean(p, at(psi, w, x+1, y)) / hx2
			}
			if x > 0 {
				xm = harmonicMean(p, at(psi, w, x-1, y)) / hx2
			}
			if y < h-1 {
				yp = harmonicMean(p, at(psi, w, x, y+1)) / hy2
			}
			if y > 0 {
				ym = harmonicMean(p, at(psi, w, x, y-1)) / hy2
			}
			sumw := xp + xm + yp + ym
			xpI, xmI, ypI, ymI := clampIdx(x+1, w), clampIdx(x-1, w), clampIdx(y+1, h), clampIdx(y-1, h)

			uSum := xp*(at(u, w, xpI, y)+at(duOld, w, xpI, y)) +
				xm*(at(u, w, xmI, y)+at(duOld, w, xmI, y)) +
				yp*(at(u, w, x, ypI)+at(duOld, w, x, ypI)) +
				ym*(at(u, w, x, ymI)+at(duOld, w, x, ymI))
			vSum := xp*(at(v, w, xpI, y)+at(dvOld, w, xpI, y)) +
				xm*(at(v, w, xmI, y)+at(dvOld, w, xmI, y)) +
				yp*(at(v, w, x, ypI)+at(dvOld, w, x, ypI)) +
				ym*(at(v, w, x, ymI)+at(dvOld, w, x, ymI))

			i11, i22, i12, i13, i23 := at(j11, w, x, y), at(j22, w, x, y), at(j12, w, x, y), at(j13, w, x, y), at(j23, w, x, y)

			duGS := (uSum - sumw*at(u, w, x, y) - xiV*(i12*at(dvOld, w, x, y)+i13)) / (sumw + xiV*i11)
			dvGS := (vSum - sumw*at(v, w, x, y) - xiV*(i12*at(duOld, w, x, y)+i23)) / (sumw + xiV*i22)

			set(duNew, w, x, y, (1-omega)*at(duOld, w, x, y)+omega*duGS)
			set(dvNew, w, x, y, (1-omega)*at(dvOld, w, x, y)+omega*dvGS)
		}
	}
}
