package solver

import (
	"math"

	"github.com/axruff/gpuflow/internal/image"
)

// Robust is the flow-driven solver: a Charbonnier-style diffusion weight
// psi (derived from the gradient of the *total* flow u+du) and a data
// weight xi (derived from the linearised brightness-constancy residual)
// replace the linear solver's fixed Alpha/J11/J22 terms. Both weights are
// recomputed once per outer iteration and held fixed for that
// iteration's inner sweeps, per the frozen-weights resolution recorded
// for the optical flow engine's solver design.
type Robust struct {
	Alpha, Omega   float32
	ESmooth, EData float32
	Inner          int

	t tensor

	du, dv [2]*image.Image
	cur    int
	u, v   *image.Image
	hx, hy float32
	w, h   int

	psi, xi    []float32
	capW, capH int
}

// NewRobust constructs a Robust solver with ping-pong buffer capacity
// for images up to (capW, capH) and Inner inner sweeps per outer
// iteration.
func NewRobust(alpha, omega, eSmooth, eData float32, inner, capW, capH int) *Robust {
	s := &Robust{Alpha: alpha, Omega: omega, ESmooth: eSmooth, EData: eData, Inner: inner}
	s.du[0] = image.New(capW, capH, 1, 1)
	s.du[1] = image.New(capW, capH, 1, 1)
	s.dv[0] = image.New(capW, capH, 1, 1)
	s.dv[1] = image.New(capW, capH, 1, 1)
	return s
}

func (s *Robust) ensureWeights(w, h int) {
	if w*h > s.capW*s.capH {
		n := w * h
		s.psi = make([]float32, n)
		s.xi = make([]float32, n)
		s.capW, s.capH = w, h
	}
}

func (s *Robust) Precompute(img1, img2Warped, u, v *image.Image, hx, hy float32) {
	w, h := img1.ActualWidth(), img1.ActualHeight()
	assertf(w <= s.du[0].Width() && h <= s.du[0].Height(), "Robust.Precompute: level exceeds solver capacity")

	s.t.compute(img1, img2Warped, hx, hy)
	s.ensureWeights(w, h)
	s.u, s.v, s.hx, s.hy = u, v, hx, hy
	s.w, s.h = w, h
	s.cur = 0
	for _, b := range [...]*image.Image{s.du[0], s.du[1], s.dv[0], s.dv[1]} {
		b.Zero()
		b.SetActualSize(w, h)
	}
}

func (s *Robust) Du() *image.Image { return s.du[s.cur] }
func (s *Robust) Dv() *image.Image { return s.dv[s.cur] }

// Sweep performs one outer iteration: recompute psi/xi from the current
// (u+du, v+dv) estimate, then run Inner inner Jacobi SOR sweeps with
// those weights held fixed.
func (s *Robust) Sweep() {
	s.recomputeWeights()
	for i := 0; i < s.Inner; i++ {
		s.innerSweep()
	}
}

func (s *Robust) recomputeWeights() {
	w, h := s.w, s.h
	du, dv := s.du[s.cur], s.dv[s.cur]

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			ux := (totalU(s.u, du, x+1, y) - totalU(s.u, du, x-1, y)) / (2 * s.hx)
			uy := (totalU(s.u, du, x, y+1) - totalU(s.u, du, x, y-1)) / (2 * s.hy)
			vx := (totalU(s.v, dv, x+1, y) - totalU(s.v, dv, x-1, y)) / (2 * s.hx)
			vy := (totalU(s.v, dv, x, y+1) - totalU(s.v, dv, x, y-1)) / (2 * s.hy)

			gradSq := ux*ux + uy*uy + vx*vx + vy*vy
			i := s.t.idx(x, y)
			s.psi[i] = 1 / float32(math.Sqrt(float64(gradSq+s.ESmooth)))

			j11, j22, j12, j13, j23 := s.t.j11[i], s.t.j22[i], s.t.j12[i], s.t.j13[i], s.t.j23[i]
			r := j11*du.PixelR(x, y) + j12*dv.PixelR(x, y) + j13 +
				j12*du.PixelR(x, y) + j22*dv.PixelR(x, y) + j23
			s.xi[i] = 1 / float32(math.Sqrt(float64(r*r+s.EData)))
		}
	}
}

// totalU reads 0 outside the actual region, whatever the halo holds.
func totalU(base, delta *image.Image, x, y int) float32 {
	return base.PixelV(x, y) + delta.PixelV(x, y)
}

func (s *Robust) innerSweep() {
	next := 1 - s.cur
	duOld, dvOld := s.du[s.cur], s.dv[s.cur]
	duNew, dvNew := s.du[next], s.dv[next]

	w, h := s.w, s.h
	omega := s.Omega
	hx2, hy2 := s.hx*s.hx, s.hy*s.hy

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := s.t.idx(x, y)
			psi := s.psi[i]
			xi := s.xi[i]

			xp, xm, yp, ym := float32(0), float32(0), float32(0), float32(0)
			if x < w-1 {
				xp = harmonicMean(psi, s.psi[s.t.idx(x+1, y)]) / hx2
			}
			if x > 0 {
				xm = harmonicMean(psi, s.psi[s.t.idx(x-1, y)]) / hx2
			}
			if y < h-1 {
				yp = harmonicMean(psi, s.psi[s.t.idx(x, y+1)]) / hy2
			}
			if y > 0 {
				ym = harmonicMean(psi, s.psi[s.t.idx(x, y-1)]) / hy2
			}
			sumw := xp + xm + yp + ym

			uSum := xp*(s.u.PixelR(x+1, y)+duOld.PixelR(x+1, y)) +
				xm*(s.u.PixelR(x-1, y)+duOld.PixelR(x-1, y)) +
				yp*(s.u.PixelR(x, y+1)+duOld.PixelR(x, y+1)) +
				ym*(s.u.PixelR(x, y-1)+duOld.PixelR(x, y-1))
			vSum := xp*(s.v.PixelR(x+1, y)+dvOld.PixelR(x+1, y)) +
				xm*(s.v.PixelR(x-1, y)+dvOld.PixelR(x-1, y)) +
				yp*(s.v.PixelR(x, y+1)+dvOld.PixelR(x, y+1)) +
				ym*(s.v.PixelR(x, y-1)+dvOld.PixelR(x, y-1))

			j11, j22, j12, j13, j23 := s.t.j11[i], s.t.j22[i], s.t.j12[i], s.t.j13[i], s.t.j23[i]

			duGS := (uSum - sumw*s.u.PixelR(x, y) - xi*(j12*dvOld.PixelR(x, y)+j13)) /
				(sumw + xi*j11)
			dvGS := (vSum - sumw*s.v.PixelR(x, y) - xi*(j12*duOld.PixelR(x, y)+j23)) /
				(sumw + xi*j22)

			duNew.SetPixelR(x, y, (1-omega)*duOld.PixelR(x, y)+omega*duGS)
			dvNew.SetPixelR(x, y, (1-omega)*dvOld.PixelR(x, y)+omega*dvGS)
		}
	}

	s.cur = next
}
