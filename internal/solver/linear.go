package solver

import "github.com/axruff/gpuflow/internal/image"

// Linear is the base Horn-Schunck-style SOR solver: a fixed quadratic
// smoothness penalty (weighted by Alpha) and a linearised data term
// taken from the motion tensor, relaxed with weight Omega.
type Linear struct {
	Alpha, Omega float32

	t tensor

	du, dv   [2]*image.Image // ping-pong pair
	cur      int
	u, v     *image.Image
	hx, hy   float32
	w, h     int
}

// NewLinear constructs a Linear solver whose ping-pong buffers have
// capacity for images up to (capW, capH).
func NewLinear(alpha, omega float32, capW, capH int) *Linear {
	s := &Linear{Alpha: alpha, Omega: omega}
	s.du[0] = image.New(capW, capH, 1, 1)
	s.du[1] = image.New(capW, capH, 1, 1)
	s.dv[0] = image.New(capW, capH, 1, 1)
	s.dv[1] = image.New(capW, capH, 1, 1)
	return s
}

func (s *Linear) Precompute(img1, img2Warped, u, v *image.Image, hx, hy float32) {
	w, h := img1.ActualWidth(), img1.ActualHeight()
	assertf(w <= s.du[0].Width() && h <= s.du[0].Height(), "Linear.Precompute: level exceeds solver capacity")

	s.t.compute(img1, img2Warped, hx, hy)
	s.u, s.v, s.hx, s.hy = u, v, hx, hy
	s.w, s.h = w, h
	s.cur = 0
	for _, b := range [...]*image.Image{s.du[0], s.du[1], s.dv[0], s.dv[1]} {
		b.Zero()
		b.SetActualSize(w, h)
	}
}

func (s *Linear) Du() *image.Image { return s.du[s.cur] }
func (s *Linear) Dv() *image.Image { return s.dv[s.cur] }

func (s *Linear) Sweep() {
	next := 1 - s.cur
	duOld, dvOld := s.du[s.cur], s.dv[s.cur]
	duNew, dvNew := s.du[next], s.dv[next]

	w, h := s.w, s.h
	omega := s.Omega
	hxw := s.Alpha / (s.hx * s.hx)
	hyw := s.Alpha / (s.hy * s.hy)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			xp, xm, yp, ym := float32(0), float32(0), float32(0), float32(0)
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
			sumw := xp + xm + yp + ym

			uSum := xp*(s.u.PixelR(x+1, y)+duOld.PixelR(x+1, y)) +
				xm*(s.u.PixelR(x-1, y)+duOld.PixelR(x-1, y)) +
				yp*(s.u.PixelR(x, y+1)+duOld.PixelR(x, y+1)) +
				ym*(s.u.PixelR(x, y-1)+duOld.PixelR(x, y-1))
			vSum := xp*(s.v.PixelR(x+1, y)+dvOld.PixelR(x+1, y)) +
				xm*(s.v.PixelR(x-1, y)+dvOld.PixelR(x-1, y)) +
				yp*(s.v.PixelR(x, y+1)+dvOld.PixelR(x, y+1)) +
				ym*(s.v.PixelR(x, y-1)+dvOld.PixelR(x, y-1))

			i := s.t.idx(x, y)
			j11, j22, j12, j13, j23 := s.t.j11[i], s.t.j22[i], s.t.j12[i], s.t.j13[i], s.t.j23[i]

			duGS := (uSum - sumw*s.u.PixelR(x, y) - j12*dvOld.PixelR(x, y) - j13) / (sumw + j11)
			dvGS := (vSum - sumw*s.v.PixelR(x, y) - j12*duOld.PixelR(x, y) - j23) / (sumw + j22)

			duNew.SetPixelR(x, y, (1-omega)*duOld.PixelR(x, y)+omega*duGS)
			dvNew.SetPixelR(x, y, (1-omega)*dvOld.PixelR(x, y)+omega*dvGS)
		}
	}

	s.cur = next
}
