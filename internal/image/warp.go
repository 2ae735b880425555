package image

import "math"

// sampleBilinearV bilinearly samples img at fractional coordinates
// (xFp, yFp) using PixelV for all four corners (so a corner that falls
// one step past the actual region reads as 0, matching the behaviour of
// backward registration at the image border). The subpixel fraction is
// taken relative to the floor, not truncation toward zero, so negative
// coordinates interpolate correctly.
func sampleBilinearV(img *Image, xFp, yFp float32) float32 {
	x0 := int(math.Floor(float64(xFp)))
	y0 := int(math.Floor(float64(yFp)))
	ax := xFp - float32(x0)
	ay := yFp - float32(y0)

	v00 := img.PixelV(x0, y0)
	v10 := img.PixelV(x0+1, y0)
	v01 := img.PixelV(x0, y0+1)
	v11 := img.PixelV(x0+1, y0+1)

	top := v00 + ax*(v10-v00)
	bot := v01 + ax*(v11-v01)
	return top + ay*(bot-top)
}

// BackwardRegister warps src2 toward src1's grid using the flow field
// (u, v), writing the result into dst (whose actual size must match
// src1's). For each destination pixel (x, y), the sample point is
// (x + u(x,y)/hx, y + v(x,y)/hy) in src2; pixels whose sample point falls
// outside src2's actual region fall back to src1's own value at (x, y),
// matching the original formulation's border policy.
func BackwardRegister(src1, src2, dst, u, v *Image, hx, hy float32) {
	w, h := src1.ActualWidth(), src1.ActualHeight()
	assertf(dst.Width() >= w && dst.Height() >= h, "BackwardRegister: dst capacity too small")
	dst.SetActualSize(w, h)

	aw, ah := src2.ActualWidth(), src2.ActualHeight()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			xxFp := float32(x) + u.PixelV(x, y)/hx
			yyFp := float32(y) + v.PixelV(x, y)/hy
			if xxFp < 0 || xxFp > float32(aw-1) || yyFp < 0 || yyFp > float32(ah-1) {
				dst.SetPixelR(x, y, src1.PixelV(x, y))
				continue
			}
			dst.SetPixelR(x, y, sampleBilinearV(src2, xxFp, yyFp))
		}
	}
}
