// Package flowcolor renders a flow field into a colour image using an
// HSV-like wheel: phase (the flow direction, halved into [0, pi]) selects
// a hue by piecewise-linear interpolation between seven anchor colours,
// and amplitude (the flow magnitude, normalised by scale) selects
// brightness.
package flowcolor

import (
	"math"

	"github.com/axruff/gpuflow/internal/image"
	"github.com/axruff/gpuflow/internal/imageio"
)

// anchor is one stop on the wheel: a colour fixed at a given phase angle
// in [0, pi].
type anchor struct {
	angle   float32
	r, g, b float32
}

// anchors runs red -> magenta -> blue -> teal -> green -> yellow -> red
// over [0, pi], matching the uneven spacing spec.md documents: the first
// four stops are pi/8 apart, the last three pi/4 apart.
var anchors = [7]anchor{
	{0, 1, 0, 0},
	{math.Pi / 8, 1, 0, 1},
	{math.Pi / 4, 0, 0, 1},
	{3 * math.Pi / 8, 0, 1, 1},
	{math.Pi / 2, 0, 1, 0},
	{3 * math.Pi / 4, 1, 1, 0},
	{math.Pi, 1, 0, 0},
}

// Wheel maps a single flow vector (u, v) to an RGB colour. scale
// normalises the magnitude so that |‍(u,v)| == scale maps to full
// brightness; larger magnitudes saturate at full brightness. Non-finite
// or unreasonably large flow is rendered black.
func Wheel(u, v, scale float32) (r, g, b uint8) {
	if math.Abs(float64(u)) > 1e6 || math.Abs(float64(v)) > 1e6 ||
		math.IsNaN(float64(u)) || math.IsNaN(float64(v)) {
		return 0, 0, 0
	}

	amp := float32(math.Hypot(float64(u), float64(v)))
	if scale <= 0 {
		scale = 1
	}
	brightness := amp / scale
	if brightness > 1 {
		brightness = 1
	}

	phase := 0.5 * float32(math.Atan2(float64(v), float64(u)))
	if phase < 0 {
		phase += math.Pi
	}

	i0 := 0
	for i0 < len(anchors)-2 && anchors[i0+1].angle <= phase {
		i0++
	}
	i1 := i0 + 1
	a0, a1 := anchors[i0], anchors[i1]
	frac := (phase - a0.angle) / (a1.angle - a0.angle)

	cr := a0.r + (a1.r-a0.r)*frac
	cg := a0.g + (a1.g-a0.g)*frac
	cb := a0.b + (a1.b-a0.b)*frac

	return to8(cr * brightness), to8(cg * brightness), to8(cb * brightness)
}

func to8(v float32) uint8 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint8(v*255 + 0.5)
}

// Paint renders the whole (u, v) flow field into an RGB image using
// Wheel at every pixel.
func Paint(u, v *image.Image, scale float32) *imageio.RGBImage {
	w, h := u.ActualWidth(), u.ActualHeight()
	out := imageio.NewRGBImage(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b := Wheel(u.PixelR(x, y), v.PixelR(x, y), scale)
			out.Set(x, y, r, g, b)
		}
	}
	return out
}
