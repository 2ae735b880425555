package flowcolor

import (
	"testing"

	"github.com/axruff/gpuflow/internal/image"
)

func TestWheelZeroFlowIsBlack(t *testing.T) {
	r, g, b := Wheel(0, 0, 1)
	if r != 0 || g != 0 || b != 0 {
		t.Errorf("zero flow = (%d,%d,%d), want (0,0,0)", r, g, b)
	}
}

func TestWheelSaturatesAtScale(t *testing.T) {
	r1, g1, b1 := Wheel(1, 0, 1)
	r2, g2, b2 := Wheel(5, 0, 1)
	if r1 != r2 || g1 != g2 || b1 != b2 {
		t.Errorf("expected saturation past scale: (%d,%d,%d) vs (%d,%d,%d)", r1, g1, b1, r2, g2, b2)
	}
}

// TestWheelHalvedPhaseSelectsGreen pins the repro from the original
// Image.cpp ConvertToRGB: u=-1,v=0 has atan2(v,u) = pi, halved to pi/2,
// which is exactly the green anchor.
func TestWheelHalvedPhaseSelectsGreen(t *testing.T) {
	r, g, b := Wheel(-1, 0, 1)
	if r != 0 || g != 255 || b != 0 {
		t.Errorf("Wheel(-1,0,1) = (%d,%d,%d), want (0,255,0)", r, g, b)
	}
}

// TestWheelUnreasonableFlowIsBlack pins the |u|,|v| > 1e6 exclusion spec.md
// documents alongside the non-finite case.
func TestWheelUnreasonableFlowIsBlack(t *testing.T) {
	r, g, b := Wheel(2e6, 0, 1)
	if r != 0 || g != 0 || b != 0 {
		t.Errorf("Wheel(2e6,0,1) = (%d,%d,%d), want (0,0,0)", r, g, b)
	}
}

func TestPaintProducesFullSizeImage(t *testing.T) {
	u := image.New(4, 3, 1, 1)
	v := image.New(4, 3, 1, 1)
	out := Paint(u, v, 1)
	if out.Width != 4 || out.Height != 3 {
		t.Fatalf("Paint shape = (%d,%d), want (4,3)", out.Width, out.Height)
	}
}
