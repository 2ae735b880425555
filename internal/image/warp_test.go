package image

import "testing"

func TestBackwardRegisterZeroFlowIsIdentity(t *testing.T) {
	src1 := New(4, 4, 1, 1)
	src2 := New(4, 4, 1, 1)
	u := New(4, 4, 1, 1)
	v := New(4, 4, 1, 1)
	dst := New(4, 4, 1, 1)

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src1.SetPixelR(x, y, 99)
			src2.SetPixelR(x, y, float32(x+y*4))
		}
	}

	BackwardRegister(src1, src2, dst, u, v, 1, 1)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			want := src2.PixelR(x, y)
			if got := dst.PixelR(x, y); got != want {
				t.Errorf("(%d,%d): got %v want %v", x, y, got, want)
			}
		}
	}
}

func TestBackwardRegisterOutOfBoundsFallsBackToSrc1(t *testing.T) {
	src1 := New(3, 3, 1, 1)
	src2 := New(3, 3, 1, 1)
	u := New(3, 3, 1, 1)
	v := New(3, 3, 1, 1)
	dst := New(3, 3, 1, 1)

	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			src1.SetPixelR(x, y, 42)
		}
	}
	// Push every sample far outside src2's actual region.
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			*u.PixelW(x, y) = 100
		}
	}

	BackwardRegister(src1, src2, dst, u, v, 1, 1)
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			if got := dst.PixelR(x, y); got != 42 {
				t.Errorf("(%d,%d): got %v want 42 (src1 fallback)", x, y, got)
			}
		}
	}
}

func TestBackwardRegisterExactOnAffineField(t *testing.T) {
	// src2(x,y) = 2x + 3y is exactly reproduced by bilinear interpolation
	// at any fractional coordinate, so a constant flow shift should yield
	// an exact result (no interpolation error).
	src1 := New(5, 5, 1, 1)
	src2 := New(5, 5, 1, 1)
	u := New(5, 5, 1, 1)
	v := New(5, 5, 1, 1)
	dst := New(5, 5, 1, 1)

	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			src2.SetPixelR(x, y, float32(2*x+3*y))
			*u.PixelW(x, y) = 1.5
			*v.PixelW(x, y) = 0.5
		}
	}

	BackwardRegister(src1, src2, dst, u, v, 1, 1)
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			want := float32(2*(float64(x)+1.5) + 3*(float64(y)+0.5))
			if got := dst.PixelR(x, y); got < want-1e-4 || got > want+1e-4 {
				t.Errorf("(%d,%d): got %v want %v", x, y, got, want)
			}
		}
	}
}
