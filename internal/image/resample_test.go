package image

import "testing"

func fillConst(img *Image, v float32) {
	for y := 0; y < img.ActualHeight(); y++ {
		for x := 0; x < img.ActualWidth(); x++ {
			img.SetPixelR(x, y, v)
		}
	}
}

func TestResample1DConstantPreserved(t *testing.T) {
	u := []float32{3, 3, 3, 3}
	for _, m := range []int{1, 2, 3, 5, 8, 9} {
		v := resample1D(u, m)
		for i, got := range v {
			if diff := got - 3; diff > 1e-4 || diff < -1e-4 {
				t.Errorf("m=%d i=%d: got %v want 3", m, i, got)
			}
		}
	}
}

func TestResample1DConservesMass(t *testing.T) {
	u := []float32{1, 2, 3, 4, 5}
	for _, m := range []int{3, 7, 10} {
		v := resample1D(u, m)
		var sumU, sumV float32
		for _, x := range u {
			sumU += x
		}
		for _, x := range v {
			sumV += x
		}
		// Each output cell has width 1/m of unit length vs input 1/n,
		// so total mass scales by m/n.
		want := sumU * float32(m) / float32(len(u))
		if diff := sumV - want; diff > 1e-2 || diff < -1e-2 {
			t.Errorf("m=%d: sumV=%v want %v", m, sumV, want)
		}
	}
}

func TestResample1DDoublingFastPath(t *testing.T) {
	u := []float32{1, 2, 3}
	v := resample1D(u, 6)
	want := []float32{1, 1, 2, 2, 3, 3}
	for i := range want {
		if v[i] != want[i] {
			t.Errorf("i=%d: got %v want %v", i, v[i], want[i])
		}
	}
}

func TestResample1DHalvingFastPath(t *testing.T) {
	u := []float32{1, 2, 3, 4}
	v := resample1D(u, 2)
	want := []float32{1.5, 3.5}
	for i := range want {
		if v[i] != want[i] {
			t.Errorf("i=%d: got %v want %v", i, v[i], want[i])
		}
	}
}

func TestResample2DConstantPreserved(t *testing.T) {
	src := New(8, 8, 1, 1)
	fillConst(src, 7)
	dst := New(16, 16, 1, 1)
	tmp := New(16, 16, 1, 1)

	Resample(src, dst, tmp, 5, 11)
	for y := 0; y < 11; y++ {
		for x := 0; x < 5; x++ {
			if got := dst.PixelR(x, y); got < 6.999 || got > 7.001 {
				t.Fatalf("(%d,%d) = %v, want 7", x, y, got)
			}
		}
	}
}

func TestResample2DActualSizeSet(t *testing.T) {
	src := New(8, 8, 1, 1)
	fillConst(src, 1)
	dst := New(16, 16, 1, 1)
	tmp := New(16, 16, 1, 1)
	Resample(src, dst, tmp, 12, 3)
	if dst.ActualWidth() != 12 || dst.ActualHeight() != 3 {
		t.Fatalf("actual size = (%d,%d), want (12,3)", dst.ActualWidth(), dst.ActualHeight())
	}
}
