package imageio

import (
	"bytes"
	"testing"

	"github.com/axruff/gpuflow/internal/image"
)

func TestPGMGrayRoundTrip(t *testing.T) {
	img := image.New(5, 3, 1, 1)
	for y := 0; y < 3; y++ {
		for x := 0; x < 5; x++ {
			img.SetPixelR(x, y, float32((x+y*5)*7%256))
		}
	}

	var buf bytes.Buffer
	if err := WritePGMGray(&buf, img); err != nil {
		t.Fatalf("WritePGMGray: %v", err)
	}

	got, err := ReadPGMGray(&buf)
	if err != nil {
		t.Fatalf("ReadPGMGray: %v", err)
	}
	if got.ActualWidth() != 5 || got.ActualHeight() != 3 {
		t.Fatalf("shape = (%d,%d), want (5,3)", got.ActualWidth(), got.ActualHeight())
	}
	for y := 0; y < 3; y++ {
		for x := 0; x < 5; x++ {
			want := float32((x + y*5) * 7 % 256)
			if got := got.PixelR(x, y); got != want {
				t.Errorf("(%d,%d): got %v want %v", x, y, got, want)
			}
		}
	}
}

func TestPGMGrayRejectsWrongMagic(t *testing.T) {
	_, err := ReadPGMGray(bytes.NewReader([]byte("P6\n2 2\n255\n\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00")))
	if err == nil {
		t.Fatal("expected error for P6 data fed to ReadPGMGray")
	}
}

func TestPGMGrayRejectsNonNumericDimensions(t *testing.T) {
	_, err := ReadPGMGray(bytes.NewReader([]byte("P5\nwide tall\n255\n")))
	if err == nil {
		t.Fatal("expected error for non-numeric dimensions")
	}
}

func TestPGMRGBRoundTrip(t *testing.T) {
	img := NewRGBImage(3, 2)
	img.Set(0, 0, 10, 20, 30)
	img.Set(2, 1, 255, 0, 128)

	var buf bytes.Buffer
	if err := WritePGMRGB(&buf, img); err != nil {
		t.Fatalf("WritePGMRGB: %v", err)
	}
	got, err := ReadPGMRGB(&buf)
	if err != nil {
		t.Fatalf("ReadPGMRGB: %v", err)
	}
	if got.Width != 3 || got.Height != 2 {
		t.Fatalf("shape = (%d,%d), want (3,2)", got.Width, got.Height)
	}
	r, g, b := got.At(2, 1)
	if r != 255 || g != 0 || b != 128 {
		t.Errorf("At(2,1) = (%d,%d,%d), want (255,0,128)", r, g, b)
	}
}
