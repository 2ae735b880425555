package imageio

import (
	"bufio"
	"fmt"
	"io"
)

// RGBImage is a packed 24-bit RGB raster, used for PGM-P6 output of
// rendered flow fields and as the decoded form of PGM-P6 input.
type RGBImage struct {
	Width, Height int
	Pix           []byte // 3 bytes per pixel, row-major
}

// NewRGBImage allocates a zeroed RGBImage.
func NewRGBImage(w, h int) *RGBImage {
	return &RGBImage{Width: w, Height: h, Pix: make([]byte, w*h*3)}
}

// Set writes one pixel's colour.
func (img *RGBImage) Set(x, y int, r, g, b byte) {
	i := (y*img.Width + x) * 3
	img.Pix[i+0] = r
	img.Pix[i+1] = g
	img.Pix[i+2] = b
}

// At reads one pixel's colour.
func (img *RGBImage) At(x, y int) (r, g, b byte) {
	i := (y*img.Width + x) * 3
	return img.Pix[i+0], img.Pix[i+1], img.Pix[i+2]
}

// WritePGMRGB writes img as a binary (P6) 24-bit colour PGM.
func WritePGMRGB(w io.Writer, img *RGBImage) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "P6\n%d %d\n255\n", img.Width, img.Height); err != nil {
		return err
	}
	if _, err := bw.Write(img.Pix); err != nil {
		return fmt.Errorf("imageio: writing PGM-P6 body: %w", err)
	}
	return bw.Flush()
}

// ReadPGMRGB reads a binary (P6) 24-bit colour PGM.
func ReadPGMRGB(r io.Reader) (*RGBImage, error) {
	br := bufio.NewReader(r)
	magic, w, h, _, err := readPGMHeader(br)
	if err != nil {
		return nil, err
	}
	if magic != "P6" {
		return nil, fmt.Errorf("imageio: unsupported PGM magic %q, want P6", magic)
	}
	img := NewRGBImage(w, h)
	if _, err := io.ReadFull(br, img.Pix); err != nil {
		return nil, fmt.Errorf("imageio: reading PGM-P6 body: %w", err)
	}
	return img, nil
}
