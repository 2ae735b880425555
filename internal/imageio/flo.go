package imageio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/axruff/gpuflow/internal/image"
)

// floTag is the Middlebury .flo magic value, stored as a little-endian
// float32 at the start of the file.
const floTag = 202021.25

// maxFloDimension rejects width/height values past any plausible flow
// field, guarding against a corrupted or truncated header producing a
// nonsensical allocation.
const maxFloDimension = 99999

// ReadFlo reads a Middlebury .flo flow field into a pair of float32
// images (u, v), each with a 1-pixel halo.
func ReadFlo(r io.Reader) (u, v *image.Image, err error) {
	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, nil, fmt.Errorf("imageio: reading .flo header: %w", err)
	}
	tag := math.Float32frombits(binary.LittleEndian.Uint32(header[0:4]))
	if tag != floTag {
		return nil, nil, fmt.Errorf("imageio: bad .flo tag %v, want %v", tag, floTag)
	}
	w := int(int32(binary.LittleEndian.Uint32(header[4:8])))
	h := int(int32(binary.LittleEndian.Uint32(header[8:12])))
	if w <= 0 || h <= 0 || w > maxFloDimension || h > maxFloDimension {
		return nil, nil, fmt.Errorf("imageio: invalid .flo dimensions %dx%d", w, h)
	}

	u = image.New(w, h, 1, 1)
	v = image.New(w, h, 1, 1)
	row := make([]byte, w*8)
	for y := 0; y < h; y++ {
		if _, err := io.ReadFull(r, row); err != nil {
			return nil, nil, fmt.Errorf("imageio: reading .flo row %d: %w", y, err)
		}
		for x := 0; x < w; x++ {
			uu := math.Float32frombits(binary.LittleEndian.Uint32(row[x*8 : x*8+4]))
			vv := math.Float32frombits(binary.LittleEndian.Uint32(row[x*8+4 : x*8+8]))
			u.SetPixelR(x, y, uu)
			v.SetPixelR(x, y, vv)
		}
	}

	var extra [1]byte
	if n, _ := io.ReadFull(r, extra[:]); n > 0 {
		return nil, nil, fmt.Errorf("imageio: .flo has trailing bytes past the expected %dx%d payload", w, h)
	}
	return u, v, nil
}

// WriteFlo writes a flow field (u, v) in Middlebury .flo format. This
// writer exists primarily so the reader can be round-trip tested; the
// original distribution format is read-only in practice.
func WriteFlo(w io.Writer, u, v *image.Image) error {
	width, height := u.ActualWidth(), u.ActualHeight()
	if v.ActualWidth() != width || v.ActualHeight() != height {
		return fmt.Errorf("imageio: WriteFlo: u/v shape mismatch (%d,%d) vs (%d,%d)",
			width, height, v.ActualWidth(), v.ActualHeight())
	}

	var header [12]byte
	binary.LittleEndian.PutUint32(header[0:4], math.Float32bits(floTag))
	binary.LittleEndian.PutUint32(header[4:8], uint32(int32(width)))
	binary.LittleEndian.PutUint32(header[8:12], uint32(int32(height)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("imageio: writing .flo header: %w", err)
	}

	row := make([]byte, width*8)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			binary.LittleEndian.PutUint32(row[x*8:x*8+4], math.Float32bits(u.PixelR(x, y)))
			binary.LittleEndian.PutUint32(row[x*8+4:x*8+8], math.Float32bits(v.PixelR(x, y)))
		}
		if _, err := w.Write(row); err != nil {
			return fmt.Errorf("imageio: writing .flo row %d: %w", y, err)
		}
	}
	return nil
}
