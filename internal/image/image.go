// Package image implements the padded floating-point raster used by the
// flow pyramid and solver: a logical width/height region ("actual" size)
// inside a larger allocated capacity, surrounded by a halo of bx/by pixels
// used for central-difference stencils and mirrored boundary conditions.
package image

import "fmt"

// Image is a single-channel float32 raster with a border halo.
//
// The allocated capacity (Width, Height) is fixed at construction time;
// the logical region actually holding valid data (ActualWidth,
// ActualHeight) can shrink level-to-level during pyramid processing
// without reallocating, as long as it never exceeds capacity.
type Image struct {
	width, height             int // allocated logical capacity
	actualWidth, actualHeight int // region currently holding valid data
	bx, by                    int // halo size in x and y
	pitch                     int // row stride in float32 elements
	rows                      int // allocated rows including halo
	data                      []float32
}

// New allocates an Image with capacity (width, height) and halo (bx, by).
// The actual region starts out equal to the full capacity.
func New(width, height, bx, by int) *Image {
	img := &Image{}
	img.alloc(width, height, bx, by)
	img.actualWidth = width
	img.actualHeight = height
	return img
}

// roundUp32 rounds n up to the next multiple of 32.
func roundUp32(n int) int {
	return ((n + 31) / 32) * 32
}

func (img *Image) alloc(width, height, bx, by int) {
	img.width = width
	img.height = height
	img.bx = bx
	img.by = by
	img.pitch = roundUp32(width + 2*bx)
	img.rows = height + 2*by
	img.data = make([]float32, img.pitch*img.rows)
}

// Reinit reallocates the image to a new capacity and halo, discarding
// its previous contents. The actual region is reset to the full capacity.
func (img *Image) Reinit(width, height, bx, by int) {
	img.alloc(width, height, bx, by)
	img.actualWidth = width
	img.actualHeight = height
}

// Width and Height report the allocated capacity.
func (img *Image) Width() int  { return img.width }
func (img *Image) Height() int { return img.height }

// ActualWidth and ActualHeight report the currently valid logical region.
func (img *Image) ActualWidth() int  { return img.actualWidth }
func (img *Image) ActualHeight() int { return img.actualHeight }

// Bx and By report the halo size.
func (img *Image) Bx() int { return img.bx }
func (img *Image) By() int { return img.by }

// Pitch reports the row stride in float32 elements.
func (img *Image) Pitch() int { return img.pitch }

// SetActualSize shrinks or grows the logical region within capacity.
func (img *Image) SetActualSize(w, h int) {
	assertf(w >= 0 && w <= img.width && h >= 0 && h <= img.height,
		"SetActualSize(%d,%d) exceeds capacity (%d,%d)", w, h, img.width, img.height)
	img.actualWidth = w
	img.actualHeight = h
}

func (img *Image) index(x, y int) int {
	return (y+img.by)*img.pitch + (x + img.bx)
}

// PixelR addresses the raster directly, including the halo. x and y may
// range over [-bx, width+bx) and [-by, height+by).
func (img *Image) PixelR(x, y int) float32 {
	return img.data[img.index(x, y)]
}

// SetPixelR writes directly into the raster, including the halo.
func (img *Image) SetPixelR(x, y int, v float32) {
	img.data[img.index(x, y)] = v
}

// PixelV returns the pixel value if (x, y) lies within the actual region,
// or 0 otherwise.
func (img *Image) PixelV(x, y int) float32 {
	if x < 0 || x >= img.actualWidth || y < 0 || y >= img.actualHeight {
		return 0
	}
	return img.PixelR(x, y)
}

// PixelW returns a pointer into the raster at (x, y) for in-place update.
// Like PixelR, it is not bounds-checked against the actual region.
func (img *Image) PixelW(x, y int) *float32 {
	return &img.data[img.index(x, y)]
}

// FillBoundaries mirrors the actual region into the halo (even reflection),
// so that central-difference stencils reading one pixel past the border
// see a Neumann (zero-gradient) boundary condition.
func (img *Image) FillBoundaries() {
	w, h := img.actualWidth, img.actualHeight
	for y := 0; y < h; y++ {
		for k := 1; k <= img.bx; k++ {
			img.SetPixelR(-k, y, img.PixelR(k, y))
			img.SetPixelR(w-1+k, y, img.PixelR(w-1-k, y))
		}
	}
	// Corners included via full row range below (-bx..w-1+bx).
	for x := -img.bx; x < w+img.bx; x++ {
		for k := 1; k <= img.by; k++ {
			img.SetPixelR(x, -k, img.PixelR(x, k))
			img.SetPixelR(x, h-1+k, img.PixelR(x, h-1-k))
		}
	}
}

// Zero clears the entire allocated buffer, halo included.
func (img *Image) Zero() {
	for i := range img.data {
		img.data[i] = 0
	}
}

// Clone returns a deep copy with identical capacity, halo and actual size.
func (img *Image) Clone() *Image {
	out := &Image{
		width: img.width, height: img.height,
		actualWidth: img.actualWidth, actualHeight: img.actualHeight,
		bx: img.bx, by: img.by,
		pitch: img.pitch, rows: img.rows,
		data: make([]float32, len(img.data)),
	}
	copy(out.data, img.data)
	return out
}

// CopyFrom assigns the actual region of src into img (the `=` operator in
// the original formulation). img's capacity must be able to hold src's
// actual size; img's actual size is set to match src's.
func (img *Image) CopyFrom(src *Image) {
	assertf(src.actualWidth <= img.width && src.actualHeight <= img.height,
		"CopyFrom: capacity (%d,%d) too small for source actual size (%d,%d)",
		img.width, img.height, src.actualWidth, src.actualHeight)
	img.actualWidth = src.actualWidth
	img.actualHeight = src.actualHeight
	for y := 0; y < src.actualHeight; y++ {
		for x := 0; x < src.actualWidth; x++ {
			img.SetPixelR(x, y, src.PixelR(x, y))
		}
	}
}

// AddAssign adds other's actual region into img's actual region in place
// (the `+=` operator). Both images must share the same actual size.
func (img *Image) AddAssign(other *Image) {
	assertf(img.actualWidth == other.actualWidth && img.actualHeight == other.actualHeight,
		"AddAssign: actual size mismatch (%d,%d) vs (%d,%d)",
		img.actualWidth, img.actualHeight, other.actualWidth, other.actualHeight)
	for y := 0; y < img.actualHeight; y++ {
		for x := 0; x < img.actualWidth; x++ {
			*img.PixelW(x, y) += other.PixelR(x, y)
		}
	}
}

// SwapData exchanges the underlying storage of img and other, preserving
// each image's own shape fields (width/height/halo/actual size). Both
// images must have identically sized backing storage.
func (img *Image) SwapData(other *Image) {
	assertf(len(img.data) == len(other.data), "SwapData: backing storage size mismatch")
	img.data, other.data = other.data, img.data
}

func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
