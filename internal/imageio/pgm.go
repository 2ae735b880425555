// Package imageio handles the on-disk formats the flow engine reads and
// writes: binary PGM (P5 greyscale, P6 RGB) for input frames and
// rendered flow visualisations, and the Middlebury .flo format for
// ground-truth and output flow fields.
package imageio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/axruff/gpuflow/internal/image"
)

// ReadPGMGray reads a binary (P5) greyscale PGM into a float32 image
// whose halo is 1 pixel in each direction, scaled to [0, 255].
func ReadPGMGray(r io.Reader) (*image.Image, error) {
	br := bufio.NewReader(r)
	magic, w, h, maxVal, err := readPGMHeader(br)
	if err != nil {
		return nil, err
	}
	if magic != "P5" {
		return nil, fmt.Errorf("imageio: unsupported PGM magic %q, want P5", magic)
	}

	img := image.New(w, h, 1, 1)
	row := make([]byte, w)
	for y := 0; y < h; y++ {
		if _, err := io.ReadFull(br, row); err != nil {
			return nil, fmt.Errorf("imageio: reading PGM row %d: %w", y, err)
		}
		for x := 0; x < w; x++ {
			img.SetPixelR(x, y, float32(row[x])*255/float32(maxVal))
		}
	}
	return img, nil
}

// readPGMHeader parses the magic number, width, height and maxval tokens
// of a binary PGM/PPM header, tolerating '#' comment lines between
// tokens as the format allows.
func readPGMHeader(br *bufio.Reader) (magic string, w, h, maxVal int, err error) {
	tok, err := nextToken(br)
	if err != nil {
		return "", 0, 0, 0, err
	}
	magic = tok

	nums := make([]int, 0, 3)
	for len(nums) < 3 {
		tok, err := nextToken(br)
		if err != nil {
			return "", 0, 0, 0, fmt.Errorf("imageio: reading PGM header: %w", err)
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			return "", 0, 0, 0, fmt.Errorf("imageio: malformed PGM header token %q: %w", tok, err)
		}
		nums = append(nums, n)
	}
	if nums[0] <= 0 || nums[1] <= 0 {
		return "", 0, 0, 0, fmt.Errorf("imageio: invalid PGM dimensions %dx%d", nums[0], nums[1])
	}
	return magic, nums[0], nums[1], nums[2], nil
}

func nextToken(br *bufio.Reader) (string, error) {
	for {
		if err := skipWhitespace(br); err != nil {
			return "", err
		}
		b, err := br.ReadByte()
		if err != nil {
			return "", err
		}
		if b == '#' {
			if _, err := br.ReadString('\n'); err != nil {
				return "", err
			}
			continue
		}
		var tok []byte
		tok = append(tok, b)
		for {
			b, err := br.ReadByte()
			if err != nil {
				return string(tok), nil
			}
			if isSpace(b) {
				return string(tok), nil
			}
			tok = append(tok, b)
		}
	}
}

func skipWhitespace(br *bufio.Reader) error {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return err
		}
		if !isSpace(b) {
			return br.UnreadByte()
		}
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// WritePGMGray writes img's actual region as a binary (P5) greyscale
// PGM, clamping each pixel to [0, 255].
func WritePGMGray(w io.Writer, img *image.Image) error {
	width, height := img.ActualWidth(), img.ActualHeight()
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "P5\n%d %d\n255\n", width, height); err != nil {
		return err
	}
	row := make([]byte, width)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := img.PixelR(x, y)
			row[x] = clamp8(v)
		}
		if _, err := bw.Write(row); err != nil {
			return fmt.Errorf("imageio: writing PGM row %d: %w", y, err)
		}
	}
	return bw.Flush()
}

func clamp8(v float32) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v + 0.5)
}
