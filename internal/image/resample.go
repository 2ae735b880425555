package image

// resample1D performs conservative (area-preserving) 1-D resampling of u
// (length n) into a freshly allocated slice of length m. Each output cell
// accumulates the exact overlap of its span with the input cells it
// covers, so a constant input resamples to the same constant at any m.
//
// Fast paths cover the two ratios the pyramid actually needs level to
// level (doubling and halving); the general path handles arbitrary m.
func resample1D(u []float32, m int) []float32 {
	n := len(u)
	v := make([]float32, m)
	switch {
	case m == 2*n:
		for i := 0; i < n; i++ {
			v[2*i] = u[i]
			v[2*i+1] = u[i]
		}
		return v
	case n == 2*m:
		for i := 0; i < m; i++ {
			v[i] = 0.5 * (u[2*i] + u[2*i+1])
		}
		return v
	}

	hu := 1.0 / float32(n)
	hv := 1.0 / float32(m)
	fac := hu / hv
	uleft := float32(0)
	vleft := float32(0)
	k := 0
	at := func(k int) float32 {
		if k < 0 {
			k = 0
		}
		if k >= n {
			k = n - 1
		}
		return u[k]
	}

	for i := 0; i < m; i++ {
		uright := uleft + hu
		vright := vleft + hv
		if uright > vright {
			v[i] = at(k)
		} else {
			v[i] = (uright - vleft) * float32(n) * at(k)
			k++
			uright += hu
			for uright <= vright {
				v[i] += at(k)
				k++
				uright += hu
			}
			v[i] += (1 - (uright-vright)*float32(n)) * at(k)
			v[i] *= fac
		}
		uleft = uright - hu
		vleft = vright
	}
	return v
}

// resample2Dx resamples src into dst along x only; dst's actual height
// must already equal src's actual height, and dst's actual width is the
// target width.
func resample2Dx(src, dst *Image) {
	h := src.ActualHeight()
	w := src.ActualWidth()
	dw := dst.ActualWidth()
	assertf(dst.ActualHeight() == h, "resample2Dx: height mismatch")
	row := make([]float32, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			row[x] = src.PixelR(x, y)
		}
		out := resample1D(row, dw)
		for x := 0; x < dw; x++ {
			dst.SetPixelR(x, y, out[x])
		}
	}
}

// resample2Dy resamples src into dst along y only; dst's actual width
// must already equal src's actual width, and dst's actual height is the
// target height.
func resample2Dy(src, dst *Image) {
	w := src.ActualWidth()
	h := src.ActualHeight()
	dh := dst.ActualHeight()
	assertf(dst.ActualWidth() == w, "resample2Dy: width mismatch")
	col := make([]float32, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			col[y] = src.PixelR(x, y)
		}
		out := resample1D(col, dh)
		for y := 0; y < dh; y++ {
			dst.SetPixelR(x, y, out[y])
		}
	}
}

// Resample performs separable area-based resampling of src into dst at
// capacity (dstW, dstH). dst's capacity must be able to hold (dstW, dstH);
// its actual size is set to (dstW, dstH) on return. tmp is scratch storage
// reused by the caller across pyramid levels; its capacity must be at
// least as large as the larger of the two intermediate shapes this call
// may need.
//
// When enlarging vertically the pass goes x-first (the intermediate image
// is (dstW, srcH), the smaller of the two possible intermediates); when
// shrinking vertically it goes y-first (intermediate (srcW, dstH)).
func Resample(src, dst, tmp *Image, dstW, dstH int) {
	assertf(dstW <= dst.Width() && dstH <= dst.Height(), "Resample: dst capacity too small")
	dst.SetActualSize(dstW, dstH)
	srcW, srcH := src.ActualWidth(), src.ActualHeight()

	if dstH >= srcH {
		tmp.SetActualSize(dstW, srcH)
		resample2Dx(src, tmp)
		resample2Dy(tmp, dst)
	} else {
		tmp.SetActualSize(srcW, dstH)
		resample2Dy(src, tmp)
		resample2Dx(tmp, dst)
	}
}
