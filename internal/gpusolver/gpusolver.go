// Package gpusolver implements internal/solver.Solver by dispatching the
// same per-pixel kernels backend/software and backend/wgpuflow register
// under the labels "tensor", "sweep_linear", "weights_robust" and
// "sweep_robust" through a gpucore.Pipeline. Because it talks to
// gpucore.GPUAdapter only through the generic byte-level
// WriteBuffer/ReadBuffer methods, the same Solver runs unmodified against
// either backend: internal/pyramid.Driver.Run never needs to know which
// one it got.
package gpusolver

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/axruff/gpuflow/gpucore"
	"github.com/axruff/gpuflow/internal/image"
	"github.com/axruff/gpuflow/internal/solver"
)

var _ solver.Solver = (*Solver)(nil)

type kind int

const (
	kindLinear kind = iota
	kindRobust
)

// Solver is a internal/solver.Solver backed by a gpucore.Pipeline. Its
// buffers are sized once, at construction, for the largest pyramid level
// it will ever see, and reused by capacity across every subsequent level
// exactly as the host solvers reuse their ping-pong *image.Image pairs.
type Solver struct {
	adapter  gpucore.GPUAdapter
	pipeline *gpucore.Pipeline
	kind     kind

	alpha, omega   float32
	eSmooth, eData float32
	inner          int

	capW, capH int
	w, h       int
	hx, hy     float32

	img1, img2w, uBuf, vBuf gpucore.BufferID
	du, dv                  [2]gpucore.BufferID
	cur                     int
	j11, j22, j12, j13, j23 gpucore.BufferID
	psi, xi                 gpucore.BufferID
	params                  gpucore.BufferID

	out *image.Image // scratch for Du/Dv readback, capacity (capW, capH), no halo
}

// NewLinear constructs a gpucore-backed Solver equivalent to
// internal/solver.Linear, with buffer capacity for images up to
// (capW, capH).
func NewLinear(adapter gpucore.GPUAdapter, pipeline *gpucore.Pipeline, alpha, omega float32, capW, capH int) (*Solver, error) {
	s := &Solver{
		adapter: adapter, pipeline: pipeline, kind: kindLinear,
		alpha: alpha, omega: omega,
		capW: capW, capH: capH,
		out: image.New(capW, capH, 0, 0),
	}
	if err := s.allocBuffers(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewRobust constructs a gpucore-backed Solver equivalent to
// internal/solver.Robust, with buffer capacity for images up to
// (capW, capH) and inner inner sweeps per outer iteration.
func NewRobust(adapter gpucore.GPUAdapter, pipeline *gpucore.Pipeline, alpha, omega, eSmooth, eData float32, inner, capW, capH int) (*Solver, error) {
	s := &Solver{
		adapter: adapter, pipeline: pipeline, kind: kindRobust,
		alpha: alpha, omega: omega, eSmooth: eSmooth, eData: eData, inner: inner,
		capW: capW, capH: capH,
		out: image.New(capW, capH, 0, 0),
	}
	if err := s.allocBuffers(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Solver) allocBuffers() error {
	n := s.capW * s.capH
	storage := func() (gpucore.BufferID, error) {
		return s.adapter.CreateBuffer(n*4, gpucore.BufferUsageStorage)
	}

	ids := []*gpucore.BufferID{
		&s.img1, &s.img2w, &s.uBuf, &s.vBuf,
		&s.du[0], &s.du[1], &s.dv[0], &s.dv[1],
		&s.j11, &s.j22, &s.j12, &s.j13, &s.j23,
	}
	if s.kind == kindRobust {
		ids = append(ids, &s.psi, &s.xi)
	}
	for _, id := range ids {
		buf, err := storage()
		if err != nil {
			return fmt.Errorf("gpusolver: allocating buffer: %w", err)
		}
		*id = buf
	}

	// 6 float32s covers the largest parameter vector any kernel needs
	// (weights_robust: width, height, hx, hy, eSmooth, eData).
	params, err := s.adapter.CreateBuffer(6*4, gpucore.BufferUsageUniform)
	if err != nil {
		return fmt.Errorf("gpusolver: allocating params buffer: %w", err)
	}
	s.params = params
	return nil
}

// Precompute uploads img1, the backward-warped img2, and the current flow
// estimate (u, v), zeroes the increment buffers, and dispatches the
// tensor kernel for this level.
func (s *Solver) Precompute(img1, img2Warped, u, v *image.Image, hx, hy float32) {
	w, h := img1.ActualWidth(), img1.ActualHeight()
	if w > s.capW || h > s.capH {
		panic(fmt.Sprintf("gpusolver: level %dx%d exceeds solver capacity %dx%d", w, h, s.capW, s.capH))
	}
	s.w, s.h, s.hx, s.hy = w, h, hx, hy
	s.cur = 0

	s.uploadImage(s.img1, img1)
	s.uploadImage(s.img2w, img2Warped)
	s.uploadImage(s.uBuf, u)
	s.uploadImage(s.vBuf, v)
	zero := make([]byte, w*h*4)
	for _, b := range [...]gpucore.BufferID{s.du[0], s.du[1], s.dv[0], s.dv[1]} {
		s.adapter.WriteBuffer(b, 0, zero)
	}

	s.writeParams(hx, hy)
	must(s.pipeline.Dispatch("tensor", []gpucore.BufferID{
		s.img1, s.img2w, s.j11, s.j22, s.j12, s.j13, s.j23, s.params,
	}, w, h))
}

// Sweep advances the flow increment by one iteration unit: a single
// Jacobi SOR sweep for the linear solver, or one outer
// recompute-weights-then-inner-sweeps iteration for the robust solver.
func (s *Solver) Sweep() {
	if s.kind == kindLinear {
		s.sweepLinear()
		return
	}
	s.recomputeWeights()
	for i := 0; i < s.inner; i++ {
		s.sweepRobust()
	}
}

func (s *Solver) sweepLinear() {
	next := 1 - s.cur
	s.writeParams(s.alpha, s.omega, s.hx, s.hy)
	must(s.pipeline.Dispatch("sweep_linear", []gpucore.BufferID{
		s.uBuf, s.vBuf,
		s.du[s.cur], s.dv[s.cur], s.du[next], s.dv[next],
		s.j11, s.j22, s.j12, s.j13, s.j23,
		s.params,
	}, s.w, s.h))
	s.cur = next
}

func (s *Solver) recomputeWeights() {
	s.writeParams(s.hx, s.hy, s.eSmooth, s.eData)
	must(s.pipeline.Dispatch("weights_robust", []gpucore.BufferID{
		s.uBuf, s.vBuf, s.du[s.cur], s.dv[s.cur],
		s.psi, s.xi,
		s.j11, s.j22, s.j12, s.j13, s.j23,
		s.params,
	}, s.w, s.h))
}

func (s *Solver) sweepRobust() {
	next := 1 - s.cur
	s.writeParams(s.alpha, s.omega, s.hx, s.hy)
	must(s.pipeline.Dispatch("sweep_robust", []gpucore.BufferID{
		s.uBuf, s.vBuf,
		s.du[s.cur], s.dv[s.cur], s.du[next], s.dv[next],
		s.j11, s.j22, s.j12, s.j13, s.j23,
		s.psi, s.xi,
		s.params,
	}, s.w, s.h))
	s.cur = next
}

// Du returns the current u increment. The returned image is owned by the
// Solver and its contents change on the next call to Du, Dv or Sweep.
func (s *Solver) Du() *image.Image { return s.readBack(s.du[s.cur]) }

// Dv returns the current v increment, with the same aliasing caveat as Du.
func (s *Solver) Dv() *image.Image { return s.readBack(s.dv[s.cur]) }

func (s *Solver) readBack(buf gpucore.BufferID) *image.Image {
	data, err := s.adapter.ReadBuffer(buf, 0, uint64(s.w*s.h*4))
	if err != nil {
		panic(fmt.Sprintf("gpusolver: reading back buffer: %v", err))
	}
	s.out.SetActualSize(s.w, s.h)
	for y := 0; y < s.h; y++ {
		for x := 0; x < s.w; x++ {
			off := (y*s.w + x) * 4
			s.out.SetPixelR(x, y, math.Float32frombits(binary.LittleEndian.Uint32(data[off:off+4])))
		}
	}
	return s.out
}

func (s *Solver) uploadImage(buf gpucore.BufferID, img *image.Image) {
	w, h := img.ActualWidth(), img.ActualHeight()
	data := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := (y*w + x) * 4
			binary.LittleEndian.PutUint32(data[off:off+4], math.Float32bits(img.PixelR(x, y)))
		}
	}
	s.adapter.WriteBuffer(buf, 0, data)
}

// writeParams uploads [width, height, extra...] as the small parameter
// vector every kernel's last binding expects.
func (s *Solver) writeParams(extra ...float32) {
	vals := append([]float32{float32(s.w), float32(s.h)}, extra...)
	data := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(data[i*4:i*4+4], math.Float32bits(v))
	}
	s.adapter.WriteBuffer(s.params, 0, data)
}

func must(err error) {
	if err != nil {
		panic(fmt.Sprintf("gpusolver: dispatch failed: %v", err))
	}
}
