package software

import (
	"math"
	"testing"

	"github.com/axruff/gpuflow/gpucore"
	"github.com/axruff/gpuflow/internal/image"
	"github.com/axruff/gpuflow/internal/solver"
)

func extractFlat(img *image.Image) []float32 {
	w, h := img.ActualWidth(), img.ActualHeight()
	out := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out[y*w+x] = img.PixelR(x, y)
		}
	}
	return out
}

func dispatchKernel(a *testAdapter, pipelineLabel string, bufs []gpucore.BufferID, dims gpucore.BufferID, w, h int) {
	entries := make([]gpucore.BindGroupEntry, 0, len(bufs)+1)
	for i, b := range bufs {
		entries = append(entries, gpucore.BindGroupEntry{Binding: uint32(i), Buffer: b})
	}
	entries = append(entries, gpucore.BindGroupEntry{Binding: uint32(len(bufs)), Buffer: dims})

	group, _ := a.CreateBindGroup(0, entries)
	pipeline := a.labelToPipeline[pipelineLabel]
	enc := a.BeginComputePass()
	enc.SetPipeline(pipeline)
	enc.SetBindGroup(0, group)
	enc.Dispatch(uint32((w+15)/16), uint32((h+15)/16), 1)
	enc.End()
	a.Submit()
	a.WaitIdle()
}

// TestSoftwareTensorAndSweepAgreeWithHostSolver exercises the GPUAdapter
// dispatch contract (register kernel, bind buffers, dispatch, read back)
// and checks the resulting motion tensor and first SOR sweep match
// internal/solver.Linear's own computation on the same inputs, within
// floating-point rounding.
func TestSoftwareTensorAndSweepAgreeWithHostSolver(t *testing.T) {
	n := 8
	img1 := image.New(n, n, 1, 1)
	img2 := image.New(n, n, 1, 1)
	u := image.New(n, n, 1, 1)
	v := image.New(n, n, 1, 1)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			val := float32(math.Sin(float64(x)*0.5) + float64(y))
			img1.SetPixelR(x, y, val)
			img2.SetPixelR(x, y, val+0.3)
		}
	}
	img1.FillBoundaries()
	img2.FillBoundaries()

	hostSolver := solver.NewLinear(8, 1.0, n, n)
	hostSolver.Precompute(img1, img2, u, v, 1, 1)
	hostSolver.Sweep()
	wantDu := extractFlat(hostSolver.Du())
	wantDv := extractFlat(hostSolver.Dv())

	a := newTestAdapter()
	img1Buf := a.UploadFloats(extractFlat(img1))
	img2Buf := a.UploadFloats(extractFlat(img2))
	uBuf := a.UploadFloats(make([]float32, n*n))
	vBuf := a.UploadFloats(make([]float32, n*n))
	duOld := a.UploadFloats(make([]float32, n*n))
	dvOld := a.UploadFloats(make([]float32, n*n))
	duNew := a.UploadFloats(make([]float32, n*n))
	dvNew := a.UploadFloats(make([]float32, n*n))
	j11 := a.UploadFloats(make([]float32, n*n))
	j22 := a.UploadFloats(make([]float32, n*n))
	j12 := a.UploadFloats(make([]float32, n*n))
	j13 := a.UploadFloats(make([]float32, n*n))
	j23 := a.UploadFloats(make([]float32, n*n))

	tensorDims := a.DimsBuffer(n, n, 1, 1)
	dispatchKernel(a, "tensor", []gpucore.BufferID{img1Buf, img2Buf, j11, j22, j12, j13, j23}, tensorDims, n, n)

	sweepDims := a.DimsBuffer(n, n, 8, 1.0, 1, 1)
	dispatchKernel(a, "sweep_linear",
		[]gpucore.BufferID{uBuf, vBuf, duOld, dvOld, duNew, dvNew, j11, j22, j12, j13, j23},
		sweepDims, n, n)

	gotDu := a.Floats(duNew)
	gotDv := a.Floats(dvNew)

	for i := range wantDu {
		if diff := gotDu[i] - wantDu[i]; diff > 1e-3 || diff < -1e-3 {
			t.Fatalf("du[%d] = %v, want %v", i, gotDu[i], wantDu[i])
		}
		if diff := gotDv[i] - wantDv[i]; diff > 1e-3 || diff < -1e-3 {
			t.Fatalf("dv[%d] = %v, want %v", i, gotDv[i], wantDv[i])
		}
	}
}

// labelToPipeline and newTestAdapter are small test-only conveniences
// layered on top of the public Adapter API.
func newTestAdapter() *testAdapter {
	a := &testAdapter{Adapter: New(), labelToPipeline: make(map[string]gpucore.ComputePipelineID)}
	a.register("tensor", TensorKernel)
	a.register("sweep_linear", SweepLinearKernel)
	a.register("weights_robust", WeightsRobustKernel)
	a.register("sweep_robust", SweepRobustKernel)
	return a
}

type testAdapter struct {
	*Adapter
	labelToPipeline map[string]gpucore.ComputePipelineID
}

func (a *testAdapter) register(label string, fn Kernel) {
	a.RegisterKernel(label, fn)
	module, _ := a.CreateShaderModule(nil, label)
	pipeline, _ := a.CreateComputePipeline(&gpucore.ComputePipelineDesc{ShaderModule: module, Label: label})
	a.labelToPipeline[label] = pipeline
}
