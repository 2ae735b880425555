// Package software implements gpucore.GPUAdapter entirely in-process, so
// the flow pipeline's dispatch ordering can be exercised without a real
// GPU device. Buffers are plain Go byte slices; "shader modules" and
// "pipelines" are opaque labels resolved at Dispatch time to a Go
// function registered via RegisterKernel, which runs the same per-pixel
// math described in internal/solver directly against the bound buffers.
package software

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/axruff/gpuflow/gpucore"
)

// Kernel is the CPU implementation of one compute shader. buffers holds
// the bound buffer contents in binding order; a kernel both reads and
// writes in place.
type Kernel func(buffers [][]float32, width, height int)

// Adapter is a gpucore.GPUAdapter that runs every dispatch synchronously
// on the calling goroutine.
type Adapter struct {
	nextID  uint64
	buffers map[gpucore.BufferID][]float32

	moduleLabels   map[gpucore.ShaderModuleID]string
	pipelineLabels map[gpucore.ComputePipelineID]string
	bindGroups     map[gpucore.BindGroupID][]gpucore.BindGroupEntry

	kernels map[string]Kernel

	queue []recordedDispatch
}

type recordedDispatch struct {
	pipeline gpucore.ComputePipelineID
	group    gpucore.BindGroupID
	gx, gy   uint32
}

// New creates an empty software Adapter.
func New() *Adapter {
	return &Adapter{
		buffers:        make(map[gpucore.BufferID][]float32),
		moduleLabels:   make(map[gpucore.ShaderModuleID]string),
		pipelineLabels: make(map[gpucore.ComputePipelineID]string),
		bindGroups:     make(map[gpucore.BindGroupID][]gpucore.BindGroupEntry),
		kernels:        make(map[string]Kernel),
	}
}

// RegisterKernel associates label with the Go function that simulates
// it. CreateShaderModule/CreateComputePipeline calls using that label
// cause later Dispatch calls to invoke fn.
func (a *Adapter) RegisterKernel(label string, fn Kernel) {
	a.kernels[label] = fn
}

func (a *Adapter) allocID() uint64 {
	a.nextID++
	return a.nextID
}

func (a *Adapter) Capabilities() gpucore.AdapterCapabilities {
	return gpucore.AdapterCapabilities{
		SupportsCompute:         true,
		MaxWorkgroupSizeX:       1024,
		MaxWorkgroupSizeY:       1024,
		MaxWorkgroupInvocations: 1024,
		MaxBufferSize:           1 << 30,
	}
}

func (a *Adapter) CreateShaderModule(spirv []uint32, label string) (gpucore.ShaderModuleID, error) {
	id := gpucore.ShaderModuleID(a.allocID())
	a.moduleLabels[id] = label
	return id, nil
}

func (a *Adapter) DestroyShaderModule(id gpucore.ShaderModuleID) {
	delete(a.moduleLabels, id)
}

func (a *Adapter) CreateBuffer(size int, usage gpucore.BufferUsage) (gpucore.BufferID, error) {
	id := gpucore.BufferID(a.allocID())
	a.buffers[id] = make([]float32, size/4)
	return id, nil
}

func (a *Adapter) DestroyBuffer(id gpucore.BufferID) {
	delete(a.buffers, id)
}

func (a *Adapter) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) {
	buf, ok := a.buffers[id]
	if !ok {
		return
	}
	start := int(offset) / 4
	for i := 0; i+4 <= len(data); i += 4 {
		buf[start+i/4] = math.Float32frombits(binary.LittleEndian.Uint32(data[i : i+4]))
	}
}

func (a *Adapter) ReadBuffer(id gpucore.BufferID, offset, size uint64) ([]byte, error) {
	buf, ok := a.buffers[id]
	if !ok {
		return nil, fmt.Errorf("software: unknown buffer %d", id)
	}
	start := int(offset) / 4
	n := int(size) / 4
	out := make([]byte, size)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(out[i*4:i*4+4], math.Float32bits(buf[start+i]))
	}
	return out, nil
}

func (a *Adapter) CreateBindGroupLayout(desc *gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	return gpucore.BindGroupLayoutID(a.allocID()), nil
}

func (a *Adapter) DestroyBindGroupLayout(gpucore.BindGroupLayoutID) {}

func (a *Adapter) CreatePipelineLayout(layouts []gpucore.BindGroupLayoutID) (gpucore.PipelineLayoutID, error) {
	return gpucore.PipelineLayoutID(a.allocID()), nil
}

func (a *Adapter) DestroyPipelineLayout(gpucore.PipelineLayoutID) {}

func (a *Adapter) CreateComputePipeline(desc *gpucore.ComputePipelineDesc) (gpucore.ComputePipelineID, error) {
	label, ok := a.moduleLabels[desc.ShaderModule]
	if !ok {
		return 0, fmt.Errorf("software: unknown shader module %d", desc.ShaderModule)
	}
	id := gpucore.ComputePipelineID(a.allocID())
	a.pipelineLabels[id] = label
	return id, nil
}

func (a *Adapter) DestroyComputePipeline(id gpucore.ComputePipelineID) {
	delete(a.pipelineLabels, id)
}

func (a *Adapter) CreateBindGroup(layout gpucore.BindGroupLayoutID, entries []gpucore.BindGroupEntry) (gpucore.BindGroupID, error) {
	id := gpucore.BindGroupID(a.allocID())
	cp := make([]gpucore.BindGroupEntry, len(entries))
	copy(cp, entries)
	a.bindGroups[id] = cp
	return id, nil
}

func (a *Adapter) DestroyBindGroup(id gpucore.BindGroupID) {
	delete(a.bindGroups, id)
}

type passEncoder struct {
	a        *Adapter
	pipeline gpucore.ComputePipelineID
	group    gpucore.BindGroupID
}

func (a *Adapter) BeginComputePass() gpucore.ComputePassEncoder {
	return &passEncoder{a: a}
}

func (e *passEncoder) SetPipeline(p gpucore.ComputePipelineID) { e.pipeline = p }
func (e *passEncoder) SetBindGroup(index uint32, g gpucore.BindGroupID) {
	e.group = g
}
func (e *passEncoder) Dispatch(x, y, z uint32) {
	e.a.queue = append(e.a.queue, recordedDispatch{pipeline: e.pipeline, group: e.group, gx: x, gy: y})
}
func (e *passEncoder) End() {}

// Submit executes every dispatch recorded since the last Submit, in
// order, synchronously.
func (a *Adapter) Submit() {
	for _, d := range a.queue {
		label := a.pipelineLabels[d.pipeline]
		kernel, ok := a.kernels[label]
		if !ok {
			continue
		}
		entries := a.bindGroups[d.group]
		if len(entries) == 0 {
			continue
		}
		buffers := make([][]float32, len(entries))
		for i := range entries {
			buffers[i] = a.buffers[entries[i].Buffer]
		}
		// By convention the last bound buffer is the parameter vector
		// [width, height, ...extra] as float32 (see DimsBuffer), since
		// plain storage buffers carry no shape of their own. It is also
		// passed to the kernel as its last buffer, for the extra scalars.
		dims := a.buffers[entries[len(entries)-1].Buffer]
		width, height := int(dims[0]), int(dims[1])
		kernel(buffers, width, height)
	}
	a.queue = a.queue[:0]
}

func (a *Adapter) WaitIdle() {}

// DimsBuffer allocates and uploads the parameter vector every kernel
// dispatch expects as its last bound buffer: [width, height, ...extra],
// where extra holds whatever scalar constants that kernel needs (grid
// spacing, alpha/omega, epsilons).
func (a *Adapter) DimsBuffer(width, height int, extra ...float32) gpucore.BufferID {
	id, _ := a.CreateBuffer((2+len(extra))*4, gpucore.BufferUsageUniform)
	buf := a.buffers[id]
	buf[0] = float32(width)
	buf[1] = float32(height)
	copy(buf[2:], extra)
	return id
}

// UploadFloats allocates a buffer sized to data and copies it in
// directly, bypassing the byte-serialised WriteBuffer path (a
// convenience for tests, where there is no real device to marshal bytes
// across).
func (a *Adapter) UploadFloats(data []float32) gpucore.BufferID {
	id, _ := a.CreateBuffer(len(data)*4, gpucore.BufferUsageStorage)
	copy(a.buffers[id], data)
	return id
}

// Floats returns the current contents of a buffer as a float32 slice,
// again bypassing byte serialisation.
func (a *Adapter) Floats(id gpucore.BufferID) []float32 {
	return a.buffers[id]
}

var _ gpucore.GPUAdapter = (*Adapter)(nil)
