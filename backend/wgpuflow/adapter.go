package wgpuflow

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/types"

	"github.com/axruff/gpuflow/gpucore"
)

// Adapter implements gpucore.GPUAdapter against a real device obtained
// from a gpucontext.DeviceProvider. It is safe for sequential reuse
// across pyramid levels; it is not safe for concurrent dispatch from
// more than one goroutine, matching gpucore.GPUAdapter's contract.
type Adapter struct {
	mu     sync.RWMutex
	device hal.Device
	queue  hal.Queue

	nextID atomic.Uint64

	buffers          map[gpucore.BufferID]hal.Buffer
	shaderModules    map[gpucore.ShaderModuleID]hal.ShaderModule
	bindGroupLayouts map[gpucore.BindGroupLayoutID]hal.BindGroupLayout
	pipelineLayouts  map[gpucore.PipelineLayoutID]hal.PipelineLayout
	computePipelines map[gpucore.ComputePipelineID]hal.ComputePipeline
	bindGroups       map[gpucore.BindGroupID]hal.BindGroup

	encoder    hal.CommandEncoder
	hasEncoder bool
}

// New creates an Adapter wrapping the device and queue provided by dp.
// dp is supplied by the host application; cmd/flowcli has no provider
// of its own and falls back to the software adapter.
func New(dp gpucontext.DeviceProvider) (*Adapter, error) {
	if dp == nil {
		return nil, fmt.Errorf("wgpuflow: device provider is required")
	}
	device, _ := dp.Device().(hal.Device)
	queue, _ := dp.Queue().(hal.Queue)
	if device == nil || queue == nil {
		return nil, fmt.Errorf("wgpuflow: device provider did not yield a usable hal.Device/hal.Queue")
	}
	a := &Adapter{
		device:           device,
		queue:            queue,
		buffers:          make(map[gpucore.BufferID]hal.Buffer),
		shaderModules:    make(map[gpucore.ShaderModuleID]hal.ShaderModule),
		bindGroupLayouts: make(map[gpucore.BindGroupLayoutID]hal.BindGroupLayout),
		pipelineLayouts:  make(map[gpucore.PipelineLayoutID]hal.PipelineLayout),
		computePipelines: make(map[gpucore.ComputePipelineID]hal.ComputePipeline),
		bindGroups:       make(map[gpucore.BindGroupID]hal.BindGroup),
	}
	a.nextID.Store(1)
	return a, nil
}

func (a *Adapter) newID() uint64 { return a.nextID.Add(1) - 1 }

func (a *Adapter) Capabilities() gpucore.AdapterCapabilities {
	lim := a.device.Limits()
	return gpucore.AdapterCapabilities{
		SupportsCompute:         true,
		MaxWorkgroupSizeX:       lim.MaxComputeWorkgroupSizeX,
		MaxWorkgroupSizeY:       lim.MaxComputeWorkgroupSizeY,
		MaxWorkgroupInvocations: lim.MaxComputeInvocationsPerWorkgroup,
		MaxBufferSize:           lim.MaxBufferSize,
	}
}

func (a *Adapter) CreateShaderModule(spirv []uint32, label string) (gpucore.ShaderModuleID, error) {
	if len(spirv) == 0 {
		return gpucore.InvalidID, fmt.Errorf("wgpuflow: empty SPIR-V for %q", label)
	}
	module, err := a.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpuflow: compiling shader module %q: %w", label, err)
	}
	id := gpucore.ShaderModuleID(a.newID())
	a.mu.Lock()
	a.shaderModules[id] = module
	a.mu.Unlock()
	return id, nil
}

func (a *Adapter) DestroyShaderModule(id gpucore.ShaderModuleID) {
	a.mu.Lock()
	module, ok := a.shaderModules[id]
	delete(a.shaderModules, id)
	a.mu.Unlock()
	if ok {
		a.device.DestroyShaderModule(module)
	}
}

func (a *Adapter) CreateBuffer(size int, usage gpucore.BufferUsage) (gpucore.BufferID, error) {
	if size <= 0 {
		return gpucore.InvalidID, fmt.Errorf("wgpuflow: buffer size must be positive, got %d", size)
	}
	buffer, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Size:  uint64(size),
		Usage: convertBufferUsage(usage),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpuflow: creating buffer: %w", err)
	}
	id := gpucore.BufferID(a.newID())
	a.mu.Lock()
	a.buffers[id] = buffer
	a.mu.Unlock()
	return id, nil
}

func (a *Adapter) DestroyBuffer(id gpucore.BufferID) {
	a.mu.Lock()
	buffer, ok := a.buffers[id]
	delete(a.buffers, id)
	a.mu.Unlock()
	if ok {
		a.device.DestroyBuffer(buffer)
	}
}

func (a *Adapter) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) {
	a.mu.RLock()
	buffer, ok := a.buffers[id]
	a.mu.RUnlock()
	if ok && len(data) > 0 {
		a.queue.WriteBuffer(buffer, offset, data)
	}
}

// ReadBuffer copies size bytes out of buffer id starting at offset via a
// mapped staging buffer, blocking until the copy completes.
func (a *Adapter) ReadBuffer(id gpucore.BufferID, offset, size uint64) ([]byte, error) {
	a.mu.RLock()
	buffer, ok := a.buffers[id]
	a.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("wgpuflow: unknown buffer %d", id)
	}

	staging, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label:            "wgpuflow-readback",
		Size:             size,
		Usage:            types.BufferUsageMapRead | types.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpuflow: creating staging buffer: %w", err)
	}
	defer a.device.DestroyBuffer(staging)

	encoder, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "wgpuflow-readback"})
	if err != nil {
		return nil, fmt.Errorf("wgpuflow: creating command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("wgpuflow-readback"); err != nil {
		return nil, fmt.Errorf("wgpuflow: begin encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(buffer, staging, []hal.BufferCopy{{SrcOffset: offset, DstOffset: 0, Size: size}})
	cmd, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("wgpuflow: end encoding: %w", err)
	}
	defer cmd.Destroy()

	fence, err := a.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("wgpuflow: creating fence: %w", err)
	}
	defer a.device.DestroyFence(fence)

	if err := a.queue.Submit([]hal.CommandBuffer{cmd}, fence, 1); err != nil {
		return nil, fmt.Errorf("wgpuflow: submitting readback: %w", err)
	}
	if _, err := a.device.Wait(fence, 1, 5_000_000_000); err != nil {
		return nil, fmt.Errorf("wgpuflow: waiting for readback: %w", err)
	}

	return staging.MapRead(0, size)
}

func (a *Adapter) CreateBindGroupLayout(desc *gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	entries := make([]types.BindGroupLayoutEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entries[i] = convertBindGroupLayoutEntry(e)
	}
	layout, err := a.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{Label: desc.Label, Entries: entries})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpuflow: creating bind group layout: %w", err)
	}
	id := gpucore.BindGroupLayoutID(a.newID())
	a.mu.Lock()
	a.bindGroupLayouts[id] = layout
	a.mu.Unlock()
	return id, nil
}

func (a *Adapter) DestroyBindGroupLayout(id gpucore.BindGroupLayoutID) {
	a.mu.Lock()
	layout, ok := a.bindGroupLayouts[id]
	delete(a.bindGroupLayouts, id)
	a.mu.Unlock()
	if ok {
		a.device.DestroyBindGroupLayout(layout)
	}
}

func (a *Adapter) CreatePipelineLayout(layouts []gpucore.BindGroupLayoutID) (gpucore.PipelineLayoutID, error) {
	a.mu.RLock()
	halLayouts := make([]hal.BindGroupLayout, len(layouts))
	for i, id := range layouts {
		l, ok := a.bindGroupLayouts[id]
		if !ok {
			a.mu.RUnlock()
			return gpucore.InvalidID, fmt.Errorf("wgpuflow: unknown bind group layout %d", id)
		}
		halLayouts[i] = l
	}
	a.mu.RUnlock()

	pl, err := a.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{BindGroupLayouts: halLayouts})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpuflow: creating pipeline layout: %w", err)
	}
	id := gpucore.PipelineLayoutID(a.newID())
	a.mu.Lock()
	a.pipelineLayouts[id] = pl
	a.mu.Unlock()
	return id, nil
}

func (a *Adapter) DestroyPipelineLayout(id gpucore.PipelineLayoutID) {
	a.mu.Lock()
	pl, ok := a.pipelineLayouts[id]
	delete(a.pipelineLayouts, id)
	a.mu.Unlock()
	if ok {
		a.device.DestroyPipelineLayout(pl)
	}
}

func (a *Adapter) CreateComputePipeline(desc *gpucore.ComputePipelineDesc) (gpucore.ComputePipelineID, error) {
	a.mu.RLock()
	layout, layoutOK := a.pipelineLayouts[desc.Layout]
	module, moduleOK := a.shaderModules[desc.ShaderModule]
	a.mu.RUnlock()
	if !layoutOK {
		return gpucore.InvalidID, fmt.Errorf("wgpuflow: unknown pipeline layout %d", desc.Layout)
	}
	if !moduleOK {
		return gpucore.InvalidID, fmt.Errorf("wgpuflow: unknown shader module %d", desc.ShaderModule)
	}

	entry := desc.EntryPoint
	if entry == "" {
		entry = "main"
	}
	pipeline, err := a.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   desc.Label,
		Layout:  layout,
		Compute: hal.ComputeState{Module: module, EntryPoint: entry},
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpuflow: creating compute pipeline %q: %w", desc.Label, err)
	}
	id := gpucore.ComputePipelineID(a.newID())
	a.mu.Lock()
	a.computePipelines[id] = pipeline
	a.mu.Unlock()
	return id, nil
}

func (a *Adapter) DestroyComputePipeline(id gpucore.ComputePipelineID) {
	a.mu.Lock()
	pipeline, ok := a.computePipelines[id]
	delete(a.computePipelines, id)
	a.mu.Unlock()
	if ok {
		a.device.DestroyComputePipeline(pipeline)
	}
}

func (a *Adapter) CreateBindGroup(layout gpucore.BindGroupLayoutID, entries []gpucore.BindGroupEntry) (gpucore.BindGroupID, error) {
	a.mu.RLock()
	halLayout, ok := a.bindGroupLayouts[layout]
	if !ok {
		a.mu.RUnlock()
		return gpucore.InvalidID, fmt.Errorf("wgpuflow: unknown bind group layout %d", layout)
	}
	halEntries := make([]types.BindGroupEntry, len(entries))
	for i, e := range entries {
		buffer, ok := a.buffers[e.Buffer]
		if !ok {
			a.mu.RUnlock()
			return gpucore.InvalidID, fmt.Errorf("wgpuflow: unknown buffer %d at binding %d", e.Buffer, e.Binding)
		}
		halEntries[i] = types.BindGroupEntry{
			Binding:  e.Binding,
			Resource: types.BufferBinding{Buffer: buffer, Offset: e.Offset, Size: e.Size},
		}
	}
	a.mu.RUnlock()

	group, err := a.device.CreateBindGroup(&hal.BindGroupDescriptor{Layout: halLayout, Entries: halEntries})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpuflow: creating bind group: %w", err)
	}
	id := gpucore.BindGroupID(a.newID())
	a.mu.Lock()
	a.bindGroups[id] = group
	a.mu.Unlock()
	return id, nil
}

func (a *Adapter) DestroyBindGroup(id gpucore.BindGroupID) {
	a.mu.Lock()
	group, ok := a.bindGroups[id]
	delete(a.bindGroups, id)
	a.mu.Unlock()
	if ok {
		a.device.DestroyBindGroup(group)
	}
}

func (a *Adapter) BeginComputePass() gpucore.ComputePassEncoder {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.hasEncoder {
		encoder, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "gpuflow-compute"})
		if err != nil {
			return &passEncoder{adapter: a}
		}
		if err := encoder.BeginEncoding("gpuflow-compute"); err != nil {
			return &passEncoder{adapter: a}
		}
		a.encoder = encoder
		a.hasEncoder = true
	}

	pass := a.encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "gpuflow-kernel"})
	return &passEncoder{adapter: a, pass: pass}
}

// Submit ends the encoder recorded since the last Submit and queues it
// for execution; it does not wait for completion (see WaitIdle).
func (a *Adapter) Submit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.hasEncoder {
		return
	}
	cmd, err := a.encoder.EndEncoding()
	a.encoder, a.hasEncoder = nil, false
	if err != nil {
		return
	}
	defer cmd.Destroy()
	_ = a.queue.Submit([]hal.CommandBuffer{cmd}, nil, 0)
}

// WaitIdle flushes any pending Submit and blocks until the device has
// finished every dispatch recorded so far, via a fence signalled after
// an empty submission.
func (a *Adapter) WaitIdle() {
	a.Submit()

	fence, err := a.device.CreateFence()
	if err != nil {
		return
	}
	defer a.device.DestroyFence(fence)
	if err := a.queue.Submit(nil, fence, 1); err != nil {
		return
	}
	_, _ = a.device.Wait(fence, 1, 5_000_000_000)
}

type passEncoder struct {
	adapter *Adapter
	pass    hal.ComputePassEncoder
}

func (e *passEncoder) SetPipeline(id gpucore.ComputePipelineID) {
	if e.pass == nil {
		return
	}
	e.adapter.mu.RLock()
	pipeline, ok := e.adapter.computePipelines[id]
	e.adapter.mu.RUnlock()
	if ok {
		e.pass.SetPipeline(pipeline)
	}
}

func (e *passEncoder) SetBindGroup(index uint32, id gpucore.BindGroupID) {
	if e.pass == nil {
		return
	}
	e.adapter.mu.RLock()
	group, ok := e.adapter.bindGroups[id]
	e.adapter.mu.RUnlock()
	if ok {
		e.pass.SetBindGroup(index, group)
	}
}

func (e *passEncoder) Dispatch(x, y, z uint32) {
	if e.pass == nil {
		return
	}
	e.pass.Dispatch(x, y, z)
}

func (e *passEncoder) End() {
	if e.pass == nil {
		return
	}
	e.pass.End()
}

func convertBufferUsage(usage gpucore.BufferUsage) types.BufferUsage {
	var out types.BufferUsage
	if usage&gpucore.BufferUsageCopySrc != 0 {
		out |= types.BufferUsageCopySrc
	}
	if usage&gpucore.BufferUsageCopyDst != 0 {
		out |= types.BufferUsageCopyDst
	}
	if usage&gpucore.BufferUsageStorage != 0 {
		out |= types.BufferUsageStorage
	}
	if usage&gpucore.BufferUsageUniform != 0 {
		out |= types.BufferUsageUniform
	}
	return out
}

func convertBindGroupLayoutEntry(e gpucore.BindGroupLayoutEntry) types.BindGroupLayoutEntry {
	entry := types.BindGroupLayoutEntry{Binding: e.Binding, Visibility: types.ShaderStageCompute}
	switch e.Type {
	case gpucore.BindingTypeUniformBuffer:
		entry.Buffer = &types.BufferBindingLayout{Type: types.BufferBindingTypeUniform, MinBindingSize: e.MinBindingSize}
	case gpucore.BindingTypeReadOnlyStorageBuffer:
		entry.Buffer = &types.BufferBindingLayout{Type: types.BufferBindingTypeReadOnlyStorage, MinBindingSize: e.MinBindingSize}
	default:
		entry.Buffer = &types.BufferBindingLayout{Type: types.BufferBindingTypeStorage, MinBindingSize: e.MinBindingSize}
	}
	return entry
}

var _ gpucore.GPUAdapter = (*Adapter)(nil)
