package gpucore

import "fmt"

// WorkgroupSize is the 2-D tile size every flow kernel dispatches with.
// Buffers are laid out row-major, so a dispatch grid is always
// ceil(width/WorkgroupSize) x ceil(height/WorkgroupSize) workgroups.
const WorkgroupSize = 16

// Pipeline drives one adapter through the solver's kernel dispatches for
// a pyramid level (tensor, robust weights, sweeps); resampling, warping
// and boundary reflection are not dispatched here and stay on the host
// (internal/image). It owns the compiled pipeline
// objects (keyed by kernel label) and re-issues dispatches against
// whatever buffers the caller names, so the same Pipeline instance works
// across every pyramid level without rebuilding any GPU state.
type Pipeline struct {
	adapter GPUAdapter

	bindLayout     BindGroupLayoutID
	pipelineLayout PipelineLayoutID
	pipelines      map[string]ComputePipelineID
	modules        map[string]ShaderModuleID
}

// NewPipeline creates a Pipeline bound to adapter. maxBindings is the
// largest number of buffer bindings any single kernel in this pipeline
// will need (the flow kernels top out at fourteen, in sweep_robust: two
// flow components, four increment buffers, five tensor entries, two
// weight buffers and the parameter vector).
func NewPipeline(adapter GPUAdapter, maxBindings int) (*Pipeline, error) {
	if adapter == nil {
		return nil, fmt.Errorf("gpucore: adapter is required")
	}

	entries := make([]BindGroupLayoutEntry, maxBindings)
	for i := range entries {
		entries[i] = BindGroupLayoutEntry{Binding: uint32(i), Type: BindingTypeStorageBuffer}
	}
	layout, err := adapter.CreateBindGroupLayout(&BindGroupLayoutDesc{Label: "flow-kernel-bindings", Entries: entries})
	if err != nil {
		return nil, fmt.Errorf("gpucore: creating bind group layout: %w", err)
	}
	pl, err := adapter.CreatePipelineLayout([]BindGroupLayoutID{layout})
	if err != nil {
		return nil, fmt.Errorf("gpucore: creating pipeline layout: %w", err)
	}

	return &Pipeline{
		adapter:        adapter,
		bindLayout:     layout,
		pipelineLayout: pl,
		pipelines:      make(map[string]ComputePipelineID),
		modules:        make(map[string]ShaderModuleID),
	}, nil
}

// RegisterKernel compiles spirv (produced by naga from a kernel's WGSL
// source) under label, so later Dispatch calls can refer to it by name.
// Registering the same label twice replaces the previous pipeline.
func (p *Pipeline) RegisterKernel(label string, spirv []uint32) error {
	module, err := p.adapter.CreateShaderModule(spirv, label)
	if err != nil {
		return fmt.Errorf("gpucore: compiling kernel %q: %w", label, err)
	}
	pipeline, err := p.adapter.CreateComputePipeline(&ComputePipelineDesc{
		Label:        label,
		Layout:       p.pipelineLayout,
		ShaderModule: module,
		EntryPoint:   "main",
	})
	if err != nil {
		return fmt.Errorf("gpucore: creating pipeline %q: %w", label, err)
	}
	if old, ok := p.pipelines[label]; ok {
		p.adapter.DestroyComputePipeline(old)
		p.adapter.DestroyShaderModule(p.modules[label])
	}
	p.pipelines[label] = pipeline
	p.modules[label] = module
	return nil
}

// Dispatch binds buffers (in binding-index order) to the named kernel
// and runs it over a width x height grid, tiled by WorkgroupSize. It
// submits and waits for completion before returning, matching the
// pyramid driver's single-threaded, strictly-ordered happens-before
// chain (each kernel's output is read by the next).
func (p *Pipeline) Dispatch(label string, buffers []BufferID, width, height int) error {
	pipeline, ok := p.pipelines[label]
	if !ok {
		return fmt.Errorf("gpucore: kernel %q not registered", label)
	}

	entries := make([]BindGroupEntry, len(buffers))
	for i, b := range buffers {
		entries[i] = BindGroupEntry{Binding: uint32(i), Buffer: b}
	}
	group, err := p.adapter.CreateBindGroup(p.bindLayout, entries)
	if err != nil {
		return fmt.Errorf("gpucore: binding buffers for %q: %w", label, err)
	}
	defer p.adapter.DestroyBindGroup(group)

	gx := uint32((width + WorkgroupSize - 1) / WorkgroupSize)
	gy := uint32((height + WorkgroupSize - 1) / WorkgroupSize)

	enc := p.adapter.BeginComputePass()
	enc.SetPipeline(pipeline)
	enc.SetBindGroup(0, group)
	enc.Dispatch(gx, gy, 1)
	enc.End()

	p.adapter.Submit()
	p.adapter.WaitIdle()
	return nil
}

// Destroy releases every pipeline and shader module this Pipeline
// created.
func (p *Pipeline) Destroy() {
	for label, pipeline := range p.pipelines {
		p.adapter.DestroyComputePipeline(pipeline)
		p.adapter.DestroyShaderModule(p.modules[label])
	}
	p.adapter.DestroyPipelineLayout(p.pipelineLayout)
	p.adapter.DestroyBindGroupLayout(p.bindLayout)
}
