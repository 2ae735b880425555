package gpucore

// GPUAdapter abstracts over GPU backend implementations so the flow
// pipeline's dispatch logic is written once and runs against either a
// real wgpu device or an in-process CPU simulation.
//
// Resource lifecycle: resources are created via Create* methods and
// released via Destroy* methods; an ID becomes invalid after its
// resource is destroyed and must not be reused. Implementations need
// only be safe for sequential reuse across pyramid levels — the host
// driver never calls an adapter from more than one goroutine.
type GPUAdapter interface {
	// Capabilities reports the adapter's compute limits.
	Capabilities() AdapterCapabilities

	// CreateShaderModule compiles SPIR-V bytecode (produced by naga from
	// WGSL source) into a shader module.
	CreateShaderModule(spirv []uint32, label string) (ShaderModuleID, error)
	DestroyShaderModule(id ShaderModuleID)

	// CreateBuffer allocates a device buffer of size bytes.
	CreateBuffer(size int, usage BufferUsage) (BufferID, error)
	DestroyBuffer(id BufferID)

	// WriteBuffer uploads data at the given byte offset.
	WriteBuffer(id BufferID, offset uint64, data []byte)

	// ReadBuffer reads size bytes back from the given byte offset. This
	// may stall for GPU-CPU synchronisation.
	ReadBuffer(id BufferID, offset, size uint64) ([]byte, error)

	CreateBindGroupLayout(desc *BindGroupLayoutDesc) (BindGroupLayoutID, error)
	DestroyBindGroupLayout(id BindGroupLayoutID)

	CreatePipelineLayout(layouts []BindGroupLayoutID) (PipelineLayoutID, error)
	DestroyPipelineLayout(id PipelineLayoutID)

	CreateComputePipeline(desc *ComputePipelineDesc) (ComputePipelineID, error)
	DestroyComputePipeline(id ComputePipelineID)

	CreateBindGroup(layout BindGroupLayoutID, entries []BindGroupEntry) (BindGroupID, error)
	DestroyBindGroup(id BindGroupID)

	// BeginComputePass begins recording a compute pass. The returned
	// encoder must be ended with End() before Submit().
	BeginComputePass() ComputePassEncoder

	// Submit executes all recorded passes since the last Submit.
	Submit()

	// WaitIdle blocks until all submitted work has completed.
	WaitIdle()
}

// ComputePassEncoder records the dispatches of one compute pass.
type ComputePassEncoder interface {
	SetPipeline(pipeline ComputePipelineID)
	SetBindGroup(index uint32, group BindGroupID)
	Dispatch(x, y, z uint32)
	End()
}
