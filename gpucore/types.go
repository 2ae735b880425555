// Package gpucore defines the backend-agnostic GPU dispatch contract the
// flow solver (internal/gpusolver) uses to run its tensor, weights and
// sweep kernels on a real device. It mirrors the teacher codebase's GPUAdapter design,
// trimmed to the buffer and compute-pipeline surface a numeric solver
// needs (no textures: every resource here is a flat float32 buffer).
package gpucore

// Resource IDs are opaque handles; each adapter implementation maintains
// its own mapping from ID to backend resource.

// BufferID is an opaque handle to a GPU buffer.
type BufferID uint64

// ShaderModuleID is an opaque handle to a compiled shader module.
type ShaderModuleID uint64

// ComputePipelineID is an opaque handle to a compute pipeline.
type ComputePipelineID uint64

// BindGroupLayoutID is an opaque handle to a bind group layout.
type BindGroupLayoutID uint64

// BindGroupID is an opaque handle to a bind group.
type BindGroupID uint64

// PipelineLayoutID is an opaque handle to a pipeline layout.
type PipelineLayoutID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// BufferUsage is a bitmask specifying how a buffer will be used.
type BufferUsage uint32

const (
	// BufferUsageCopySrc indicates the buffer can be used as a copy source.
	BufferUsageCopySrc BufferUsage = 1 << iota
	// BufferUsageCopyDst indicates the buffer can be used as a copy destination.
	BufferUsageCopyDst
	// BufferUsageStorage indicates the buffer can be used as a storage buffer.
	BufferUsageStorage
	// BufferUsageUniform indicates the buffer can be used as a uniform buffer.
	BufferUsageUniform
)

// BindingType is the kind of resource a bind group layout entry expects.
type BindingType uint32

const (
	// BindingTypeStorageBuffer is a read-write storage buffer binding.
	BindingTypeStorageBuffer BindingType = iota + 1
	// BindingTypeReadOnlyStorageBuffer is a read-only storage buffer binding.
	BindingTypeReadOnlyStorageBuffer
	// BindingTypeUniformBuffer is a uniform buffer binding.
	BindingTypeUniformBuffer
)

// BindGroupLayoutEntry describes a single binding in a bind group layout.
type BindGroupLayoutEntry struct {
	Binding        uint32
	Type           BindingType
	MinBindingSize uint64
}

// BindGroupLayoutDesc describes a bind group layout.
type BindGroupLayoutDesc struct {
	Label   string
	Entries []BindGroupLayoutEntry
}

// BindGroupEntry describes a single binding in a bind group.
type BindGroupEntry struct {
	Binding uint32
	Buffer  BufferID
	Offset  uint64
	Size    uint64
}

// ComputePipelineDesc describes a compute pipeline.
type ComputePipelineDesc struct {
	Label        string
	Layout       PipelineLayoutID
	ShaderModule ShaderModuleID
	EntryPoint   string
}

// AdapterCapabilities describes GPU adapter capabilities relevant to
// sizing a dispatch grid.
type AdapterCapabilities struct {
	SupportsCompute         bool
	MaxWorkgroupSizeX       uint32
	MaxWorkgroupSizeY       uint32
	MaxWorkgroupInvocations uint32
	MaxBufferSize           uint64
}
