// Package wgpuflow implements gpucore.GPUAdapter on top of
// gogpu/wgpu/hal, so the flow pyramid's kernels run on a real GPU
// device. It never creates its own device: a gpucontext.DeviceProvider
// is supplied by the caller (the host application; cmd/flowcli has no
// provider and uses the software adapter), exactly as render.DeviceHandle is received
// rather than created in the teacher codebase.
//
// The resource model is flat float32 storage buffers only — no
// textures, no render passes — since every flow kernel (tensor, sweep,
// weights) is a pure compute dispatch over row-major buffers.
package wgpuflow
