// Package gpucore provides the GPU dispatch abstraction shared by the
// flow pyramid's two backends.
//
// # Architecture
//
// The core dispatch orchestration ([Pipeline]) is implemented once in
// this package; thin adapters translate [GPUAdapter] calls to a specific
// backend:
//
//	                +------------------+
//	                |     gpucore      |
//	                |    (Pipeline)    |
//	                +--------+---------+
//	                         |
//	          +--------------+--------------+
//	          |                             |
//	 +--------v--------+          +--------v--------+
//	 | backend/wgpuflow |          | backend/software |
//	 |  (hal.Device)     |          | (CPU simulation)  |
//	 +-------------------+          +-------------------+
//
// # Resource model
//
// Every flow kernel operates on flat float32 storage buffers (images,
// flow components, motion tensor entries, diffusion weights) — there are
// no textures in this domain, unlike a rasteriser's GPUAdapter. Resources
// are created via Create* methods and released via Destroy*; IDs become
// invalid once destroyed.
//
// # CPU fallback
//
// backend/software.Adapter implements [GPUAdapter] by running the same
// per-pixel math as internal/solver directly in Go, so the dispatch
// ordering this package encodes is exercised without a GPU device. It is
// selected when no gpucontext.DeviceProvider is available; -backend=cpu
// uses neither adapter and runs internal/solver directly.
package gpucore
