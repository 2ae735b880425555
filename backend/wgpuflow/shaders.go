package wgpuflow

import (
	"fmt"

	"github.com/gogpu/naga"

	"github.com/axruff/gpuflow/gpucore"
)

// kernelSource holds the WGSL text for one flow kernel, mirroring the
// math of its internal/solver and backend/software counterpart.
//
// Every kernel's last @binding is a uniform `Params` struct carrying
// width, height and whatever scalar constants (hx/hy, alpha/omega,
// eSmooth/eData) that kernel needs — storage buffers have no shape of
// their own.
var kernelSource = map[string]string{
	"tensor": `
struct Params { width: u32, height: u32, hx: f32, hy: f32 }
@group(0) @binding(0) var<storage, read> img1: array<f32>;
@group(0) @binding(1) var<storage, read> img2w: array<f32>;
@group(0) @binding(2) var<storage, read_write> j11: array<f32>;
@group(0) @binding(3) var<storage, read_write> j22: array<f32>;
@group(0) @binding(4) var<storage, read_write> j12: array<f32>;
@group(0) @binding(5) var<storage, read_write> j13: array<f32>;
@group(0) @binding(6) var<storage, read_write> j23: array<f32>;
@group(0) @binding(7) var<uniform> p: Params;

fn mirror(i: i32, n: i32) -> u32 {
	if (i < 0) { return u32(-i); }
	if (i >= n) { return u32(2 * (n - 1) - i); }
	return u32(i);
}

@compute @workgroup_size(16, 16)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
	if (gid.x >= p.width || gid.y >= p.height) { return; }
	let w = i32(p.width);
	let h = i32(p.height);
	let x = i32(gid.x);
	let y = i32(gid.y);
	let xm = mirror(x - 1, w);
	let xp = mirror(x + 1, w);
	let ym = mirror(y - 1, h);
	let yp = mirror(y + 1, h);
	let i = gid.y * p.width + gid.x;

	let fx = ((img1[u32(y) * p.width + xp] - img1[u32(y) * p.width + xm]) +
		(img2w[u32(y) * p.width + xp] - img2w[u32(y) * p.width + xm])) / (4.0 * p.hx);
	let fy = ((img1[yp * p.width + gid.x] - img1[ym * p.width + gid.x]) +
		(img2w[yp * p.width + gid.x] - img2w[ym * p.width + gid.x])) / (4.0 * p.hy);
	let ft = img2w[i] - img1[i];

	j11[i] = fx * fx;
	j22[i] = fy * fy;
	j12[i] = fx * fy;
	j13[i] = fx * ft;
	j23[i] = fy * ft;
}
`,
	"sweep_linear": `
struct Params { width: u32, height: u32, alpha: f32, omega: f32, hx: f32, hy: f32 }
@group(0) @binding(0) var<storage, read> u: array<f32>;
@group(0) @binding(1) var<storage, read> v: array<f32>;
@group(0) @binding(2) var<storage, read> duOld: array<f32>;
@group(0) @binding(3) var<storage, read> dvOld: array<f32>;
@group(0) @binding(4) var<storage, read_write> duNew: array<f32>;
@group(0) @binding(5) var<storage, read_write> dvNew: array<f32>;
@group(0) @binding(6) var<storage, read> j11: array<f32>;
@group(0) @binding(7) var<storage, read> j22: array<f32>;
@group(0) @binding(8) var<storage, read> j12: array<f32>;
@group(0) @binding(9) var<storage, read> j13: array<f32>;
@group(0) @binding(10) var<storage, read> j23: array<f32>;
@group(0) @binding(11) var<uniform> p: Params;

@compute @workgroup_size(16, 16)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
	if (gid.x >= p.width || gid.y >= p.height) { return; }
	let x = i32(gid.x);
	let y = i32(gid.y);
	let w = i32(p.width);
	let h = i32(p.height);
	let i = gid.y * p.width + gid.x;

	let hxw = p.alpha / (p.hx * p.hx);
	let hyw = p.alpha / (p.hy * p.hy);
	var xp = 0.0; var xm = 0.0; var yp = 0.0; var ym = 0.0;
	if (x < w - 1) { xp = hxw; }
	if (x > 0) { xm = hxw; }
	if (y < h - 1) { yp = hyw; }
	if (y > 0) { ym = hyw; }
	let sumw = xp + xm + yp + ym;

	let xpI = u32(clamp(x + 1, 0, w - 1));
	let xmI = u32(clamp(x - 1, 0, w - 1));
	let ypI = u32(clamp(y + 1, 0, h - 1));
	let ymI = u32(clamp(y - 1, 0, h - 1));

	let uSum = xp * (u[gid.y * p.width + xpI] + duOld[gid.y * p.width + xpI]) +
		xm * (u[gid.y * p.width + xmI] + duOld[gid.y * p.width + xmI]) +
		yp * (u[ypI * p.width + gid.x] + duOld[ypI * p.width + gid.x]) +
		ym * (u[ymI * p.width + gid.x] + duOld[ymI * p.width + gid.x]);
	let vSum = xp * (v[gid.y * p.width + xpI] + dvOld[gid.y * p.width + xpI]) +
		xm * (v[gid.y * p.width + xmI] + dvOld[gid.y * p.width + xmI]) +
		yp * (v[ypI * p.width + gid.x] + dvOld[ypI * p.width + gid.x]) +
		ym * (v[ymI * p.width + gid.x] + dvOld[ymI * p.width + gid.x]);

	let i11 = j11[i]; let i22 = j22[i]; let i12 = j12[i]; let i13 = j13[i]; let i23 = j23[i];

	let duGS = (uSum - sumw * u[i] - i12 * dvOld[i] - i13) / (sumw + i11);
	let dvGS = (vSum - sumw * v[i] - i12 * duOld[i] - i23) / (sumw + i22);

	duNew[i] = (1.0 - p.omega) * duOld[i] + p.omega * duGS;
	dvNew[i] = (1.0 - p.omega) * dvOld[i] + p.omega * dvGS;
}
`,
	"weights_robust": `
struct Params { width: u32, height: u32, hx: f32, hy: f32, eSmooth: f32, eData: f32 }
@group(0) @binding(0) var<storage, read> u: array<f32>;
@group(0) @binding(1) var<storage, read> v: array<f32>;
@group(0) @binding(2) var<storage, read> duOld: array<f32>;
@group(0) @binding(3) var<storage, read> dvOld: array<f32>;
@group(0) @binding(4) var<storage, read_write> psi: array<f32>;
@group(0) @binding(5) var<storage, read_write> xi: array<f32>;
@group(0) @binding(6) var<storage, read> j11: array<f32>;
@group(0) @binding(7) var<storage, read> j22: array<f32>;
@group(0) @binding(8) var<storage, read> j12: array<f32>;
@group(0) @binding(9) var<storage, read> j13: array<f32>;
@group(0) @binding(10) var<storage, read> j23: array<f32>;
@group(0) @binding(11) var<uniform> p: Params;

// total reads 0 outside [0,w)x[0,h): u, v, duOld and dvOld never have
// their halo filled (only their actual region is ever written), so this
// central difference must see zero past the image border rather than a
// clamped edge value, matching the host solver's equivalent computation.
fn total(base: ptr<storage, array<f32>, read>, delta: ptr<storage, array<f32>, read>, x: i32, y: i32, w: i32, h: i32) -> f32 {
	if (x < 0 || x >= w || y < 0 || y >= h) { return 0.0; }
	let i = u32(y) * u32(w) + u32(x);
	return (*base)[i] + (*delta)[i];
}

@compute @workgroup_size(16, 16)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
	if (gid.x >= p.width || gid.y >= p.height) { return; }
	let x = i32(gid.x); let y = i32(gid.y);
	let w = i32(p.width); let h = i32(p.height);
	let i = gid.y * p.width + gid.x;

	let ux = (total(&u, &duOld, x + 1, y, w, h) - total(&u, &duOld, x - 1, y, w, h)) / (2.0 * p.hx);
	let uy = (total(&u, &duOld, x, y + 1, w, h) - total(&u, &duOld, x, y - 1, w, h)) / (2.0 * p.hy);
	let vx = (total(&v, &dvOld, x + 1, y, w, h) - total(&v, &dvOld, x - 1, y, w, h)) / (2.0 * p.hx);
	let vy = (total(&v, &dvOld, x, y + 1, w, h) - total(&v, &dvOld, x, y - 1, w, h)) / (2.0 * p.hy);

	let gradSq = ux * ux + uy * uy + vx * vx + vy * vy;
	psi[i] = 1.0 / sqrt(gradSq + p.eSmooth);

	let du = duOld[i]; let dv = dvOld[i];
	let r = j11[i] * du + j12[i] * dv + j13[i] + j12[i] * du + j22[i] * dv + j23[i];
	xi[i] = 1.0 / sqrt(r * r + p.eData);
}
`,
	"sweep_robust": `
struct Params { width: u32, height: u32, alpha: f32, omega: f32, hx: f32, hy: f32 }
@group(0) @binding(0) var<storage, read> u: array<f32>;
@group(0) @binding(1) var<storage, read> v: array<f32>;
@group(0) @binding(2) var<storage, read> duOld: array<f32>;
@group(0) @binding(3) var<storage, read> dvOld: array<f32>;
@group(0) @binding(4) var<storage, read_write> duNew: array<f32>;
@group(0) @binding(5) var<storage, read_write> dvNew: array<f32>;
@group(0) @binding(6) var<storage, read> j11: array<f32>;
@group(0) @binding(7) var<storage, read> j22: array<f32>;
@group(0) @binding(8) var<storage, read> j12: array<f32>;
@group(0) @binding(9) var<storage, read> j13: array<f32>;
@group(0) @binding(10) var<storage, read> j23: array<f32>;
@group(0) @binding(11) var<storage, read> psi: array<f32>;
@group(0) @binding(12) var<storage, read> xi: array<f32>;
@group(0) @binding(13) var<uniform> p: Params;

fn hmean(a: f32, b: f32) -> f32 { return 2.0 * a * b / (a + b); }

@compute @workgroup_size(16, 16)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
	if (gid.x >= p.width || gid.y >= p.height) { return; }
	let x = i32(gid.x); let y = i32(gid.y);
	let w = i32(p.width); let h = i32(p.height);
	let i = gid.y * p.width + gid.x;

	let psiV = psi[i];
	let hx2 = p.hx * p.hx;
	let hy2 = p.hy * p.hy;

	var xp = 0.0; var xm = 0.0; var yp = 0.0; var ym = 0.0;
	if (x < w - 1) { xp = hmean(psiV, psi[gid.y * p.width + u32(x + 1)]) / hx2; }
	if (x > 0) { xm = hmean(psiV, psi[gid.y * p.width + u32(x - 1)]) / hx2; }
	if (y < h - 1) { yp = hmean(psiV, psi[u32(y + 1) * p.width + gid.x]) / hy2; }
	if (y > 0) { ym = hmean(psiV, psi[u32(y - 1) * p.width + gid.x]) / hy2; }
	let sumw = xp + xm + yp + ym;

	let xpI = u32(clamp(x + 1, 0, w - 1));
	let xmI = u32(clamp(x - 1, 0, w - 1));
	let ypI = u32(clamp(y + 1, 0, h - 1));
	let ymI = u32(clamp(y - 1, 0, h - 1));

	let uSum = xp * (u[gid.y * p.width + xpI] + duOld[gid.y * p.width + xpI]) +
		xm * (u[gid.y * p.width + xmI] + duOld[gid.y * p.width + xmI]) +
		yp * (u[ypI * p.width + gid.x] + duOld[ypI * p.width + gid.x]) +
		ym * (u[ymI * p.width + gid.x] + duOld[ymI * p.width + gid.x]);
	let vSum = xp * (v[gid.y * p.width + xpI] + dvOld[gid.y * p.width + xpI]) +
		xm * (v[gid.y * p.width + xmI] + dvOld[gid.y * p.width + xmI]) +
		yp * (v[ypI * p.width + gid.x] + dvOld[ypI * p.width + gid.x]) +
		ym * (v[ymI * p.width + gid.x] + dvOld[ymI * p.width + gid.x]);

	let xiV = xi[i];
	let i11 = j11[i]; let i22 = j22[i]; let i12 = j12[i]; let i13 = j13[i]; let i23 = j23[i];

	let duGS = (uSum - sumw * u[i] - xiV * (i12 * dvOld[i] + i13)) / (sumw + xiV * i11);
	let dvGS = (vSum - sumw * v[i] - xiV * (i12 * duOld[i] + i23)) / (sumw + xiV * i22);

	duNew[i] = (1.0 - p.omega) * duOld[i] + p.omega * duGS;
	dvNew[i] = (1.0 - p.omega) * dvOld[i] + p.omega * dvGS;
}
`,
}

// Register compiles every flow kernel's WGSL source to SPIR-V via
// gogpu/naga and registers it with pipeline under its kernel label.
func Register(pipeline *gpucore.Pipeline) error {
	for label, wgsl := range kernelSource {
		spirv, err := compileWGSL(wgsl)
		if err != nil {
			return fmt.Errorf("wgpuflow: compiling kernel %q: %w", label, err)
		}
		if err := pipeline.RegisterKernel(label, spirv); err != nil {
			return err
		}
	}
	return nil
}

// compileWGSL compiles WGSL source to the little-endian SPIR-V word
// stream gpucore.GPUAdapter.CreateShaderModule expects.
func compileWGSL(source string) ([]uint32, error) {
	bytes, err := naga.Compile(source)
	if err != nil {
		return nil, err
	}
	words := make([]uint32, len(bytes)/4)
	for i := range words {
		words[i] = uint32(bytes[i*4]) |
			uint32(bytes[i*4+1])<<8 |
			uint32(bytes[i*4+2])<<16 |
			uint32(bytes[i*4+3])<<24
	}
	return words, nil
}
