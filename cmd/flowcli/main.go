// Command flowcli estimates dense optical flow between a pair of
// greyscale frames and writes a colour-wheel visualisation of the
// result, optionally reporting endpoint error against ground truth.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gogpu/gpucontext"

	"github.com/axruff/gpuflow"
	"github.com/axruff/gpuflow/backend/software"
	"github.com/axruff/gpuflow/backend/wgpuflow"
	"github.com/axruff/gpuflow/gpucore"
	"github.com/axruff/gpuflow/internal/flowcolor"
	"github.com/axruff/gpuflow/internal/gpusolver"
	"github.com/axruff/gpuflow/internal/image"
	"github.com/axruff/gpuflow/internal/imageio"
	"github.com/axruff/gpuflow/internal/metric"
	"github.com/axruff/gpuflow/internal/pyramid"
	"github.com/axruff/gpuflow/internal/solver"
)

// maxBindings covers the widest kernel (sweep_robust: 14 buffer bindings).
const maxBindings = 14

// repeatedFlag collects every -solver/-backend occurrence in order,
// since both flags may be repeated to request more than one variant in
// a single invocation.
type repeatedFlag struct{ values []string }

func (r *repeatedFlag) String() string { return strings.Join(r.values, ",") }
func (r *repeatedFlag) Set(v string) error {
	r.values = append(r.values, v)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	def := gpuflow.Defaults()

	fs := flag.NewFlagSet("flowcli", flag.ExitOnError)
	img1Path := fs.String("img1", "", "first frame (binary PGM, P5)")
	img2Path := fs.String("img2", "", "second frame (binary PGM, P5)")
	gtPath := fs.String("gt", "", "ground-truth flow (Middlebury .flo, optional)")
	outPath := fs.String("out", "", "output flow visualisation (binary PGM, P6)")
	warpLevels := fs.Int("warp-levels", def.WarpLevels, "upper bound on pyramid depth")
	warpScale := fs.Float64("warp-scale", float64(def.WarpScale), "per-level size factor in (0,1)")
	iterations := fs.Int("iterations", def.SolverIterations, "outer SOR sweeps per level")
	innerIterations := fs.Int("inner-iterations", def.InnerIterations, "robust solver inner sweeps per outer iteration")
	alpha := fs.Float64("alpha", float64(def.Alpha), "smoothness weight")
	omega := fs.Float64("omega", float64(def.Omega), "SOR relaxation factor")
	eSmooth := fs.Float64("e-smooth", float64(def.ESmooth), "epsilon floor for the diffusion weight")
	eData := fs.Float64("e-data", float64(def.EData), "epsilon floor for the data weight")
	flowScale := fs.Float64("flow-scale", -1, "colour-wheel magnitude normaliser; negative means 2*warp-scale")
	var solverFlag, backendFlag repeatedFlag
	fs.Var(&solverFlag, "solver", `solver variant: "linear", "robust", or "all" (may be repeated)`)
	fs.Var(&backendFlag, "backend", `execution backend: "cpu", "gpu", "auto", or "all" (may be repeated)`)
	if err := fs.Parse(args); err != nil {
		return 1 // flag.ExitOnError already printed usage
	}

	if *img1Path == "" || *img2Path == "" || *outPath == "" {
		log.Print("flowcli: -img1, -img2 and -out are required")
		return 1
	}

	solvers, err := resolveSolvers(solverFlag.values)
	if err != nil {
		log.Printf("flowcli: %v", err)
		return 1
	}
	backends, err := resolveBackends(backendFlag.values)
	if err != nil {
		log.Printf("flowcli: %v", err)
		return 1
	}

	img1, err := readPGM(*img1Path)
	if err != nil {
		log.Printf("flowcli: %v", err)
		return 1
	}
	img2, err := readPGM(*img2Path)
	if err != nil {
		log.Printf("flowcli: %v", err)
		return 1
	}

	var gtU, gtV *image.Image
	if *gtPath != "" {
		gtU, gtV, err = readFlo(*gtPath)
		if err != nil {
			log.Printf("flowcli: %v", err)
			return 1
		}
	}

	w, h := img1.ActualWidth(), img1.ActualHeight()
	levels := pyramid.Levels(w, h, *warpLevels, float32(*warpScale))
	fmt.Fprintf(stdout, "flowcli: %dx%d input, %d pyramid level(s)\n", w, h, len(levels))
	for i, lv := range levels {
		fmt.Fprintf(stdout, "  level %d: %dx%d (hx=%.3f hy=%.3f)\n", i, lv.Width, lv.Height, lv.Hx, lv.Hy)
	}

	multi := len(solvers)*len(backends) > 1
	ran := 0
	for _, sk := range solvers {
		for _, bk := range backends {
			if runOne(stdout, img1, img2, gtU, gtV, *outPath, multi, sk, bk, runParams{
				warpLevels: *warpLevels, warpScale: float32(*warpScale),
				iterations: *iterations, inner: *innerIterations,
				alpha: float32(*alpha), omega: float32(*omega),
				eSmooth: float32(*eSmooth), eData: float32(*eData),
				flowScale: float32(*flowScale),
			}) {
				ran++
			}
		}
	}

	if ran == 0 {
		log.Print("flowcli: every requested solver/backend combination failed")
		return 1
	}
	return 0
}

type runParams struct {
	warpLevels        int
	warpScale         float32
	iterations, inner int
	alpha, omega      float32
	eSmooth, eData    float32
	flowScale         float32
}

// runOne estimates flow for one (solver, backend) combination and writes
// its visualisation, reporting the outcome to stdout. A device-init or
// dispatch failure for this combination is logged and treated as a skip
// per the error-handling design: other combinations still run.
func runOne(stdout io.Writer, img1, img2, gtU, gtV *image.Image, outBase string, multi bool, sk gpuflow.SolverKind, bk gpuflow.Backend, p runParams) bool {
	w, h := img1.ActualWidth(), img1.ActualHeight()
	s, label, err := buildSolver(sk, bk, p.alpha, p.omega, p.eSmooth, p.eData, p.inner, w, h)
	if err != nil {
		log.Printf("flowcli: %s/%s: device init failed, skipping: %v", sk, bk, err)
		return false
	}

	driver := pyramid.NewDriver(w, h)
	start := time.Now()
	u, v := driver.Run(img1, img2, p.warpLevels, p.warpScale, p.iterations, s)
	elapsed := time.Since(start)

	fmt.Fprintf(stdout, "%s/%s (%s): solved in %s\n", sk, bk, label, elapsed)
	if gtU != nil {
		e := metric.Compute(u, v, gtU, gtV)
		fmt.Fprintf(stdout, "  endpoint error: mean=%.4f max=%.4f n=%d\n", e.Mean, e.Max, e.Count)
	}

	scale := p.flowScale
	if scale < 0 {
		scale = 2 * p.warpScale
	}

	out := outBase
	if multi {
		out = suffixPath(outBase, fmt.Sprintf("%s-%s", sk, bk))
	}
	if err := writeVisualization(out, u, v, scale); err != nil {
		log.Printf("flowcli: %s/%s: %v", sk, bk, err)
		return false
	}
	fmt.Fprintf(stdout, "  wrote %s\n", out)
	return true
}

func buildSolver(sk gpuflow.SolverKind, bk gpuflow.Backend, alpha, omega, eSmooth, eData float32, inner, capW, capH int) (solver.Solver, string, error) {
	if bk == gpuflow.BackendCPU {
		return newHostSolver(sk, alpha, omega, eSmooth, eData, inner, capW, capH), "cpu", nil
	}

	adapter, pipeline, label, err := newGPUPipeline()
	if err != nil {
		return nil, "", err
	}
	switch sk {
	case gpuflow.SolverRobust:
		s, err := gpusolver.NewRobust(adapter, pipeline, alpha, omega, eSmooth, eData, inner, capW, capH)
		return s, label, err
	default:
		s, err := gpusolver.NewLinear(adapter, pipeline, alpha, omega, capW, capH)
		return s, label, err
	}
}

func newHostSolver(sk gpuflow.SolverKind, alpha, omega, eSmooth, eData float32, inner, capW, capH int) solver.Solver {
	if sk == gpuflow.SolverRobust {
		return solver.NewRobust(alpha, omega, eSmooth, eData, inner, capW, capH)
	}
	return solver.NewLinear(alpha, omega, capW, capH)
}

// newGPUPipeline builds a gpucore.Pipeline against a real wgpu device
// when one is available, falling back to the in-process software
// simulation of the same dispatch contract otherwise. A standalone
// flowcli process has no windowing or host application to source a
// gpucontext.DeviceProvider from; callers embedding this engine inside
// one get real GPU dispatch by constructing gpusolver.Solver directly
// against their own provider.
func newGPUPipeline() (gpucore.GPUAdapter, *gpucore.Pipeline, string, error) {
	if dp, err := acquireDeviceProvider(); err == nil {
		if a, werr := wgpuflow.New(dp); werr == nil {
			if p, perr := gpucore.NewPipeline(a, maxBindings); perr == nil {
				if rerr := wgpuflow.Register(p); rerr == nil {
					return a, p, "gpu", nil
				}
			}
		}
	}

	a := software.New()
	p, err := gpucore.NewPipeline(a, maxBindings)
	if err != nil {
		return nil, nil, "", fmt.Errorf("building software dispatch pipeline: %w", err)
	}
	if err := software.RegisterAll(a, p); err != nil {
		return nil, nil, "", fmt.Errorf("registering kernels: %w", err)
	}
	return a, p, "gpu (software)", nil
}

func acquireDeviceProvider() (gpucontext.DeviceProvider, error) {
	return nil, errors.New("no GPU device provider available in a standalone process")
}

func resolveSolvers(values []string) ([]gpuflow.SolverKind, error) {
	if len(values) == 0 {
		return []gpuflow.SolverKind{gpuflow.SolverLinear}, nil
	}
	seen := map[gpuflow.SolverKind]bool{}
	var out []gpuflow.SolverKind
	add := func(k gpuflow.SolverKind) {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, v := range values {
		switch v {
		case "all":
			add(gpuflow.SolverLinear)
			add(gpuflow.SolverRobust)
		case "linear":
			add(gpuflow.SolverLinear)
		case "robust":
			add(gpuflow.SolverRobust)
		default:
			return nil, fmt.Errorf("unknown -solver %q", v)
		}
	}
	return out, nil
}

func resolveBackends(values []string) ([]gpuflow.Backend, error) {
	if len(values) == 0 {
		return []gpuflow.Backend{gpuflow.BackendAuto}, nil
	}
	seen := map[gpuflow.Backend]bool{}
	var out []gpuflow.Backend
	add := func(k gpuflow.Backend) {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, v := range values {
		switch v {
		case "all":
			add(gpuflow.BackendCPU)
			add(gpuflow.BackendGPU)
		case "cpu":
			add(gpuflow.BackendCPU)
		case "gpu":
			add(gpuflow.BackendGPU)
		case "auto":
			add(gpuflow.BackendAuto)
		default:
			return nil, fmt.Errorf("unknown -backend %q", v)
		}
	}
	return out, nil
}

func readPGM(path string) (*image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	img, err := imageio.ReadPGMGray(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	img.FillBoundaries()
	return img, nil
}

func readFlo(path string) (u, v *image.Image, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	u, v, err = imageio.ReadFlo(f)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return u, v, nil
}

// writeVisualization renders (u, v) through the colour wheel at the
// given magnitude normaliser and writes it as a binary PGM-P6.
func writeVisualization(path string, u, v *image.Image, scale float32) error {
	rgb := flowcolor.Paint(u, v, scale)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	if err := imageio.WritePGMRGB(f, rgb); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func suffixPath(path, suffix string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	return fmt.Sprintf("%s-%s%s", base, suffix, ext)
}
