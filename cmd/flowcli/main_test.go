package main

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/axruff/gpuflow/internal/image"
	"github.com/axruff/gpuflow/internal/imageio"
)

func writeTestFrame(t *testing.T, path string, n int, phase float32) {
	t.Helper()
	img := image.New(n, n, 0, 0)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			v := 127 + 64*float32(math.Sin(float64(x)*0.4+float64(phase)))
			img.SetPixelR(x, y, v)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating %s: %v", path, err)
	}
	defer f.Close()
	if err := imageio.WritePGMGray(f, img); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func writeTestFlo(t *testing.T, path string, n int) {
	t.Helper()
	u := image.New(n, n, 0, 0)
	v := image.New(n, n, 0, 0)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating %s: %v", path, err)
	}
	defer f.Close()
	if err := imageio.WriteFlo(f, u, v); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestRunWritesVisualization(t *testing.T) {
	dir := t.TempDir()
	img1Path := filepath.Join(dir, "frame1.pgm")
	img2Path := filepath.Join(dir, "frame2.pgm")
	outPath := filepath.Join(dir, "flow.pgm")
	writeTestFrame(t, img1Path, 12, 0)
	writeTestFrame(t, img2Path, 12, 0.3)

	var stdout bytes.Buffer
	code := run([]string{
		"-img1", img1Path,
		"-img2", img2Path,
		"-out", outPath,
		"-warp-levels", "2",
		"-iterations", "3",
	}, &stdout)

	if code != 0 {
		t.Fatalf("run() = %d, want 0; stdout:\n%s", code, stdout.String())
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Fatalf("expected output file: %v", err)
	}
}

func TestRunWithGroundTruthReportsEndpointError(t *testing.T) {
	dir := t.TempDir()
	img1Path := filepath.Join(dir, "frame1.pgm")
	img2Path := filepath.Join(dir, "frame2.pgm")
	gtPath := filepath.Join(dir, "gt.flo")
	outPath := filepath.Join(dir, "flow.pgm")
	writeTestFrame(t, img1Path, 10, 0)
	writeTestFrame(t, img2Path, 10, 0.2)
	writeTestFlo(t, gtPath, 10)

	var stdout bytes.Buffer
	code := run([]string{
		"-img1", img1Path,
		"-img2", img2Path,
		"-gt", gtPath,
		"-out", outPath,
		"-warp-levels", "1",
		"-iterations", "2",
	}, &stdout)

	if code != 0 {
		t.Fatalf("run() = %d, want 0; stdout:\n%s", code, stdout.String())
	}
	if !bytes.Contains(stdout.Bytes(), []byte("endpoint error")) {
		t.Fatalf("expected endpoint error report in stdout:\n%s", stdout.String())
	}
}

func TestRunMultipleCombinationsSuffixesOutput(t *testing.T) {
	dir := t.TempDir()
	img1Path := filepath.Join(dir, "frame1.pgm")
	img2Path := filepath.Join(dir, "frame2.pgm")
	outPath := filepath.Join(dir, "flow.pgm")
	writeTestFrame(t, img1Path, 10, 0)
	writeTestFrame(t, img2Path, 10, 0.2)

	var stdout bytes.Buffer
	code := run([]string{
		"-img1", img1Path,
		"-img2", img2Path,
		"-out", outPath,
		"-solver", "all",
		"-backend", "cpu",
		"-warp-levels", "1",
		"-iterations", "2",
	}, &stdout)

	if code != 0 {
		t.Fatalf("run() = %d, want 0; stdout:\n%s", code, stdout.String())
	}
	for _, suffix := range []string{"linear-cpu", "robust-cpu"} {
		want := filepath.Join(dir, "flow-"+suffix+".pgm")
		if _, err := os.Stat(want); err != nil {
			t.Errorf("expected %s: %v", want, err)
		}
	}
	if _, err := os.Stat(outPath); err == nil {
		t.Errorf("unsuffixed %s should not exist when multiple combinations run", outPath)
	}
}

func TestRunMissingRequiredFlagsFails(t *testing.T) {
	var stdout bytes.Buffer
	code := run([]string{"-img1", "a.pgm"}, &stdout)
	if code != 1 {
		t.Fatalf("run() = %d, want 1 for missing -img2/-out", code)
	}
}

func TestRunUnknownSolverFails(t *testing.T) {
	dir := t.TempDir()
	img1Path := filepath.Join(dir, "frame1.pgm")
	img2Path := filepath.Join(dir, "frame2.pgm")
	writeTestFrame(t, img1Path, 8, 0)
	writeTestFrame(t, img2Path, 8, 0.1)

	var stdout bytes.Buffer
	code := run([]string{
		"-img1", img1Path,
		"-img2", img2Path,
		"-out", filepath.Join(dir, "flow.pgm"),
		"-solver", "bogus",
	}, &stdout)
	if code != 1 {
		t.Fatalf("run() = %d, want 1 for unknown -solver", code)
	}
}
