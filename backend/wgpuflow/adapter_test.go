package wgpuflow

import "testing"

func TestNewRejectsNilDeviceProvider(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("New(nil) = nil error, want error")
	}
}

func TestKernelSourceCoversEveryKernel(t *testing.T) {
	want := []string{"tensor", "sweep_linear", "weights_robust", "sweep_robust"}
	for _, label := range want {
		if _, ok := kernelSource[label]; !ok {
			t.Errorf("kernelSource missing %q", label)
		}
	}
}
