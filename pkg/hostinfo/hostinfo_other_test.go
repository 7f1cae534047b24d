//go:build !linux

package hostinfo

import "testing"

func TestDetect_UnsupportedOffLinux(t *testing.T) {
	info, err := Detect()
	if err == nil {
		t.Fatal("Detect() on a non-Linux build should fail honestly, not fake a version")
	}
	if info != nil {
		t.Fatalf("info = %+v, want nil on error", info)
	}
}
