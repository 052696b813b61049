package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	old := BuildVersion
	defer func() { BuildVersion = old }()

	BuildVersion = "v1.2.3"
	s := String()
	if !strings.HasPrefix(s, "osmread v1.2.3 ") {
		t.Errorf("Unexpected version string %q", s)
	}
	if !strings.Contains(s, runtime.Version()) {
		t.Errorf("Version string %q lacks the Go version", s)
	}
}

func TestInfo(t *testing.T) {
	info := Info()
	for _, key := range []string{"version", "commit", "build_date", "go_version"} {
		if info[key] == "" {
			t.Errorf("Info()[%q] is empty", key)
		}
	}
}
