package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	results := CheckBinaries([]Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank"},
	})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Available || results[0].Detail != "" || results[0].Command != present {
		t.Fatalf("unexpected status for present binary: %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" || results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected status for missing binary: %#v", results[1])
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail %q", results[2].Detail)
	}
	if missing := Missing(results); len(missing) != 2 {
		t.Fatalf("expected 2 missing entries, got %v", missing)
	}
}

func TestMediaRequirementsDefaults(t *testing.T) {
	reqs := MediaRequirements("", "/opt/ffprobe")
	if reqs[0].Command != "ffmpeg" || reqs[1].Command != "/opt/ffprobe" {
		t.Fatalf("unexpected requirements %+v", reqs)
	}
	if !reqs[0].Optional || !reqs[1].Optional {
		t.Fatal("media binaries should be optional")
	}
}
