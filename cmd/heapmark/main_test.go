// ABOUTME: Tests for the heapmark command
// ABOUTME: Runs the CLI end to end against heap descriptions written to temp files

package main

import (
	"bytes"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const cliHeap = `
descriptors:
  - {name: Node, kind: object, words: 3}
  - {name: Code, kind: code, words: 4}
  - {name: Function, kind: closure, words: 4, weak: [1], code_entry: true}
objects:
  - {id: root, type: Node, fields: [child, fn]}
  - {id: child, type: Node, fields: [leaf, 1]}
  - {id: leaf, type: Node}
  - {id: fn, type: Function, fields: [leaf, cached], code: code}
  - {id: code, type: Code}
  - {id: cached, type: Node}
  - {id: garbage, type: Node, fields: [root]}
  - {id: fresh, type: Node, young: true}
roots: [root]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunReportsGarbage(t *testing.T) {
	heapPath := writeFile(t, "heap.yaml", cliHeap)
	var stdout, stderr bytes.Buffer
	if err := run([]string{"-heap", heapPath}, &stdout, &stderr); err != nil {
		t.Fatalf("run failed: %v\nstderr: %s", err, stderr.String())
	}
	out := stdout.String()

	for _, want := range []string{
		"heap: ",
		"cycle 1: 1 roots",
		"unreachable: 2 objects",
		"  garbage (Node, 24 bytes)",
		"  fresh (Node, 24 bytes)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "  cached (") {
		t.Errorf("Expected weakly held objects to survive, got:\n%s", out)
	}
}

func TestRunExplainsRetention(t *testing.T) {
	heapPath := writeFile(t, "heap.yaml", cliHeap)
	var stdout, stderr bytes.Buffer
	err := run([]string{"-heap", heapPath, "-why", "leaf, cached"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	out := stdout.String()
	if !strings.Contains(out, "leaf <- child <- root") {
		t.Errorf("Expected the shortest path for leaf, got:\n%s", out)
	}
	if !strings.Contains(out, "why cached: not retained by a strong path") {
		t.Errorf("Expected cached to be held only weakly, got:\n%s", out)
	}

	err = run([]string{"-heap", heapPath, "-why", "missing"}, &stdout, &stderr)
	if err == nil {
		t.Error("Expected an error for an unknown -why id")
	}
}

func TestRunWithConfigAndTrace(t *testing.T) {
	heapPath := writeFile(t, "heap.yaml", cliHeap)
	cfgPath := writeFile(t, "heapmark.yaml", "log:\n  level: debug\n")
	var stdout, stderr bytes.Buffer
	err := run([]string{"-config", cfgPath, "-heap", heapPath, "-trace", "-cycles", "3"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(stdout.String(), "cycle 3:") {
		t.Errorf("Expected three cycles, got:\n%s", stdout.String())
	}
	logs := stderr.String()
	if !strings.Contains(logs, "concurrently marked") || !strings.Contains(logs, "marking cycle finished") {
		t.Errorf("Expected trace and debug lines, got:\n%s", logs)
	}
}

func TestRunDisabledMarking(t *testing.T) {
	heapPath := writeFile(t, "heap.yaml", cliHeap)
	cfgPath := writeFile(t, "heapmark.yaml", "marking:\n  enabled: false\n")
	var stdout, stderr bytes.Buffer
	if err := run([]string{"-config", cfgPath, "-heap", heapPath}, &stdout, &stderr); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(stdout.String(), "concurrent 0 bytes") {
		t.Errorf("Expected no concurrent work, got:\n%s", stdout.String())
	}
	if !strings.Contains(stdout.String(), "unreachable: 2 objects") {
		t.Errorf("Expected the finisher alone to mark the heap, got:\n%s", stdout.String())
	}
}

func TestRunWritesPNG(t *testing.T) {
	heapPath := writeFile(t, "heap.yaml", cliHeap)
	pngPath := filepath.Join(t.TempDir(), "heap.png")
	var stdout, stderr bytes.Buffer
	if err := run([]string{"-heap", heapPath, "-png", pngPath}, &stdout, &stderr); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	info, err := os.Stat(pngPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Error("Expected a non-empty PNG")
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing heap flag", nil},
		{"missing heap file", []string{"-heap", "does-not-exist.json"}},
		{"bad cycles", []string{"-heap", "x", "-cycles", "0"}},
		{"unknown flag", []string{"-frobnicate"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if err := run(tt.args, &stdout, &stderr); err == nil {
				t.Error("Expected an error")
			}
		})
	}

	var stdout, stderr bytes.Buffer
	path := writeFile(t, "bad.txt", "neither json nor yaml")
	if err := run([]string{"-heap", path}, &stdout, &stderr); err == nil || !strings.Contains(err.Error(), "no parser") {
		t.Errorf("Expected a no parser error, got %v", err)
	}
}

func TestRunVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run([]string{"-version"}, &stdout, &stderr); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(stdout.String(), "heapmark ") {
		t.Errorf("Unexpected version output %q", stdout.String())
	}
}

func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"-h"}, &stdout, &stderr)
	if !errors.Is(err, flag.ErrHelp) {
		t.Errorf("Expected flag.ErrHelp, got %v", err)
	}
}
