package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kingrea/warroom/internal/script"
)

func TestPrintCatalog(t *testing.T) {
	catalog := script.MustDefault()
	var buf bytes.Buffer
	if err := printCatalog(&buf, catalog); err != nil {
		t.Fatalf("print catalog: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"idle → intro-playing", "Charlie", "(you)", "(designated)", "review opens"} {
		if !strings.Contains(out, want) {
			t.Fatalf("catalog output missing %q:\n%s", want, out)
		}
	}
}

func TestLoadRuntimeInitialisesProject(t *testing.T) {
	dir := t.TempDir()
	projectDir = dir
	t.Cleanup(func() { projectDir = "" })
	t.Setenv("WARROOM_SYNTHESIS_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	rt, err := loadRuntime(true)
	if err != nil {
		t.Fatalf("load runtime: %v", err)
	}
	defer rt.close()
	if rt.cfg.ProjectDir != dir {
		t.Fatalf("project dir = %q, want %q", rt.cfg.ProjectDir, dir)
	}
	synth, err := rt.synthesizer()
	if err != nil {
		t.Fatalf("synthesizer: %v", err)
	}
	if synth == nil {
		t.Fatalf("expected a synthesizer")
	}
}
