package logbook

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestTailReturnsRecentLinesAndTotal(t *testing.T) {
	book := Memory()
	for i := 0; i < 5; i++ {
		book.Info("entry-%d", i)
	}
	lines, total := book.Tail(3)
	if total != 5 {
		t.Fatalf("total lines = %d, want 5", total)
	}
	if len(lines) != 3 {
		t.Fatalf("len(lines) = %d, want 3", len(lines))
	}
	for idx, want := range []string{"entry-2", "entry-3", "entry-4"} {
		if !strings.Contains(lines[idx], want) {
			t.Fatalf("line %d = %q, missing %s", idx, lines[idx], want)
		}
	}
}

func TestAppendMirrorsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "decisions.log")
	book, err := New(path)
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	book.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }
	book.Warn("synthesis failed: %s", "timeout")
	book.Info("directive: %q", "Approved")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read logbook: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines on disk, got %d: %q", len(lines), data)
	}
	if lines[0] != "2026-03-01T09:30:00Z WARN  synthesis failed: timeout" {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	tail, _ := book.Tail(1)
	if tail[0] != `09:30:00 INFO  directive: "Approved"` {
		t.Fatalf("unexpected tail %q", tail[0])
	}
}

func TestNilLogbookIsSafe(t *testing.T) {
	var book *Logbook
	book.Error("ignored")
	if lines, total := book.Tail(10); lines != nil || total != 0 {
		t.Fatalf("expected empty tail from nil logbook")
	}
	if book.Path() != "" {
		t.Fatalf("expected empty path")
	}
}
