package plaintext

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/toricodesthings/doc-analysis-service/internal/extract"
)

func writeFixture(t *testing.T, name string, content []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, content, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return p
}

func TestExtractUTF8(t *testing.T) {
	path := writeFixture(t, "sample.txt", []byte("héllo wörld"))
	e := New()

	res, err := e.Extract(context.Background(), extract.Job{LocalPath: path, FileName: "sample.txt"})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if res.Text != "héllo wörld" {
		t.Fatalf("unexpected text: %q", res.Text)
	}
}

func TestExtractInvalidUTF8FallsBackToASCII(t *testing.T) {
	// Latin-1 "café" — 0xE9 is not valid UTF-8.
	path := writeFixture(t, "legacy.txt", []byte{'c', 'a', 'f', 0xE9, ' ', 'o', 'p', 'e', 'n'})
	e := New()

	res, err := e.Extract(context.Background(), extract.Job{LocalPath: path, FileName: "legacy.txt"})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if !strings.Contains(res.Text, "caf") || !strings.Contains(res.Text, "open") {
		t.Fatalf("expected ASCII salvage, got %q", res.Text)
	}
}

func TestExtractBinaryGarbageFails(t *testing.T) {
	path := writeFixture(t, "garbage.txt", []byte{0xFF, 0xFE, 0x00, 0x01, 0x80, 0x81})
	e := New()

	_, err := e.Extract(context.Background(), extract.Job{LocalPath: path, FileName: "garbage.txt"})
	if !extract.IsKind(err, extract.KindExtractionFailed) {
		t.Fatalf("expected ExtractionFailed, got %v", err)
	}
}

func TestExtractReportsProgress(t *testing.T) {
	path := writeFixture(t, "sample.txt", []byte("hello"))
	e := New()

	var last float64
	_, err := e.Extract(context.Background(), extract.Job{
		LocalPath: path,
		FileName:  "sample.txt",
		Progress:  func(f float64) { last = f },
	})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if last != 1.0 {
		t.Fatalf("expected final progress 1.0, got %v", last)
	}
}
