package extract

import (
	"os"
	"strings"
	"testing"
)

func TestSaveToTempWritesFile(t *testing.T) {
	up, err := SaveToTemp(strings.NewReader("hello report"), "report.txt", 1<<20)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	defer up.Cleanup()

	b, err := os.ReadFile(up.Path)
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if string(b) != "hello report" {
		t.Fatalf("unexpected content %q", b)
	}
	if up.Size != int64(len("hello report")) {
		t.Fatalf("unexpected size %d", up.Size)
	}
	if !strings.Contains(up.MIMEType, "text/plain") {
		t.Fatalf("expected text/plain sniff, got %q", up.MIMEType)
	}
}

func TestSaveToTempEnforcesLimit(t *testing.T) {
	_, err := SaveToTemp(strings.NewReader("0123456789abcdef"), "big.txt", 8)
	if !IsKind(err, KindFileTooLarge) {
		t.Fatalf("expected FileTooLarge, got %v", err)
	}
}

func TestSaveToTempSanitizesFileName(t *testing.T) {
	up, err := SaveToTemp(strings.NewReader("x"), "../../etc/passwd", 1<<20)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	defer up.Cleanup()

	if !strings.HasPrefix(up.Path, up.TempDir) {
		t.Fatalf("path escaped temp dir: %q", up.Path)
	}
	if strings.Contains(up.Path, "..") {
		t.Fatalf("path retains traversal: %q", up.Path)
	}
}

func TestCleanupRemovesTempDir(t *testing.T) {
	up, err := SaveToTemp(strings.NewReader("x"), "note.txt", 1<<20)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	up.Cleanup()
	if _, err := os.Stat(up.TempDir); !os.IsNotExist(err) {
		t.Fatalf("expected temp dir removed, stat err=%v", err)
	}
}
