package extract

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// UploadedFile is a request body persisted to a temp directory for the
// duration of one extraction call.
type UploadedFile struct {
	TempDir  string
	Path     string
	MIMEType string
	Size     int64
}

func (u UploadedFile) Cleanup() {
	if u.TempDir != "" {
		_ = os.RemoveAll(u.TempDir)
	}
}

// SaveToTemp writes an io.Reader (e.g. a multipart file part) to a temp
// file, enforcing maxBytes, and sniffs the MIME type for observability. The
// sniffed type never drives dispatch; the extension does.
func SaveToTemp(body io.Reader, fileName string, maxBytes int64) (UploadedFile, error) {
	tmpDir, err := os.MkdirTemp("", "docanalysis-*")
	if err != nil {
		return UploadedFile{}, fmt.Errorf("temp dir: %w", err)
	}

	safeName := strings.TrimSpace(fileName)
	if safeName == "" {
		safeName = "input.bin"
	}
	outPath := filepath.Join(tmpDir, filepath.Base(safeName))

	f, err := os.Create(outPath)
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return UploadedFile{}, fmt.Errorf("create: %w", err)
	}
	defer f.Close()

	lr := &io.LimitedReader{R: body, N: maxBytes + 1}
	n, err := io.Copy(f, lr)
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return UploadedFile{}, fmt.Errorf("write: %w", err)
	}
	if n > maxBytes {
		_ = os.RemoveAll(tmpDir)
		return UploadedFile{}, &Error{Kind: KindFileTooLarge, Path: outPath}
	}

	if err := f.Sync(); err != nil {
		_ = os.RemoveAll(tmpDir)
		return UploadedFile{}, fmt.Errorf("sync: %w", err)
	}

	return UploadedFile{
		TempDir:  tmpDir,
		Path:     outPath,
		MIMEType: sniffMIMEType(outPath),
		Size:     n,
	}, nil
}

func sniffMIMEType(path string) string {
	m, err := mimetype.DetectFile(path)
	if err == nil && m != nil {
		return strings.ToLower(strings.TrimSpace(m.String()))
	}

	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	if n <= 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(http.DetectContentType(buf[:n])))
}
