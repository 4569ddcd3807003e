package plaintext

import (
	"context"
	"os"
	"unicode/utf8"

	"github.com/toricodesthings/doc-analysis-service/internal/extract"
)

// Extractor handles plain text files: UTF-8 first, then an ASCII salvage
// pass for files with a legacy single-byte encoding.
type Extractor struct{}

func New() *Extractor { return &Extractor{} }

func (e *Extractor) Name() string                  { return "text/plain" }
func (e *Extractor) SupportedExtensions() []string { return []string{".txt"} }

func (e *Extractor) Extract(ctx context.Context, job extract.Job) (extract.RawResult, error) {
	select {
	case <-ctx.Done():
		return extract.RawResult{}, ctx.Err()
	default:
	}

	b, err := os.ReadFile(job.LocalPath)
	if err != nil {
		return extract.RawResult{}, &extract.Error{Kind: extract.KindExtractionFailed, Path: job.LocalPath, Err: err}
	}

	if utf8.Valid(b) {
		job.ReportProgress(1.0)
		return extract.RawResult{Text: string(b)}, nil
	}

	text, ok := decodeASCII(b)
	if !ok {
		return extract.RawResult{}, &extract.Error{Kind: extract.KindExtractionFailed, Path: job.LocalPath}
	}
	job.ReportProgress(1.0)
	return extract.RawResult{Text: text}, nil
}

// decodeASCII keeps printable ASCII plus tab/newline and drops everything
// else. Returns false when nothing printable survives.
func decodeASCII(b []byte) (string, bool) {
	out := make([]byte, 0, len(b))
	printable := 0
	for _, c := range b {
		switch {
		case c == '\n' || c == '\r' || c == '\t':
			out = append(out, c)
		case c >= 0x20 && c < 0x7f:
			out = append(out, c)
			if c != ' ' {
				printable++
			}
		}
	}
	if printable == 0 {
		return "", false
	}
	return string(out), true
}
