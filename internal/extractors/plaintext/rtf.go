package plaintext

import (
	"context"
	"os"
	"regexp"
	"strings"

	"github.com/toricodesthings/doc-analysis-service/internal/extract"
)

type RTFExtractor struct{}

func NewRTF() *RTFExtractor { return &RTFExtractor{} }

func (e *RTFExtractor) Name() string                  { return "document/rtf" }
func (e *RTFExtractor) SupportedExtensions() []string { return []string{".rtf"} }

var (
	rtfPar     = regexp.MustCompile(`\\par[d]?`)
	rtfTab     = regexp.MustCompile(`\\tab`)
	rtfHexEsc  = regexp.MustCompile(`\\'[0-9a-fA-F]{2}`)
	rtfControl = regexp.MustCompile(`\\[a-zA-Z]+-?\d* ?`)
)

func (e *RTFExtractor) Extract(ctx context.Context, job extract.Job) (extract.RawResult, error) {
	select {
	case <-ctx.Done():
		return extract.RawResult{}, ctx.Err()
	default:
	}

	b, err := os.ReadFile(job.LocalPath)
	if err != nil {
		return extract.RawResult{}, &extract.Error{Kind: extract.KindExtractionFailed, Path: job.LocalPath, Err: err}
	}

	if !strings.HasPrefix(strings.TrimSpace(string(b)), `{\rtf`) {
		return extract.RawResult{}, &extract.Error{Kind: extract.KindExtractionFailed, Path: job.LocalPath}
	}

	job.ReportProgress(1.0)
	return extract.RawResult{Text: StripRTF(string(b))}, nil
}

// StripRTF converts RTF markup to plain text: paragraph and tab control
// words become whitespace, remaining control words and group braces are
// dropped.
func StripRTF(s string) string {
	s = rtfPar.ReplaceAllString(s, "\n")
	s = rtfTab.ReplaceAllString(s, "\t")
	s = rtfHexEsc.ReplaceAllString(s, "")
	s = rtfControl.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "{", "")
	s = strings.ReplaceAll(s, "}", "")
	return strings.TrimSpace(s)
}
