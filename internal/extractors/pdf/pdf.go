package pdf

import (
	"context"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/toricodesthings/doc-analysis-service/internal/extract"
)

// Extractor reads the PDF text layer page by page. Scanned pages without a
// text layer contribute nothing; OCR is out of scope for this service.
type Extractor struct{}

func New() *Extractor { return &Extractor{} }

func (e *Extractor) Name() string                  { return "document/pdf" }
func (e *Extractor) SupportedExtensions() []string { return []string{".pdf"} }

func (e *Extractor) Extract(ctx context.Context, job extract.Job) (extract.RawResult, error) {
	f, r, err := pdf.Open(job.LocalPath)
	if err != nil {
		return extract.RawResult{}, &extract.Error{Kind: extract.KindCorruptedFile, Path: job.LocalPath, Err: err}
	}
	defer f.Close()

	totalPages := r.NumPage()
	if totalPages == 0 {
		return extract.RawResult{}, &extract.Error{Kind: extract.KindEmptyDocument, Path: job.LocalPath}
	}

	var pages []string
	for i := 1; i <= totalPages; i++ {
		select {
		case <-ctx.Done():
			return extract.RawResult{}, ctx.Err()
		default:
		}

		page := r.Page(i)
		if page.V.IsNull() {
			job.ReportProgress(float64(i) / float64(totalPages))
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page doesn't fail the document.
			job.ReportProgress(float64(i) / float64(totalPages))
			continue
		}
		if s := strings.TrimSpace(content); s != "" {
			pages = append(pages, s)
		}
		job.ReportProgress(float64(i) / float64(totalPages))
	}

	return extract.RawResult{
		Text:      strings.Join(pages, "\n\n"),
		PageCount: totalPages,
	}, nil
}
