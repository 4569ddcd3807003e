package office

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/toricodesthings/doc-analysis-service/internal/extract"
	"github.com/toricodesthings/doc-analysis-service/internal/extractors/plaintext"
)

// WordExtractor covers .docx and legacy .doc on a best-effort basis. DOCX is
// read natively (zip + word/document.xml); legacy .doc has no structured
// parser here, so the extractor salvages RTF-wrapped or printable content.
// Failures surface as unsupported-file-type ("try a different file") rather
// than corrupted-file.
type WordExtractor struct{}

func NewWord() *WordExtractor { return &WordExtractor{} }

func (e *WordExtractor) Name() string                  { return "document/word" }
func (e *WordExtractor) SupportedExtensions() []string { return []string{".docx", ".doc"} }

func (e *WordExtractor) Extract(ctx context.Context, job extract.Job) (extract.RawResult, error) {
	select {
	case <-ctx.Done():
		return extract.RawResult{}, ctx.Err()
	default:
	}

	var (
		text string
		err  error
	)
	switch strings.ToLower(filepath.Ext(job.FileName)) {
	case ".docx":
		text, err = extractDOCX(job.LocalPath)
	default:
		text, err = extractLegacyDoc(job.LocalPath)
	}
	if err != nil {
		return extract.RawResult{}, &extract.Error{Kind: extract.KindUnsupportedFileType, Path: job.LocalPath, Err: err}
	}

	job.ReportProgress(1.0)
	return extract.RawResult{Text: text}, nil
}

func extractDOCX(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx container: %w", err)
	}
	defer zr.Close()

	body, err := readZipFile(&zr.Reader, "word/document.xml")
	if err != nil {
		return "", err
	}
	return docxToText(body), nil
}

// docxToText walks <w:body> in word/document.xml, joining paragraphs with
// blank lines and mapping <w:tab>/<w:br> to whitespace.
func docxToText(b []byte) string {
	dec := xml.NewDecoder(bytes.NewReader(b))

	var paragraphs []string
	var current strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				var text string
				if err := dec.DecodeElement(&text, &t); err == nil {
					current.WriteString(text)
				}
			case "tab":
				current.WriteString("\t")
			case "br":
				current.WriteString("\n")
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				if s := strings.TrimSpace(current.String()); s != "" {
					paragraphs = append(paragraphs, s)
				}
				current.Reset()
			}
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		paragraphs = append(paragraphs, s)
	}
	return strings.Join(paragraphs, "\n\n")
}

// extractLegacyDoc salvages what it can from a legacy .doc file. Many .doc
// files in the wild are RTF with the wrong extension; those go through the
// RTF strip. True OLE binaries get a printable-run salvage pass.
func extractLegacyDoc(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	if strings.HasPrefix(strings.TrimSpace(string(b)), `{\rtf`) {
		return plaintext.StripRTF(string(b)), nil
	}

	text := salvagePrintableRuns(b)
	if len(strings.Fields(text)) < 5 {
		return "", fmt.Errorf("no readable text in legacy doc")
	}
	return text, nil
}

// salvagePrintableRuns keeps runs of at least four consecutive printable
// ASCII characters, which skims visible text out of the OLE container.
func salvagePrintableRuns(b []byte) string {
	const minRun = 4

	var sb strings.Builder
	var run []byte
	flush := func() {
		if len(run) >= minRun {
			sb.Write(run)
			sb.WriteByte('\n')
		}
		run = run[:0]
	}

	for _, c := range b {
		if (c >= 0x20 && c < 0x7f) || c == '\t' {
			run = append(run, c)
			continue
		}
		flush()
	}
	flush()
	return sb.String()
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("missing %s", name)
}
