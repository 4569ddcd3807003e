package extract

import (
	"regexp"
	"strings"
	"time"
)

// FileType identifies one of the five supported document formats.
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeDOCX FileType = "docx"
	FileTypeDOC  FileType = "doc"
	FileTypeTXT  FileType = "txt"
	FileTypeRTF  FileType = "rtf"
)

// FileTypeForExtension maps a lowercase extension (with leading dot) to its
// FileType. The format set is closed; anything else is unsupported.
func FileTypeForExtension(ext string) (FileType, bool) {
	switch strings.ToLower(strings.TrimSpace(ext)) {
	case ".pdf":
		return FileTypePDF, true
	case ".docx":
		return FileTypeDOCX, true
	case ".doc":
		return FileTypeDOC, true
	case ".txt":
		return FileTypeTXT, true
	case ".rtf":
		return FileTypeRTF, true
	default:
		return "", false
	}
}

// Document is the immutable result of a successful extraction.
//
// Text is normalized and never empty. WordCount equals the number of
// whitespace-delimited tokens in Text and is capped at MaxWords: documents
// whose extracted text exceeds the cap are silently truncated to the first
// MaxWords tokens, not rejected.
type Document struct {
	OriginalFileName    string    `json:"originalFileName"`
	FileSizeBytes       int64     `json:"fileSizeBytes"`
	PageCount           int       `json:"pageCount,omitempty"` // paginated formats only
	Text                string    `json:"text"`
	WordCount           int       `json:"wordCount"`
	ProcessingTimestamp time.Time `json:"processingTimestamp"`
	FileType            FileType  `json:"fileType"`
	DetectedMIME        string    `json:"detectedMime,omitempty"` // sniffed, observability only
}

var (
	newlineRuns = regexp.MustCompile(`\n{3,}`)
	spaceRuns   = regexp.MustCompile(` {2,}`)
)

// NormalizeText applies the uniform post-extraction cleanup: CRLF/CR to LF,
// runs of 3+ newlines collapsed to two, runs of 2+ spaces collapsed to one,
// leading/trailing whitespace trimmed.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = newlineRuns.ReplaceAllString(s, "\n\n")
	s = spaceRuns.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CapWords counts whitespace-delimited tokens and, when the count exceeds
// max, truncates to the first max tokens joined by single spaces. The
// truncation is silent and lossy; callers see only the capped result.
func CapWords(s string, max int) (text string, wordCount int) {
	words := strings.Fields(s)
	if max <= 0 || len(words) <= max {
		return s, len(words)
	}
	return strings.Join(words[:max], " "), max
}
