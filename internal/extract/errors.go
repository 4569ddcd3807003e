package extract

import (
	"errors"
	"fmt"
)

// Kind classifies extraction failures. Every kind maps to a complete,
// user-facing sentence; callers are expected to display Error() verbatim.
type Kind int

const (
	KindFileNotFound Kind = iota
	KindPermissionDenied
	KindUnsupportedFileType
	KindFileTooLarge
	KindEmptyDocument
	KindCorruptedFile
	KindExtractionFailed
)

func (k Kind) String() string {
	switch k {
	case KindFileNotFound:
		return "file_not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindUnsupportedFileType:
		return "unsupported_file_type"
	case KindFileTooLarge:
		return "file_too_large"
	case KindEmptyDocument:
		return "empty_document"
	case KindCorruptedFile:
		return "corrupted_file"
	case KindExtractionFailed:
		return "extraction_failed"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by the extraction pipeline. All kinds
// are terminal for the attempt; none are retried automatically.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindFileNotFound:
		return "The file could not be found. Please choose a different file."
	case KindPermissionDenied:
		return "The file could not be accessed. Please grant access to the file and try again."
	case KindUnsupportedFileType:
		return "This file type is not supported. Please choose a PDF, Word, plain text, or RTF document."
	case KindFileTooLarge:
		return fmt.Sprintf("The file is too large. Please choose a document under %dMB.", MaxFileBytes/(1<<20))
	case KindEmptyDocument:
		return "No readable text was found in the document. Please choose a different file."
	case KindCorruptedFile:
		return "The document appears to be damaged and could not be opened."
	case KindExtractionFailed:
		return "The document text could not be read. Please try a different file."
	default:
		return "The document could not be processed."
	}
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is an extraction Error of the given kind.
func IsKind(err error, k Kind) bool {
	var ee *Error
	return errors.As(err, &ee) && ee.Kind == k
}
