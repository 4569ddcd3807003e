package extract

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Default limits. MaxFileBytes bounds the input file; MaxWords bounds the
// extracted text (see CapWords).
const (
	MaxFileBytes int64 = 10 << 20
	MaxWords           = 50000
)

// Pipeline turns a local file path into a Document, or fails with a typed
// *Error. It holds no per-call state: concurrent calls on independent inputs
// are fully independent, and the file handle is acquired and released within
// the call.
type Pipeline struct {
	registry     *Registry
	maxFileBytes int64
	maxWords     int
}

func NewPipeline(registry *Registry, maxFileBytes int64, maxWords int) *Pipeline {
	if maxFileBytes <= 0 {
		maxFileBytes = MaxFileBytes
	}
	if maxWords <= 0 {
		maxWords = MaxWords
	}
	return &Pipeline{registry: registry, maxFileBytes: maxFileBytes, maxWords: maxWords}
}

// Extract runs the precondition checks in order (access, existence,
// extension, size), dispatches to the registered extractor, then normalizes
// and word-caps the text. progress may be nil.
func (p *Pipeline) Extract(ctx context.Context, path string, progress ProgressFunc) (Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrPermission):
			return Document{}, &Error{Kind: KindPermissionDenied, Path: path, Err: err}
		case errors.Is(err, fs.ErrNotExist):
			return Document{}, &Error{Kind: KindFileNotFound, Path: path, Err: err}
		default:
			return Document{}, &Error{Kind: KindExtractionFailed, Path: path, Err: err}
		}
	}

	ext := filepath.Ext(path)
	fileType, ok := FileTypeForExtension(ext)
	if !ok {
		return Document{}, &Error{Kind: KindUnsupportedFileType, Path: path}
	}

	if info.Size() > p.maxFileBytes {
		return Document{}, &Error{Kind: KindFileTooLarge, Path: path}
	}

	extractor, ok := p.registry.Resolve(ext)
	if !ok {
		return Document{}, &Error{Kind: KindUnsupportedFileType, Path: path}
	}

	raw, err := extractor.Extract(ctx, Job{
		LocalPath: path,
		FileName:  filepath.Base(path),
		FileSize:  info.Size(),
		Progress:  progress,
	})
	if err != nil {
		var ee *Error
		if errors.As(err, &ee) {
			return Document{}, err
		}
		return Document{}, &Error{Kind: KindExtractionFailed, Path: path, Err: err}
	}

	text := NormalizeText(raw.Text)
	if text == "" {
		return Document{}, &Error{Kind: KindEmptyDocument, Path: path}
	}

	text, wordCount := CapWords(text, p.maxWords)

	return Document{
		OriginalFileName:    filepath.Base(path),
		FileSizeBytes:       info.Size(),
		PageCount:           raw.PageCount,
		Text:                text,
		WordCount:           wordCount,
		ProcessingTimestamp: time.Now().UTC(),
		FileType:            fileType,
	}, nil
}
