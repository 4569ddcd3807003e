package extract

import "context"

// ProgressFunc receives fractional extraction progress in [0.0, 1.0] as
// pages/chunks complete. Instrumentation only; correctness never depends on
// it being called.
type ProgressFunc func(fraction float64)

// Job describes one file handed to an extractor. The file at LocalPath has
// already passed the pipeline's precondition checks.
type Job struct {
	LocalPath string
	FileName  string
	FileSize  int64
	Progress  ProgressFunc
}

// ReportProgress invokes the progress observer if one is attached.
func (j Job) ReportProgress(fraction float64) {
	if j.Progress != nil {
		j.Progress(fraction)
	}
}

// RawResult is an extractor's pre-normalization output.
type RawResult struct {
	Text      string
	PageCount int // 0 for non-paginated formats
}

// Extractor is implemented by every file-type handler.
type Extractor interface {
	Extract(ctx context.Context, job Job) (RawResult, error)
	SupportedExtensions() []string
	Name() string
}
