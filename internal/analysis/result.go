package analysis

// GoalStatus is the progress classification for a single goal.
type GoalStatus string

const (
	StatusOnTrack        GoalStatus = "onTrack"
	StatusNeedsAttention GoalStatus = "needsAttention"
	StatusBehind         GoalStatus = "behind"
)

// goalStatusFromString maps backend status strings onto the known set.
// Anything unrecognized defaults to onTrack.
func goalStatusFromString(s string) GoalStatus {
	switch GoalStatus(s) {
	case StatusOnTrack, StatusNeedsAttention, StatusBehind:
		return GoalStatus(s)
	default:
		return StatusOnTrack
	}
}

type Goal struct {
	Area            string     `json:"area"`
	Description     string     `json:"description"`
	Status          GoalStatus `json:"status"`
	ProgressPercent int        `json:"progressPercent"`
}

type Service struct {
	Name      string `json:"name"`
	Frequency string `json:"frequency"`
	Provider  string `json:"provider"`
}

// Result is the immutable output of one analysis call. Strengths, Concerns,
// and Recommendations are never empty: missing or malformed backend fields
// are replaced by the documented generic defaults. Goals and Services may be
// empty (malformed elements are dropped) but are never nil.
type Result struct {
	StudentName     string    `json:"studentName"`
	Summary         string    `json:"summary"`
	OverallScore    int       `json:"overallScore"`
	Strengths       []string  `json:"strengths"`
	Concerns        []string  `json:"concerns"`
	Recommendations []string  `json:"recommendations"`
	Goals           []Goal    `json:"goals"`
	Services        []Service `json:"services"`
}

// Source records which path produced a Result. Both paths carry the same
// public shape; the tag exists so fallback rates can be observed without
// changing the caller contract.
type Source int

const (
	SourceParsed Source = iota
	SourceFallback
)

func (s Source) String() string {
	if s == SourceFallback {
		return "fallback"
	}
	return "parsed"
}

// Outcome pairs a Result with the path that produced it.
type Outcome struct {
	Result Result
	Source Source
}
