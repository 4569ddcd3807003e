package analysis

import (
	"encoding/json"
	"strings"
)

// Documented per-field defaults. The backend is a free-text generator with
// no enforced schema, so every field resolves independently: a missing or
// wrong-typed field takes its default instead of failing the whole result.
const (
	defaultSummary      = "The document was analyzed successfully. Review the detailed results below."
	fallbackSummary     = "The analysis completed, but detailed results could not be generated for this document."
	defaultOverallScore = 75
	defaultProgress     = 50
)

var (
	defaultStrengths = []string{
		"The document contains measurable goals",
		"Progress information is being tracked",
	}
	defaultConcerns = []string{
		"Some sections of the document could not be interpreted automatically",
	}
	defaultRecommendations = []string{
		"Review the original document with your support team",
		"Run the analysis again if these results look incomplete",
	}
)

// parseAnalysisResponse turns the backend's raw message text into an
// Outcome. The backend routinely wraps its JSON in prose despite
// instructions, so the parser slices from the first '{' to the last '}'
// before decoding. Any unrecoverable shape defect lands on the fallback
// path; a received response never produces an error.
func parseAnalysisResponse(raw, studentName string) Outcome {
	trimmed := strings.TrimSpace(raw)

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return fallbackOutcome(studentName)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &payload); err != nil {
		return fallbackOutcome(studentName)
	}

	return Outcome{
		Result: resultFromPayload(payload, studentName),
		Source: SourceParsed,
	}
}

// resultFromPayload is the single defaulting reducer: every field of Result
// is resolved here and nowhere else.
func resultFromPayload(m map[string]any, studentName string) Result {
	return Result{
		StudentName:     studentName,
		Summary:         stringField(m, "summary", defaultSummary),
		OverallScore:    intField(m, "overallScore", defaultOverallScore),
		Strengths:       stringListField(m, "strengths", defaultStrengths),
		Concerns:        stringListField(m, "concerns", defaultConcerns),
		Recommendations: stringListField(m, "recommendations", defaultRecommendations),
		Goals:           goalList(m["goals"]),
		Services:        serviceList(m["services"]),
	}
}

// fallbackOutcome is the complete hand-authored result substituted when the
// response cannot be parsed at all. The caller never receives an error from
// a successful HTTP exchange.
func fallbackOutcome(studentName string) Outcome {
	return Outcome{
		Result: Result{
			StudentName:     studentName,
			Summary:         fallbackSummary,
			OverallScore:    defaultOverallScore,
			Strengths:       cloneStrings(defaultStrengths),
			Concerns:        cloneStrings(defaultConcerns),
			Recommendations: cloneStrings(defaultRecommendations),
			Goals:           []Goal{},
			Services:        []Service{},
		},
		Source: SourceFallback,
	}
}

func stringField(m map[string]any, key, fallback string) string {
	if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return fallback
}

func intField(m map[string]any, key string, fallback int) int {
	switch n := m[key].(type) {
	case float64:
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	}
	return fallback
}

func stringListField(m map[string]any, key string, fallback []string) []string {
	items, ok := m[key].([]any)
	if !ok {
		return cloneStrings(fallback)
	}
	out := make([]string, 0, len(items))
	for _, v := range items {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return cloneStrings(fallback)
	}
	return out
}

// goalList parses goals element-by-element. A goal missing either required
// string is dropped; unknown status defaults to onTrack; missing progress
// defaults to 50. An omitted or wrong-typed list is simply empty.
func goalList(v any) []Goal {
	items, ok := v.([]any)
	out := make([]Goal, 0, len(items))
	if !ok {
		return out
	}
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		area, aok := m["area"].(string)
		desc, dok := m["description"].(string)
		if !aok || !dok || strings.TrimSpace(area) == "" || strings.TrimSpace(desc) == "" {
			continue
		}
		status, _ := m["status"].(string)
		out = append(out, Goal{
			Area:            area,
			Description:     desc,
			Status:          goalStatusFromString(status),
			ProgressPercent: intField(m, "progressPercent", defaultProgress),
		})
	}
	return out
}

// serviceList parses services element-by-element; an element missing any of
// its three required strings is dropped.
func serviceList(v any) []Service {
	items, ok := v.([]any)
	out := make([]Service, 0, len(items))
	if !ok {
		return out
	}
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, nok := m["name"].(string)
		freq, fok := m["frequency"].(string)
		prov, pok := m["provider"].(string)
		if !nok || !fok || !pok || strings.TrimSpace(name) == "" {
			continue
		}
		out = append(out, Service{Name: name, Frequency: freq, Provider: prov})
	}
	return out
}

func cloneStrings(xs []string) []string {
	out := make([]string, len(xs))
	copy(out, xs)
	return out
}
