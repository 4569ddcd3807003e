package extract

import "strings"

// Registry maps file extensions to extractors. Dispatch is strictly
// extension-based; content sniffing never selects an extractor.
type Registry struct {
	byExtension map[string]Extractor
	extractors  []Extractor
}

func NewRegistry() *Registry {
	return &Registry{
		byExtension: make(map[string]Extractor),
		extractors:  make([]Extractor, 0),
	}
}

func (r *Registry) Register(e Extractor) {
	r.extractors = append(r.extractors, e)
	for _, ext := range e.SupportedExtensions() {
		key := strings.ToLower(strings.TrimSpace(ext))
		if key != "" {
			r.byExtension[key] = e
		}
	}
}

// Resolve returns the extractor registered for the given extension
// (including the leading dot), or false if none is registered.
func (r *Registry) Resolve(extension string) (Extractor, bool) {
	e, ok := r.byExtension[strings.ToLower(strings.TrimSpace(extension))]
	return e, ok
}
