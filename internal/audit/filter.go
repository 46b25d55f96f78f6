package audit

// Filter excludes configured event types from the audit pipeline. The
// excluded set is read once at startup and never changes afterwards, so
// lookups need no locking.
type Filter struct {
	excluded map[string]struct{}
}

// NewFilter builds a filter from the configured excluded type names.
// Matching is exact; there is no glob or hierarchy support.
func NewFilter(excludedTypes []string) *Filter {
	excluded := make(map[string]struct{}, len(excludedTypes))
	for _, t := range excludedTypes {
		if t == "" {
			continue
		}
		excluded[t] = struct{}{}
	}
	return &Filter{excluded: excluded}
}

// Accepts reports whether the record may enter the dispatch queue.
func (f *Filter) Accepts(rec Record) bool {
	_, found := f.excluded[rec.Type]
	return !found
}

// ExcludedCount returns the number of configured exclusions.
func (f *Filter) ExcludedCount() int {
	return len(f.excluded)
}
