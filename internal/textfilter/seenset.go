package textfilter

import "github.com/gosuda/pagecap/internal/domain"

// SeenSet is a fingerprint membership set used to suppress duplicate text.
// The per-frame local memory and the aggregator's session-wide index are two
// independent SeenSet instances using the identical fingerprint scheme; they
// are intentionally never reconciled.
//
// Not safe for concurrent use; callers serialize access.
type SeenSet struct {
	seen map[string]struct{}
}

// NewSeenSet creates an empty SeenSet.
func NewSeenSet() *SeenSet {
	return &SeenSet{seen: make(map[string]struct{})}
}

// Admit records the fingerprint of cleaned text and reports whether it was
// new. A false return means the text was already seen in this scope.
func (s *SeenSet) Admit(text string) bool {
	fp := domain.Fingerprint(text)
	if _, ok := s.seen[fp]; ok {
		return false
	}
	s.seen[fp] = struct{}{}
	return true
}

// Contains reports whether the text's fingerprint was already admitted.
func (s *SeenSet) Contains(text string) bool {
	_, ok := s.seen[domain.Fingerprint(text)]
	return ok
}

// Len returns the number of admitted fingerprints.
func (s *SeenSet) Len() int {
	return len(s.seen)
}

// Reset clears all admitted fingerprints.
func (s *SeenSet) Reset() {
	s.seen = make(map[string]struct{})
}
