// Package subject derives consumer names from subjects and provides the
// exact-match sets used for fan-out filtering.
package subject

import "strings"

// Sanitize strips every non-alphabetic rune from a subject. The result is a
// pure function of the subject string; two subjects that differ only in
// non-alphabetic runes collide after sanitizing, so callers must keep their
// subject vocabulary unique under this mapping.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DurableName is the deterministic durable consumer name for a subject.
func DurableName(s string) string {
	return Sanitize(s)
}

// DeliverSubject is the deterministic delivery subject for a subject under
// the given prefix.
func DeliverSubject(prefix, s string) string {
	return prefix + "." + Sanitize(s)
}

// Set is an exact-match subject set. No wildcard expansion happens here even
// when the member strings themselves contain wildcard characters.
type Set map[string]struct{}

// NewSet builds a set from the given subjects.
func NewSet(subjects ...string) Set {
	set := make(Set, len(subjects))
	for _, s := range subjects {
		set[s] = struct{}{}
	}
	return set
}

// Contains reports exact membership.
func (s Set) Contains(subject string) bool {
	_, ok := s[subject]
	return ok
}

// Missing returns the subjects not already in the set, deduplicated, in
// input order.
func (s Set) Missing(subjects []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(subjects))
	for _, sub := range subjects {
		if _, dup := seen[sub]; dup {
			continue
		}
		seen[sub] = struct{}{}
		if !s.Contains(sub) {
			out = append(out, sub)
		}
	}
	return out
}
