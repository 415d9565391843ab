// Package scope implements resource pattern matching and the subset
// algebra that governs legal delegation: a child mandate's scope must
// never reach further than its parent's.
package scope

import "strings"

// Matches reports whether resource is accepted by pattern. A pattern is
// split on '*'; the literal segments must appear in resource in order, with
// the first segment anchored at the start and the last anchored at the end.
// A pattern with no '*' matches only the identical string.
func Matches(resource, pattern string) bool {
	segments := strings.Split(pattern, "*")
	if len(segments) == 1 {
		return resource == pattern
	}

	first := segments[0]
	if !strings.HasPrefix(resource, first) {
		return false
	}
	rest := resource[len(first):]

	last := segments[len(segments)-1]
	middle := segments[1 : len(segments)-1]

	for _, seg := range middle {
		if seg == "" {
			continue
		}
		idx := strings.Index(rest, seg)
		if idx == -1 {
			return false
		}
		rest = rest[idx+len(seg):]
	}

	return strings.HasSuffix(rest, last) && len(rest) >= len(last)
}

// AnyMatches reports whether resource is accepted by any pattern in the set.
func AnyMatches(resource string, patterns []string) bool {
	for _, p := range patterns {
		if Matches(resource, p) {
			return true
		}
	}
	return false
}

// segment is one literal run of a pattern; split produces them in order,
// and every boundary between two consecutive segments is a '*'.
type segment struct {
	literal string
}

func split(pattern string) []segment {
	parts := strings.Split(pattern, "*")
	segs := make([]segment, len(parts))
	for i, p := range parts {
		segs[i] = segment{literal: p}
	}
	return segs
}

// patternAccepts reports whether every string accepted by child is also
// accepted by parent: parent's literal segments must appear, in order,
// within child's corresponding segments, and no wildcard span in child may
// reach outside the corresponding wildcard span in parent. This is the
// conservative containment rule the scope algebra is built on: when in
// doubt, it returns false, because a false "yes" here is a security bug
// while a false "no" only refuses legitimate delegation.
func patternAccepts(parentPattern, childPattern string) bool {
	if parentPattern == childPattern {
		return true
	}

	parentSegs := split(parentPattern)
	childSegs := split(childPattern)

	// A literal parent pattern (no wildcard) only contains an identical
	// literal child pattern; already handled by the equality check above.
	if len(parentSegs) == 1 {
		return false
	}

	// A wildcard-free child is contained in a wildcarded parent exactly
	// when the parent, applied as a matcher, matches the child's literal
	// string whole.
	if len(childSegs) == 1 {
		return Matches(childSegs[0].literal, parentPattern)
	}

	// Both wildcarded. The parent's first segment must be a prefix of the
	// child's first segment (anchored start), and the parent's last segment
	// must be a suffix of the child's last segment (anchored end). The
	// parent's interior segments must then appear, in order, within the
	// child's remaining literal material — which includes the child's own
	// interior segments and the unconsumed tail of the child's first/last
	// segments, since those trailing/leading characters sit inside the
	// child's wildcard span and are exactly the span a parent wildcard may
	// legally cover.
	pFirst, pLast := parentSegs[0].literal, parentSegs[len(parentSegs)-1].literal
	cFirst, cLast := childSegs[0].literal, childSegs[len(childSegs)-1].literal

	if !strings.HasPrefix(cFirst, pFirst) {
		return false
	}
	if !strings.HasSuffix(cLast, pLast) {
		return false
	}

	remaining := cFirst[len(pFirst):]
	for _, mid := range childSegs[1 : len(childSegs)-1] {
		remaining += "\x00" + mid.literal
	}
	remaining += "\x00" + cLast[:len(cLast)-len(pLast)]

	for _, pmid := range parentSegs[1 : len(parentSegs)-1] {
		if pmid.literal == "" {
			continue
		}
		idx := strings.Index(remaining, pmid.literal)
		if idx == -1 {
			return false
		}
		remaining = remaining[idx+len(pmid.literal):]
	}

	return true
}

// IsSubset reports whether every resource pattern in child is contained in
// some pattern in parent, per patternAccepts. An empty child set is
// vacuously a subset and is permitted here; the mandate engine rejects
// empty resource scopes earlier at issuance.
func IsSubset(child, parent []string) bool {
	for _, c := range child {
		covered := false
		for _, p := range parent {
			if patternAccepts(p, c) {
				covered = true
				break
			}
		}
		if !covered {
			return false
		}
	}
	return true
}

// ActionSubset reports whether every action in child appears verbatim in
// parent. Actions carry no wildcards, so this is plain exact-match set
// containment.
func ActionSubset(child, parent []string) bool {
	parentSet := make(map[string]struct{}, len(parent))
	for _, a := range parent {
		parentSet[a] = struct{}{}
	}
	for _, a := range child {
		if _, ok := parentSet[a]; !ok {
			return false
		}
	}
	return true
}
