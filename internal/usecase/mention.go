package usecase

import (
	"regexp"
	"sort"
	"strings"

	"genstudio-backend/internal/domain/model"
)

// MentionMatch is the single best @mention found in a prompt.
type MentionMatch struct {
	Document model.Document
	Marker   string
	Start    int
}

var (
	mentionQuotedRe       = regexp.MustCompile(`@"([^"]+)"`)
	mentionSingleQuotedRe = regexp.MustCompile(`@'([^']+)'`)
	mentionBareRe         = regexp.MustCompile(`@([^\s]+)`)
	whitespaceRunRe       = regexp.MustCompile(`\s{2,}`)
)

// FindDocumentMention scans the prompt for @name markers referencing one of
// the session's documents. Each document contributes three candidate markers
// (double-quoted, single-quoted, bare); all occurrences are collected and the
// earliest start offset wins, ties broken by the longer marker so a quoted
// form beats a bare prefix match.
func FindDocumentMention(prompt string, documents []model.Document) (*MentionMatch, bool) {
	if prompt == "" || !strings.Contains(prompt, "@") {
		return nil, false
	}
	var candidates []MentionMatch
	for _, doc := range documents {
		name := doc.DisplayName()
		if name == "" {
			continue
		}
		markers := []string{`@"` + name + `"`, `@'` + name + `'`, `@` + name}
		for _, marker := range markers {
			start := strings.Index(prompt, marker)
			for start != -1 {
				candidates = append(candidates, MentionMatch{Document: doc, Marker: marker, Start: start})
				next := strings.Index(prompt[start+len(marker):], marker)
				if next == -1 {
					break
				}
				start = start + len(marker) + next
			}
		}
	}
	if len(candidates) == 0 {
		return nil, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Start != candidates[j].Start {
			return candidates[i].Start < candidates[j].Start
		}
		return len(candidates[i].Marker) > len(candidates[j].Marker)
	})
	best := candidates[0]
	return &best, true
}

// FallbackDocumentName extracts an attempted-but-unresolved document name so
// the caller can answer "document not found" instead of silently ignoring
// the mention. Only bare tokens that look like a pdf name qualify.
func FallbackDocumentName(prompt string) (string, bool) {
	if prompt == "" {
		return "", false
	}
	if m := mentionQuotedRe.FindStringSubmatch(prompt); m != nil {
		return m[1], true
	}
	if m := mentionSingleQuotedRe.FindStringSubmatch(prompt); m != nil {
		return m[1], true
	}
	m := mentionBareRe.FindStringSubmatch(prompt)
	if m == nil {
		return "", false
	}
	candidate := strings.TrimRight(m[1], ".,!?")
	if !strings.Contains(strings.ToLower(candidate), ".pdf") {
		return "", false
	}
	return candidate, true
}

// StripMarker removes the first occurrence of a resolved marker and collapses
// any resulting run of whitespace into a single space.
func StripMarker(prompt, marker string) string {
	if prompt == "" || marker == "" {
		return prompt
	}
	cleaned := strings.Replace(prompt, marker, "", 1)
	cleaned = whitespaceRunRe.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}
