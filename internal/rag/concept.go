package rag

import (
	"regexp"
	"strings"

	"github.com/sparkforge/nigel/internal/doctrine"
)

// conceptPattern matches definition-style questions and captures the
// concept being asked about.
var conceptPattern = regexp.MustCompile(
	`(?:what (?:is|are)|define|explain)\s+(?:an?\s+)?(?:the\s+)?(.+?)\s*(?:\?|$)`)

// ExtractConcept pulls the concept name out of a definition-style query
// ("what is X", "define X", "explain X"). Returns "" when the query is
// not definition-shaped. Heuristic by design: it only needs to be good
// enough to drive title boosting and the permissive distance floor, and
// a miss degrades to a plain vector search.
//
// The capture is cut at the first comma or semicolon, so a compound
// question like "what is the FATE framework, and how do I use it?"
// still yields "fate".
func ExtractConcept(query string) string {
	m := conceptPattern.FindStringSubmatch(strings.ToLower(query))
	if m == nil {
		return ""
	}

	concept := m[1]
	if i := strings.IndexAny(concept, ",;"); i >= 0 {
		concept = concept[:i]
	}
	return doctrine.NormalizeConcept(concept)
}
