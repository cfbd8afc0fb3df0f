package ranker

import (
	"math"
	"regexp"
	"strings"

	"github.com/dshills/ideactx-mcp/pkg/types"
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "be": {}, "for": {}, "from": {},
	"how": {}, "i": {}, "if": {}, "in": {}, "is": {}, "it": {}, "of": {},
	"on": {}, "or": {}, "show": {}, "tell": {}, "the": {}, "to": {},
	"what": {}, "where": {}, "which": {}, "who": {}, "why": {}, "with": {},
	"would": {},
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9\s]`)

// Words lowercases the query, replaces punctuation with spaces and splits it
func Words(query string) []string {
	return strings.Fields(nonAlnum.ReplaceAllString(strings.ToLower(query), " "))
}

// BaseTokens returns the meaningful query words: stopwords removed, no expansions
func BaseTokens(query string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, w := range Words(query) {
		if _, stop := stopwords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// Tokenize returns BaseTokens plus singular forms and framework compounds
func Tokenize(query string) []string {
	lower := strings.ToLower(strings.TrimSpace(query))
	var out []string
	seen := make(map[string]struct{})
	add := func(tok string) {
		if _, dup := seen[tok]; dup {
			return
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	for _, w := range BaseTokens(lower) {
		add(w)
		if len(w) > 3 && strings.HasSuffix(w, "s") {
			add(w[:len(w)-1])
		}
		if w == "spring" || w == "boot" {
			add("springboot")
		}
	}
	if strings.Contains(lower, "spring boot") {
		add("springbootapplication")
	}
	return out
}

// EstimateTokens approximates the context cost of a hit from its summary length
func EstimateTokens(hit *types.SymbolHit) int {
	n := len(hit.Summary)
	if n == 0 {
		n = 80
	}
	return max(20, int(math.Ceil(float64(n)/4)))
}
