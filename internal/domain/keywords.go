package domain

import (
	"strings"
	"sync"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// keywordSet reports whether text contains any of a fixed set of keywords,
// case-insensitively. The automaton keeps match state between calls, so
// matching is serialized.
type keywordSet struct {
	mu       sync.Mutex
	matcher  *ahocorasick.Matcher
	keywords []string
}

func newKeywordSet(keywords []string) *keywordSet {
	normalized := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			normalized = append(normalized, kw)
		}
	}

	ks := &keywordSet{keywords: normalized}
	if len(normalized) > 0 {
		ks.matcher = ahocorasick.NewStringMatcher(normalized)
	}
	return ks
}

// matchAny reports whether any keyword occurs in any of the texts.
func (ks *keywordSet) matchAny(texts ...string) bool {
	if ks.matcher == nil {
		return false
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()

	for _, t := range texts {
		if t == "" {
			continue
		}
		if len(ks.matcher.Match([]byte(strings.ToLower(t)))) > 0 {
			return true
		}
	}
	return false
}
