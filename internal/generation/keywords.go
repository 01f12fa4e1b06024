package generation

import (
	"regexp"
	"sort"
	"strings"
)

const (
	maxFrequentWords = 20
	minKeywordLen    = 5
	minSentenceLen   = 31
	maxSentenceLen   = 299
)

var (
	nonLetters    = regexp.MustCompile(`[^a-zA-Z]`)
	sentenceSplit = regexp.MustCompile(`[.!?]+`)

	stopwords = map[string]struct{}{
		"which": {}, "where": {}, "their": {}, "there": {}, "about": {},
		"these": {}, "those": {}, "would": {}, "could": {}, "should": {},
	}
)

// ExtractKeywords returns the topics followed by the most frequent long
// words in content. Duplicates are dropped case-insensitively, keeping the
// first spelling. Frequency ties keep first-seen order.
func ExtractKeywords(content string, topics []string) []string {
	counts := make(map[string]int)
	var order []string
	for _, w := range strings.Fields(content) {
		w = strings.ToLower(nonLetters.ReplaceAllString(w, ""))
		if len(w) < minKeywordLen {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}

	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > maxFrequentWords {
		order = order[:maxFrequentWords]
	}

	seen := make(map[string]struct{}, len(topics)+len(order))
	out := make([]string, 0, len(topics)+len(order))
	for _, k := range append(append([]string{}, topics...), order...) {
		key := strings.ToLower(k)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, k)
	}
	return out
}

// SplitSentences returns trimmed sentences of usable length for question phrasing.
func SplitSentences(content string) []string {
	var out []string
	for _, s := range sentenceSplit.Split(content, -1) {
		s = strings.TrimSpace(s)
		if n := len(s); n >= minSentenceLen && n <= maxSentenceLen {
			out = append(out, s)
		}
	}
	return out
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
