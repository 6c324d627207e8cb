// Package kb holds the remediation article index and its keyword matcher.
package kb

import (
	"strings"
)

// Weights tunes the keyword/title scoring. Zero values are replaced by
// DefaultWeights.
type Weights struct {
	KeywordExact     int
	KeywordInQuery   int
	QueryInKeyword   int
	TitleExact       int
	TitleWordInQuery int
	QueryWordInTitle int
	Threshold        int
}

var DefaultWeights = Weights{
	KeywordExact:     15,
	KeywordInQuery:   10,
	QueryInKeyword:   5,
	TitleExact:       25,
	TitleWordInQuery: 15,
	QueryWordInTitle: 12,
	Threshold:        5,
}

func (w Weights) withDefaults() Weights {
	d := DefaultWeights
	if w.KeywordExact == 0 {
		w.KeywordExact = d.KeywordExact
	}
	if w.KeywordInQuery == 0 {
		w.KeywordInQuery = d.KeywordInQuery
	}
	if w.QueryInKeyword == 0 {
		w.QueryInKeyword = d.QueryInKeyword
	}
	if w.TitleExact == 0 {
		w.TitleExact = d.TitleExact
	}
	if w.TitleWordInQuery == 0 {
		w.TitleWordInQuery = d.TitleWordInQuery
	}
	if w.QueryWordInTitle == 0 {
		w.QueryWordInTitle = d.QueryWordInTitle
	}
	if w.Threshold == 0 {
		w.Threshold = d.Threshold
	}
	return w
}

type Index struct {
	articles []*Article
	weights  Weights
}

func NewIndex(articles []*Article, w Weights) *Index {
	cp := make([]*Article, 0, len(articles))
	for _, a := range articles {
		cp = append(cp, a.Clone())
	}
	return &Index{articles: cp, weights: w.withDefaults()}
}

// All returns a snapshot of every article.
func (ix *Index) All() []*Article {
	out := make([]*Article, 0, len(ix.articles))
	for _, a := range ix.articles {
		out = append(out, a.Clone())
	}
	return out
}

func (ix *Index) Len() int { return len(ix.articles) }

// Find returns the article whose issue type equals query, otherwise the
// highest scoring article at or above the threshold, otherwise nil.
func (ix *Index) Find(query string) *Article {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	for _, a := range ix.articles {
		if strings.ToLower(a.IssueType) == q {
			return a.Clone()
		}
	}

	var (
		best      *Article
		bestScore int
	)
	for _, a := range ix.articles {
		s := ix.Score(a, q)
		if s >= ix.weights.Threshold && s > bestScore {
			best, bestScore = a, s
		}
	}
	return best.Clone()
}

// FindByName looks an article up by a name a backend suggested: a title or
// id containing name, case-insensitively.
func (ix *Index) FindByName(name string) *Article {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return nil
	}
	for _, a := range ix.articles {
		if strings.Contains(strings.ToLower(a.Title), n) || strings.Contains(strings.ToLower(a.ID), n) {
			return a.Clone()
		}
	}
	return nil
}

// Score computes the keyword score plus the first applicable title bonus.
// q must already be lower-cased and trimmed.
func (ix *Index) Score(a *Article, q string) int {
	w := ix.weights
	score := 0

	for _, kw := range a.Keywords {
		k := strings.ToLower(strings.TrimSpace(kw))
		if k == "" {
			continue
		}
		switch {
		case k == q:
			score += w.KeywordExact
		case len(k) >= 3 && strings.Contains(q, k):
			score += w.KeywordInQuery
		case len(q) >= 3 && strings.Contains(k, q):
			score += w.QueryInKeyword
		}
	}

	title := strings.ToLower(strings.TrimSpace(a.Title))
	switch {
	case title == "":
	case title == q:
		score += w.TitleExact
	case anyWordIn(strings.Fields(title), q):
		score += w.TitleWordInQuery
	case anyWordIn(strings.Fields(q), title):
		score += w.QueryWordInTitle
	}
	return score
}

func anyWordIn(words []string, s string) bool {
	for _, w := range words {
		if len(w) > 2 && strings.Contains(s, w) {
			return true
		}
	}
	return false
}
