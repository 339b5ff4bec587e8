package catalog

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"unicode"

	"github.com/aretw0/verbgate/pkg/domain"
	"github.com/aretw0/verbgate/pkg/ports"
)

// Matcher scores catalog verbs by keyword overlap with the utterance.
type Matcher struct {
	catalog *Catalog
}

// NewMatcher creates a keyword matcher over c.
func NewMatcher(c *Catalog) *Matcher {
	return &Matcher{catalog: c}
}

// Match implements ports.Matcher.
//
// A verb scores the fraction of its keywords found in the utterance. Multi-word
// keywords must appear as a contiguous phrase.
func (m *Matcher) Match(ctx context.Context, utterance string) (ports.MatchResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.MatchResult{}, err
	}

	text := " " + strings.Join(words(utterance), " ") + " "
	var res ports.MatchResult
	for _, v := range m.catalog.Verbs {
		if len(v.Keywords) == 0 {
			continue
		}
		hits := 0
		for _, kw := range v.Keywords {
			phrase := strings.Join(words(kw), " ")
			if phrase != "" && strings.Contains(text, " "+phrase+" ") {
				hits++
			}
		}
		score := float64(hits) / float64(len(v.Keywords))
		if hits == 0 || score < m.catalog.MinScore {
			continue
		}
		label := v.Label
		if label == "" {
			label = string(v.FQN)
		}
		res.Candidates = append(res.Candidates, domain.CandidateVerb{Verb: v.FQN, Label: label, Score: score})
	}

	slices.SortStableFunc(res.Candidates, func(a, b domain.CandidateVerb) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Verb, b.Verb)
	})

	if len(res.Candidates) > 1 {
		res.Ambiguous = res.Candidates[0].Score-res.Candidates[1].Score <= m.catalog.Margin
	}
	return res, nil
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
