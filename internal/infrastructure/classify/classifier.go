// Package classify scores normalized text against the keyword taxonomy
// using fuzzy string matching.
package classify

import (
	"sort"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"TenderScan/internal/domain"
	"TenderScan/internal/fingerprint"
	"TenderScan/internal/ports"
)

// Classifier assigns taxonomy categories to lemma sequences. Keywords are
// normalized through the same pipeline as document text once, at
// construction, so surface variation on either side cancels out.
type Classifier struct {
	categories []category
	threshold  int
	taxonomyFP string
}

type category struct {
	name     string
	keywords []string
}

var _ ports.Classifier = (*Classifier)(nil)

// New builds a classifier from the config taxonomy. normalizer may be nil,
// in which case keywords are matched as supplied.
func New(taxonomy map[string][]string, threshold int, normalizer ports.Normalizer) *Classifier {
	c := &Classifier{
		threshold:  threshold,
		taxonomyFP: fingerprint.Taxonomy(taxonomy, threshold),
	}

	names := make([]string, 0, len(taxonomy))
	for name := range taxonomy {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cat := category{name: name}
		for _, kw := range taxonomy[name] {
			normalized := strings.ToLower(strings.TrimSpace(kw))
			if normalizer != nil {
				if lemmas := normalizer.Normalize(kw).Lemmas; len(lemmas) > 0 {
					normalized = strings.Join(lemmas, " ")
				}
			}
			if normalized != "" {
				cat.keywords = append(cat.keywords, normalized)
			}
		}
		c.categories = append(c.categories, cat)
	}

	return c
}

// Classify computes per-category scores over the lemma sequence. The
// category score is the maximum single keyword score; a category is
// assigned iff its score meets the threshold (inclusive). Ties are not
// broken: classification is multi-label.
func (c *Classifier) Classify(tenderID string, lemmas []string) domain.ClassificationResult {
	result := domain.ClassificationResult{
		TenderID:           tenderID,
		Scores:             map[string]int{},
		AssignedCategories: []string{},
	}

	text := strings.Join(lemmas, " ")
	for _, cat := range c.categories {
		best := 0
		for _, kw := range cat.keywords {
			score := keywordScore(kw, text)
			if score > best {
				best = score
			}
			if best == 100 {
				break
			}
		}
		result.Scores[cat.name] = best
		if best >= c.threshold {
			result.AssignedCategories = append(result.AssignedCategories, cat.name)
		}
	}

	sort.Strings(result.AssignedCategories)
	return result
}

// TaxonomyFingerprint identifies the taxonomy and threshold so the
// classify-stage cache invalidates when either changes.
func (c *Classifier) TaxonomyFingerprint() string {
	return c.taxonomyFP
}

func keywordScore(keyword, text string) int {
	if keyword == "" || text == "" {
		return 0
	}
	// Exact occurrence short-circuits the fuzzy comparison.
	if strings.Contains(text, keyword) {
		return 100
	}
	return fuzzy.PartialRatio(keyword, text)
}
