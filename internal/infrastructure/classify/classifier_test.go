package classify

import (
	"reflect"
	"strings"
	"testing"

	"TenderScan/internal/domain"
	"TenderScan/internal/ports"
)

// fakeNormalizer lowercases and splits, mirroring what the real
// normalizer does to taxonomy keywords.
type fakeNormalizer struct{}

var _ ports.Normalizer = fakeNormalizer{}

func (fakeNormalizer) Normalize(text string) domain.NormalizedText {
	var lemmas []string
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		lemmas = append(lemmas, strings.Trim(tok, ".,!?"))
	}
	return domain.NormalizedText{Lemmas: lemmas}
}

func (fakeNormalizer) ModelFingerprint() string { return "fake-model" }

func testTaxonomy() map[string][]string {
	return map[string][]string{
		"Infrastructure": {"road construction", "bridge repair"},
		"Medical":        {"hospital equipment"},
	}
}

func TestExactSubstringScoresFull(t *testing.T) {
	t.Parallel()

	c := New(testTaxonomy(), 90, fakeNormalizer{})
	result := c.Classify("NAT1", strings.Fields("tender for road construction in tbilisi"))

	if result.Scores["Infrastructure"] != 100 {
		t.Fatalf("exact keyword occurrence scored %d, want 100", result.Scores["Infrastructure"])
	}
	if !result.Assigned("Infrastructure") {
		t.Fatal("Infrastructure not assigned")
	}
	if result.Assigned("Medical") {
		t.Fatal("Medical assigned without evidence")
	}
}

func TestThresholdIsInclusive(t *testing.T) {
	t.Parallel()

	taxonomy := map[string][]string{"Exact": {"alpha beta"}}
	lemmas := []string{"alpha", "beta"}

	// Exact occurrence scores 100; a threshold of exactly 100 must still
	// assign the category.
	c := New(taxonomy, 100, nil)
	result := c.Classify("NAT2", lemmas)
	if !result.Assigned("Exact") {
		t.Fatalf("score %d at threshold 100 not assigned", result.Scores["Exact"])
	}

	// One point above the achievable score must not assign. Fuzzy partial
	// matching never exceeds 100, so a miss stays a miss.
	miss := c.Classify("NAT2", []string{"gamma"})
	if miss.Assigned("Exact") {
		t.Fatalf("score %d assigned above threshold", miss.Scores["Exact"])
	}
}

func TestSubThresholdFuzzyScoreNotAssigned(t *testing.T) {
	t.Parallel()

	// "crane" against "crani" shares four of five letters, a partial
	// ratio of exactly 2*4/(5+5) = 80. One point of threshold headroom
	// must exclude the category; dropping to the score re-admits it.
	taxonomy := map[string][]string{"Equipment": {"crane"}}
	lemmas := []string{"crani"}

	strict := New(taxonomy, 81, nil).Classify("NAT5", lemmas)
	if got := strict.Scores["Equipment"]; got != 80 {
		t.Fatalf("score = %d, want 80", got)
	}
	if strict.Assigned("Equipment") {
		t.Fatal("score 80 assigned at threshold 81")
	}

	lenient := New(taxonomy, 80, nil).Classify("NAT5", lemmas)
	if !lenient.Assigned("Equipment") {
		t.Fatal("score 80 not assigned at threshold 80")
	}
}

func TestFuzzyMatchToleratesInflection(t *testing.T) {
	t.Parallel()

	c := New(map[string][]string{"Infrastructure": {"road construction"}}, 85, nil)

	// A near-miss surface form should still score high via partial ratio.
	result := c.Classify("NAT3", strings.Fields("tender for roads constructions in region"))
	if result.Scores["Infrastructure"] < 85 {
		t.Fatalf("fuzzy score %d, want >= 85", result.Scores["Infrastructure"])
	}
}

func TestMultiLabelKeepsAllQualifyingCategories(t *testing.T) {
	t.Parallel()

	taxonomy := map[string][]string{
		"Infrastructure": {"bridge repair"},
		"Medical":        {"hospital equipment"},
	}
	c := New(taxonomy, 90, nil)

	result := c.Classify("NAT4", strings.Fields("bridge repair near hospital equipment depot"))
	want := []string{"Infrastructure", "Medical"}
	if !reflect.DeepEqual(result.AssignedCategories, want) {
		t.Fatalf("assigned = %v, want %v", result.AssignedCategories, want)
	}
}

func TestEmptyLemmasScoreZero(t *testing.T) {
	t.Parallel()

	c := New(testTaxonomy(), 90, nil)
	result := c.Classify("NAT5", nil)

	for name, score := range result.Scores {
		if score != 0 {
			t.Fatalf("category %s scored %d on empty input", name, score)
		}
	}
	if len(result.AssignedCategories) != 0 {
		t.Fatalf("assigned on empty input: %v", result.AssignedCategories)
	}
}

func TestGeorgianKeywords(t *testing.T) {
	t.Parallel()

	c := New(map[string][]string{"გზები": {"გზის მშენებლობა"}}, 90, nil)

	result := c.Classify("NAT6", []string{"ტენდერი", "გზის", "მშენებლობა"})
	if result.Scores["გზები"] != 100 {
		t.Fatalf("georgian keyword scored %d, want 100", result.Scores["გზები"])
	}
}

func TestKeywordsNormalizedAtConstruction(t *testing.T) {
	t.Parallel()

	// The keyword arrives in surface form; the normalizer folds both it
	// and document lemmas into the same space.
	c := New(map[string][]string{"Infrastructure": {"Road Construction!"}}, 90, fakeNormalizer{})

	result := c.Classify("NAT7", []string{"road", "construction"})
	if result.Scores["Infrastructure"] != 100 {
		t.Fatalf("normalized keyword scored %d, want 100", result.Scores["Infrastructure"])
	}
}

func TestTaxonomyFingerprintChangesWithTaxonomy(t *testing.T) {
	t.Parallel()

	a := New(testTaxonomy(), 90, nil)
	b := New(testTaxonomy(), 90, nil)
	if a.TaxonomyFingerprint() != b.TaxonomyFingerprint() {
		t.Fatal("identical taxonomies produced different fingerprints")
	}

	c := New(testTaxonomy(), 80, nil)
	if a.TaxonomyFingerprint() == c.TaxonomyFingerprint() {
		t.Fatal("threshold change did not change the fingerprint")
	}
}
