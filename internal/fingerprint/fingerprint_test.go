package fingerprint

import "testing"

func TestBytesIsDeterministic(t *testing.T) {
	t.Parallel()

	a := Bytes([]byte("tender documentation"))
	b := Bytes([]byte("tender documentation"))
	if a != b {
		t.Fatalf("same input produced different fingerprints: %s vs %s", a, b)
	}
	if a == Bytes([]byte("tender documentation.")) {
		t.Fatal("different input produced the same fingerprint")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256, got %d chars", len(a))
	}
}

func TestChainDependsOnEveryPart(t *testing.T) {
	t.Parallel()

	base := Chain(StageNormalize, "doc-fp", "model-fp")

	if base != Chain(StageNormalize, "doc-fp", "model-fp") {
		t.Fatal("chain is not deterministic")
	}
	if base == Chain(StageClassify, "doc-fp", "model-fp") {
		t.Fatal("stage change did not change the fingerprint")
	}
	if base == Chain(StageNormalize, "doc-fp", "model-fp2") {
		t.Fatal("model change did not change the fingerprint")
	}
	if base == Chain(StageNormalize, "doc-fp2", "model-fp") {
		t.Fatal("upstream change did not change the fingerprint")
	}
}

func TestChainPartsAreNotAmbiguous(t *testing.T) {
	t.Parallel()

	// Concatenation without separators would collapse these two.
	if Chain(StageExtract, "ab", "c") == Chain(StageExtract, "a", "bc") {
		t.Fatal("part boundaries are ambiguous")
	}
}

func TestTaxonomyIgnoresMapOrder(t *testing.T) {
	t.Parallel()

	a := Taxonomy(map[string][]string{
		"roads":   {"asphalt", "bridge"},
		"medical": {"hospital"},
	}, 90)
	b := Taxonomy(map[string][]string{
		"medical": {"hospital"},
		"roads":   {"bridge", "asphalt"},
	}, 90)
	if a != b {
		t.Fatal("taxonomy fingerprint depends on iteration order")
	}

	if a == Taxonomy(map[string][]string{
		"roads":   {"asphalt", "bridge"},
		"medical": {"hospital"},
	}, 85) {
		t.Fatal("threshold change did not change the fingerprint")
	}
	if a == Taxonomy(map[string][]string{
		"roads":   {"asphalt", "bridge", "tunnel"},
		"medical": {"hospital"},
	}, 90) {
		t.Fatal("keyword change did not change the fingerprint")
	}
}
