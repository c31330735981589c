package usecase

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"TenderScan/internal/domain"
	"TenderScan/internal/infrastructure/cache"
)

func newTestAnalyzer(t *testing.T) (*Analyzer, *fakeExtractor) {
	t.Helper()

	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	extractor := &fakeExtractor{}
	pipeline := NewPipeline(PipelineDeps{
		Extractor:  extractor,
		Normalizer: &countingNormalizer{fp: "model-1"},
		Classifier: &countingClassifier{fp: "taxonomy-1"},
		Cache:      store,
		Logger:     slog.New(slog.DiscardHandler),
		Workers:    1,
	})
	return NewAnalyzer(pipeline, slog.New(slog.DiscardHandler)), extractor
}

func TestAnalyzeFiles(t *testing.T) {
	t.Parallel()

	analyzer, _ := newTestAnalyzer(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "tender.pdf")
	if err := os.WriteFile(path, []byte("road construction tender"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	results, err := analyzer.AnalyzeFiles(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results", len(results))
	}

	r := results[0]
	if r.Path != path {
		t.Fatalf("path = %s", r.Path)
	}
	if r.Method != domain.MethodNativeText {
		t.Fatalf("method = %s", r.Method)
	}
	if r.LemmaCount != 1 {
		t.Fatalf("lemma count = %d", r.LemmaCount)
	}
	if !r.Classification.Assigned("Infrastructure") {
		t.Fatal("category not assigned")
	}
	if r.Classification.TenderID != "tender.pdf" {
		t.Fatalf("tender id = %s", r.Classification.TenderID)
	}
}

func TestAnalyzeUnreadableFileDegrades(t *testing.T) {
	t.Parallel()

	analyzer, extractor := newTestAnalyzer(t)

	results, err := analyzer.AnalyzeFiles(context.Background(), []string{filepath.Join(t.TempDir(), "absent.pdf")})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Method != domain.MethodFailed {
		t.Fatalf("method = %s", results[0].Method)
	}
	if extractor.calls.Load() != 0 {
		t.Fatal("extractor ran on an unreadable file")
	}
}

func TestAnalyzeReusesStageCache(t *testing.T) {
	t.Parallel()

	analyzer, extractor := newTestAnalyzer(t)

	path := filepath.Join(t.TempDir(), "tender.pdf")
	if err := os.WriteFile(path, []byte("same bytes"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	for range 2 {
		if _, err := analyzer.AnalyzeFiles(context.Background(), []string{path}); err != nil {
			t.Fatalf("analyze: %v", err)
		}
	}
	if got := extractor.calls.Load(); got != 1 {
		t.Fatalf("extractor computed %d times, want 1", got)
	}
}
