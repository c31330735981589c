package ports

import (
	"context"
	"net/http"
	"time"

	"TenderScan/internal/domain"
)

// FetchKind distinguishes a rendered listing page from a plain attachment.
type FetchKind string

const (
	KindPage       FetchKind = "page"
	KindAttachment FetchKind = "attachment"
)

// Fetcher retrieves raw bytes for a URL, retrying transient failures.
// Exhausted retries surface as *domain.FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, url string, kind FetchKind) ([]byte, error)
}

// BrowserSession is the single shared stateful crawl session. It must not
// be used from concurrent callers; the orchestrator drives it sequentially.
type BrowserSession interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	// OpenListing navigates to the seed URL, applies the configured status
	// filter and search, and returns the rendered first results page.
	OpenListing(ctx context.Context, seedURL string) ([]byte, error)
	// AdvanceListing clicks through to the next results page. The bool is
	// false when pagination is exhausted.
	AdvanceListing(ctx context.Context) ([]byte, bool, error)
	// OpenTender expands the idx-th listing row and returns the rendered
	// documentation view with its attachment links.
	OpenTender(ctx context.Context, idx int) ([]byte, error)
	// CloseTender navigates back to the results table.
	CloseTender(ctx context.Context) error
	Cookies(ctx context.Context) ([]*http.Cookie, error)
}

// Extractor converts attachment bytes into plain text, choosing among
// format-specific strategies with OCR as the fallback.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeHint string) domain.ExtractedDocument
}

// Normalizer tokenizes and lemmatizes extracted text. Deterministic for
// identical input; empty input yields an empty lemma sequence.
type Normalizer interface {
	Normalize(text string) domain.NormalizedText
	// ModelFingerprint identifies the loaded model so downstream cache
	// entries invalidate when it changes.
	ModelFingerprint() string
}

// Classifier scores lemmas against the taxonomy.
type Classifier interface {
	Classify(tenderID string, lemmas []string) domain.ClassificationResult
	// TaxonomyFingerprint identifies the taxonomy and threshold for the
	// classify-stage cache key.
	TaxonomyFingerprint() string
}

// CacheStore persists the result of any expensive stage keyed by
// (stage, fingerprint). Cold start and corrupted entries are a miss.
type CacheStore interface {
	Get(ctx context.Context, stage, fingerprint string) ([]byte, bool, error)
	Put(ctx context.Context, stage, fingerprint string, payload []byte) error
	// Do returns the cached payload or computes, stores, and returns it,
	// with at-most-once compute per (stage, fingerprint).
	Do(ctx context.Context, stage, fingerprint string, compute func() ([]byte, error)) ([]byte, error)
	Reset(ctx context.Context) error
	Close() error
}

// Exporter consumes the ordered sequence of classified tender records.
type Exporter interface {
	Export(ctx context.Context, records []domain.ClassifiedTender, report domain.RunReport) error
}

// Scheduler fires a job on a recurring schedule until stopped.
type Scheduler interface {
	Start(ctx context.Context, job func(trigger time.Time)) error
	Stop(ctx context.Context) error
}
