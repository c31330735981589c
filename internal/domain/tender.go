package domain

import "time"

// TenderListing is a core entity describing one tender row scraped from a
// procurement portal listing page. Immutable once parsed.
type TenderListing struct {
	SourceID    string
	URL         string
	Title       string
	PublishedAt time.Time
	RawMetadata map[string]string
}

// Attachment is a document link discovered on a tender's documentation tab.
// ContentFingerprint is empty until the bytes have been fetched.
type Attachment struct {
	URL                string
	TenderID           string
	Name               string
	MimeHint           string
	ContentFingerprint string
}

// ExtractionMethod tags which strategy produced a document's text.
type ExtractionMethod string

const (
	MethodNativeText       ExtractionMethod = "native"
	MethodOCR              ExtractionMethod = "ocr"
	MethodSpreadsheetCells ExtractionMethod = "spreadsheet"
	MethodFailed           ExtractionMethod = "failed"
)

// ExtractedDocument holds the text recovered from one attachment.
// Method == MethodFailed implies Text == "".
type ExtractedDocument struct {
	AttachmentFingerprint string           `json:"attachment_fingerprint"`
	Text                  string           `json:"text"`
	Method                ExtractionMethod `json:"method"`
	Confidence            float64          `json:"confidence"`
}

// NormalizedText is the lemma sequence produced by linguistic normalization.
type NormalizedText struct {
	SourceFingerprint string   `json:"source_fingerprint"`
	Lemmas            []string `json:"lemmas"`
	Language          string   `json:"language"`
}

// ClassificationResult maps taxonomy categories to their best fuzzy-match
// score for one tender. AssignedCategories is exactly the set of category
// names whose score meets the configured threshold.
type ClassificationResult struct {
	TenderID           string         `json:"tender_id"`
	Scores             map[string]int `json:"scores"`
	AssignedCategories []string       `json:"assigned_categories"`
}

// Assigned reports whether the category met the threshold.
func (c ClassificationResult) Assigned(category string) bool {
	for _, name := range c.AssignedCategories {
		if name == category {
			return true
		}
	}
	return false
}

// RecordStatus enumerates how far a tender made it through the pipeline.
type RecordStatus string

const (
	StatusClassified RecordStatus = "classified"
	StatusPartial    RecordStatus = "partial"
	StatusSkipped    RecordStatus = "skipped"
)

// Provenance records which extraction strategy backed a classified record,
// for auditability.
type Provenance struct {
	Method     ExtractionMethod `json:"method"`
	Confidence float64          `json:"confidence"`
}

// ClassifiedTender is the record emitted per tender: listing metadata plus
// scores and extraction provenance.
type ClassifiedTender struct {
	Listing        TenderListing        `json:"listing"`
	Classification ClassificationResult `json:"classification"`
	Provenance     Provenance           `json:"provenance"`
	Status         RecordStatus         `json:"status"`
}

// RunReport summarizes a completed pipeline run.
type RunReport struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Pages      int           `json:"pages"`
	Classified int           `json:"classified"`
	Partial    int           `json:"partial"`
	Skipped    int           `json:"skipped"`
	Elapsed    time.Duration `json:"elapsed"`
}
