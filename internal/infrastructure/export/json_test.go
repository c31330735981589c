package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"TenderScan/internal/domain"
)

func TestExportSortsAndWrites(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "results.json")
	w := NewJSONWriter(path)

	records := []domain.ClassifiedTender{
		{Listing: domain.TenderListing{SourceID: "NAT240002"}, Status: domain.StatusPartial},
		{Listing: domain.TenderListing{SourceID: "NAT240001"}, Status: domain.StatusClassified},
	}
	report := domain.RunReport{RunID: "run-1", Pages: 3, Classified: 1, Partial: 1}

	if err := w.Export(context.Background(), records, report); err != nil {
		t.Fatalf("export: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}

	var got struct {
		Report  domain.RunReport          `json:"report"`
		Tenders []domain.ClassifiedTender `json:"tenders"`
	}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("parse output: %v", err)
	}

	if got.Report.RunID != "run-1" || got.Report.Pages != 3 {
		t.Fatalf("report = %+v", got.Report)
	}
	if len(got.Tenders) != 2 {
		t.Fatalf("got %d tenders", len(got.Tenders))
	}
	if got.Tenders[0].Listing.SourceID != "NAT240001" {
		t.Fatalf("records not sorted: first is %s", got.Tenders[0].Listing.SourceID)
	}

	// Input order must not be mutated by the sort.
	if records[0].Listing.SourceID != "NAT240002" {
		t.Fatal("exporter mutated its input")
	}
}

func TestExportEmptyRun(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "results.json")
	w := NewJSONWriter(path)

	if err := w.Export(context.Background(), nil, domain.RunReport{RunID: "run-2"}); err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("output missing: %v", err)
	}
}

func TestExportHonorsCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := filepath.Join(t.TempDir(), "results.json")
	if err := NewJSONWriter(path).Export(ctx, nil, domain.RunReport{}); err == nil {
		t.Fatal("expected context error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("cancelled export still wrote output")
	}
}
