// Package export writes the classified tender records consumed by
// downstream tooling.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"TenderScan/internal/domain"
	"TenderScan/internal/ports"
)

// JSONWriter persists run results as a single indented JSON document:
// the report header followed by records ordered by tender ID.
type JSONWriter struct {
	path string
}

var _ ports.Exporter = (*JSONWriter)(nil)

// NewJSONWriter targets the configured output path.
func NewJSONWriter(path string) *JSONWriter {
	return &JSONWriter{path: path}
}

// Export writes the records and the run report. Records arrive in
// completion order from the worker pool and are sorted here for a stable
// file layout.
func (w *JSONWriter) Export(ctx context.Context, records []domain.ClassifiedTender, report domain.RunReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sorted := append([]domain.ClassifiedTender(nil), records...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Listing.SourceID < sorted[j].Listing.SourceID
	})

	payload := struct {
		Report  domain.RunReport          `json:"report"`
		Tenders []domain.ClassifiedTender `json:"tenders"`
	}{Report: report, Tenders: sorted}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	if err := os.WriteFile(w.path, data, 0o644); err != nil {
		return fmt.Errorf("write results %s: %w", w.path, err)
	}

	return nil
}
