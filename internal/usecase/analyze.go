package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"TenderScan/internal/domain"
)

// FileAnalysis is the result of running one local document through the
// extract → normalize → classify stages without a crawl.
type FileAnalysis struct {
	Path           string                      `json:"path"`
	Method         domain.ExtractionMethod     `json:"method"`
	Confidence     float64                     `json:"confidence"`
	LemmaCount     int                         `json:"lemmaCount"`
	Classification domain.ClassificationResult `json:"classification"`
}

// Analyzer replays the document stages over files on disk. It shares the
// pipeline's stage cache, so repeated analysis of the same bytes is free.
type Analyzer struct {
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewAnalyzer builds the offline analysis use case on top of the pipeline.
func NewAnalyzer(pipeline *Pipeline, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{pipeline: pipeline, logger: logger}
}

// AnalyzeFiles processes each path in order. Unreadable files are reported
// with the failed method; only Resource-class failures abort the batch.
func (a *Analyzer) AnalyzeFiles(ctx context.Context, paths []string) ([]FileAnalysis, error) {
	results := make([]FileAnalysis, 0, len(paths))

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		analysis, err := a.analyzeFile(ctx, path)
		if err != nil {
			return results, fmt.Errorf("analyze %s: %w", path, err)
		}
		results = append(results, analysis)
	}

	return results, nil
}

func (a *Analyzer) analyzeFile(ctx context.Context, path string) (FileAnalysis, error) {
	analysis := FileAnalysis{Path: path, Method: domain.MethodFailed}

	data, err := os.ReadFile(path)
	if err != nil {
		a.logger.Warn("file unreadable", "path", path, "error", err)
		return analysis, nil
	}

	doc, err := a.pipeline.extractDocument(ctx, data, "")
	if err != nil {
		return analysis, err
	}
	analysis.Method = doc.Method
	analysis.Confidence = doc.Confidence
	if doc.Method == domain.MethodFailed {
		return analysis, nil
	}

	normalized, err := a.pipeline.normalizeDocument(ctx, doc)
	if err != nil {
		return analysis, err
	}
	analysis.LemmaCount = len(normalized.Lemmas)

	name := filepath.Base(path)
	classification, err := a.pipeline.classifyDocument(ctx, name, normalized)
	if err != nil {
		return analysis, err
	}
	analysis.Classification = classification

	return analysis, nil
}
