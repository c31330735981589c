// Package extract converts fetched attachment bytes into plain text,
// selecting among format-specific strategies with OCR as the fallback.
package extract

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"TenderScan/internal/domain"
	"TenderScan/internal/fingerprint"
	"TenderScan/internal/ports"
)

var (
	pdfMagic = []byte("%PDF")
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xd0, 0xcf, 0x11, 0xe0}
)

// Extractor implements the decision tree: spreadsheet cells → native PDF
// text layer → OCR → failed. Native extraction is cheap and exact; OCR is
// expensive and lossy and runs only when the text layer is plausibly a
// scanned image (fewer than minCharsPerPage characters per page).
type Extractor struct {
	minCharsPerPage int
	logger          *slog.Logger

	// Strategy funcs are fields so the fallback policy is testable
	// without binary fixtures.
	nativeText  func(data []byte) (string, int, error)
	ocrText     func(ctx context.Context, data []byte) (string, float64, error)
	spreadsheet func(data []byte) (string, error)
}

var _ ports.Extractor = (*Extractor)(nil)

// New builds an extractor with the real strategy implementations.
func New(minCharsPerPage int, ocrLanguages []string, logger *slog.Logger) *Extractor {
	if minCharsPerPage <= 0 {
		minCharsPerPage = 50
	}
	if logger == nil {
		logger = slog.Default()
	}

	ocr := newOCREngine(ocrLanguages)
	return &Extractor{
		minCharsPerPage: minCharsPerPage,
		logger:          logger,
		nativeText:      pdfNativeText,
		ocrText:         ocr.extract,
		spreadsheet:     spreadsheetText,
	}
}

// Extract applies the strategy decision tree to the attachment bytes.
// All failures degrade to MethodFailed with empty text; extraction never
// returns an error past this boundary.
func (e *Extractor) Extract(ctx context.Context, data []byte, mimeHint string) domain.ExtractedDocument {
	doc := domain.ExtractedDocument{
		AttachmentFingerprint: fingerprint.Bytes(data),
		Method:                domain.MethodFailed,
	}

	if len(data) == 0 {
		return doc
	}

	switch detectFormat(data, mimeHint) {
	case formatSpreadsheet:
		text, err := e.spreadsheet(data)
		if err != nil {
			// A spreadsheet that does not parse is a hard failure; there
			// is no fallback strategy for cell data.
			e.logger.Warn("spreadsheet parse failed", "error", err)
			return doc
		}
		doc.Text = text
		doc.Method = domain.MethodSpreadsheetCells
		doc.Confidence = 1.0
		return doc

	case formatPDF:
		return e.extractPDF(ctx, data, doc)

	default:
		e.logger.Debug("unsupported attachment format", "mime_hint", mimeHint)
		return doc
	}
}

func (e *Extractor) extractPDF(ctx context.Context, data []byte, doc domain.ExtractedDocument) domain.ExtractedDocument {
	text, pages, err := e.nativeText(data)
	if err != nil {
		e.logger.Debug("native pdf extraction failed", "error", err)
	}
	if pages < 1 {
		pages = 1
	}

	// Count runes, not bytes: Georgian letters are three bytes each in
	// UTF-8 and would otherwise inflate the density threefold.
	if utf8.RuneCountInString(strings.TrimSpace(text)) >= e.minCharsPerPage*pages {
		doc.Text = text
		doc.Method = domain.MethodNativeText
		doc.Confidence = 1.0
		return doc
	}

	e.logger.Debug("text layer too thin, falling back to ocr",
		"chars", utf8.RuneCountInString(strings.TrimSpace(text)), "pages", pages)

	ocrText, confidence, err := e.ocrText(ctx, data)
	if err != nil {
		e.logger.Warn("ocr extraction failed", "error", err)
		return doc
	}
	if strings.TrimSpace(ocrText) == "" {
		return doc
	}

	doc.Text = ocrText
	doc.Method = domain.MethodOCR
	doc.Confidence = confidence
	return doc
}

type format int

const (
	formatUnknown format = iota
	formatPDF
	formatSpreadsheet
)

func detectFormat(data []byte, mimeHint string) format {
	hint := strings.ToLower(mimeHint)
	switch {
	case strings.Contains(hint, "spreadsheet"), strings.Contains(hint, "ms-excel"),
		strings.HasSuffix(hint, ".xlsx"), strings.HasSuffix(hint, ".xls"):
		return formatSpreadsheet
	case strings.Contains(hint, "pdf"), strings.HasSuffix(hint, ".pdf"):
		return formatPDF
	}

	// No usable hint: sniff magic bytes.
	switch {
	case bytes.HasPrefix(data, pdfMagic):
		return formatPDF
	case bytes.HasPrefix(data, zipMagic) && bytes.Contains(data, []byte("xl/")):
		return formatSpreadsheet
	case bytes.HasPrefix(data, oleMagic):
		return formatSpreadsheet
	}
	return formatUnknown
}
