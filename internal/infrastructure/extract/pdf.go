package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pdfNativeText pulls the embedded text layer and reports the page count
// so the caller can judge characters-per-page density.
func pdfNativeText(data []byte) (string, int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", pageCount(data), fmt.Errorf("open pdf: %w", err)
	}

	pages := reader.NumPage()
	var parts []string
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single malformed page should not discard the rest.
			continue
		}
		parts = append(parts, text)
	}

	return strings.Join(parts, "\n"), pages, nil
}

func pageCount(data []byte) int {
	ctx, err := pdfapi.ReadContext(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return 1
	}
	return ctx.PageCount
}

// pageImages extracts the embedded page images of a scanned PDF in page
// order for the OCR fallback.
func pageImages(data []byte) ([][]byte, error) {
	var images [][]byte

	digest := func(img model.Image, singleImgPerPage bool, maxPageDigits int) error {
		raw, err := io.ReadAll(img)
		if err != nil {
			return fmt.Errorf("read page image %d: %w", img.PageNr, err)
		}
		images = append(images, raw)
		return nil
	}

	if err := pdfapi.ExtractImages(bytes.NewReader(data), nil, digest, model.NewDefaultConfiguration()); err != nil {
		return nil, fmt.Errorf("extract page images: %w", err)
	}

	return images, nil
}
