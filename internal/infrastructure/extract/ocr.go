package extract

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/otiai10/gosseract/v2"
)

// ocrEngine runs tesseract over the page images of a scanned PDF. Each
// page is recognized via hOCR so per-word confidence comes out of the
// same pass as the text.
type ocrEngine struct {
	languages []string
}

func newOCREngine(languages []string) *ocrEngine {
	if len(languages) == 0 {
		languages = []string{"kat", "eng"}
	}
	return &ocrEngine{languages: languages}
}

// extract OCRs every page image and concatenates the per-page text.
// Confidence is the mean reported word confidence across all pages,
// scaled to 0..1.
func (o *ocrEngine) extract(ctx context.Context, data []byte) (string, float64, error) {
	images, err := pageImages(data)
	if err != nil {
		return "", 0, err
	}
	if len(images) == 0 {
		return "", 0, fmt.Errorf("no page images found")
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(o.languages...); err != nil {
		return "", 0, fmt.Errorf("set ocr language: %w", err)
	}
	client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK)

	var (
		parts     []string
		confSum   float64
		confCount int
	)

	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}

		if err := client.SetImageFromBytes(img); err != nil {
			return "", 0, fmt.Errorf("page %d: set image: %w", i+1, err)
		}

		hocr, err := client.HOCRText()
		if err != nil {
			return "", 0, fmt.Errorf("page %d: ocr: %w", i+1, err)
		}

		text, confidences := parseHOCR(hocr)
		parts = append(parts, text)
		for _, c := range confidences {
			confSum += c
			confCount++
		}
	}

	confidence := 0.0
	if confCount > 0 {
		confidence = confSum / float64(confCount) / 100.0
	}

	return strings.Join(parts, "\n"), confidence, nil
}

// parseHOCR flattens tesseract hOCR output into plain text and collects
// the x_wconf value of every recognized word.
func parseHOCR(hocr string) (string, []float64) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(hocr))
	if err != nil {
		return "", nil
	}

	var (
		wordsOut    []string
		confidences []float64
	)

	doc.Find(".ocrx_word").Each(func(_ int, sel *goquery.Selection) {
		word := strings.TrimSpace(sel.Text())
		if word == "" {
			return
		}
		wordsOut = append(wordsOut, word)

		title, _ := sel.Attr("title")
		if conf, ok := wordConfidence(title); ok {
			confidences = append(confidences, conf)
		}
	})

	return strings.Join(wordsOut, " "), confidences
}

func wordConfidence(title string) (float64, bool) {
	for _, field := range strings.Split(title, ";") {
		field = strings.TrimSpace(field)
		if rest, ok := strings.CutPrefix(field, "x_wconf "); ok {
			conf, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
			if err != nil {
				return 0, false
			}
			return conf, true
		}
	}
	return 0, false
}
