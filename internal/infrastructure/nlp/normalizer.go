// Package nlp normalizes extracted text into lemma sequences. The
// language model is a TSV dictionary (surface form, tab, lemma) plus
// stopword lines (surface form, tab, "_"), loaded once per process.
package nlp

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
	"golang.org/x/text/unicode/norm"

	"TenderScan/internal/domain"
	"TenderScan/internal/fingerprint"
	"TenderScan/internal/ports"
)

const stopwordMark = "_"

// Normalizer tokenizes, lemmatizes, and drops stopwords. Identical input
// always yields the identical lemma sequence.
type Normalizer struct {
	language  string
	lemmas    map[string]string
	stopwords map[string]struct{}
	modelFP   string
}

var _ ports.Normalizer = (*Normalizer)(nil)

// Load reads the lemma dictionary for the given language. A missing or
// unreadable model is a Resource-class error: no record can be
// meaningfully classified without it.
func Load(modelPath, language string) (*Normalizer, error) {
	raw, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, domain.ResourceError(fmt.Errorf("language model %s: %w", modelPath, err))
	}

	n := &Normalizer{
		language:  language,
		lemmas:    map[string]string{},
		stopwords: map[string]struct{}{},
		modelFP:   fingerprint.Chain("model", language, fingerprint.Bytes(raw)),
	}

	scanner := bufio.NewScanner(strings.NewReader(string(raw)))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		surface, lemma, ok := strings.Cut(text, "\t")
		if !ok {
			return nil, domain.ResourceError(fmt.Errorf("language model %s: line %d: missing tab", modelPath, line))
		}

		surface = normalizeToken(surface)
		lemma = strings.TrimSpace(lemma)
		if lemma == stopwordMark {
			n.stopwords[surface] = struct{}{}
			continue
		}
		n.lemmas[surface] = normalizeToken(lemma)
	}
	if err := scanner.Err(); err != nil {
		return nil, domain.ResourceError(fmt.Errorf("language model %s: %w", modelPath, err))
	}

	return n, nil
}

// Normalize tokenizes text, maps each token to its lemma, and removes
// stopwords. Empty input yields an empty lemma sequence, not an error.
func (n *Normalizer) Normalize(text string) domain.NormalizedText {
	result := domain.NormalizedText{
		SourceFingerprint: fingerprint.Bytes([]byte(text)),
		Language:          n.language,
		Lemmas:            []string{},
	}

	if strings.TrimSpace(text) == "" {
		return result
	}

	tokens := words.FromString(norm.NFC.String(text))
	for tokens.Next() {
		token := normalizeToken(tokens.Value())
		if !isWord(token) {
			continue
		}
		if _, stop := n.stopwords[token]; stop {
			continue
		}
		if lemma, ok := n.lemmas[token]; ok {
			token = lemma
		}
		result.Lemmas = append(result.Lemmas, token)
	}

	return result
}

// ModelFingerprint identifies the loaded dictionary for cache chaining.
func (n *Normalizer) ModelFingerprint() string {
	return n.modelFP
}

func normalizeToken(token string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(token)))
}

func isWord(token string) bool {
	for _, r := range token {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
