// Package fingerprint produces the deterministic hashes used as stage
// cache keys. Downstream fingerprints chain from their upstream inputs so
// a change anywhere upstream invalidates everything below it.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// Stage names for the cache key space.
const (
	StageFetch     = "fetch"
	StageExtract   = "extract"
	StageNormalize = "normalize"
	StageClassify  = "classify"
)

// Bytes fingerprints raw content.
func Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// URL fingerprints a fetch target before its bytes are known.
func URL(url string) string {
	return Bytes([]byte(url))
}

// Chain derives a downstream fingerprint from an upstream one plus the
// inputs that stage depends on.
func Chain(stage string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(stage))
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Taxonomy fingerprints a category→keywords mapping together with the
// match threshold. Categories and keywords are sorted so map iteration
// order cannot change the result.
func Taxonomy(taxonomy map[string][]string, threshold int) string {
	categories := make([]string, 0, len(taxonomy))
	for name := range taxonomy {
		categories = append(categories, name)
	}
	sort.Strings(categories)

	var b strings.Builder
	b.WriteString(strconv.Itoa(threshold))
	for _, name := range categories {
		b.WriteString("\x00")
		b.WriteString(name)
		keywords := append([]string(nil), taxonomy[name]...)
		sort.Strings(keywords)
		for _, kw := range keywords {
			b.WriteString("\x01")
			b.WriteString(kw)
		}
	}
	return Bytes([]byte(b.String()))
}
