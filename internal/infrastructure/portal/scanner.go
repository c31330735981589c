// Package portal parses rendered listing pages of procurement portals
// into tender records and attachment links.
package portal

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"TenderScan/internal/config"
	"TenderScan/internal/domain"
	"TenderScan/internal/scanner"
)

var dateLayouts = []string{"02.01.2006", "2006-01-02", "02/01/2006", "2 Jan 2006"}

// SPAScanner parses the markup of the Georgian procurement portal's
// client-rendered search results. Selectors come from configuration so a
// portal redesign is a config change, not a code change.
type SPAScanner struct {
	logger *slog.Logger
}

var _ scanner.Scanner = (*SPAScanner)(nil)

// NewSPAScanner wires the strategy.
func NewSPAScanner(logger *slog.Logger) *SPAScanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &SPAScanner{logger: logger}
}

// Name identifies the strategy inside the registry.
func (s *SPAScanner) Name() string {
	return "spa"
}

// ParseListing extracts tender rows from a rendered results page.
func (s *SPAScanner) ParseListing(data []byte, portal config.PortalConfig) ([]domain.TenderListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	sel := portal.Selectors
	var tenders []domain.TenderListing
	seen := map[string]struct{}{}

	doc.Find(sel.Row).Each(func(i int, row *goquery.Selection) {
		id := strings.TrimSpace(row.Find(sel.TenderID).First().Text())
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}

		title := strings.TrimSpace(row.Find(sel.Title).First().Text())
		title = strings.TrimSpace(strings.TrimPrefix(title, id))

		meta := map[string]string{"portal": portal.Name}
		row.Find("td").Each(func(j int, cell *goquery.Selection) {
			text := strings.TrimSpace(cell.Text())
			if text != "" {
				meta[fmt.Sprintf("cell_%d", j)] = text
			}
		})

		tenders = append(tenders, domain.TenderListing{
			SourceID:    id,
			URL:         portal.SeedURL,
			Title:       title,
			PublishedAt: parseDate(strings.TrimSpace(row.Find(sel.PublishedDate).First().Text())),
			RawMetadata: meta,
		})
	})

	s.logger.Debug("listing parsed", "portal", portal.Name, "tenders", len(tenders))
	return tenders, nil
}

// ParseAttachments extracts document links from a tender's documentation
// view and resolves them against the portal root.
func (s *SPAScanner) ParseAttachments(data []byte, tenderID string, portal config.PortalConfig) ([]domain.Attachment, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parse documentation page: %w", err)
	}

	root, err := portalRoot(portal.SeedURL)
	if err != nil {
		return nil, err
	}

	var attachments []domain.Attachment
	doc.Find(portal.Selectors.Attachment).Each(func(i int, link *goquery.Selection) {
		href, ok := link.Attr("href")
		if !ok || href == "" {
			return
		}

		target := href
		if !strings.HasPrefix(href, "http") {
			target = root + "/" + strings.TrimPrefix(href, "/")
		}

		name := strings.TrimSpace(link.Text())
		if name == "" {
			name = nameFromURL(href)
		}

		attachments = append(attachments, domain.Attachment{
			URL:      target,
			TenderID: tenderID,
			Name:     name,
			MimeHint: MimeHint(name, ""),
		})
	})

	s.logger.Debug("attachments discovered", "tender", tenderID, "count", len(attachments))
	return attachments, nil
}

func portalRoot(seedURL string) (string, error) {
	parsed, err := url.Parse(seedURL)
	if err != nil {
		return "", fmt.Errorf("invalid portal url %s: %w", seedURL, err)
	}
	return parsed.Scheme + "://" + parsed.Host, nil
}

func nameFromURL(href string) string {
	if idx := strings.LastIndex(href, "file="); idx >= 0 {
		return href[idx+len("file="):]
	}
	if idx := strings.LastIndex(href, "/"); idx >= 0 {
		return href[idx+1:]
	}
	return href
}

func parseDate(text string) time.Time {
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, text); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
