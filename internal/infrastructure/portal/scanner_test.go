package portal

import (
	"log/slog"
	"testing"

	"TenderScan/internal/config"
)

func testPortal() config.PortalConfig {
	return config.PortalConfig{
		Name:    "procurement-ge",
		Scanner: "spa",
		SeedURL: "https://tenders.procurement.gov.ge/public/?lang=ge",
		Selectors: config.SelectorsConfig{
			Row:           "#list_apps_by_subject tbody tr",
			TenderID:      "p strong",
			Title:         "p",
			PublishedDate: "td.date",
			Attachment:    "div.answ-file a",
		},
	}
}

const listingFixture = `
<table id="list_apps_by_subject">
  <tbody>
    <tr>
      <td><p><strong>NAT240001</strong> გზის სამშენებლო სამუშაოები</p></td>
      <td class="date">15.03.2024</td>
      <td>ქ. თბილისი</td>
    </tr>
    <tr>
      <td><p><strong>NAT240002</strong> სამედიცინო აღჭურვილობის შესყიდვა</p></td>
      <td class="date">16.03.2024</td>
      <td>ქ. ბათუმი</td>
    </tr>
    <tr>
      <td><p><strong>NAT240001</strong> duplicate row from sticky header</p></td>
      <td class="date">15.03.2024</td>
    </tr>
    <tr>
      <td><p>row without an identifier</p></td>
    </tr>
  </tbody>
</table>`

func TestParseListing(t *testing.T) {
	t.Parallel()

	s := NewSPAScanner(slog.New(slog.DiscardHandler))
	tenders, err := s.ParseListing([]byte(listingFixture), testPortal())
	if err != nil {
		t.Fatalf("parse listing: %v", err)
	}

	if len(tenders) != 2 {
		t.Fatalf("got %d tenders, want 2 (dupes and id-less rows dropped)", len(tenders))
	}

	first := tenders[0]
	if first.SourceID != "NAT240001" {
		t.Fatalf("source id = %s", first.SourceID)
	}
	if first.Title != "გზის სამშენებლო სამუშაოები" {
		t.Fatalf("title = %q", first.Title)
	}
	if first.PublishedAt.IsZero() {
		t.Fatal("published date not parsed")
	}
	if first.PublishedAt.Format("02.01.2006") != "15.03.2024" {
		t.Fatalf("published = %s", first.PublishedAt)
	}
	if first.RawMetadata["portal"] != "procurement-ge" {
		t.Fatalf("portal metadata = %q", first.RawMetadata["portal"])
	}
	if first.RawMetadata["cell_2"] != "ქ. თბილისი" {
		t.Fatalf("cell metadata = %q", first.RawMetadata["cell_2"])
	}

	if tenders[1].SourceID != "NAT240002" {
		t.Fatalf("second id = %s", tenders[1].SourceID)
	}
}

func TestParseListingEmptyPage(t *testing.T) {
	t.Parallel()

	s := NewSPAScanner(slog.New(slog.DiscardHandler))
	tenders, err := s.ParseListing([]byte("<html><body>შედეგები არ მოიძებნა</body></html>"), testPortal())
	if err != nil {
		t.Fatalf("parse listing: %v", err)
	}
	if len(tenders) != 0 {
		t.Fatalf("got %d tenders from an empty page", len(tenders))
	}
}

const documentationFixture = `
<div class="answ-file">
  <a href="/public/library/files.php?file=12345">სატენდერო დოკუმენტაცია.pdf</a>
</div>
<div class="answ-file">
  <a href="https://cdn.procurement.gov.ge/docs/annex-1.xlsx">annex-1.xlsx</a>
</div>
<div class="answ-file">
  <a href="">broken link</a>
</div>`

func TestParseAttachments(t *testing.T) {
	t.Parallel()

	s := NewSPAScanner(slog.New(slog.DiscardHandler))
	attachments, err := s.ParseAttachments([]byte(documentationFixture), "NAT240001", testPortal())
	if err != nil {
		t.Fatalf("parse attachments: %v", err)
	}

	if len(attachments) != 2 {
		t.Fatalf("got %d attachments, want 2", len(attachments))
	}

	first := attachments[0]
	if first.URL != "https://tenders.procurement.gov.ge/public/library/files.php?file=12345" {
		t.Fatalf("relative href not resolved: %s", first.URL)
	}
	if first.TenderID != "NAT240001" {
		t.Fatalf("tender id = %s", first.TenderID)
	}
	if first.Name != "სატენდერო დოკუმენტაცია.pdf" {
		t.Fatalf("name = %q", first.Name)
	}
	if first.MimeHint != ".pdf" {
		t.Fatalf("mime hint = %q", first.MimeHint)
	}

	second := attachments[1]
	if second.URL != "https://cdn.procurement.gov.ge/docs/annex-1.xlsx" {
		t.Fatalf("absolute href rewritten: %s", second.URL)
	}
	if second.MimeHint != ".xlsx" {
		t.Fatalf("mime hint = %q", second.MimeHint)
	}
}

func TestScannerName(t *testing.T) {
	t.Parallel()

	if got := NewSPAScanner(nil).Name(); got != "spa" {
		t.Fatalf("name = %q", got)
	}
}
