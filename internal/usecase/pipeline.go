package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"TenderScan/internal/config"
	"TenderScan/internal/domain"
	"TenderScan/internal/fingerprint"
	"TenderScan/internal/ports"
	"TenderScan/internal/scanner"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Session    ports.BrowserSession
	Fetcher    ports.Fetcher
	Registry   *scanner.Registry
	Extractor  ports.Extractor
	Normalizer ports.Normalizer
	Classifier ports.Classifier
	Cache      ports.CacheStore
	Exporter   ports.Exporter
	Logger     *slog.Logger
	Portals    []config.PortalConfig
	MaxPages   int
	Workers    int
}

// cookieSeeder lets the pipeline hand the browser session's cookies to
// the HTTP fetcher. The real fetcher implements it; test fakes need not.
type cookieSeeder interface {
	SeedCookies(target string, cookies []*http.Cookie)
}

// dispositionProber resolves an attachment's served filename and content
// type when the link itself carries no extension. The real fetcher
// implements it; test fakes need not.
type dispositionProber interface {
	ContentDisposition(ctx context.Context, url string) (name, contentType string, err error)
}

// visitedStore tracks tenders already processed in earlier runs. The
// sqlite cache implements it; test fakes need not.
type visitedStore interface {
	Visited(ctx context.Context, sourceID string) (bool, error)
	MarkVisited(ctx context.Context, sourceID, portal string) error
}

// Pipeline walks listing pages, discovers tender records, and drives
// fetch → extract → normalize → classify per record. Record-level
// failures degrade to partial results; only Resource-class failures
// (session dead, model missing) abort the run.
type Pipeline struct {
	session    ports.BrowserSession
	fetcher    ports.Fetcher
	registry   *scanner.Registry
	extractor  ports.Extractor
	normalizer ports.Normalizer
	classifier ports.Classifier
	cache      ports.CacheStore
	exporter   ports.Exporter
	logger     *slog.Logger
	portals    []config.PortalConfig
	maxPages   int
	workers    int
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := deps.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pipeline{
		session:    deps.Session,
		fetcher:    deps.Fetcher,
		registry:   deps.Registry,
		extractor:  deps.Extractor,
		normalizer: deps.Normalizer,
		classifier: deps.Classifier,
		cache:      deps.Cache,
		exporter:   deps.Exporter,
		logger:     logger,
		portals:    deps.Portals,
		maxPages:   deps.MaxPages,
		workers:    workers,
	}
}

// pendingRecord is a tender whose attachments have been discovered but
// not yet downloaded. Discovery is sequential on the browser session;
// everything after it runs on the worker pool.
type pendingRecord struct {
	listing     domain.TenderListing
	attachments []domain.Attachment
	portal      config.PortalConfig
}

// Run executes one full crawl and returns the emitted records with the
// run report. The exporter, when configured, receives both.
func (p *Pipeline) Run(ctx context.Context) ([]domain.ClassifiedTender, domain.RunReport, error) {
	report := domain.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	if p.session != nil {
		if err := p.session.Start(ctx); err != nil {
			return nil, report, domain.ResourceError(fmt.Errorf("browser session: %w", err))
		}
		defer func() { _ = p.session.Stop(context.Background()) }()
	}

	var records []domain.ClassifiedTender
	for _, portal := range p.portals {
		portalRecords, pages, err := p.crawlPortal(ctx, portal)
		report.Pages += pages
		records = append(records, portalRecords...)
		if err != nil {
			return records, report, err
		}
	}

	for _, rec := range records {
		switch rec.Status {
		case domain.StatusClassified:
			report.Classified++
		case domain.StatusPartial:
			report.Partial++
		default:
			report.Skipped++
		}
	}

	report.FinishedAt = time.Now().UTC()
	report.Elapsed = report.FinishedAt.Sub(report.StartedAt)

	if p.exporter != nil {
		if err := p.exporter.Export(ctx, records, report); err != nil {
			return records, report, fmt.Errorf("export results: %w", err)
		}
	}

	p.logger.Info("run complete",
		"run_id", report.RunID,
		"pages", report.Pages,
		"classified", report.Classified,
		"partial", report.Partial,
		"skipped", report.Skipped,
	)
	return records, report, nil
}

func (p *Pipeline) crawlPortal(ctx context.Context, portal config.PortalConfig) ([]domain.ClassifiedTender, int, error) {
	scn, err := p.registry.Resolve(portal.Scanner)
	if err != nil {
		return nil, 0, fmt.Errorf("portal %s: %w", portal.Name, err)
	}

	pageHTML, err := p.openListing(ctx, portal)
	if err != nil {
		return nil, 0, domain.ResourceError(fmt.Errorf("portal %s: %w", portal.Name, err))
	}
	p.seedCookies(portal)

	var (
		records []domain.ClassifiedTender
		pages   int
	)

	for {
		pages++
		p.logger.Info("processing listing page", "portal", portal.Name, "page", pages)

		pending, err := p.discoverPage(ctx, scn, portal, pageHTML)
		if err != nil {
			return records, pages, err
		}

		pageRecords, err := p.processRecords(ctx, pending)
		records = append(records, pageRecords...)
		if err != nil {
			return records, pages, err
		}

		// Cooperative cancellation is checked between pages, never
		// mid-extraction of a document.
		if err := ctx.Err(); err != nil {
			return records, pages, err
		}
		if p.maxPages > 0 && pages >= p.maxPages {
			break
		}

		nextHTML, more, err := p.advanceListing(ctx, portal, pages)
		if err != nil {
			return records, pages, domain.ResourceError(fmt.Errorf("portal %s: %w", portal.Name, err))
		}
		if !more {
			break
		}
		pageHTML = nextHTML
	}

	return records, pages, nil
}

// discoverPage parses tender rows and drills into each one for its
// attachment links. This part stays sequential: it owns the browser
// session.
func (p *Pipeline) discoverPage(ctx context.Context, scn scanner.Scanner, portal config.PortalConfig, pageHTML []byte) ([]pendingRecord, error) {
	tenders, err := scn.ParseListing(pageHTML, portal)
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	visited, _ := p.cache.(visitedStore)
	var pending []pendingRecord

	for i, tender := range tenders {
		if err := ctx.Err(); err != nil {
			return pending, err
		}

		if visited != nil {
			seen, err := visited.Visited(ctx, tender.SourceID)
			if err != nil {
				p.logger.Warn("visited lookup failed", "tender", tender.SourceID, "error", err)
			} else if seen {
				p.logger.Debug("tender already processed", "tender", tender.SourceID)
				continue
			}
		}

		docHTML := pageHTML
		if p.session != nil {
			docHTML, err = p.session.OpenTender(ctx, i)
			if err != nil {
				if ctx.Err() != nil {
					return pending, domain.ResourceError(err)
				}
				p.logger.Warn("tender drill-down failed", "tender", tender.SourceID, "error", err)
				pending = append(pending, pendingRecord{listing: tender, portal: portal})
				continue
			}
		}

		attachments, err := scn.ParseAttachments(docHTML, tender.SourceID, portal)
		if err != nil {
			p.logger.Warn("attachment discovery failed", "tender", tender.SourceID, "error", err)
		}

		if p.session != nil {
			if err := p.session.CloseTender(ctx); err != nil {
				return pending, domain.ResourceError(fmt.Errorf("tender %s: %w", tender.SourceID, err))
			}
		}

		pending = append(pending, pendingRecord{listing: tender, attachments: attachments, portal: portal})
	}

	return pending, nil
}

// processRecords runs the per-record sub-flow on a bounded worker pool.
// Results are collected in completion order; the exporter sorts later.
func (p *Pipeline) processRecords(ctx context.Context, pending []pendingRecord) ([]domain.ClassifiedTender, error) {
	var (
		mu      sync.Mutex
		records []domain.ClassifiedTender
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, rec := range pending {
		g.Go(func() error {
			record, err := p.processRecord(gctx, rec)
			if err != nil {
				// Only Resource-class failures propagate; everything
				// else has already degraded inside processRecord.
				return err
			}

			mu.Lock()
			records = append(records, record)
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	return records, err
}

func (p *Pipeline) processRecord(ctx context.Context, rec pendingRecord) (domain.ClassifiedTender, error) {
	record := domain.ClassifiedTender{
		Listing: rec.listing,
		Classification: domain.ClassificationResult{
			TenderID:           rec.listing.SourceID,
			Scores:             map[string]int{},
			AssignedCategories: []string{},
		},
		Provenance: domain.Provenance{Method: domain.MethodFailed},
		Status:     domain.StatusSkipped,
	}

	var (
		fetched   int
		extracted int
	)

	for _, att := range rec.attachments {
		if err := ctx.Err(); err != nil {
			return record, err
		}

		if att.MimeHint == "" {
			if prober, ok := p.fetcher.(dispositionProber); ok {
				if name, contentType, err := prober.ContentDisposition(ctx, att.URL); err == nil {
					if name != "" {
						att.Name = name
					}
					att.MimeHint = contentType
				}
			}
		}

		blob, err := p.fetchAttachment(ctx, att)
		if err != nil {
			var fetchErr *domain.FetchError
			if errors.As(err, &fetchErr) {
				p.logger.Warn("attachment fetch failed",
					"tender", att.TenderID, "url", att.URL, "reason", fetchErr.Reason)
				continue
			}
			return record, err
		}
		fetched++

		doc, err := p.extractDocument(ctx, blob, att.MimeHint)
		if err != nil {
			return record, err
		}
		if doc.Method == domain.MethodFailed {
			continue
		}
		extracted++

		if doc.Confidence >= record.Provenance.Confidence || record.Provenance.Method == domain.MethodFailed {
			record.Provenance = domain.Provenance{Method: doc.Method, Confidence: doc.Confidence}
		}

		normalized, err := p.normalizeDocument(ctx, doc)
		if err != nil {
			return record, err
		}

		classification, err := p.classifyDocument(ctx, rec.listing.SourceID, normalized)
		if err != nil {
			return record, err
		}
		mergeClassification(&record.Classification, classification)
	}

	switch {
	case extracted > 0:
		record.Status = domain.StatusClassified
	case fetched > 0:
		// Extraction failed everywhere but the record itself is present.
		record.Status = domain.StatusPartial
	case len(rec.attachments) == 0:
		record.Status = domain.StatusPartial
	default:
		record.Status = domain.StatusSkipped
	}

	if visited, ok := p.cache.(visitedStore); ok && record.Status != domain.StatusSkipped {
		if err := visited.MarkVisited(ctx, rec.listing.SourceID, rec.portal.Name); err != nil {
			p.logger.Warn("mark visited failed", "tender", rec.listing.SourceID, "error", err)
		}
	}

	return record, nil
}

func (p *Pipeline) fetchAttachment(ctx context.Context, att domain.Attachment) ([]byte, error) {
	return p.cache.Do(ctx, fingerprint.StageFetch, fingerprint.URL(att.URL), func() ([]byte, error) {
		return p.fetcher.Fetch(ctx, att.URL, ports.KindAttachment)
	})
}

func (p *Pipeline) extractDocument(ctx context.Context, blob []byte, mimeHint string) (domain.ExtractedDocument, error) {
	contentFP := fingerprint.Bytes(blob)
	stageFP := fingerprint.Chain(fingerprint.StageExtract, contentFP)

	payload, err := p.cache.Do(ctx, fingerprint.StageExtract, stageFP, func() ([]byte, error) {
		doc := p.extractor.Extract(ctx, blob, mimeHint)
		return json.Marshal(doc)
	})
	if err != nil {
		return domain.ExtractedDocument{}, err
	}

	var doc domain.ExtractedDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return domain.ExtractedDocument{}, fmt.Errorf("decode extract payload: %w", err)
	}
	doc.AttachmentFingerprint = contentFP
	return doc, nil
}

func (p *Pipeline) normalizeDocument(ctx context.Context, doc domain.ExtractedDocument) (domain.NormalizedText, error) {
	stageFP := fingerprint.Chain(fingerprint.StageNormalize,
		doc.AttachmentFingerprint, p.normalizer.ModelFingerprint())

	payload, err := p.cache.Do(ctx, fingerprint.StageNormalize, stageFP, func() ([]byte, error) {
		return json.Marshal(p.normalizer.Normalize(doc.Text))
	})
	if err != nil {
		return domain.NormalizedText{}, err
	}

	var normalized domain.NormalizedText
	if err := json.Unmarshal(payload, &normalized); err != nil {
		return domain.NormalizedText{}, fmt.Errorf("decode normalize payload: %w", err)
	}
	return normalized, nil
}

func (p *Pipeline) classifyDocument(ctx context.Context, tenderID string, normalized domain.NormalizedText) (domain.ClassificationResult, error) {
	stageFP := fingerprint.Chain(fingerprint.StageClassify,
		normalized.SourceFingerprint, p.normalizer.ModelFingerprint(), p.classifier.TaxonomyFingerprint())

	payload, err := p.cache.Do(ctx, fingerprint.StageClassify, stageFP, func() ([]byte, error) {
		return json.Marshal(p.classifier.Classify(tenderID, normalized.Lemmas))
	})
	if err != nil {
		return domain.ClassificationResult{}, err
	}

	var result domain.ClassificationResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("decode classify payload: %w", err)
	}
	result.TenderID = tenderID
	return result, nil
}

// mergeClassification folds one attachment's scores into the tender-level
// result: per-category maximum, union of assignments.
func mergeClassification(into *domain.ClassificationResult, from domain.ClassificationResult) {
	for name, score := range from.Scores {
		if score > into.Scores[name] {
			into.Scores[name] = score
		}
	}

	assigned := map[string]struct{}{}
	for _, name := range into.AssignedCategories {
		assigned[name] = struct{}{}
	}
	for _, name := range from.AssignedCategories {
		if _, ok := assigned[name]; !ok {
			into.AssignedCategories = append(into.AssignedCategories, name)
		}
	}
	sort.Strings(into.AssignedCategories)
}

func (p *Pipeline) openListing(ctx context.Context, portal config.PortalConfig) ([]byte, error) {
	if p.session != nil {
		return p.session.OpenListing(ctx, portal.SeedURL)
	}
	return p.fetcher.Fetch(ctx, portal.SeedURL, ports.KindPage)
}

func (p *Pipeline) advanceListing(ctx context.Context, portal config.PortalConfig, page int) ([]byte, bool, error) {
	if p.session != nil {
		return p.session.AdvanceListing(ctx)
	}

	// Static portals paginate by query parameter.
	next, err := buildPageURL(portal.SeedURL, page+1)
	if err != nil {
		return nil, false, err
	}
	data, err := p.fetcher.Fetch(ctx, next, ports.KindPage)
	if err != nil {
		var fetchErr *domain.FetchError
		if errors.As(err, &fetchErr) && fetchErr.Reason == domain.FetchNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func buildPageURL(seed string, page int) (string, error) {
	parsed, err := url.Parse(seed)
	if err != nil {
		return "", fmt.Errorf("invalid seed url %s: %w", seed, err)
	}

	query := parsed.Query()
	query.Set("page", strconv.Itoa(page))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (p *Pipeline) seedCookies(portal config.PortalConfig) {
	seeder, ok := p.fetcher.(cookieSeeder)
	if !ok || p.session == nil {
		return
	}

	cookies, err := p.session.Cookies(context.Background())
	if err != nil {
		p.logger.Warn("cookie export failed", "portal", portal.Name, "error", err)
		return
	}
	seeder.SeedCookies(portal.SeedURL, cookies)
}
