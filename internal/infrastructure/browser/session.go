// Package browser drives the single shared chromedp session. Listing
// pages on the procurement portal are rendered client-side and paginated
// by button clicks, so a plain HTTP client cannot walk them.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"TenderScan/internal/config"
	"TenderScan/internal/ports"
)

const (
	navigateTimeout = 60 * time.Second
	clickTimeout    = 20 * time.Second
	// advanceTimeout is deliberately short: an absent next-page button
	// means pagination is exhausted, not that the session failed.
	advanceTimeout = 5 * time.Second
)

// Session owns one headless browser for the lifetime of a run: opened at
// run start, closed at run end or on fatal error. Not safe for
// concurrent use; the orchestrator drives it sequentially.
type Session struct {
	headless  bool
	selectors config.SelectorsConfig
	logger    *slog.Logger

	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
	ctx           context.Context
}

var _ ports.BrowserSession = (*Session)(nil)

// NewSession prepares a session handle; no browser process starts until
// Start is called.
func NewSession(headless bool, selectors config.SelectorsConfig, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{headless: headless, selectors: selectors, logger: logger}
}

// Start launches the browser process.
func (s *Session) Start(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.headless),
		chromedp.Flag("disable-gpu", s.headless),
		chromedp.Flag("lang", "ka,en-US"),
		chromedp.WindowSize(1920, 1080),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Force the browser to actually start so a missing chrome binary
	// fails here instead of on the first navigation.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("start browser: %w", err)
	}

	s.ctx = browserCtx
	s.browserCancel = browserCancel
	s.allocCancel = allocCancel
	return nil
}

// Stop tears the browser down.
func (s *Session) Stop(ctx context.Context) error {
	if s.browserCancel != nil {
		s.browserCancel()
		s.browserCancel = nil
	}
	if s.allocCancel != nil {
		s.allocCancel()
		s.allocCancel = nil
	}
	s.ctx = nil
	return nil
}

// OpenListing navigates to the seed URL, applies the status filter,
// triggers the search, and returns the rendered first results page.
func (s *Session) OpenListing(ctx context.Context, seedURL string) ([]byte, error) {
	if s.ctx == nil {
		return nil, fmt.Errorf("session not started")
	}

	runCtx, cancel := context.WithTimeout(s.ctx, navigateTimeout)
	defer cancel()

	sel := s.selectors
	optionXPath := fmt.Sprintf(`//option[contains(., %q)]`, sel.StatusOption)

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(seedURL),
		chromedp.WaitVisible(sel.StatusSelect, chromedp.ByQuery),
		chromedp.Click(sel.StatusSelect, chromedp.ByQuery),
		chromedp.Click(optionXPath, chromedp.BySearch),
		chromedp.Click(sel.SearchButton, chromedp.ByQuery),
		chromedp.WaitVisible(sel.Row, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("open listing %s: %w", seedURL, err)
	}

	s.logger.Debug("listing opened", "url", seedURL)
	return []byte(html), nil
}

// AdvanceListing clicks the next-page control. The bool is false once
// pagination is exhausted.
func (s *Session) AdvanceListing(ctx context.Context) ([]byte, bool, error) {
	if s.ctx == nil {
		return nil, false, fmt.Errorf("session not started")
	}

	sel := s.selectors

	clickCtx, cancelClick := context.WithTimeout(s.ctx, advanceTimeout)
	err := chromedp.Run(clickCtx, chromedp.Click(sel.NextButton, chromedp.ByQuery))
	cancelClick()
	if err != nil {
		if s.ctx.Err() != nil {
			return nil, false, fmt.Errorf("advance listing: %w", s.ctx.Err())
		}
		// Button gone: last page reached.
		return nil, false, nil
	}

	waitCtx, cancelWait := context.WithTimeout(s.ctx, clickTimeout)
	defer cancelWait()

	var html string
	err = chromedp.Run(waitCtx,
		chromedp.WaitVisible(sel.Row, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, false, fmt.Errorf("advance listing: %w", err)
	}

	return []byte(html), true, nil
}

// RenderPage navigates to an arbitrary URL and returns the rendered HTML.
// Implements fetch.PageRenderer for tender detail pages.
func (s *Session) RenderPage(ctx context.Context, url string) ([]byte, error) {
	if s.ctx == nil {
		return nil, fmt.Errorf("session not started")
	}

	runCtx, cancel := context.WithTimeout(s.ctx, navigateTimeout)
	defer cancel()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", url, err)
	}

	return []byte(html), nil
}

// OpenTender expands tender row idx and returns the rendered
// documentation view with its attachment links.
func (s *Session) OpenTender(ctx context.Context, idx int) ([]byte, error) {
	if s.ctx == nil {
		return nil, fmt.Errorf("session not started")
	}

	sel := s.selectors
	rowXPath := fmt.Sprintf(`(%s)[%d]`, cssRowsToXPath(sel.Row), idx+1)

	runCtx, cancel := context.WithTimeout(s.ctx, clickTimeout)
	defer cancel()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Click(rowXPath, chromedp.BySearch),
		chromedp.Click(fmt.Sprintf(`//a[contains(., %q)]`, sel.DocsLinkText), chromedp.BySearch),
		chromedp.WaitVisible(sel.Attachment, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("open tender row %d: %w", idx, err)
	}

	return []byte(html), nil
}

// CloseTender returns from a tender detail view to the results table.
func (s *Session) CloseTender(ctx context.Context) error {
	if s.ctx == nil {
		return fmt.Errorf("session not started")
	}

	runCtx, cancel := context.WithTimeout(s.ctx, clickTimeout)
	defer cancel()

	sel := s.selectors
	err := chromedp.Run(runCtx,
		chromedp.Click(sel.BackButton, chromedp.ByQuery),
		chromedp.WaitVisible(sel.Row, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("close tender: %w", err)
	}
	return nil
}

// Cookies exports the browser's cookies so attachment downloads share the
// crawl session.
func (s *Session) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	if s.ctx == nil {
		return nil, fmt.Errorf("session not started")
	}

	runCtx, cancel := context.WithTimeout(s.ctx, clickTimeout)
	defer cancel()

	var raw []*network.Cookie
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("export cookies: %w", err)
	}

	cookies := make([]*http.Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, &http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		})
	}
	return cookies, nil
}

// cssRowsToXPath converts the configured row CSS selector into an XPath
// usable for indexed clicks. Only the id + descendant-rows shape the
// portals use is supported.
func cssRowsToXPath(css string) string {
	// "#list_apps_by_subject tbody tr" → //*[@id="list_apps_by_subject"]//tbody//tr
	out := ""
	for _, part := range strings.Fields(css) {
		if len(part) > 1 && part[0] == '#' {
			out += fmt.Sprintf(`//*[@id=%q]`, part[1:])
			continue
		}
		out += "//" + part
	}
	return out
}
