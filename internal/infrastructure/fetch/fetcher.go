// Package fetch retrieves raw bytes for listing pages and attachments.
// Interactive pages go through the shared browser session; attachments
// are plain GETs carrying the session's cookies.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"TenderScan/internal/domain"
	"TenderScan/internal/infrastructure/portal"
	"TenderScan/internal/ports"
)

const userAgent = "TenderScan/1.0"

// maxAttachmentSize caps attachment downloads; tender documents beyond
// this are not worth OCR time.
const maxAttachmentSize = 64 << 20

// PageRenderer produces the rendered HTML of a client-side page. The
// browser session implements it.
type PageRenderer interface {
	RenderPage(ctx context.Context, url string) ([]byte, error)
}

// Client fetches URLs with bounded retries and exponential backoff.
// Transient failures (timeouts, 5xx, rate limiting) are retried; the
// exhausted budget surfaces as *domain.FetchError so the orchestrator can
// decide between skipping the record and aborting the run.
type Client struct {
	http       *http.Client
	renderer   PageRenderer
	timeout    time.Duration
	maxRetries uint64
	logger     *slog.Logger
}

var _ ports.Fetcher = (*Client)(nil)

// New wires an HTTP client with its own cookie jar. renderer may be nil;
// page fetches then degrade to plain GETs (useful against static portals
// and in tests).
func New(renderer PageRenderer, timeout time.Duration, maxRetries int, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}

	jar, _ := cookiejar.New(nil)
	return &Client{
		http:       &http.Client{Jar: jar, Timeout: timeout},
		renderer:   renderer,
		timeout:    timeout,
		maxRetries: uint64(maxRetries),
		logger:     logger,
	}
}

// SeedCookies copies the browser session's cookies into the jar so
// attachment downloads share the crawl session.
func (c *Client) SeedCookies(target string, cookies []*http.Cookie) {
	u, err := url.Parse(target)
	if err != nil {
		return
	}
	c.http.Jar.SetCookies(u, cookies)
}

// Fetch retrieves the URL's raw bytes. KindPage renders through the
// browser session when one is attached.
func (c *Client) Fetch(ctx context.Context, target string, kind ports.FetchKind) ([]byte, error) {
	if kind == ports.KindPage && c.renderer != nil {
		data, err := c.renderer.RenderPage(ctx, target)
		if err != nil {
			return nil, &domain.FetchError{URL: target, Reason: domain.FetchNetwork, Err: err}
		}
		return data, nil
	}

	var (
		body   []byte
		reason = domain.FetchNetwork
	)

	op := func() error {
		data, r, err := c.get(ctx, target)
		if err != nil {
			reason = r
			if r == domain.FetchNotFound {
				return backoff.Permanent(err)
			}
			c.logger.Debug("fetch retrying", "url", target, "reason", r, "error", err)
			return err
		}
		body = data
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx))
	if err != nil {
		return nil, &domain.FetchError{URL: target, Reason: reason, Err: err}
	}

	return body, nil
}

func (c *Client) get(ctx context.Context, target string) ([]byte, domain.FetchReason, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, domain.FetchNotFound, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domain.FetchNetwork, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, domain.FetchNotFound, fmt.Errorf("server returned %s", resp.Status)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, domain.FetchRateLimited, fmt.Errorf("server returned %s", resp.Status)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, domain.FetchNetwork, fmt.Errorf("server returned %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, domain.FetchNotFound, fmt.Errorf("server returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAttachmentSize))
	if err != nil {
		return nil, domain.FetchNetwork, fmt.Errorf("read body: %w", err)
	}

	return body, domain.FetchNetwork, nil
}

// ContentDisposition returns the decoded attachment filename and content
// type by issuing a HEAD request. Used to build MIME hints when the URL
// itself carries no extension.
func (c *Client) ContentDisposition(ctx context.Context, target string) (name, contentType string, err error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodHead, target, nil)
	if err != nil {
		return "", "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("head request: %w", err)
	}
	defer resp.Body.Close()

	name = portal.FilenameFromContentDisposition(resp.Header.Get("Content-Disposition"))
	return name, resp.Header.Get("Content-Type"), nil
}
