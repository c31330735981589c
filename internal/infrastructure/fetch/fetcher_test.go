package fetch

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"TenderScan/internal/domain"
	"TenderScan/internal/ports"
)

func testClient(retries int) *Client {
	return New(nil, 5*time.Second, retries, slog.New(slog.DiscardHandler))
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("attachment bytes"))
	}))
	defer srv.Close()

	body, err := testClient(3).Fetch(context.Background(), srv.URL, ports.KindAttachment)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(body) != "attachment bytes" {
		t.Fatalf("body = %q", body)
	}
	if calls.Load() != 3 {
		t.Fatalf("server saw %d calls, want 3", calls.Load())
	}
}

func TestFetchNotFoundIsPermanent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := testClient(3).Fetch(context.Background(), srv.URL, ports.KindAttachment)

	var fetchErr *domain.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *domain.FetchError, got %v", err)
	}
	if fetchErr.Reason != domain.FetchNotFound {
		t.Fatalf("reason = %s, want %s", fetchErr.Reason, domain.FetchNotFound)
	}
	if calls.Load() != 1 {
		t.Fatalf("404 was retried %d times", calls.Load()-1)
	}
}

func TestFetchRateLimitedSurfacesReason(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(0).Fetch(context.Background(), srv.URL, ports.KindAttachment)

	var fetchErr *domain.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *domain.FetchError, got %v", err)
	}
	if fetchErr.Reason != domain.FetchRateLimited {
		t.Fatalf("reason = %s, want %s", fetchErr.Reason, domain.FetchRateLimited)
	}
}

func TestFetchExhaustedRetriesFail(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(2).Fetch(context.Background(), srv.URL, ports.KindAttachment)

	var fetchErr *domain.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *domain.FetchError, got %v", err)
	}
	if fetchErr.Reason != domain.FetchNetwork {
		t.Fatalf("reason = %s, want %s", fetchErr.Reason, domain.FetchNetwork)
	}
	// Initial attempt plus two retries.
	if calls.Load() != 3 {
		t.Fatalf("server saw %d calls, want 3", calls.Load())
	}
}

func TestSeedCookiesAccompanyRequests(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("PHPSESSID"); err != nil || c.Value != "abc123" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := testClient(0)
	client.SeedCookies(srv.URL, []*http.Cookie{{Name: "PHPSESSID", Value: "abc123"}})

	body, err := client.Fetch(context.Background(), srv.URL, ports.KindAttachment)
	if err != nil {
		t.Fatalf("fetch with seeded cookies: %v", err)
	}
	if string(body) != "ok" {
		t.Fatalf("body = %q", body)
	}
}

func TestContentDispositionDecodesName(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		w.Header().Set("Content-Disposition", `attachment; filename*=UTF-8''%E1%83%93%E1%83%9D%E1%83%99.pdf`)
		w.Header().Set("Content-Type", "application/pdf")
	}))
	defer srv.Close()

	name, contentType, err := testClient(0).ContentDisposition(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("content disposition: %v", err)
	}
	if name != "დოკ.pdf" {
		t.Fatalf("name = %q", name)
	}
	if contentType != "application/pdf" {
		t.Fatalf("content type = %q", contentType)
	}
}

func TestKindPageUsesRenderer(t *testing.T) {
	t.Parallel()

	renderer := renderFunc(func(ctx context.Context, url string) ([]byte, error) {
		return []byte("<html>rendered</html>"), nil
	})
	client := New(renderer, 5*time.Second, 0, slog.New(slog.DiscardHandler))

	body, err := client.Fetch(context.Background(), "https://portal.example/?lang=ge", ports.KindPage)
	if err != nil {
		t.Fatalf("fetch page: %v", err)
	}
	if string(body) != "<html>rendered</html>" {
		t.Fatalf("body = %q", body)
	}
}

type renderFunc func(ctx context.Context, url string) ([]byte, error)

func (f renderFunc) RenderPage(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}
