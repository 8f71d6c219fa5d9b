package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// FetchErrorKind separates failures the page loop can survive from ones
// that end the run.
type FetchErrorKind string

const (
	FetchTransient FetchErrorKind = "transient" // single attempt failed, will retry
	FetchExhausted FetchErrorKind = "exhausted" // all attempts failed for this page
	FetchFatal     FetchErrorKind = "fatal"     // 4xx or similar, retrying is pointless
)

type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s (status %d, %d attempts)", e.URL, e.Kind, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("fetch %s: %s after %d attempts: %v", e.URL, e.Kind, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher retrieves listing pages over plain HTTP with per-page retry.
// Network errors and 5xx responses are retried up to maxAttempts with a
// doubling backoff (base 2s); 4xx responses fail the page immediately.
type Fetcher struct {
	client      *http.Client
	maxAttempts int
	retryDelay  time.Duration
	userAgent   string
}

func NewFetcher(client *http.Client, maxAttempts int) *Fetcher {
	return &Fetcher{
		client:      client,
		maxAttempts: maxAttempts,
		retryDelay:  2 * time.Second,
		userAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

// Fetch returns the page body, or a *FetchError of kind Exhausted or Fatal.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	delay := f.retryDelay
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		body, err := f.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}

		var fe *FetchError
		if errors.As(err, &fe) && fe.Kind == FetchFatal {
			fe.Attempts = attempt
			return nil, fe
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		log.Printf("fetch attempt %d/%d failed for %s: %v", attempt, f.maxAttempts, url, err)
	}

	return nil, &FetchError{Kind: FetchExhausted, URL: url, Attempts: f.maxAttempts, Err: lastErr}
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Kind: FetchFatal, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept-Language", "fr-BE,fr;q=0.9,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: FetchTransient, URL: url, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{Kind: FetchFatal, URL: url, StatusCode: resp.StatusCode}
	default:
		io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{Kind: FetchTransient, URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Kind: FetchTransient, URL: url, Err: err}
	}
	return body, nil
}

// Head checks whether a listing detail URL still resolves. Used by the
// existence checker; a 404/410 means the listing is gone.
func (f *Fetcher) Head(ctx context.Context, url string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return false, &FetchError{Kind: FetchTransient, URL: url, Err: err}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return false, nil
	}
	if resp.StatusCode >= 500 {
		return false, &FetchError{Kind: FetchTransient, URL: url, StatusCode: resp.StatusCode}
	}
	return true, nil
}
