package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestFetcher(maxAttempts int) *Fetcher {
	f := NewFetcher(&http.Client{Timeout: 5 * time.Second}, maxAttempts)
	f.retryDelay = time.Millisecond
	return f
}

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	body, err := newTestFetcher(3).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if string(body) != "<html>ok</html>" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestFetchRetriesTransient(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("finally"))
	}))
	defer srv.Close()

	body, err := newTestFetcher(3).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if string(body) != "finally" {
		t.Fatalf("unexpected body %q", body)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestFetchExhausted(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestFetcher(3).Fetch(context.Background(), srv.URL)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.Kind != FetchExhausted {
		t.Fatalf("expected exhausted, got %s", fe.Kind)
	}
	if fe.Attempts != 3 {
		t.Fatalf("expected 3 recorded attempts, got %d", fe.Attempts)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 requests, got %d", attempts)
	}
}

func TestFetchFatalNoRetry(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher(3).Fetch(context.Background(), srv.URL)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.Kind != FetchFatal {
		t.Fatalf("expected fatal, got %s", fe.Kind)
	}
	if fe.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", fe.StatusCode)
	}
	if attempts != 1 {
		t.Fatalf("404 should not be retried, got %d attempts", attempts)
	}
}

func TestFetchCancelledBetweenAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	f := newTestFetcher(3)
	f.retryDelay = 50 * time.Millisecond

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := f.Fetch(ctx, srv.URL)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestHeadGoneListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	alive, err := newTestFetcher(3).Head(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("head failed: %v", err)
	}
	if alive {
		t.Fatal("410 should mean the listing is gone")
	}
}

func TestHeadAliveListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	alive, err := newTestFetcher(3).Head(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("head failed: %v", err)
	}
	if !alive {
		t.Fatal("200 should mean the listing is alive")
	}
}
