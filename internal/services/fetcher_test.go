package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/fanlist/internal/shared"
	tu "github.com/desertthunder/fanlist/internal/testing"
)

type recordedRequest struct {
	method string
	path   string
	auth   string
	body   string
	ctype  string
}

// scriptedServer replies with the given statuses in order and repeats the last one.
type scriptedServer struct {
	mu       sync.Mutex
	statuses []int
	headers  []map[string]string
	bodies   []string
	requests []recordedRequest
}

func (s *scriptedServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	i := len(s.requests)
	s.requests = append(s.requests, recordedRequest{
		method: r.Method,
		path:   r.URL.RequestURI(),
		auth:   r.Header.Get("Authorization"),
		body:   string(body),
		ctype:  r.Header.Get("Content-Type"),
	})
	if i >= len(s.statuses) {
		i = len(s.statuses) - 1
	}
	status := s.statuses[i]
	var headers map[string]string
	if i < len(s.headers) {
		headers = s.headers[i]
	}
	respBody := `{"ok":true}`
	if i < len(s.bodies) {
		respBody = s.bodies[i]
	}
	s.mu.Unlock()

	for k, v := range headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(status)
	w.Write([]byte(respBody))
}

func (s *scriptedServer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func newTestFetcher(creds Credentials, maxAttempts int) (*Fetcher, *[]time.Duration) {
	f := NewFetcher(FetcherOpts{
		Credentials: creds,
		MaxAttempts: maxAttempts,
		Logger:      shared.NewLogger(io.Discard),
	})
	slept := &[]time.Duration{}
	f.sleep = func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return ctx.Err()
	}
	return f, slept
}

func TestFetcher(t *testing.T) {
	t.Run("returns the body of a 2xx response with the bearer header", func(t *testing.T) {
		srv := &scriptedServer{statuses: []int{http.StatusOK}, bodies: []string{`{"id":"me"}`}}
		ts := httptest.NewServer(srv)
		defer ts.Close()

		f, _ := newTestFetcher(&tu.StubCredentials{AccessToken: "abc"}, 0)
		body, err := f.Get(context.Background(), ts.URL+"/me")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if string(body) != `{"id":"me"}` {
			t.Errorf("unexpected body %s", body)
		}
		if srv.requests[0].auth != "Bearer abc" {
			t.Errorf("expected bearer header, got %q", srv.requests[0].auth)
		}
	})

	t.Run("429 waits Retry-After plus one second and retries the identical request", func(t *testing.T) {
		srv := &scriptedServer{
			statuses: []int{http.StatusTooManyRequests, http.StatusCreated},
			headers:  []map[string]string{{"Retry-After": "2"}},
		}
		ts := httptest.NewServer(srv)
		defer ts.Close()

		f, slept := newTestFetcher(&tu.StubCredentials{AccessToken: "abc"}, 0)
		var waits []time.Duration
		f.SetOnWait(func(url string, wait time.Duration) { waits = append(waits, wait) })

		_, err := f.Do(context.Background(), Request{
			Method:      http.MethodPost,
			URL:         ts.URL + "/playlists/p1/tracks",
			Body:        []byte(`{"uris":["spotify:track:1"]}`),
			ContentType: "application/json",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(*slept) != 1 || (*slept)[0] != 3*time.Second {
			t.Errorf("expected exactly one 3s pause, got %v", *slept)
		}
		if len(waits) != 1 {
			t.Errorf("expected one wait notification, got %d", len(waits))
		}
		if srv.count() != 2 {
			t.Fatalf("expected 2 requests, got %d", srv.count())
		}
		if srv.requests[0] != srv.requests[1] {
			t.Errorf("retried request differs: %+v vs %+v", srv.requests[0], srv.requests[1])
		}
	})

	t.Run("429 backoff is unbounded by default", func(t *testing.T) {
		srv := &scriptedServer{
			statuses: []int{429, 429, 429, 429, 200},
			headers:  []map[string]string{{"Retry-After": "0"}, {}, {"Retry-After": "x"}, {"Retry-After": "5"}},
		}
		ts := httptest.NewServer(srv)
		defer ts.Close()

		f, slept := newTestFetcher(&tu.StubCredentials{AccessToken: "abc"}, 0)
		if _, err := f.Get(context.Background(), ts.URL); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		want := []time.Duration{time.Second, 2 * time.Second, 2 * time.Second, 6 * time.Second}
		if len(*slept) != len(want) {
			t.Fatalf("expected %d waits, got %v", len(want), *slept)
		}
		for i := range want {
			if (*slept)[i] != want[i] {
				t.Errorf("wait %d: expected %v, got %v", i, want[i], (*slept)[i])
			}
		}
	})

	t.Run("401 refreshes once then retries with the new token", func(t *testing.T) {
		srv := &scriptedServer{statuses: []int{http.StatusUnauthorized, http.StatusOK}}
		ts := httptest.NewServer(srv)
		defer ts.Close()

		creds := &tu.StubCredentials{AccessToken: "old", RefreshTokens: []string{"new"}}
		f, slept := newTestFetcher(creds, 0)

		if _, err := f.Get(context.Background(), ts.URL); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if creds.Refreshes != 1 {
			t.Errorf("expected one refresh, got %d", creds.Refreshes)
		}
		if srv.requests[1].auth != "Bearer new" {
			t.Errorf("expected retry with new token, got %q", srv.requests[1].auth)
		}
		if len(*slept) != 0 {
			t.Errorf("401 should not sleep, got %v", *slept)
		}
	})

	t.Run("401 with a failed refresh yields ErrAuthRequired", func(t *testing.T) {
		srv := &scriptedServer{statuses: []int{http.StatusUnauthorized}}
		ts := httptest.NewServer(srv)
		defer ts.Close()

		creds := &tu.StubCredentials{AccessToken: "old", RefreshErr: errors.New("invalid_grant")}
		f, _ := newTestFetcher(creds, 0)

		_, err := f.Get(context.Background(), ts.URL)
		if !errors.Is(err, shared.ErrAuthRequired) {
			t.Fatalf("expected ErrAuthRequired, got %v", err)
		}
		if creds.Refreshes != 1 {
			t.Errorf("expected exactly one refresh attempt, got %d", creds.Refreshes)
		}
		if srv.count() != 1 {
			t.Errorf("expected one request, got %d", srv.count())
		}
	})

	t.Run("missing token fails before any request", func(t *testing.T) {
		srv := &scriptedServer{statuses: []int{http.StatusOK}}
		ts := httptest.NewServer(srv)
		defer ts.Close()

		f, _ := newTestFetcher(&tu.StubCredentials{TokenErr: shared.ErrAuthRequired}, 0)
		if _, err := f.Get(context.Background(), ts.URL); !errors.Is(err, shared.ErrAuthRequired) {
			t.Fatalf("expected ErrAuthRequired, got %v", err)
		}
		if srv.count() != 0 {
			t.Errorf("expected no requests, got %d", srv.count())
		}
	})

	t.Run("other statuses fail immediately with APIError", func(t *testing.T) {
		srv := &scriptedServer{statuses: []int{http.StatusNotFound}, bodies: []string{`{"error":"gone"}`}}
		ts := httptest.NewServer(srv)
		defer ts.Close()

		f, _ := newTestFetcher(&tu.StubCredentials{AccessToken: "abc"}, 0)
		_, err := f.Get(context.Background(), ts.URL)

		apiErr, ok := shared.AsAPIError(err)
		if !ok {
			t.Fatalf("expected APIError, got %v", err)
		}
		if apiErr.Status != http.StatusNotFound || apiErr.Body != `{"error":"gone"}` {
			t.Errorf("unexpected error fields %+v", apiErr)
		}
		if srv.count() != 1 {
			t.Errorf("expected no retry, got %d requests", srv.count())
		}
	})

	t.Run("Expect pins the success status", func(t *testing.T) {
		srv := &scriptedServer{statuses: []int{http.StatusOK}}
		ts := httptest.NewServer(srv)
		defer ts.Close()

		f, _ := newTestFetcher(&tu.StubCredentials{AccessToken: "abc"}, 0)
		_, err := f.Do(context.Background(), Request{Method: http.MethodPut, URL: ts.URL, Expect: http.StatusAccepted})
		if apiErr, ok := shared.AsAPIError(err); !ok || apiErr.Status != http.StatusOK {
			t.Errorf("expected APIError with status 200, got %v", err)
		}
	})

	t.Run("MaxAttempts bounds the retry loop", func(t *testing.T) {
		srv := &scriptedServer{statuses: []int{http.StatusTooManyRequests}}
		ts := httptest.NewServer(srv)
		defer ts.Close()

		f, slept := newTestFetcher(&tu.StubCredentials{AccessToken: "abc"}, 3)
		_, err := f.Get(context.Background(), ts.URL)
		if !errors.Is(err, shared.ErrRetriesExhausted) {
			t.Fatalf("expected ErrRetriesExhausted, got %v", err)
		}
		if srv.count() != 3 {
			t.Errorf("expected 3 attempts, got %d", srv.count())
		}
		if len(*slept) != 3 {
			t.Errorf("expected 3 waits, got %d", len(*slept))
		}
	})

	t.Run("MaxAttempts does not count retries after a refresh", func(t *testing.T) {
		srv := &scriptedServer{statuses: []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusOK}}
		ts := httptest.NewServer(srv)
		defer ts.Close()

		creds := &tu.StubCredentials{AccessToken: "old", RefreshTokens: []string{"one", "two"}}
		f, _ := newTestFetcher(creds, 2)

		if _, err := f.Get(context.Background(), ts.URL); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if creds.Refreshes != 2 {
			t.Errorf("expected two refreshes, got %d", creds.Refreshes)
		}
		if srv.count() != 3 {
			t.Errorf("expected 3 requests, got %d", srv.count())
		}
	})

	t.Run("MaxAttempts still counts 429 retries after a refresh", func(t *testing.T) {
		srv := &scriptedServer{statuses: []int{http.StatusUnauthorized, http.StatusTooManyRequests}}
		ts := httptest.NewServer(srv)
		defer ts.Close()

		creds := &tu.StubCredentials{AccessToken: "old", RefreshTokens: []string{"new"}}
		f, _ := newTestFetcher(creds, 2)

		if _, err := f.Get(context.Background(), ts.URL); !errors.Is(err, shared.ErrRetriesExhausted) {
			t.Fatalf("expected ErrRetriesExhausted, got %v", err)
		}
		if srv.count() != 3 {
			t.Errorf("expected 3 requests, got %d", srv.count())
		}
	})

	t.Run("cancelled context stops the backoff", func(t *testing.T) {
		srv := &scriptedServer{statuses: []int{http.StatusTooManyRequests}, headers: []map[string]string{{"Retry-After": "60"}}}
		ts := httptest.NewServer(srv)
		defer ts.Close()

		f := NewFetcher(FetcherOpts{Credentials: &tu.StubCredentials{AccessToken: "abc"}, Logger: shared.NewLogger(io.Discard)})
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := f.Get(ctx, ts.URL)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
		if time.Since(start) > 5*time.Second {
			t.Error("backoff did not honor the context")
		}
	})

	t.Run("transport failures are reported as service unavailable", func(t *testing.T) {
		f := NewFetcher(FetcherOpts{
			Credentials: &tu.StubCredentials{AccessToken: "abc"},
			HTTPClient:  &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("dial tcp: refused"))},
			Logger:      shared.NewLogger(io.Discard),
		})
		if _, err := f.Get(context.Background(), "http://example.invalid/me"); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("SendJSON encodes and decodes", func(t *testing.T) {
		srv := &scriptedServer{statuses: []int{http.StatusCreated}, bodies: []string{`{"id":"p1"}`}}
		ts := httptest.NewServer(srv)
		defer ts.Close()

		f, _ := newTestFetcher(&tu.StubCredentials{AccessToken: "abc"}, 0)
		var out struct {
			ID string `json:"id"`
		}
		if err := f.SendJSON(context.Background(), http.MethodPost, ts.URL, map[string]string{"name": "x"}, &out); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if out.ID != "p1" {
			t.Errorf("expected id p1, got %s", out.ID)
		}
		if srv.requests[0].ctype != "application/json" || !strings.Contains(srv.requests[0].body, `"name":"x"`) {
			t.Errorf("unexpected request %+v", srv.requests[0])
		}
	})

	t.Run("rate limiter gates attempts", func(t *testing.T) {
		srv := &scriptedServer{statuses: []int{http.StatusOK}}
		ts := httptest.NewServer(srv)
		defer ts.Close()

		f := NewFetcher(FetcherOpts{
			Credentials:       &tu.StubCredentials{AccessToken: "abc"},
			RequestsPerSecond: 20,
			Logger:            shared.NewLogger(io.Discard),
		})

		start := time.Now()
		for range 3 {
			if _, err := f.Get(context.Background(), ts.URL); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		}
		if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
			t.Errorf("expected limiter to space requests, took %v", elapsed)
		}
	})
}

func TestRetryWait(t *testing.T) {
	tc := []struct {
		header string
		want   time.Duration
	}{
		{header: "", want: 2 * time.Second},
		{header: "2", want: 3 * time.Second},
		{header: " 4 ", want: 5 * time.Second},
		{header: "0", want: time.Second},
		{header: "-3", want: 2 * time.Second},
		{header: "soon", want: 2 * time.Second},
	}

	for _, tt := range tc {
		t.Run(tt.header, func(t *testing.T) {
			if got := retryWait(tt.header); got != tt.want {
				t.Errorf("retryWait(%q) = %v, want %v", tt.header, got, tt.want)
			}
		})
	}
}

func TestFetchStateString(t *testing.T) {
	states := map[fetchState]string{
		stateAttempt:      "attempt",
		stateAwaitRefresh: "await-refresh",
		stateAwaitBackoff: "await-backoff",
		stateDone:         "done",
		stateFailed:       "failed",
		fetchState(99):    "unknown",
	}
	for s, want := range states {
		if s.String() != want {
			t.Errorf("expected %s, got %s", want, s.String())
		}
	}
}
