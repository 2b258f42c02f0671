package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/fanlist/internal/shared"
	"golang.org/x/time/rate"
)

// Credentials supplies bearer tokens to the [Fetcher].
type Credentials interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// Request describes one Web API call. Expect pins the success status; zero accepts any 2xx.
type Request struct {
	Method      string
	URL         string
	Body        []byte
	ContentType string
	Expect      int
}

type fetchState int

const (
	stateAttempt fetchState = iota
	stateAwaitRefresh
	stateAwaitBackoff
	stateDone
	stateFailed
)

func (s fetchState) String() string {
	switch s {
	case stateAttempt:
		return "attempt"
	case stateAwaitRefresh:
		return "await-refresh"
	case stateAwaitBackoff:
		return "await-backoff"
	case stateDone:
		return "done"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Fetcher issues authenticated Web API requests.
//
// A 401 forces one credential refresh before the request is retried. A 429
// sleeps Retry-After + 1 seconds and retries. Other non-2xx responses fail with
// a [shared.APIError]. MaxAttempts bounds the attempts that are not retries
// after a refresh; with zero the loop is unbounded.
type Fetcher struct {
	credentials Credentials
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	logger      *log.Logger
	onWait      func(url string, wait time.Duration)
	sleep       func(ctx context.Context, d time.Duration) error
}

// FetcherOpts configures a [Fetcher].
type FetcherOpts struct {
	Credentials Credentials
	HTTPClient  *http.Client
	// RequestsPerSecond gates every attempt; zero disables the limiter.
	RequestsPerSecond float64
	MaxAttempts       int
	Logger            *log.Logger
	// OnWait is called before every rate-limit sleep.
	OnWait func(url string, wait time.Duration)
}

// NewFetcher creates a Fetcher from opts.
func NewFetcher(opts FetcherOpts) *Fetcher {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Fetcher{
		credentials: opts.Credentials,
		httpClient:  opts.HTTPClient,
		limiter:     limiter,
		maxAttempts: opts.MaxAttempts,
		logger:      opts.Logger,
		onWait:      opts.OnWait,
		sleep:       sleepContext,
	}
}

// SetOnWait replaces the rate-limit hook. Builds point it at their progress channel.
func (f *Fetcher) SetOnWait(fn func(url string, wait time.Duration)) {
	f.onWait = fn
}

// Get performs a GET and returns the raw body.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	return f.Do(ctx, Request{Method: http.MethodGet, URL: url})
}

// GetJSON performs a GET and decodes the body into out.
func (f *Fetcher) GetJSON(ctx context.Context, url string, out any) error {
	body, err := f.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: failed to decode %s: %v", shared.ErrAPIRequest, url, err)
	}
	return nil
}

// SendJSON encodes in as the request body and decodes the response into out when out is non-nil.
func (f *Fetcher) SendJSON(ctx context.Context, method, url string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	body, err := f.Do(ctx, Request{Method: method, URL: url, Body: payload, ContentType: "application/json"})
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: failed to decode %s: %v", shared.ErrAPIRequest, url, err)
	}
	return nil
}

type fetchResult struct {
	status     int
	retryAfter string
	body       []byte
}

// Do runs req through the retry state machine.
func (f *Fetcher) Do(ctx context.Context, req Request) ([]byte, error) {
	var (
		state     = stateAttempt
		attempts  int
		refreshes int
		result    fetchResult
		wait      time.Duration
		last      string
		err       error
	)

	for {
		switch state {
		case stateAttempt:
			if f.maxAttempts > 0 && attempts-refreshes >= f.maxAttempts {
				err = fmt.Errorf("%w: %d attempts for %s %s, last: %s", shared.ErrRetriesExhausted, attempts-refreshes, req.Method, req.URL, last)
				state = stateFailed
				continue
			}
			attempts++
			f.logger.Debug("request", "method", req.Method, "url", req.URL, "attempt", attempts)

			if result, err = f.attempt(ctx, req); err != nil {
				state = stateFailed
				continue
			}

			switch {
			case result.status == http.StatusUnauthorized:
				last = "401 unauthorized"
				state = stateAwaitRefresh
			case result.status == http.StatusTooManyRequests:
				last = "429 too many requests"
				wait = retryWait(result.retryAfter)
				state = stateAwaitBackoff
			case accepted(result.status, req.Expect):
				state = stateDone
			default:
				err = &shared.APIError{Status: result.status, Body: strings.TrimSpace(string(result.body))}
				state = stateFailed
			}

		case stateAwaitRefresh:
			f.logger.Debug("access token rejected, refreshing", "url", req.URL)
			if _, err = f.credentials.Refresh(ctx); err != nil {
				if !errors.Is(err, shared.ErrAuthRequired) && ctx.Err() == nil {
					err = fmt.Errorf("%w: %v", shared.ErrAuthRequired, err)
				}
				state = stateFailed
				continue
			}
			refreshes++
			state = stateAttempt

		case stateAwaitBackoff:
			f.logger.Warn("rate limited, waiting", "wait", wait, "url", req.URL)
			if f.onWait != nil {
				f.onWait(req.URL, wait)
			}
			if err = f.sleep(ctx, wait); err != nil {
				state = stateFailed
				continue
			}
			state = stateAttempt

		case stateDone:
			return result.body, nil

		case stateFailed:
			return nil, err
		}
	}
}

func (f *Fetcher) attempt(ctx context.Context, req Request) (fetchResult, error) {
	token, err := f.credentials.Token(ctx)
	if err != nil {
		return fetchResult{}, err
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return fetchResult{}, err
		}
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return fetchResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}

	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return fetchResult{}, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fetchResult{}, fmt.Errorf("failed to read response: %w", err)
	}

	return fetchResult{
		status:     resp.StatusCode,
		retryAfter: resp.Header.Get("Retry-After"),
		body:       data,
	}, nil
}

func accepted(status, expect int) bool {
	if expect != 0 {
		return status == expect
	}
	return status >= 200 && status < 300
}

// retryWait turns a Retry-After header into the sleep before the next attempt.
// Missing or malformed values count as 1 second.
func retryWait(header string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || seconds < 0 {
		seconds = 1
	}
	return time.Duration(seconds+1) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
