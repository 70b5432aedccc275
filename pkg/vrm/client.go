// Package vrm is a read-only client for the Victron VRM API. Every request
// shares one budget clock: attempts are refused once the budget is spent,
// per-attempt timeouts shrink as the budget drains, and only transient
// network failures are retried.
package vrm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/vrmsnap/vrmsnap/pkg/budget"
	"github.com/vrmsnap/vrmsnap/pkg/common"
	"github.com/vrmsnap/vrmsnap/pkg/log"
)

const defaultBaseURL = "https://vrmapi.victronenergy.com/v2"

const (
	// per-attempt timeouts never drop below this, even with the budget
	// nearly spent
	timeoutFloor = 500 * time.Millisecond
	// likewise for the retry backoff
	backoffFloor = 100 * time.Millisecond
)

// Client issues budgeted GETs against the VRM API. It is constructed once by
// the top-level run and passed by reference; the underlying http.Client is
// reused across all requests.
type Client struct {
	client  *http.Client
	baseURL string
	token   string

	connectTimeout time.Duration
	readTimeout    time.Duration
	retries        int
	backoffBase    time.Duration
}

// Configured sets up flags for the VRM client and returns the instance.
// It uses lflag to register command-line flags for configuration.
func Configured() *Client {
	c := &Client{
		client: common.HTTPClient(0),
	}
	baseURL := lflag.String("vrm-base-url", defaultBaseURL, "Base URL for the VRM API")
	token := lflag.String("vrm-token", "", "VRM access token (falls back to the VRM_TOKEN environment variable)")
	connectTimeout := lflag.Duration("vrm-connect-timeout", 4*time.Second, "Per-attempt connect timeout")
	readTimeout := lflag.Duration("vrm-read-timeout", 6*time.Second, "Per-attempt read timeout")
	retries := lflag.String("vrm-retries", "2", "Total GET attempts per logical request")
	backoffBase := lflag.Duration("vrm-backoff-base", 400*time.Millisecond, "Base delay for exponential retry backoff")

	lflag.Do(func() {
		c.baseURL = *baseURL
		c.token = *token
		if c.token == "" {
			c.token = os.Getenv("VRM_TOKEN")
		}
		c.connectTimeout = *connectTimeout
		c.readTimeout = *readTimeout
		n, err := strconv.Atoi(*retries)
		if err != nil || n < 1 {
			log.Ctx(context.Background()).Error("vrm-retries must be a positive integer", slog.String("value", *retries))
			os.Exit(1)
		}
		c.retries = n
		c.backoffBase = *backoffBase
	})

	return c
}

// NewClient returns a client with explicit settings for callers that don't
// go through lflag, like tests.
func NewClient(hc *http.Client, baseURL, token string) *Client {
	return &Client{
		client:         hc,
		baseURL:        baseURL,
		token:          token,
		connectTimeout: 4 * time.Second,
		readTimeout:    6 * time.Second,
		retries:        2,
		backoffBase:    400 * time.Millisecond,
	}
}

// get performs one logical GET with bounded retries and overall-budget
// awareness, decoding the JSON body into dest on success.
func (c *Client) get(ctx context.Context, clock *budget.Clock, path string, params url.Values, dest any) error {
	rawURL := path
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = c.baseURL + path
	}

	for attempt := 1; ; attempt++ {
		remaining := clock.Remaining()
		if remaining <= 0 {
			fetchFailures.WithLabelValues("deadline").Inc()
			return fmt.Errorf("%w (%s) before calling %s", ErrDeadlineExceeded, clock.Total(), rawURL)
		}

		// split the per-attempt budget between connect and read, each
		// bounded by what's left
		connectT := attemptTimeout(c.connectTimeout, remaining)
		readT := attemptTimeout(c.readTimeout, remaining)

		attemptCtx, cancel := context.WithTimeout(ctx, connectT+readT)
		err := c.do(attemptCtx, rawURL, params, dest)
		cancel()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) {
			// process interruption, not a network condition
			return err
		}
		if !transient(err) {
			if errors.Is(err, ErrUnauthorized) {
				fetchFailures.WithLabelValues("unauthorized").Inc()
			} else {
				fetchFailures.WithLabelValues("request").Inc()
			}
			return err
		}
		if attempt >= c.retries {
			fetchFailures.WithLabelValues("retries").Inc()
			return fmt.Errorf("%w: GET %s failed %d times: %w", ErrRetriesExhausted, rawURL, attempt, err)
		}

		// brief backoff that never outlives the global budget
		sleep := c.backoffBase << (attempt - 1)
		if maxSleep := maxDuration(backoffFloor, remaining/4); sleep > maxSleep {
			sleep = maxSleep
		}
		fetchRetries.Inc()
		log.Ctx(ctx).WarnContext(ctx, "retrying vrm request",
			slog.String("url", rawURL),
			slog.Int("attempt", attempt),
			slog.Duration("sleep", sleep),
			slog.Any("error", err),
		)
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) do(ctx context.Context, rawURL string, params url.Values, dest any) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url %s: %w", rawURL, err)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")

	fetchAttempts.Inc()
	resp, err := c.client.Do(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to decode vrm response", slog.String("url", rawURL), slog.Any("error", err))
		return fmt.Errorf("failed to decode vrm response: %w", err)
	}
	return nil
}

func attemptTimeout(configured, remaining time.Duration) time.Duration {
	t := remaining / 2
	if t < timeoutFloor {
		t = timeoutFloor
	}
	if configured < t {
		t = configured
	}
	return t
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
