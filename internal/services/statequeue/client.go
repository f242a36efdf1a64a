package statequeue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"trainloop/internal/logging"
	"trainloop/internal/services"
)

// HTTPDoer describes the HTTP client used to poll the state server.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Status is the state server's report on its pending-work queue. QueueSize is
// nil when the server does not expose a count.
type Status struct {
	QueueAvailable bool     `json:"queue_available"`
	IsEmpty        bool     `json:"is_empty"`
	QueueSize      *float64 `json:"queue_size"`
}

// Client polls a state server for queue drain.
type Client struct {
	baseURL string
	http    HTTPDoer
	logger  *slog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for status requests.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithLogger attaches a logger for drain progress reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New constructs a client for the state server at baseURL. The URL must carry
// a scheme; anything else about its shape is left to the server.
func New(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "statequeue", "new", "invalid state server url", err)
	}
	if parsed.Scheme == "" {
		return nil, services.Wrap(services.ErrValidation, "statequeue", "new", fmt.Sprintf("state server url %q must carry a scheme", baseURL), nil)
	}
	client := &Client{
		baseURL: trimmed,
		http:    http.DefaultClient,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// WaitForDrain polls the state server until it reports an available and empty
// queue, or until timeout elapses. Transient request failures are logged and
// retried. Exceeding the timeout returns ErrDrainTimeout, which callers may
// treat as a warning rather than a hard stop.
func (c *Client) WaitForDrain(ctx context.Context, timeout, pollInterval time.Duration) error {
	deadline := time.Now().Add(timeout)
	c.logger.Info("waiting for state queue to drain",
		logging.String("base_url", c.baseURL),
		logging.Duration("timeout", timeout))

	var lastSize *float64
	sizeSeen := false
	for {
		status, err := c.fetchStatus(ctx)
		switch {
		case err != nil:
			c.logger.Warn("state queue status check failed", logging.Error(err))
		case status.QueueAvailable && status.IsEmpty:
			c.logger.Info("state queue drained")
			return nil
		default:
			if !sizeSeen || !sizesEqual(lastSize, status.QueueSize) {
				c.logger.Info("state queue not drained",
					logging.Bool("queue_available", status.QueueAvailable),
					logging.String("queue_size", formatSize(status.QueueSize)))
				lastSize = status.QueueSize
				sizeSeen = true
			}
		}

		if time.Now().After(deadline) {
			return services.Wrap(services.ErrDrainTimeout, "statequeue", "wait", fmt.Sprintf("queue not drained after %s", timeout), nil)
		}
		timer := time.NewTimer(pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) fetchStatus(ctx context.Context) (Status, error) {
	statusURL := c.baseURL + "/test-queue/status?zerostyle=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return Status{}, fmt.Errorf("build queue status request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Status{}, services.Wrap(services.ErrTransient, "statequeue", "status", "queue status request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Status{}, services.Wrap(services.ErrTransient, "statequeue", "status", fmt.Sprintf("queue status returned %d", resp.StatusCode), nil)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Status{}, services.Wrap(services.ErrTransient, "statequeue", "status", "read queue status body", err)
	}
	var status Status
	if err := json.Unmarshal(body, &status); err != nil {
		return Status{}, services.Wrap(services.ErrTransient, "statequeue", "status", "decode queue status body", err)
	}
	return status, nil
}

func sizesEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func formatSize(size *float64) string {
	if size == nil {
		return "unknown"
	}
	return fmt.Sprintf("%g", *size)
}
