// Package thousandvalidators fetches the third-party "thousand validator
// program" candidate list over a simple HTTP GET, per spec.md §6. A fetch
// failure is non-fatal: the pipeline proceeds with an empty candidate set.
package thousandvalidators

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

// DefaultEndpoint is the well-known thousand-validator-program endpoint.
const DefaultEndpoint = "https://kusama.w3f.community/candidates"

// Candidate is a single entry in the thousand-validator-program list.
type Candidate struct {
	Stash string `json:"stash"`
}

// Client fetches the candidate list, instrumented with OpenTelemetry the
// way services/otc-gateway wraps its outbound HTTP calls, and rate limited
// to avoid hammering the third-party endpoint on retry.
type Client struct {
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// New constructs a thousand-validator-program client.
func New(endpoint string, logger *slog.Logger) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		logger:  logger,
	}
}

// FetchStashes returns the set of stash addresses on the thousand-validator
// candidate list. On any failure it logs and returns an empty set rather
// than an error, matching spec.md §7 kind 4.
func (c *Client) FetchStashes(ctx context.Context) map[string]bool {
	empty := map[string]bool{}

	if err := c.limiter.Wait(ctx); err != nil {
		c.logger.Warn("thousand-validator-program rate limit wait failed", "error", err)
		return empty
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		c.logger.Warn("thousand-validator-program request build failed", "error", err)
		return empty
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("thousand-validator-program fetch failed", "error", err)
		return empty
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("thousand-validator-program fetch returned non-200", "status", resp.StatusCode)
		return empty
	}

	var candidates []Candidate
	if err := json.NewDecoder(resp.Body).Decode(&candidates); err != nil {
		c.logger.Warn("thousand-validator-program decode failed", "error", err)
		return empty
	}

	stashes := make(map[string]bool, len(candidates))
	for _, cand := range candidates {
		if cand.Stash != "" {
			stashes[cand.Stash] = true
		}
	}
	return stashes
}
