// Package probe implements the outbound URL health prober.
package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/compace/hygiene/internal/hygiene"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "Mozilla/5.0 (compatible; CompAceBot/1.0; +http://compace.com)"

	// maxDrainBytes caps how much of a response body is read before close,
	// enough to keep connections reusable without downloading whole pages.
	maxDrainBytes = 64 * 1024
)

// Config controls probe behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Client probes URLs with a bounded-timeout GET, following redirects.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// New builds a Client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &Client{
		// Default CheckRedirect follows up to 10 redirects.
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  ua,
	}
}

// Probe issues a GET against rawURL (assuming https for bare domains) and
// returns the final status code and post-redirect URL. Network-level
// failures (DNS, refused, timeout) return an error; HTTP error statuses do
// not.
func (c *Client) Probe(ctx context.Context, rawURL string) (hygiene.ProbeResult, error) {
	target := rawURL
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = "https://" + target
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return hygiene.ProbeResult{}, fmt.Errorf("build probe request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return hygiene.ProbeResult{}, fmt.Errorf("probe %s: %w", target, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
		_ = resp.Body.Close()
	}()

	return hygiene.ProbeResult{
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
	}, nil
}
