package upstream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// =============================================================================
// Client Interface
// =============================================================================

// Client fetches registry pages from the upstream frontend.
type Client interface {
	// FetchVehiclePage fetches the vehicle page for a registration number.
	FetchVehiclePage(ctx context.Context, regnr string) (string, error)

	// FetchOwnerProfilePage fetches an owner profile page by profile ID.
	FetchOwnerProfilePage(ctx context.Context, profileID string) (string, error)

	// FetchOwnerVehiclesFragment fetches the dynamically loaded vehicles
	// table fragment of an owner profile.
	FetchOwnerVehiclesFragment(ctx context.Context, profileID string) (string, error)
}

// =============================================================================
// HTTP Client Implementation
// =============================================================================

// The upstream sits behind an anti-bot layer, so requests carry a browser
// user agent and the cookies captured from a real browser session.
const (
	defaultBaseURL   = "https://biluppgifter.se"
	defaultTimeout   = 30 * time.Second
	userAgent        = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	acceptLanguage   = "en-GB,en;q=0.9,sv-GB;q=0.8,sv;q=0.7"
	antiforgeryName  = ".AspNetCore.Antiforgery.KXUQR4SkAeM"
	maxResponseBytes = 8 << 20
)

// Config holds configuration for the upstream client.
type Config struct {
	BaseURL string
	Timeout time.Duration

	// Cookies captured from an authenticated browser session.
	SessionCookie     string
	CFClearanceCookie string
	AntiforgeryCookie string
}

// HTTPClient implements Client against the live upstream.
type HTTPClient struct {
	baseURL    string
	cookies    []*http.Cookie
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPClient creates a new upstream client.
func NewHTTPClient(cfg Config, logger *slog.Logger) *HTTPClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	cookies := []*http.Cookie{
		{Name: "theme", Value: "dark"},
	}
	if cfg.SessionCookie != "" {
		cookies = append(cookies, &http.Cookie{Name: "session", Value: cfg.SessionCookie})
	}
	if cfg.CFClearanceCookie != "" {
		cookies = append(cookies, &http.Cookie{Name: "cf_clearance", Value: cfg.CFClearanceCookie})
	}
	if cfg.AntiforgeryCookie != "" {
		cookies = append(cookies, &http.Cookie{Name: antiforgeryName, Value: cfg.AntiforgeryCookie})
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		cookies: cookies,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// FetchVehiclePage fetches /fordon/<regnr>/. The upstream uses lowercase
// registration numbers in paths.
func (c *HTTPClient) FetchVehiclePage(ctx context.Context, regnr string) (string, error) {
	path := fmt.Sprintf("/fordon/%s/", url.PathEscape(strings.ToLower(regnr)))
	return c.fetchPage(ctx, "FetchVehiclePage", path)
}

// FetchOwnerProfilePage fetches /brukare/<id>/.
func (c *HTTPClient) FetchOwnerProfilePage(ctx context.Context, profileID string) (string, error) {
	path := fmt.Sprintf("/brukare/%s/", url.PathEscape(profileID))
	return c.fetchPage(ctx, "FetchOwnerProfilePage", path)
}

// FetchOwnerVehiclesFragment fetches the first page of the profile's
// vehicle table via its fragment handler.
func (c *HTTPClient) FetchOwnerVehiclesFragment(ctx context.Context, profileID string) (string, error) {
	path := fmt.Sprintf("/brukare/%s/?handler=vehicles&currentPage=1", url.PathEscape(profileID))
	return c.fetchPage(ctx, "FetchOwnerVehiclesFragment", path)
}

// fetchPage performs a GET against the upstream and maps status codes to
// the package error taxonomy.
func (c *HTTPClient) fetchPage(ctx context.Context, op, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", NewUpstreamError(op, path, 0, err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", acceptLanguage)
	req.Header.Set("Referer", c.baseURL+"/")
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", NewUpstreamError(op, path, 0, fmt.Errorf("%w: %v", ErrUnreachable, err))
	}
	defer resp.Body.Close()

	c.logger.Debug("upstream request",
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return "", NewUpstreamError(op, path, resp.StatusCode,
			fmt.Errorf("%w: refresh the cf_clearance cookie from a browser", ErrBlocked))
	case resp.StatusCode != http.StatusOK:
		return "", NewUpstreamError(op, path, resp.StatusCode, ErrUpstream)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", NewUpstreamError(op, path, resp.StatusCode, err)
	}
	return string(body), nil
}
