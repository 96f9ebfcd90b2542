package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/quotaguard/quotaguard/internal/credentials"
	apperrors "github.com/quotaguard/quotaguard/internal/errors"
)

const (
	// DefaultBaseURL is the claude.ai web origin.
	DefaultBaseURL = "https://claude.ai"
	// DefaultTimeout bounds the single usage request.
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 1 << 20
)

// Client fetches organization usage.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	UserAgent  string
}

// NewClient returns a client whose transport impersonates the given browser
// TLS profile.
func NewClient(baseURL, profile string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport, err := NewImpersonatingTransport(profile, timeout)
	if err != nil {
		return nil, err
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Transport: transport, Timeout: timeout},
		Timeout:    timeout,
		UserAgent:  UserAgent(profile),
	}, nil
}

// Fetch issues one GET to /api/organizations/{orgId}/usage. Failures are
// returned as error envelopes and are never retried.
func (c *Client) Fetch(ctx context.Context, creds credentials.Credentials) (*Response, error) {
	if c == nil {
		return nil, errors.New("usage client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := c.endpoint(creds.OrgID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cookie", "sessionKey="+creds.SessionKey)
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	details := map[string]any{"endpoint": redactOrg(endpoint, creds.OrgID)}

	resp, err := client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, apperrors.WrapTimeout(ctx, err, "usage request timed out", details)
		}
		return nil, apperrors.WrapExternalService(ctx, err, "usage request failed", details)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	details["status_code"] = resp.StatusCode

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, apperrors.WrapUnauthorized(ctx, nil, "session key rejected", details)
	case resp.StatusCode == http.StatusForbidden:
		return nil, apperrors.WrapForbidden(ctx, nil, "usage endpoint refused the request", details)
	default:
		for k, v := range retryAfterDetails(resp) {
			details[k] = v
		}
		return nil, apperrors.WrapExternalService(ctx, nil, fmt.Sprintf("API returned status %d", resp.StatusCode), details)
	}

	var payload Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&payload); err != nil {
		return nil, apperrors.WrapDataProcessing(ctx, err, "invalid usage response", details)
	}
	return &payload, nil
}

func (c *Client) endpoint(orgID string) string {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return base + "/api/organizations/" + url.PathEscape(orgID) + "/usage"
}

// redactOrg keeps the org id out of logged error context.
func redactOrg(endpoint, orgID string) string {
	if orgID == "" {
		return endpoint
	}
	return strings.Replace(endpoint, url.PathEscape(orgID), "{orgId}", 1)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// retryAfterDetails records the raw Retry-After header and, when it parses
// as seconds or an HTTP date, the wait in seconds.
func retryAfterDetails(resp *http.Response) map[string]any {
	if resp == nil || resp.Header == nil {
		return nil
	}

	retry := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if retry == "" {
		return nil
	}

	details := map[string]any{"retry_after": retry}
	if seconds, err := strconv.Atoi(retry); err == nil && seconds >= 0 {
		details["retry_after_seconds"] = seconds
	} else if parsed, err := http.ParseTime(retry); err == nil {
		details["retry_after_seconds"] = int(time.Until(parsed).Seconds())
	}
	return details
}
