// Package provider contains the channel adapter implementations: a
// Twilio-style messaging REST API for SMS and WhatsApp, SMTP for email,
// and a no-op adapter for unconfigured channels. Adapters perform exactly
// one vendor call per Send and classify every failure at the boundary;
// retrying is the dispatcher's job.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"notify-dispatch/internal/config"
	"notify-dispatch/internal/usecase/dispatch"
)

const (
	// maxResponseBytes bounds how much of a vendor response is read for
	// message ids and error details.
	maxResponseBytes = 64 << 10

	// defaultRetryAfter is the backoff hint used when a 429 response
	// carries no usable Retry-After header.
	defaultRetryAfter = 5 * time.Second
)

// messagingClient is the shared REST client for Twilio-style messaging
// vendors; SMS and WhatsApp speak the same API and differ only in
// addressing.
type messagingClient struct {
	httpClient *http.Client
	baseURL    string
	accountSID string
	authToken  string
}

// newMessagingClient resolves credentials from the environment variables
// named in cfg. Both must be present; a messaging channel without
// credentials should be wired to the noop adapter instead.
func newMessagingClient(cfg config.ProviderConfig, timeout time.Duration) (*messagingClient, error) {
	sid := os.Getenv(cfg.AccountSIDEnv)
	token := os.Getenv(cfg.AuthTokenEnv)
	if sid == "" || token == "" {
		return nil, fmt.Errorf("credentials not set (%s, %s)", cfg.AccountSIDEnv, cfg.AuthTokenEnv)
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("provider base URL not set")
	}
	return &messagingClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		accountSID: sid,
		authToken:  token,
	}, nil
}

// messageResponse is the vendor acknowledgment for an accepted message.
type messageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// vendorErrorResponse mirrors the vendor error body.
type vendorErrorResponse struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
}

// createMessage performs one message-create call and returns the vendor
// message sid. Every failure comes back classified.
func (c *messagingClient) createMessage(ctx context.Context, from, to, body string) (string, error) {
	form := url.Values{}
	form.Set("From", from)
	form.Set("To", to)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", dispatch.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Connection failures and timeouts: the outcome is unknown but
		// worth retrying.
		return "", dispatch.Transient(fmt.Errorf("execute request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var msg messageResponse
		if err := json.Unmarshal(respBody, &msg); err != nil {
			return "", dispatch.Transient(fmt.Errorf("decode response: %w", err))
		}
		if msg.SID == "" {
			return "", dispatch.Transient(errors.New("vendor response carries no message sid"))
		}
		return msg.SID, nil
	}

	return "", classifyStatus(resp, respBody)
}

// classifyStatus maps a non-2xx vendor response onto the error taxonomy:
// 429, 408, and 5xx are transient, the remaining 4xx are permanent.
func classifyStatus(resp *http.Response, body []byte) error {
	detail := vendorDetail(resp.StatusCode, body)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		hint := retryAfterHint(resp)
		return dispatch.TransientRetryAfter(fmt.Errorf("%s (retry after %s)", detail, hint), hint)
	case resp.StatusCode == http.StatusRequestTimeout:
		return dispatch.Transient(errors.New(detail))
	case resp.StatusCode >= 500:
		return dispatch.Transient(errors.New(detail))
	default:
		return dispatch.Permanent(errors.New(detail))
	}
}

// vendorDetail extracts the vendor's own error description when the body
// parses, otherwise falls back to the raw (truncated) body.
func vendorDetail(status int, body []byte) string {
	var ve vendorErrorResponse
	if err := json.Unmarshal(body, &ve); err == nil && ve.Message != "" {
		if ve.Code != 0 {
			return fmt.Sprintf("vendor status %d (code %d): %s", status, ve.Code, ve.Message)
		}
		return fmt.Sprintf("vendor status %d: %s", status, ve.Message)
	}
	return fmt.Sprintf("vendor status %d: %s", status, truncate(string(body), 200))
}

// retryAfterHint reads the Retry-After header of a 429 response.
func retryAfterHint(resp *http.Response) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultRetryAfter
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
