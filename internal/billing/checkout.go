package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"server/internal/domain"
)

// CheckoutSession is the subset of the provider response the client needs:
// the session id (returned to us on the success redirect) and the hosted
// payment page URL.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CheckoutOptions configures the checkout client.
type CheckoutOptions struct {
	SecretKey  string
	BaseURL    string
	PriceID    string
	SuccessURL string
	CancelURL  string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// CheckoutClient creates hosted checkout sessions against the Stripe REST
// API. A returned session id means "payment likely succeeded" once the user
// comes back; it is never itself the entitlement.
type CheckoutClient struct {
	secretKey  string
	baseURL    string
	priceID    string
	successURL string
	cancelURL  string
	httpClient *http.Client
}

func NewCheckoutClient(opts CheckoutOptions) *CheckoutClient {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}
	return &CheckoutClient{
		secretKey:  opts.SecretKey,
		baseURL:    baseURL,
		priceID:    opts.PriceID,
		successURL: opts.SuccessURL,
		cancelURL:  opts.CancelURL,
		httpClient: httpClient,
	}
}

// Configured reports whether the client holds credentials.
func (c *CheckoutClient) Configured() bool {
	return c != nil && c.secretKey != "" && c.priceID != ""
}

type checkoutError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateSession opens a subscription checkout for the given user. The user
// id rides along as client_reference_id so the confirmation can be audited
// against the right account.
func (c *CheckoutClient) CreateSession(ctx context.Context, userID string) (*CheckoutSession, error) {
	if !c.Configured() {
		return nil, domain.ErrCheckoutUnavailable
	}
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("billing: user id is required")
	}

	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("line_items[0][price]", c.priceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", c.successURL)
	form.Set("cancel_url", c.cancelURL)
	form.Set("client_reference_id", userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("billing: build checkout request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("billing: checkout request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("billing: read checkout response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr checkoutError
		if unmarshalErr := json.Unmarshal(body, &apiErr); unmarshalErr == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("billing: checkout rejected (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("billing: checkout rejected with status %d", resp.StatusCode)
	}

	var session CheckoutSession
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("billing: decode checkout response: %w", err)
	}
	if session.ID == "" || session.URL == "" {
		return nil, errors.New("billing: checkout response missing id or url")
	}
	return &session, nil
}
