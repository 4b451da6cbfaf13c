// Package gateway talks to the external payment processor: it opens
// checkouts and authenticates the processor's success notifications.
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const SignatureHeader = "X-Signature"

var ErrBadSignature = errors.New("invalid webhook signature")

type CheckoutRequest struct {
	Amount      decimal.Decimal   `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	SuccessURL  string            `json:"success_url"`
	CancelURL   string            `json:"cancel_url"`
	Metadata    map[string]string `json:"metadata"`
}

type Checkout struct {
	Reference   string `json:"reference"`
	RedirectURL string `json:"redirect_url"`
}

// Notification is a success callback. The processor may deliver the same
// one more than once.
type Notification struct {
	Reference string            `json:"reference"`
	Amount    decimal.Decimal   `json:"amount"`
	Status    string            `json:"status"`
	Metadata  map[string]string `json:"metadata"`
}

func (n Notification) Succeeded() bool {
	return n.Status == "" || n.Status == "succeeded" || n.Status == "paid"
}

type Gateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
}

type Client struct {
	http *resty.Client
}

func NewClient(baseURL, apiKey string) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15*time.Second).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(apiKey)
	return &Client{http: client}
}

func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	var out Checkout
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/checkouts")
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout: %w", err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
		return nil, fmt.Errorf("failed to create checkout: gateway returned %d", resp.StatusCode())
	}
	if out.Reference == "" || out.RedirectURL == "" {
		return nil, errors.New("failed to create checkout: incomplete gateway response")
	}
	return &out, nil
}

func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func VerifySignature(secret string, body []byte, signature string) error {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return ErrBadSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), expected) {
		return ErrBadSignature
	}
	return nil
}
