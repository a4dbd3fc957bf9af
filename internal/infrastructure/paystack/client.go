package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	dompay "github.com/Zhima-Mochi/kitchenledger/internal/domain/payment"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const DefaultBaseURL = "https://api.paystack.co"

// minorUnits converts naira to kobo (and any two-decimal currency alike).
var minorUnits = decimal.NewFromInt(100)

// Client talks to the Paystack transaction API.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

var _ dompay.Gateway = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func NewClient(secretKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		secret:  secretKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeRequest struct {
	Email       string `json:"email"`
	Amount      string `json:"amount"`
	Reference   string `json:"reference"`
	Currency    string `json:"currency,omitempty"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	Status    string          `json:"status"`
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
}

// Initialize opens a checkout for the charge. Amounts are sent in minor units.
func (c *Client) Initialize(ctx context.Context, charge dompay.Charge) (dompay.Initiation, error) {
	body := initializeRequest{
		Email:       charge.Email,
		Amount:      charge.Amount.Mul(minorUnits).Round(0).String(),
		Reference:   charge.Reference,
		Currency:    charge.Currency,
		CallbackURL: charge.CallbackURL,
	}
	var data initializeData
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", body, &data); err != nil {
		return dompay.Initiation{}, err
	}
	if data.AuthorizationURL == "" {
		return dompay.Initiation{}, fmt.Errorf("paystack: initialize %s: empty authorization url", charge.Reference)
	}
	ref := data.Reference
	if ref == "" {
		ref = charge.Reference
	}
	return dompay.Initiation{
		Reference:        ref,
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
	}, nil
}

// Verify reports whether the reference was paid.
func (c *Client) Verify(ctx context.Context, reference string) (dompay.Verification, error) {
	var data verifyData
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &data); err != nil {
		return dompay.Verification{}, err
	}
	return dompay.Verification{
		Reference:     reference,
		Successful:    data.Status == "success",
		GatewayStatus: data.Status,
		Amount:        data.Amount.Div(minorUnits),
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("paystack: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("paystack: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("paystack: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("paystack: read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("paystack: %s %s: status %d: undecodable body", method, path, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest || !env.Status {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("paystack: decode data: %w", err)
		}
	}
	return nil
}

// APIError is a non-success answer from Paystack.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paystack: status %d: %s", e.StatusCode, e.Message)
}
