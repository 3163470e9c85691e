package payflexi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"

	"github.com/payflexi/reconciler/pkg/config"
)

const defaultRequestTimeout = 60 * time.Second

// GatewayError reports a transport failure, a non-2xx response, or a
// provider-flagged error body. Nothing is persisted when one is returned and
// the buyer must not be redirected anywhere.
type GatewayError struct {
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("payflexi: gateway error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("payflexi: %s", e.Message)
}

// Client talks to the PayFlexi merchant transactions API. Credentials are
// fixed at construction; there is no ambient mode lookup at call time.
type Client struct {
	apiBase   string
	secretKey string
	hc        *http.Client
}

type ClientOptions struct {
	APIBase   string
	SecretKey string
	// HTTPClient overrides the default bounded-timeout client, mainly for tests.
	HTTPClient *http.Client
}

func NewClient(opts ClientOptions) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &Client{
		apiBase:   strings.TrimRight(opts.APIBase, "/"),
		secretKey: opts.SecretKey,
		hc:        hc,
	}
}

func NewClientFromConfig(cfg *config.Config) *Client {
	return NewClient(ClientOptions{
		APIBase:   cfg.Payflexi.APIBase,
		SecretKey: cfg.Payflexi.SecretKey(),
	})
}

type CreateTransactionRequest struct {
	Name        string          `json:"name"`
	Amount      decimal.Decimal `json:"amount"`
	Email       string          `json:"email"`
	Reference   string          `json:"reference"`
	Currency    string          `json:"currency"`
	CallbackURL string          `json:"callback_url"`
	Domain      string          `json:"domain"`
	Meta        TransactionMeta `json:"meta"`
}

type TransactionMeta struct {
	Title string `json:"title"`
}

type CreateTransactionResult struct {
	CheckoutURL string
	Reference   string
}

// TransactionStatus is the provider's current view of a transaction. Amount is
// the full order amount the provider believes is owed; TxnAmount is what this
// transaction instance actually paid.
type TransactionStatus struct {
	Status           string          `json:"status"`
	Amount           decimal.Decimal `json:"amount"`
	TxnAmount        decimal.Decimal `json:"txn_amount"`
	Reference        string          `json:"reference"`
	InitialReference string          `json:"initial_reference"`
}

// Approved reports whether the provider considers the transaction settled.
func (t *TransactionStatus) Approved() bool {
	return t != nil && t.Status == "approved"
}

type transactionEnvelope struct {
	Errors      bool               `json:"errors"`
	Message     string             `json:"message"`
	CheckoutURL string             `json:"checkout_url"`
	Data        *TransactionStatus `json:"data"`
}

// CreateTransaction registers a checkout transaction with the provider and
// returns the hosted checkout URL the buyer should be redirected to.
func (c *Client) CreateTransaction(ctx context.Context, req *CreateTransactionRequest) (*CreateTransactionResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("payflexi: encode create request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/merchants/transactions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("payflexi: build create request: %w", err)
	}
	c.setHeaders(httpReq)

	env, status, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	if env.Errors || env.CheckoutURL == "" {
		return nil, &GatewayError{StatusCode: status, Message: env.Message}
	}
	return &CreateTransactionResult{CheckoutURL: env.CheckoutURL, Reference: req.Reference}, nil
}

// FetchTransaction reads the provider's current status for reference. An
// error-flagged body or an empty data payload is a verification failure, never
// an "amount zero" result.
func (c *Client) FetchTransaction(ctx context.Context, reference string) (*TransactionStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/merchants/transactions/"+reference, nil)
	if err != nil {
		return nil, fmt.Errorf("payflexi: build fetch request: %w", err)
	}
	c.setHeaders(httpReq)

	env, status, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	if env.Errors || env.Data == nil {
		return nil, &GatewayError{StatusCode: status, Message: env.Message}
	}
	if env.Data.InitialReference == "" {
		env.Data.InitialReference = env.Data.Reference
	}
	return env.Data, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

func (c *Client) do(req *http.Request) (*transactionEnvelope, int, error) {
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, 0, &GatewayError{Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &GatewayError{StatusCode: resp.StatusCode, Message: err.Error()}
	}

	var env transactionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, resp.StatusCode, &GatewayError{StatusCode: resp.StatusCode, Message: "unexpected response from gateway"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, &GatewayError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	return &env, resp.StatusCode, nil
}

var Module = fx.Options(
	fx.Provide(NewClientFromConfig),
)
