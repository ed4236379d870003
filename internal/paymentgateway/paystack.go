package paymentgateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	gatewaytypes "github.com/sonlife/sonlife-giving/internal/core/datamodel/paymentgateway"
)

const SignatureHeader = "x-paystack-signature"

type ClientConfig struct {
	BaseURL     string
	SecretKey   string
	CallbackURL string
	Timeout     time.Duration
}

// Client talks to the Paystack REST API. Calls that need the secret key fail
// fast when it is not configured.
type Client struct {
	baseURL     string
	secretKey   string
	callbackURL string
	httpClient  *http.Client
	logger      *slog.Logger
}

func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		secretKey:   cfg.SecretKey,
		callbackURL: cfg.CallbackURL,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

func (c *Client) HasSecretKey() bool {
	return c.secretKey != ""
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}, out interface{}) error {
	if c.secretKey == "" {
		return fmt.Errorf("paystack secret key is not configured")
	}

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	message, err := gatewaytypes.DecodeEnvelope(respBody, out)
	if err != nil {
		c.logger.Warn("paystack request failed",
			"path", path,
			"status_code", resp.StatusCode,
			"message", message)
		return fmt.Errorf("paystack returned status %d: %w", resp.StatusCode, err)
	}
	return nil
}

// Initialize creates a transaction and returns the hosted checkout page.
func (c *Client) Initialize(ctx context.Context, req *gatewaytypes.InitializeRequest) (*gatewaytypes.InitializeData, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	if req.CallbackURL == "" {
		req.CallbackURL = c.callbackURL
	}

	var data gatewaytypes.InitializeData
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", req, &data); err != nil {
		return nil, err
	}

	c.logger.Info("paystack transaction initialized",
		"reference", req.Reference,
		"access_code", data.AccessCode)
	return &data, nil
}

func (c *Client) Verify(ctx context.Context, reference string) (*gatewaytypes.TransactionData, error) {
	var data gatewaytypes.TransactionData
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// VerifySignature checks the HMAC-SHA512 Paystack puts on webhook bodies.
func (c *Client) VerifySignature(body []byte, signature string) bool {
	if c.secretKey == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(c.secretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ToTransaction converts verify/webhook data into the adapter's transaction.
func ToTransaction(data *gatewaytypes.TransactionData) Transaction {
	tx := Transaction{
		Reference: data.Reference,
		Status:    data.Status,
		Message:   data.GatewayResponse,
	}
	if data.ID != 0 {
		tx.TransactionID = strconv.FormatInt(data.ID, 10)
	}
	return tx
}

// HostedPopup opens Paystack's hosted checkout for a transaction. The donor's
// browser is sent to the returned authorization URL; the result comes back
// through the webhook or the website's callback relay.
type HostedPopup struct {
	client *Client
}

func NewHostedPopup(client *Client) *HostedPopup {
	return &HostedPopup{client: client}
}

func (p *HostedPopup) Setup(ctx context.Context, cfg SetupConfig) (*Session, error) {
	data, err := p.client.Initialize(ctx, &gatewaytypes.InitializeRequest{
		Email:     cfg.Email,
		Amount:    cfg.Amount,
		Currency:  cfg.Currency,
		Reference: cfg.Ref,
		Metadata:  cfg.Metadata,
	})
	if err != nil {
		return nil, err
	}
	return &Session{AuthorizationURL: data.AuthorizationURL, AccessCode: data.AccessCode}, nil
}

// InlinePopup is used when no secret key is configured: the website opens
// the inline popup itself with the public key and relays the callback.
type InlinePopup struct{}

func (InlinePopup) Setup(ctx context.Context, cfg SetupConfig) (*Session, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("public key is required for the inline popup")
	}
	return &Session{}, nil
}
