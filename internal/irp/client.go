package irp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/amrit2244/tally-einvoice-bridge/internal/credentials"
)

// ErrAuth is returned when authentication with the IRP fails: missing
// credentials, a rejected login, or a malformed success envelope.
var ErrAuth = errors.New("IRP authentication failed")

// Config holds IRP client configuration. BaseURL is fixed at startup
// by the configured mode; switching modes requires a session reset
// because tokens are mode-specific.
type Config struct {
	BaseURL         string
	AuthPath        string
	GeneratePath    string
	CancelPath      string
	GetIRNPath      string
	UserGSTIN       string
	AuthTimeout     time.Duration
	GenerateTimeout time.Duration
}

// Client performs authentication and invoice calls against the IRP
type Client struct {
	cfg     Config
	creds   credentials.Provider
	session *Session

	// Auth answers fast; generate does heavy server-side work and
	// gets the longer budget.
	authHTTP *http.Client
	genHTTP  *http.Client

	now    func() time.Time
	logger *zap.Logger
}

// NewClient creates a new IRP client
func NewClient(cfg Config, creds credentials.Provider, logger *zap.Logger) *Client {
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = 30 * time.Second
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = 60 * time.Second
	}
	return &Client{
		cfg:      cfg,
		creds:    creds,
		session:  NewSession(),
		authHTTP: &http.Client{Timeout: cfg.AuthTimeout},
		genHTTP:  &http.Client{Timeout: cfg.GenerateTimeout},
		now:      time.Now,
		logger:   logger,
	}
}

// Session exposes the client's session for reset on credential change
func (c *Client) Session() *Session {
	return c.session
}

type authRequest struct {
	Action   string `json:"action"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type authData struct {
	AuthToken   string      `json:"AuthToken"`
	Sek         string      `json:"Sek"`
	TokenExpiry json.Number `json:"TokenExpiry"`
}

type authResponse struct {
	Status       json.Number     `json:"Status"`
	Data         *authData       `json:"Data"`
	ErrorDetails json.RawMessage `json:"ErrorDetails"`
	ErrorObj     json.RawMessage `json:"error"`
}

// Authenticate logs in to the IRP and populates the session with the
// auth token, session encryption key and expiry. Safe to call
// repeatedly; callers normally do so only when the session is empty or
// expired.
func (c *Client) Authenticate(ctx context.Context) error {
	creds, err := c.creds.Get()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}

	body, err := json.Marshal(authRequest{Action: "AUTH", Username: creds.Username, Password: creds.Password})
	if err != nil {
		return fmt.Errorf("%w: encoding request: %v", ErrAuth, err)
	}

	url := c.cfg.BaseURL + c.cfg.AuthPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Gstin", c.cfg.UserGSTIN)

	c.logger.Info("Authenticating with IRP", zap.String("url", url))

	resp, err := c.authHTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrAuth, err)
	}

	var parsed authResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return fmt.Errorf("%w: invalid JSON response (status %d)", ErrAuth, resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK || parsed.Status.String() != "1" || parsed.Data == nil {
		return fmt.Errorf("%w: %s", ErrAuth, authFailureDetail(respBody))
	}
	if parsed.Data.AuthToken == "" || parsed.Data.Sek == "" {
		return fmt.Errorf("%w: token or session key missing in success response", ErrAuth)
	}

	sek, err := base64.StdEncoding.DecodeString(parsed.Data.Sek)
	if err != nil {
		return fmt.Errorf("%w: session key is not valid base64", ErrAuth)
	}
	switch len(sek) {
	case 16, 24, 32:
	default:
		return fmt.Errorf("%w: session key has unusable length %d", ErrAuth, len(sek))
	}

	minutes, err := parsed.Data.TokenExpiry.Int64()
	if err != nil || minutes <= 0 {
		minutes = 360
	}
	expiry := c.now().Add(time.Duration(minutes) * time.Minute)

	c.session.Set(parsed.Data.AuthToken, sek, expiry)
	c.logger.Info("IRP authentication successful", zap.Time("token_expiry", expiry))
	return nil
}

// authFailureDetail pulls a code/message pair out of a failed auth
// response, accepting both naming conventions the IRP uses.
func authFailureDetail(body []byte) string {
	res := newInterpreter(zap.NewNop()).Interpret(string(body))
	if res.ErrorMsg != "" {
		return res.ErrorMsg
	}
	return "authentication rejected"
}

// EnsureSession authenticates lazily when the session is absent or
// expired.
func (c *Client) EnsureSession(ctx context.Context) error {
	if c.session.Valid(c.now()) {
		return nil
	}
	return c.Authenticate(ctx)
}

// Submit posts the encrypted invoice envelope to the generate endpoint
// and returns the raw response body. It never returns an error: every
// failure path yields a parseable failure document so downstream
// stages have uniform input.
func (c *Client) Submit(ctx context.Context, envelope []byte) string {
	if err := c.EnsureSession(ctx); err != nil {
		return syntheticFailure("AUTH_ERROR", err.Error())
	}

	body, err := c.post(ctx, c.genHTTP, c.cfg.GeneratePath, envelope, nil)
	if err != nil {
		c.logger.Warn("IRP generate call failed", zap.Error(err))
		return syntheticFailure("NET_ERROR", err.Error())
	}
	return body
}

// SubmitInvoice seals the invoice JSON with the session key, posts it
// to the generate endpoint and decrypts the response payload. Like
// Submit it never returns an error.
func (c *Client) SubmitInvoice(ctx context.Context, invoiceJSON []byte) string {
	if err := c.EnsureSession(ctx); err != nil {
		return syntheticFailure("AUTH_ERROR", err.Error())
	}
	envelope, err := SealEnvelope(invoiceJSON, c.session.SEK())
	if err != nil {
		return syntheticFailure("ENC_ERROR", err.Error())
	}
	return c.DecodeResponse(c.Submit(ctx, envelope))
}

// Cancel voids an already generated IRN. Supplementary operation; the
// pipeline does not drive it, the API surface does.
func (c *Client) Cancel(ctx context.Context, irn, reason, remarks string) (string, error) {
	if err := c.EnsureSession(ctx); err != nil {
		return "", err
	}
	payload, err := json.Marshal(map[string]string{
		"Irn":    irn,
		"CnlRsn": reason,
		"CnlRem": remarks,
	})
	if err != nil {
		return "", err
	}
	return c.post(ctx, c.genHTTP, c.cfg.CancelPath, payload, map[string]string{"Irn": irn})
}

// GetIRNDetails queries the IRP for an issued IRN
func (c *Client) GetIRNDetails(ctx context.Context, irn string) (string, error) {
	if err := c.EnsureSession(ctx); err != nil {
		return "", err
	}
	return c.post(ctx, c.genHTTP, c.cfg.GetIRNPath+"/"+irn, nil, map[string]string{"Irn": irn})
}

// post performs one authenticated call. Non-2xx responses with a body
// are returned as-is: the IRP ships structured error documents with
// error status codes and the interpreter wants to see them.
func (c *Client) post(ctx context.Context, hc *http.Client, path string, payload []byte, extra map[string]string) (string, error) {
	creds, err := c.creds.Get()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}

	method := http.MethodPost
	if payload == nil {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("authtoken", c.session.Token())
	req.Header.Set("user_name", creds.Username)
	req.Header.Set("Gstin", c.cfg.UserGSTIN)
	for k, v := range extra {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if len(body) == 0 && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return "", fmt.Errorf("IRP returned status %d with empty body", resp.StatusCode)
	}
	return string(body), nil
}

// syntheticFailure builds a failure document in the IRP's own error
// shape so the interpreter handles transport failures like any other
// rejection.
func syntheticFailure(code, message string) string {
	doc, _ := json.Marshal(map[string]any{
		"Success": "false",
		"ErrorDetails": []map[string]string{
			{"ErrorCode": code, "ErrorMessage": message},
		},
	})
	return string(doc)
}

// DecodeResponse decrypts the Data field of a response envelope with
// the session key. Bodies that are not envelopes, or that fail to
// decrypt, pass through unchanged so the interpreter can classify the
// raw text instead of this layer throwing.
func (c *Client) DecodeResponse(body string) string {
	var envelope struct {
		Status json.Number     `json:"Status"`
		Data   json.RawMessage `json:"Data"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return body
	}

	var encoded string
	if err := json.Unmarshal(envelope.Data, &encoded); err != nil || encoded == "" {
		return body
	}

	plaintext, err := DecryptPayload(encoded, c.session.SEK())
	if err != nil {
		c.logger.Debug("Response Data field did not decrypt, passing body through", zap.Error(err))
		return body
	}

	// Re-wrap so the interpreter sees the standard success shape.
	rewrapped, err := json.Marshal(map[string]json.RawMessage{
		"Status": json.RawMessage(envelope.Status.String()),
		"Data":   json.RawMessage(plaintext),
	})
	if err != nil {
		return body
	}
	return string(rewrapped)
}
