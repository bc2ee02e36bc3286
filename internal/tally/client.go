// Package tally speaks the Tally Prime XML-over-HTTP gateway: exporting
// sales vouchers for a date range and importing e-invoice results back
// onto the voucher.
package tally

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrConnection is returned when Tally is unreachable or times out
var ErrConnection = errors.New("tally connection error")

// Config holds Tally client configuration
type Config struct {
	URL     string
	Timeout time.Duration
}

// Client posts XML envelopes to the Tally gateway
type Client struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new Tally client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Post sends one XML envelope and returns the raw response body
func (c *Client) Post(ctx context.Context, envelope []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(envelope))
	if err != nil {
		return nil, fmt.Errorf("failed to build tally request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml;charset=utf-8")
	req.Header.Set("Accept", "*/*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrConnection, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: tally returned status %d", ErrConnection, resp.StatusCode)
	}
	return body, nil
}

// CheckConnection probes the gateway with a cheap companies listing.
// Tally answers it without needing an open company export permission.
func (c *Client) CheckConnection(ctx context.Context) error {
	probe, err := buildProbeEnvelope()
	if err != nil {
		return err
	}

	c.logger.Debug("Probing tally gateway", zap.String("url", c.url))
	if _, err := c.Post(ctx, probe); err != nil {
		return err
	}
	return nil
}

// FetchVouchers exports the Sales voucher register for the date range
// and returns the raw XML response. Parsing is the caller's concern so
// the parser stays a pure transform.
func (c *Client) FetchVouchers(ctx context.Context, from, to time.Time) ([]byte, error) {
	envelope, err := buildExportEnvelope(from, to)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Fetching sales vouchers from tally",
		zap.String("from", TallyDate(from)),
		zap.String("to", TallyDate(to)))

	return c.Post(ctx, envelope)
}
