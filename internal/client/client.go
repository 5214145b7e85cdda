package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	apierrors "nftgate/internal/errors"
	"nftgate/internal/infrastructure"
	"nftgate/internal/license"
)

// ErrOracleUnavailable is returned when the server could not determine ownership
var ErrOracleUnavailable = errors.New("ownership oracle unavailable")

// ProblemError is a non-2xx answer carrying RFC 7807 problem details
type ProblemError struct {
	Problem apierrors.ProblemDetails
}

func (e *ProblemError) Error() string {
	if e.Problem.Detail != "" {
		return fmt.Sprintf("%d %s: %s", e.Problem.Status, e.Problem.Title, e.Problem.Detail)
	}
	return fmt.Sprintf("%d %s", e.Problem.Status, e.Problem.Title)
}

// Is lets callers match oracle outages with errors.Is
func (e *ProblemError) Is(target error) bool {
	return target == ErrOracleUnavailable && e.Problem.Type == apierrors.TypeOracleUnavailable
}

// Client talks to the licensing REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the client logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for the server at baseURL, e.g. http://localhost:8080
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = infrastructure.WithComponent(c.logger, "license_client")
	return c
}

// Challenge asks the server for a fresh licensing request
func (c *Client) Challenge(ctx context.Context) (license.LicensingRequest, error) {
	var req license.LicensingRequest
	err := c.post(ctx, "/api/license/challenge", nil, &req)
	return req, err
}

// Verify submits a signed response and reports the server's verdict
func (c *Client) Verify(ctx context.Context, response license.LicensingResponse) (bool, error) {
	var result struct {
		Valid bool `json:"valid"`
	}
	if err := c.post(ctx, "/api/license/verify", response, &result); err != nil {
		return false, err
	}
	return result.Valid, nil
}

// Authenticate runs the whole handshake for signer
func (c *Client) Authenticate(ctx context.Context, signer *Signer) (bool, error) {
	challenge, err := c.Challenge(ctx)
	if err != nil {
		return false, fmt.Errorf("request challenge: %w", err)
	}

	signature, err := signer.SignPersonal(challenge.Message)
	if err != nil {
		return false, err
	}

	valid, err := c.Verify(ctx, license.LicensingResponse{
		RequestID:     challenge.ID,
		PublicAddress: signer.Address(),
		AnswerMessage: signature,
	})
	if err != nil {
		return false, fmt.Errorf("verify response: %w", err)
	}

	c.logger.InfoContext(ctx, "license handshake finished",
		slog.String("request_id", challenge.ID),
		slog.String("address", signer.Address()),
		slog.Bool("valid", valid))
	return valid, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	var payload io.Reader = http.NoBody
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		perr := &ProblemError{Problem: apierrors.ProblemDetails{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&perr.Problem); err != nil {
			c.logger.DebugContext(ctx, "problem body not decodable",
				slog.String("path", path),
				slog.String("content_type", resp.Header.Get("Content-Type")),
				slog.String("error", err.Error()))
		}
		c.logger.WarnContext(ctx, "license server returned a problem",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.String("type", perr.Problem.Type),
			slog.String("request_id", resp.Header.Get("X-Request-ID")))
		return perr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
