package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"nftgate/internal/config"
	"nftgate/internal/infrastructure"
)

const maxOpenSeaBody = 1 << 20

// OpenSeaOptions configures an OpenSea oracle
type OpenSeaOptions struct {
	BaseURL         string
	ContractAddress string
	TokenID         string
	APIKey          string

	// RPS paces outbound calls; zero disables pacing
	RPS   float64
	Burst int

	// Timeout bounds a shared lookup, which outlives any single caller
	Timeout time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// OpenSea asks the OpenSea asset API whether an account holds a token
type OpenSea struct {
	baseURL  string
	contract string
	tokenID  string
	apiKey   string

	client  *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	group   singleflight.Group
	logger  *slog.Logger
}

// openSeaAsset is the subset of the asset response we read
type openSeaAsset struct {
	Success   *bool `json:"success"`
	Ownership *struct {
		Quantity json.Number `json:"quantity"`
	} `json:"ownership"`
}

// NewOpenSea creates an OpenSea oracle
func NewOpenSea(opts OpenSeaOptions) (*OpenSea, error) {
	if opts.ContractAddress == "" || opts.TokenID == "" {
		return nil, fmt.Errorf("opensea oracle requires contract address and token id")
	}

	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = config.DefaultOpenSeaBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid opensea base url: %w", err)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: config.DefaultOracleTimeout}
	}

	o := &OpenSea{
		baseURL:  base,
		contract: opts.ContractAddress,
		tokenID:  opts.TokenID,
		apiKey:   opts.APIKey,
		client:   client,
		timeout:  opts.Timeout,
		logger:   infrastructure.WithComponent(opts.Logger, "oracle.opensea"),
	}

	if o.timeout <= 0 {
		o.timeout = config.DefaultOracleTimeout
	}

	if opts.RPS > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}

	return o, nil
}

// HasValidLicense reports whether address owns at least one unit of the
// configured token. Concurrent lookups for the same address share one request.
func (o *OpenSea) HasValidLicense(ctx context.Context, address string) (bool, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return false, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	// The shared lookup is detached from whichever caller started it, so one
	// caller going away does not fail the others waiting on the same address.
	results := o.group.DoChan(strings.ToLower(address), func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
		defer cancel()
		return o.lookup(lookupCtx, address)
	})

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return false, res.Err
		}
		if res.Shared {
			o.logger.DebugContext(ctx, "ownership lookup shared with concurrent caller",
				slog.String("address", address),
			)
		}
		return res.Val.(bool), nil
	}
}

func (o *OpenSea) lookup(ctx context.Context, address string) (bool, error) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return false, fmt.Errorf("waiting for opensea rate limit: %w", err)
		}
	}

	endpoint := fmt.Sprintf("%s/asset/%s/%s/?account_address=%s",
		o.baseURL,
		url.PathEscape(o.contract),
		url.PathEscape(o.tokenID),
		url.QueryEscape(address),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("building opensea request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if o.apiKey != "" {
		req.Header.Set("X-API-KEY", o.apiKey)
	}

	start := time.Now()
	resp, err := o.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("opensea request failed: %w", err)
	}
	defer resp.Body.Close()

	o.logger.DebugContext(ctx, "opensea asset lookup",
		slog.String("address", address),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return false, ErrOracleThrottled
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return false, fmt.Errorf("opensea returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxOpenSeaBody))
	if err != nil {
		return false, fmt.Errorf("reading opensea response: %w", err)
	}

	var asset openSeaAsset
	if err := json.Unmarshal(body, &asset); err != nil {
		return false, fmt.Errorf("decoding opensea response (status %d): %w", resp.StatusCode, err)
	}

	return asset.licensed()
}

// licensed applies the ownership rules: an explicit success=false means no
// license, otherwise a positive ownership quantity does.
func (a openSeaAsset) licensed() (bool, error) {
	if a.Success != nil && !*a.Success {
		return false, nil
	}
	if a.Ownership == nil || a.Ownership.Quantity == "" {
		return false, nil
	}

	quantity, err := strconv.ParseFloat(a.Ownership.Quantity.String(), 64)
	if err != nil {
		return false, fmt.Errorf("invalid ownership quantity %q: %w", a.Ownership.Quantity, err)
	}
	return quantity > 0, nil
}
