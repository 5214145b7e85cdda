package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"nftgate/internal/config"
)

// Built is an oracle assembled from configuration
type Built struct {
	Oracle  Oracle
	Kind    string
	Breaker *Breaker

	closeFn func()
}

// Close releases resources held by the oracle
func (b *Built) Close() {
	if b.closeFn != nil {
		b.closeFn()
	}
}

// BreakerState reports the breaker state, or "disabled" when there is none
func (b *Built) BreakerState() string {
	if b.Breaker == nil {
		return "disabled"
	}
	return b.Breaker.State()
}

// FromConfig builds the oracle selected by cfg.Kind, bounded by cfg.Timeout
// and wrapped in a circuit breaker when enabled.
func FromConfig(ctx context.Context, cfg config.OracleConfig, logger *slog.Logger) (*Built, error) {
	built := &Built{Kind: cfg.Kind}

	var base Oracle
	switch cfg.Kind {
	case config.OracleKindMock:
		base = NewStatic(cfg.Mock.Answer)

	case config.OracleKindOpenSea:
		o, err := NewOpenSea(OpenSeaOptions{
			BaseURL:         cfg.OpenSea.BaseURL,
			ContractAddress: cfg.OpenSea.ContractAddress,
			TokenID:         cfg.OpenSea.TokenID,
			APIKey:          cfg.OpenSea.APIKey,
			RPS:             cfg.OpenSea.RPS,
			Burst:           cfg.OpenSea.Burst,
			Timeout:         cfg.Timeout,
			HTTPClient:      &http.Client{Timeout: cfg.Timeout},
			Logger:          logger,
		})
		if err != nil {
			return nil, err
		}
		base = o

	case config.OracleKindOnChain:
		o, err := DialOnChain(ctx, cfg.OnChain.RPCURL, OnChainOptions{
			ContractAddress: cfg.OnChain.ContractAddress,
			TokenID:         cfg.OnChain.TokenID,
			Standard:        cfg.OnChain.Standard,
			Logger:          logger,
		})
		if err != nil {
			return nil, err
		}
		base = o
		built.closeFn = o.Close

	default:
		return nil, fmt.Errorf("unsupported oracle kind: %q", cfg.Kind)
	}

	if cfg.Timeout > 0 {
		base = WithTimeout(base, cfg.Timeout)
	}

	if cfg.Breaker.Enabled {
		built.Breaker = NewBreaker(base, BreakerOptions{
			Name:                "oracle-" + cfg.Kind,
			MaxRequests:         cfg.Breaker.MaxRequests,
			Interval:            cfg.Breaker.Interval,
			Timeout:             cfg.Breaker.Timeout,
			ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
			Logger:              logger,
		})
		base = built.Breaker
	}

	built.Oracle = base
	return built, nil
}

type timeoutOracle struct {
	next    Oracle
	timeout time.Duration
}

// WithTimeout bounds every lookup made through next
func WithTimeout(next Oracle, timeout time.Duration) Oracle {
	return &timeoutOracle{next: next, timeout: timeout}
}

func (t *timeoutOracle) HasValidLicense(ctx context.Context, address string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.HasValidLicense(ctx, address)
}
