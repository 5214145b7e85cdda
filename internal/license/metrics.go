package license

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	TracerName = "nftgate/license"
	MeterName  = "nftgate/license"
)

// Metrics holds the licensing protocol instruments. A nil *Metrics records nothing.
type Metrics struct {
	ChallengesIssued metric.Int64Counter
	Validations      metric.Int64Counter
	OracleDuration   metric.Float64Histogram
}

// NewMetrics creates the licensing instruments on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	issued, err := meter.Int64Counter(
		"license_challenges_issued_total",
		metric.WithDescription("Total number of licensing challenges issued"),
	)
	if err != nil {
		return nil, err
	}

	validations, err := meter.Int64Counter(
		"license_validations_total",
		metric.WithDescription("Licensing responses validated, by outcome and reason"),
	)
	if err != nil {
		return nil, err
	}

	oracleDuration, err := meter.Float64Histogram(
		"license_oracle_duration_seconds",
		metric.WithDescription("Ownership oracle lookup duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ChallengesIssued: issued,
		Validations:      validations,
		OracleDuration:   oracleDuration,
	}, nil
}

// ObserveStore registers gauges reporting the store's outstanding and expired counts
func ObserveStore(meter metric.Meter, store *RequestStore) (metric.Registration, error) {
	outstanding, err := meter.Int64ObservableGauge(
		"license_requests_outstanding",
		metric.WithDescription("Licensing requests issued but not yet consumed"),
	)
	if err != nil {
		return nil, err
	}

	expired, err := meter.Int64ObservableCounter(
		"license_requests_expired_total",
		metric.WithDescription("Licensing requests dropped after their TTL"),
	)
	if err != nil {
		return nil, err
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := store.Stats()
		o.ObserveInt64(outstanding, int64(stats.Outstanding))
		o.ObserveInt64(expired, int64(stats.Expired))
		return nil
	}, outstanding, expired)
}

func (m *Metrics) recordIssued(ctx context.Context) {
	if m == nil {
		return
	}
	m.ChallengesIssued.Add(ctx, 1)
}

func (m *Metrics) recordValidation(ctx context.Context, outcome, reason string) {
	if m == nil {
		return
	}
	m.Validations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("reason", reason),
	))
}

func (m *Metrics) recordOracle(ctx context.Context, elapsed time.Duration, success bool) {
	if m == nil {
		return
	}
	m.OracleDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.Bool("success", success),
	))
}
