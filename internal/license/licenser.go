package license

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nftgate/internal/config"
	"nftgate/internal/infrastructure"
)

// OwnershipOracle answers whether an address currently holds the licensing
// token. Implementations may do network I/O and may fail.
type OwnershipOracle interface {
	HasValidLicense(ctx context.Context, address string) (bool, error)
}

// Licenser is the public surface of the challenge-response protocol
type Licenser struct {
	store    *RequestStore
	verifier *Verifier
	oracle   OwnershipOracle
	preamble string

	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// Option configures a Licenser
type Option func(*Licenser)

// WithPreamble replaces the human-readable text placed before each nonce
func WithPreamble(preamble string) Option {
	return func(l *Licenser) { l.preamble = preamble }
}

// WithStore supplies a preconfigured request store
func WithStore(store *RequestStore) Option {
	return func(l *Licenser) { l.store = store }
}

// WithLogger sets the licenser logger
func WithLogger(logger *slog.Logger) Option {
	return func(l *Licenser) { l.logger = logger }
}

// WithMetrics enables metric recording
func WithMetrics(metrics *Metrics) Option {
	return func(l *Licenser) { l.metrics = metrics }
}

// NewLicenser creates a Licenser that owns a fresh store and verifier and
// consults oracle for ownership.
func NewLicenser(oracle OwnershipOracle, opts ...Option) (*Licenser, error) {
	if oracle == nil {
		return nil, ErrNilOracle
	}

	l := &Licenser{
		verifier: NewVerifier(),
		oracle:   oracle,
		preamble: config.DefaultPreamble,
		tracer:   otel.Tracer(TracerName),
	}

	for _, opt := range opts {
		opt(l)
	}

	l.logger = infrastructure.WithComponent(l.logger, "license.licenser")
	if l.store == nil {
		l.store = NewRequestStore(WithStoreLogger(l.logger))
	}

	return l, nil
}

// Store exposes the underlying request store for health reporting and gauges
func (l *Licenser) Store() *RequestStore {
	return l.store
}

// Close stops background store maintenance
func (l *Licenser) Close() {
	l.store.Stop()
}

// IssueChallenge creates a new single-use licensing request
func (l *Licenser) IssueChallenge(ctx context.Context) LicensingRequest {
	request := l.store.CreateRequest(l.preamble)
	l.metrics.recordIssued(ctx)

	l.logger.DebugContext(ctx, "licensing challenge issued",
		slog.String("request_id", request.ID),
	)

	return request
}

// ValidateResponse decides whether response proves a licensed wallet.
//
// Malformed responses, unknown or already consumed request ids and signature
// mismatches all yield (false, nil). The request is consumed as soon as it is
// found, so a replayed response always fails. The oracle's own answer is
// returned as is; if the oracle fails the error is returned wrapped in
// *OracleError rather than being reported as "not licensed".
func (l *Licenser) ValidateResponse(ctx context.Context, response *LicensingResponse) (bool, error) {
	ctx, span := l.tracer.Start(ctx, "license.validate_response")
	defer span.End()

	if !l.store.ValidateResponseShape(response) {
		return l.reject(ctx, span, "", ReasonMalformedResponse), nil
	}

	span.SetAttributes(attribute.String("license.request_id", response.RequestID))

	request, err := l.store.ExtractByID(response.RequestID)
	if err != nil {
		reason := ReasonUnknownRequest
		if errors.Is(err, ErrRequestExpired) {
			reason = ReasonExpiredRequest
		}
		return l.reject(ctx, span, response.RequestID, reason), nil
	}

	if !l.verifier.Verify(request.Message, response.AnswerMessage, response.PublicAddress) {
		return l.reject(ctx, span, response.RequestID, ReasonSignatureMismatch), nil
	}

	start := time.Now()
	licensed, err := l.oracle.HasValidLicense(ctx, response.PublicAddress)
	elapsed := time.Since(start)
	l.metrics.recordOracle(ctx, elapsed, err == nil)

	if err != nil {
		oracleErr := &OracleError{Address: response.PublicAddress, Err: err}
		span.RecordError(oracleErr)
		span.SetStatus(codes.Error, ReasonOracleFailure)
		l.metrics.recordValidation(ctx, "error", ReasonOracleFailure)

		l.logger.ErrorContext(ctx, "ownership oracle lookup failed",
			slog.String("request_id", response.RequestID),
			slog.String("address", response.PublicAddress),
			slog.Duration("duration", elapsed),
			slog.String("error", err.Error()),
		)
		return false, oracleErr
	}

	if !licensed {
		return l.reject(ctx, span, response.RequestID, ReasonNotLicensed), nil
	}

	span.SetAttributes(attribute.Bool("license.valid", true))
	l.metrics.recordValidation(ctx, "valid", ReasonLicensed)

	l.logger.InfoContext(ctx, "license validated",
		slog.String("request_id", response.RequestID),
		slog.String("address", response.PublicAddress),
		slog.Duration("oracle_duration", elapsed),
	)

	return true, nil
}

func (l *Licenser) reject(ctx context.Context, span trace.Span, requestID, reason string) bool {
	span.SetAttributes(
		attribute.Bool("license.valid", false),
		attribute.String("license.reason", reason),
	)
	l.metrics.recordValidation(ctx, "rejected", reason)

	l.logger.InfoContext(ctx, "licensing response rejected",
		slog.String("request_id", requestID),
		slog.String("reason", reason),
	)

	return false
}
