package license

import "time"

// LicensingRequest is a single-use challenge handed to the caller. The caller
// proves wallet control by personal-signing Message.
type LicensingRequest struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// LicensingResponse is the caller's answer to a LicensingRequest.
// PublicAddress and AnswerMessage may be absent on the wire; such a response
// is rejected exactly like one carrying a bad signature.
type LicensingResponse struct {
	RequestID     string `json:"requestId" validate:"required"`
	PublicAddress string `json:"publicAddress,omitempty" validate:"required"`
	AnswerMessage string `json:"answerMessage,omitempty" validate:"required"`
}

// pendingRequest is a request held by the store together with its lifetime
type pendingRequest struct {
	request   LicensingRequest
	issuedAt  time.Time
	expiresAt time.Time // zero when the store has no TTL
}

func (p pendingRequest) expired(now time.Time) bool {
	return !p.expiresAt.IsZero() && !now.Before(p.expiresAt)
}

// StoreStats is a point-in-time snapshot of the request store
type StoreStats struct {
	Outstanding int    `json:"outstanding"`
	Issued      uint64 `json:"issued"`
	Consumed    uint64 `json:"consumed"`
	Expired     uint64 `json:"expired"`
}

// Rejection reasons. They appear in logs and metrics only; callers always
// receive a plain false.
const (
	ReasonMalformedResponse = "malformed_response"
	ReasonUnknownRequest    = "unknown_request"
	ReasonExpiredRequest    = "expired_request"
	ReasonSignatureMismatch = "signature_mismatch"
	ReasonNotLicensed       = "not_licensed"
	ReasonLicensed          = "licensed"
	ReasonOracleFailure     = "oracle_failure"
)
