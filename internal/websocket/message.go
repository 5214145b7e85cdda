package websocket

import "encoding/json"

// Message types exchanged over the socket
const (
	TypeRequestVerification = "request_verification"
	TypeLicensingRequest    = "licensing_request"
	TypeLicensingResponse   = "licensing_response"
	TypeLicensingCompleted  = "licensing_completed"
	TypeHeartbeat           = "heartbeat"
	TypeError               = "error"
)

// Error codes carried by TypeError messages
const (
	CodeInvalidMessage    = "invalid_message"
	CodeUnknownType       = "unknown_type"
	CodeOracleUnavailable = "oracle_unavailable"
)

// Envelope is an inbound message. Data is decoded once the type is known.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Message is an outbound message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ErrorData is the payload of a TypeError message
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
