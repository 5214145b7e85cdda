// Package license implements the NFT licensing challenge-response protocol.
//
// A client proves it controls a wallet that holds the licensing token by
// signing a one-time message issued by the server.
//
// # Components
//
//	- RequestStore: issues requests and hands each one out at most once
//	- Verifier: recovers the signer of an Ethereum personal_sign signature
//	- Licenser: orchestrates challenge issuance and response validation
//	- OwnershipOracle: injected capability answering token ownership
//
// # Protocol Flow
//
//	1. IssueChallenge stores a request {id, message} and returns it
//	2. The client signs message with personal_sign
//	3. The client sends {requestId, publicAddress, answerMessage}
//	4. ValidateResponse checks shape, consumes the request, verifies the
//	   signature and finally asks the oracle about publicAddress
//
// Every issued message is the configured preamble followed by a newline and
// a random nonce, so no two messages are alike. A request is removed the
// moment it is looked up, whatever the outcome, which makes signatures
// non-replayable.
//
// # Failure Semantics
//
// Protocol failures (malformed response, unknown or expired id, wrong signer,
// not licensed) are reported as (false, nil). An oracle failure is reported
// as a non-nil error matching ErrOracleFailure, so callers can tell "not
// licensed" apart from "could not decide".
//
// # Expiry
//
// Requests older than the store TTL are treated as unknown. StartSweeper
// removes abandoned requests in the background; a zero TTL disables expiry.
package license
