// Package http serves the licensing protocol over REST.
//
// Handlers are thin: they decode the request, call the licensing core and
// render the result with go-chi/render. Errors go through the shared
// errors.ErrorHandler and come back as RFC 7807 problem details.
//
// # Endpoints
//
//	POST /api/license/challenge   issue a single-use challenge {"id","message"}
//	POST /api/license/verify      submit a signed response, answers {"valid":bool}
//	GET  /api/health              store counters, oracle kind and breaker state
//	GET  /api/health/live         liveness probe
//
// A rejected response is not an error. Unknown, replayed, expired, unsigned
// and unlicensed responses all answer 200 {"valid":false}. A body that is not
// JSON at all answers 400, and an ownership oracle failure answers 503 with
// type /errors/license/oracle-unavailable.
package http
