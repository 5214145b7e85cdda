// Package app wires the licensing service together and manages its lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration from defaults, an optional YAML file and NFTGATE_* variables
//	2. Initialize logging and OpenTelemetry (Prometheus metrics, optional stdout traces)
//	3. Build the ownership oracle selected by configuration, with timeout and breaker
//	4. Create the request store and the licenser on top of it
//	5. Mount REST routes under /api, the socket under /ws and metrics at /metrics
//
// # Usage
//
//	application, err := app.NewApplication(ctx)
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
//
// # Graceful Shutdown
//
// Run returns after SIGINT, SIGTERM, context cancellation or a server failure.
// Stop drains in-flight requests, closes live sockets, stops the expiry
// sweeper, releases the oracle and flushes telemetry. Errors are returned to
// the caller; the package never exits the process itself.
package app
