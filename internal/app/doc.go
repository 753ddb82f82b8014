// Package app provides application initialization and lifecycle management
// for the opsunify server. It wires configuration loading, logging and
// OpenTelemetry setup, service construction, the HTTP router and graceful
// shutdown into one place.
//
// # Initialization Flow
//
// The typical initialization sequence:
//
//	1. Load configuration from defaults, optional YAML file and environment
//	2. Initialize the shared slog logger and OpenTelemetry providers
//	3. Start the WebSocket hub and construct the unify, quote and health services
//	4. Set up HTTP handlers and the middleware chain
//	5. Configure the HTTP server
//
// # Usage
//
// The main entry point is typically:
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    os.Exit(1)
//	}
//	if err := application.Run(); err != nil {
//	    os.Exit(1)
//	}
//
// # Graceful Shutdown
//
// Run handles SIGINT and SIGTERM. Shutdown stops accepting requests, cancels
// running pipeline runs and waits for them to drain, closes WebSocket
// connections and flushes OpenTelemetry providers.
//
// # Error Handling
//
// All initialization errors are returned to the caller. The app package does
// not call os.Exit() directly, allowing the main function to control the
// exit process.
package app
