// Package app wires the analysis server together and manages its lifecycle.
//
// # Initialization Flow
//
//  1. Configuration (config.Load) and the slog logger
//  2. OpenTelemetry providers and the pipeline/HTTP instruments
//  3. Database (optional) for the audit trail and chart preferences
//  4. SOP registry, narrator and the analysis pipeline
//  5. Services, websocket hub and HTTP handlers
//  6. Router, middleware chain and the HTTP server
//
// Run blocks until the context is cancelled or SIGINT/SIGTERM arrives, then
// shuts everything down in reverse order.
//
// BuildPipeline and its helpers are also used by the command-line tools,
// which run analyses without starting a server.
package app
