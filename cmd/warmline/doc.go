/*
Package main is the warmline server entry point.

# Core types

  - Server     — wires the orchestrator and its backends, runs the API and
    metrics listeners, and shuts them down in order
  - Middleware — HTTP middleware signature func(http.Handler) http.Handler

# Capabilities

  - Subcommands: serve, version, health
  - Middleware chain: Recovery, RequestID, SecurityHeaders, RequestLogger,
    MetricsMiddleware, RateLimiter (per IP), optional OTelTracing
  - Metrics listener: separate port exposing /metrics (Prometheus)
  - Graceful shutdown: signal → drain HTTP → drain transfers → close backends
  - Build info: Version, BuildTime, GitCommit injected via ldflags
*/
package main
