/*
Package handlers implements the HTTP endpoints of the warm-transfer service.

# Core types

  - TransferHandler — start, inspect, and drive warm transfers
  - TokenHandler    — mint room credentials for direct clients
  - RoomHandler     — media-server room admin passthrough
  - SummaryHandler  — preview the spoken handoff summary
  - HistoryHandler  — read archived transfer records
  - HealthHandler   — liveness/readiness probes (/health, /ready)
  - Response        — uniform JSON envelope (success + data + error + timestamp)
  - ResponseWriter  — wraps http.ResponseWriter to capture the status code

Every endpoint answers with the Response envelope; typed errors map to HTTP
status codes via their error code (4xx for caller mistakes, 5xx for upstream
and internal failures).
*/
package handlers
