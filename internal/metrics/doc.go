/*
Package metrics provides Prometheus-based metrics collection for the
transfer service.

The Collector registers its vectors through promauto so no manual registry
management is needed; tests use NewCollectorWith and a private registry to
avoid duplicate registration. Metrics cover three domains:

  - Transfer protocol: started/active/finished counts, terminal-state
    durations, relocation failures by error code, and degraded speech
    deliveries.
  - Credentials: minted credentials by role.
  - HTTP: request counts and latencies, status codes bucketed into
    2xx/3xx/4xx/5xx.
*/
package metrics
