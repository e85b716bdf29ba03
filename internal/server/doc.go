/*
Package server manages the HTTP(S) server lifecycle: non-blocking start,
graceful shutdown, and termination-signal handling.

Manager wraps net/http.Server with a listener, an asynchronous error
channel, and Start/StartTLS/Shutdown/WaitForShutdown lifecycle methods.
WaitForShutdown listens for SIGINT/SIGTERM and drains in-flight requests
within the configured shutdown timeout.
*/
package server
