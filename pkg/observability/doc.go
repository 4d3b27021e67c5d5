/*
Package observability turns engine lifecycle hooks into Prometheus metrics and
into a stream of events that transports (SSE, MCP) can fan out to clients.
*/
package observability
