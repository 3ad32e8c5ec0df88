// Package statusclient fetches job status documents for clipwatch.
//
// The upstream application exposes GET /status/{sessionId} returning
// {"status": ..., "message": ..., "progress": ...}. [Client] performs that
// request with a pooled transport, per-request timeouts, a 1MB body cap and
// an optional shared rate limiter, and decodes the body into [Payload].
//
// Users of the clipwatch library should not need this package directly.
package statusclient
