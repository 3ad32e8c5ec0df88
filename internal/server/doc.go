// Package server provides the HTTP front end for watching clip jobs.
//
// This package is internal to clipwatch and handles all HTTP concerns:
//
//   - Page serving: the embedded progress page at "/"
//   - Submission guard: POST "/process" is validated before it reaches the
//     upstream application
//   - Session API: JSON snapshot at "/api/sessions/{id}" and Server-Sent
//     Events at "/api/sessions/{id}/events"
//   - Proxy: every other route is forwarded to the upstream application
//
// A session's poll loop runs while at least one browser is subscribed to its
// event stream. The server supports graceful shutdown via context
// cancellation, with a 5-second timeout for in-flight requests.
package server
