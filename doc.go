// Package clipwatch watches clip-generation jobs and mirrors their progress
// onto a page.
//
// A clip job is submitted to the upstream application with a YouTube URL and
// identified by a session id. The application reports progress at
// GET /status/{sessionId} as {"status", "message", "progress"}. clipwatch
// polls that resource, writes the message and percentage to the page's
// progress elements, and swaps the processing panel for the result panel once
// the job reports "completed".
//
// # Quick Start
//
//	doc := page.NewProgressPage()
//	p, _ := clipwatch.New("http://localhost:5000",
//	    clipwatch.WithView(clipwatch.DocumentView(doc)),
//	)
//
//	h, _ := p.Poll(ctx, sessionID)
//	defer h.Stop() // cancels the pending poll when the page goes away
//
//	if err := h.Wait(ctx); err != nil {
//	    slog.Error("watch halted", "error", err)
//	}
//
// # Poll Loop
//
// Each session gets one loop. A poll is scheduled only after the previous
// response has been applied, 2 seconds later by default ([WithInterval]), so
// two requests for the same session are never in flight together. The loop
// ends when:
//
//   - the payload status is "completed" ([StateCompleted], terminal)
//   - a request fails (network, non-2xx or undecodable body); the error is
//     logged, the page is left as it was and nothing is retried
//   - the [Handle] is stopped or its context is cancelled
//
// # Views
//
// Page elements are injected as a [View] of small interfaces rather than
// looked up globally. [DocumentView] binds the standard elements of a
// [page.Document]; any other type with SetText, SetStyle, SetAttribute,
// AddClass and RemoveClass methods works too.
//
// # Architecture
//
//   - formguard: URL validation and the form submission guard
//   - page: in-memory page model with change subscriptions
//   - internal/statusclient: HTTP client for the status resource
//   - internal/loop: sequential, cancellable timer loop
//   - internal/server: page server (SSE, guarded form proxy, metrics)
//   - internal/metrics: Prometheus collectors
//   - config: YAML configuration for the clipwatch binary
package clipwatch
