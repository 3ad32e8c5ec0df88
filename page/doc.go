// Package page is an in-memory model of the clipwatch progress page.
//
// A [Document] holds a fixed set of [Element] values addressed by the page's
// element ids ([StatusID], [ProgressID], [ProcessingContainerID],
// [ResultContainerID]). Elements expose the small mutation surface the poller
// needs (text, inline style, attributes, class list) and every effective
// mutation is published to subscribers, which is how the page server streams
// updates to browsers.
//
// Documents are useful on their own for headless rendering and in tests:
//
//	doc := page.NewProgressPage()
//	p, _ := clipwatch.New("http://localhost:5000", clipwatch.WithView(clipwatch.DocumentView(doc)))
package page
