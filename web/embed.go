// Package web provides the embedded progress page served by clipwatch.
//
// The page is a thin renderer: it opens the session's event stream and
// applies every element state it receives. All polling happens server side.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - progress page and submission form with inline script
package web

import "embed"

// Assets holds the page. index.html contains a {{.Title}} placeholder that
// the server substitutes before serving.
//
//go:embed assets/*
var Assets embed.FS
