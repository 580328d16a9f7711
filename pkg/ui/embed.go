// Package ui provides the embedded landing page.
package ui

import (
	_ "embed"
)

// IndexHTML is the landing page. It opens an extraction session over
// WebSocket and links each returned format to the download endpoint.
// An API key in the page's ?key= query is forwarded to both.
//
//go:embed index.html
var IndexHTML []byte
