// ABOUTME: Embedded static dashboard served at the HTTP root.
// ABOUTME: A single page that follows the hub's websocket broadcasts live.

// Package assets embeds the built-in monitoring dashboard via go:embed and
// serves it with appropriate cache headers.
package assets

import (
	"embed"
	"io/fs"
	"mime"
	"net/http"
	"path"
)

//go:embed all:static
var staticFS embed.FS

// mimeFromExt returns the MIME type for a file extension, falling back to
// the standard library's database, then to "application/octet-stream".
func mimeFromExt(ext string) string {
	switch ext {
	case ".js", ".mjs":
		return "application/javascript"
	case ".css":
		return "text/css; charset=utf-8"
	case ".svg":
		return "image/svg+xml"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
		return "application/octet-stream"
	}
}

// FileServer returns an http.Handler serving the embedded dashboard.
// "/" serves index.html. Files are unhashed, so everything is no-cache;
// the page is tiny and served from memory.
func FileServer() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("assets: failed to create sub filesystem: " + err.Error())
	}
	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		if ext := path.Ext(r.URL.Path); ext != "" {
			w.Header().Set("Content-Type", mimeFromExt(ext))
		}
		fileServer.ServeHTTP(w, r)
	})
}
