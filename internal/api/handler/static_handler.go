package handler

import (
	"net/http"
	"strings"
)

// NewStaticHandler serves the demo front end from dir. "/" maps to index.html.
// The service worker is served uncached so browsers pick up new versions.
func NewStaticHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "service-worker.js") {
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Service-Worker-Allowed", "/")
		}
		files.ServeHTTP(w, r)
	})
}
