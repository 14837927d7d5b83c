package middleware

import (
	"net/http"
	"os"
	"path/filepath"
)

const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 200"><rect width="200" height="200" fill="#f0f0f0"/><path d="M60 85h80v70a8 8 0 0 1-8 8H68a8 8 0 0 1-8-8z" fill="#ccc"/><rect x="54" y="65" width="92" height="20" rx="4" fill="#bbb"/><path d="M100 65v98M54 100h92" stroke="#999" stroke-width="6"/><text x="100" y="185" text-anchor="middle" font-family="Arial" font-size="14" fill="#666">GIFT</text></svg>`

// StaticFileServer serves wishlist item images with long-lived cache
// headers, falling back to a placeholder for missing files.
func StaticFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean(r.URL.Path))

		if _, err := os.Stat(path); err == nil {
			w.Header().Set("Cache-Control", "public, max-age=2592000")
			http.ServeFile(w, r, path)
			return
		}

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(placeholderSVG))
	})
}
