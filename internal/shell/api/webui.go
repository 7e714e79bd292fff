package api

import (
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"strings"
)

// FrontendHandler serves a built single-page frontend from dir. Unknown
// paths without an extension fall back to index.html for client-side
// routing; missing assets are 404.
func FrontendHandler(dir string) http.Handler {
	return frontendHandler(os.DirFS(dir))
}

func frontendHandler(dist fs.FS) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		urlPath := path.Clean(r.URL.Path)
		if urlPath == "/" || urlPath == "." {
			urlPath = "index.html"
		} else {
			urlPath = strings.TrimPrefix(urlPath, "/")
		}

		if content, err := fs.ReadFile(dist, urlPath); err == nil {
			contentType := mime.TypeByExtension(path.Ext(urlPath))
			if contentType == "" {
				contentType = http.DetectContentType(content)
			}
			w.Header().Set("Content-Type", contentType)
			w.Write(content)
			return
		}

		// Asset requests have an extension
		if strings.Contains(path.Base(urlPath), ".") {
			http.NotFound(w, r)
			return
		}

		content, err := fs.ReadFile(dist, "index.html")
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(content)
	})
}
