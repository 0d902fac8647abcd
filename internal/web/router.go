package web

import (
	"net/http"

	"github.com/erazemk/oficina/internal/share"
	webembed "github.com/erazemk/oficina/web"
)

// Server holds all dependencies for page handlers.
type Server struct {
	Viewer    *share.Viewer
	Templates *Templates
}

// NewRouter creates the web page router. The only pages are the public,
// read-only views of shared resources; staff use the JSON API.
func NewRouter(viewer *share.Viewer) (http.Handler, error) {
	templates, err := LoadTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		Viewer:    viewer,
		Templates: templates,
	}

	mux := http.NewServeMux()

	// Static assets.
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(webembed.StaticFS()))))

	mux.HandleFunc("GET /public/{type}/{token}", s.PublicPage)
	mux.HandleFunc("GET /public/checklist/{token}/photos/{photoID}", s.PublicPhoto)

	return mux, nil
}
