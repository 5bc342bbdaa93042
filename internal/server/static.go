package server

import (
	"embed"
	"io/fs"
	"net/http"
	"os"
)

//go:embed static
var embeddedStatic embed.FS

// staticHandler serves the reporter page. Files come from the configured
// static directory when it exists, otherwise from the page built into the
// binary.
func (s *MotionServer) staticHandler() http.Handler {
	if s.staticDir != "" {
		if info, err := os.Stat(s.staticDir); err == nil && info.IsDir() {
			s.logger.Info("serving static assets", "dir", s.staticDir)
			return http.FileServer(http.Dir(s.staticDir))
		}
		s.logger.Warn("static directory not found, using embedded page", "dir", s.staticDir)
	}
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServerFS(sub)
}
