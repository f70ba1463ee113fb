// Package web serves the embedded viewer client.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
)

//go:embed dist/*
var staticFiles embed.FS

const indexFile = "index.html"

// GetFileSystem returns the embedded client with dist as root.
func GetFileSystem() (fs.FS, error) {
	return fs.Sub(staticFiles, "dist")
}

// RegisterStaticRoutes serves the client for every non-API GET. Unknown
// paths fall back to index.html. Register API routes first.
func RegisterStaticRoutes(e *echo.Echo) error {
	staticFS, err := GetFileSystem()
	if err != nil {
		return err
	}
	fileServer := http.FileServer(http.FS(staticFS))

	e.GET("/*", func(c echo.Context) error {
		p := path.Clean(c.Request().URL.Path)
		if p == "/api" || strings.HasPrefix(p, "/api/") {
			return echo.ErrNotFound
		}

		name := strings.TrimPrefix(p, "/")
		if name == "" || !isFile(staticFS, name) {
			return serveIndex(c, staticFS)
		}
		fileServer.ServeHTTP(c.Response(), c.Request())
		return nil
	})
	return nil
}

func isFile(fsys fs.FS, name string) bool {
	info, err := fs.Stat(fsys, name)
	return err == nil && !info.IsDir()
}

func serveIndex(c echo.Context, fsys fs.FS) error {
	content, err := fs.ReadFile(fsys, indexFile)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "index.html not found")
	}
	return c.HTMLBlob(http.StatusOK, content)
}

// HasEmbeddedFiles reports whether the client was built into the binary.
func HasEmbeddedFiles() bool {
	_, err := fs.Stat(staticFiles, path.Join("dist", indexFile))
	return err == nil
}
