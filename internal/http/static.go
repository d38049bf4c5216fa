package http

import (
	"io/fs"
	"net/http"
	"path"
)

// staticFS hides directories without an index.html, so http.FileServer
// answers 404 instead of rendering a listing.
type staticFS struct {
	root http.FileSystem
}

func newStaticHandler(dir string) http.Handler {
	return http.FileServer(staticFS{root: http.Dir(dir)})
}

func (s staticFS) Open(name string) (http.File, error) {
	f, err := s.root.Open(name)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if !info.IsDir() {
		return f, nil
	}

	index, err := s.root.Open(path.Join(name, "index.html"))
	if err != nil {
		_ = f.Close()
		return nil, fs.ErrNotExist
	}
	_ = index.Close()

	return f, nil
}
