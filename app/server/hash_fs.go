package server

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
)

// HashFS serves static files and knows a content hash for each, so
// templates can emit cache-busting URLs. Hashes are computed once; the
// embedded files never change at runtime.
type HashFS struct {
	serv   http.Handler
	hashes map[string]string
}

const hashLen = 12

func NewHashFS(fsys fs.FS) (*HashFS, error) {
	h := &HashFS{
		serv:   http.FileServer(http.FS(fsys)),
		hashes: map[string]string{},
	}

	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		f, err := fsys.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		hash := sha256.New()
		if _, err := io.Copy(hash, f); err != nil {
			return err
		}
		h.hashes[path] = hex.EncodeToString(hash.Sum(nil))[:hashLen]
		slog.Debug("computed static asset hash", "path", path, "hash", h.hashes[path])
		return nil
	})

	return h, err
}

func (h *HashFS) GetHash(path string) string {
	return h.hashes[path]
}

func (h *HashFS) FormatWithHash(path string) string {
	if hash := h.GetHash(path); hash != "" {
		return fmt.Sprintf("%s?hash=%s", path, hash)
	}
	return path
}

func (h *HashFS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	hash := h.GetHash(r.URL.Path)
	if hash != "" {
		w.Header().Set("ETag", `"`+hash+`"`)
		if r.URL.Query().Get("hash") == hash {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		}
	}
	h.serv.ServeHTTP(w, r)
}
