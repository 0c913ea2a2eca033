package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashFS(t *testing.T) {
	fsys := fstest.MapFS{
		"style.css": {Data: []byte("body { margin: 0; }")},
		"img/x.svg": {Data: []byte("<svg/>")},
	}
	h, err := NewHashFS(fsys)
	require.NoError(t, err)

	hash := h.GetHash("style.css")
	assert.Len(t, hash, hashLen)
	assert.NotEqual(t, hash, h.GetHash("img/x.svg"))
	assert.Equal(t, "style.css?hash="+hash, h.FormatWithHash("style.css"))
	assert.Equal(t, "missing.css", h.FormatWithHash("missing.css"))

	req := httptest.NewRequest(http.MethodGet, "/style.css?hash="+hash, nil)
	req.URL.Path = "style.css"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `"`+hash+`"`, rec.Header().Get("ETag"))
	assert.Contains(t, rec.Header().Get("Cache-Control"), "immutable")

	req = httptest.NewRequest(http.MethodGet, "/style.css?hash=stale", nil)
	req.URL.Path = "style.css"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Cache-Control"))
}
