package httpserver

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"storefront/internal/domain"
	"storefront/internal/storage"

	"github.com/stretchr/testify/assert"
)

type memFiles map[string]string

func (m memFiles) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if strings.Contains(key, "..") {
		return nil, storage.ErrInvalidKey
	}
	body, ok := m[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func TestFileHandler(t *testing.T) {
	files := memFiles{"product-images/a.png": "png-bytes"}
	env := newTestEnv(t, func(d *Deps) { d.Files = files })
	c := env.client(t)

	rec := c.do(http.MethodGet, "/files/product-images/a.png", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/files/product-images/b.png", nil).Code)
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/files/product-images/..%2Fsecret", nil).Code)
}
