package httpserver

import (
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
)

func fileHandler(files fileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimPrefix(c.Param("key"), "/")
		rc, err := files.Open(c.Request.Context(), key)
		if err != nil {
			writeError(c, err)
			return
		}
		defer rc.Close()

		contentType := mime.TypeByExtension(path.Ext(key))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.Header("Cache-Control", "public, max-age=86400")
		c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
	}
}
