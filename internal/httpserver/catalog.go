package httpserver

import (
	"net/http"

	"storefront/internal/service/catalog"

	"github.com/gin-gonic/gin"
)

type productsResponse struct {
	catalog.FeedResult
	Superseded bool `json:"superseded"`
}

// listProducts runs the query through the session's feed so that a response
// for an older query is flagged as superseded once a newer one committed.
func (h *handlers) listProducts(c *gin.Context) {
	s := currentSession(c)
	res, superseded := s.Feed.Request(c.Request.Context(), c.Query("q"), c.Query("category"))
	c.JSON(http.StatusOK, productsResponse{FeedResult: res, Superseded: superseded})
}

func (h *handlers) browse(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.CatalogSvc.Browse(c.Request.Context(), c.Query("q"), c.Query("category")))
}

func (h *handlers) getProduct(c *gin.Context) {
	p, err := h.deps.CatalogSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) categories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": h.deps.CatalogSvc.Categories(c.Request.Context())})
}

func (h *handlers) createProduct(c *gin.Context) {
	var in catalog.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product payload"})
		return
	}
	p, err := h.deps.CatalogSvc.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *handlers) updateProduct(c *gin.Context) {
	var in catalog.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product payload"})
		return
	}
	p, err := h.deps.CatalogSvc.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) deleteProduct(c *gin.Context) {
	if err := h.deps.CatalogSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) uploadImage(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, err)
		return
	}
	defer f.Close()

	url, err := h.deps.CatalogSvc.UploadImage(c.Request.Context(), fh.Filename, f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}
