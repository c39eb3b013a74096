package httpserver

import (
	"net/http"

	"storefront/internal/domain"

	"github.com/gin-gonic/gin"
)

type addItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *handlers) getCart(c *gin.Context) {
	c.JSON(http.StatusOK, currentSession(c).Cart.Snapshot())
}

// addCartItem looks the product up so the line carries current catalog data.
// A missing quantity means one.
func (h *handlers) addCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_id is required"})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	p, err := h.deps.CatalogSvc.Get(c.Request.Context(), req.ProductID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !p.InStock() {
		writeError(c, domain.Invalid("product_id", "Product is out of stock"))
		return
	}
	s := currentSession(c)
	if err := s.Cart.AddItem(*p, req.Quantity); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Cart.Snapshot())
}

func (h *handlers) setCartQuantity(c *gin.Context) {
	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity is required"})
		return
	}
	s := currentSession(c)
	s.Cart.SetQuantity(c.Param("productId"), req.Quantity)
	c.JSON(http.StatusOK, s.Cart.Snapshot())
}

func (h *handlers) removeCartItem(c *gin.Context) {
	s := currentSession(c)
	s.Cart.RemoveItem(c.Param("productId"))
	c.JSON(http.StatusOK, s.Cart.Snapshot())
}

func (h *handlers) clearCart(c *gin.Context) {
	s := currentSession(c)
	s.Cart.Clear()
	c.JSON(http.StatusOK, s.Cart.Snapshot())
}
