package httpserver

import (
	"net/http"

	ordersvc "storefront/internal/service/order"

	"github.com/gin-gonic/gin"
)

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

type roleRequest struct {
	Role string `json:"role" binding:"required"`
}

// checkout places an order from the session cart and removes the ordered
// lines once the order is stored.
func (h *handlers) checkout(c *gin.Context) {
	var in ordersvc.CheckoutInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid checkout payload"})
		return
	}
	s := currentSession(c)
	lines := s.Cart.Lines()
	o, err := h.deps.OrderSvc.Checkout(c.Request.Context(), *currentIdentity(c), lines, in)
	if err != nil {
		writeError(c, err)
		return
	}
	s.Cart.Deduct(lines)
	c.JSON(http.StatusCreated, o)
}

func (h *handlers) listOrders(c *gin.Context) {
	orders, err := h.deps.OrderSvc.ListForUser(c.Request.Context(), currentIdentity(c).SubjectID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *handlers) getOrder(c *gin.Context) {
	o, err := h.deps.OrderSvc.Get(c.Request.Context(), *currentIdentity(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *handlers) listAllOrders(c *gin.Context) {
	orders, err := h.deps.OrderSvc.ListAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *handlers) updateOrderStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	o, err := h.deps.OrderSvc.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *handlers) updateUserRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role is required"})
		return
	}
	id, err := h.deps.IdentitySvc.UpdateProfileRole(c.Request.Context(), c.Param("id"), req.Role)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": id})
}
