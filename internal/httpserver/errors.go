package httpserver

import (
	"errors"
	"net/http"

	"storefront/internal/cart"
	"storefront/internal/domain"
	"storefront/internal/service/identity"
	"storefront/internal/storage"

	"github.com/gin-gonic/gin"
)

func statusFor(err error) (int, string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.Is(err, cart.ErrInvalidQuantity):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, storage.ErrInvalidKey):
		return http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, "already exists"
	case errors.Is(err, identity.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, identity.ErrInvalidToken), errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	}
	return http.StatusInternalServerError, "internal error"
}

func writeError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	body := gin.H{"error": msg}
	var verr *domain.ValidationError
	if errors.As(err, &verr) && verr.Field != "" {
		body["field"] = verr.Field
	}
	c.JSON(status, body)
}

func abortError(c *gin.Context, err error) {
	writeError(c, err)
	c.Abort()
}
