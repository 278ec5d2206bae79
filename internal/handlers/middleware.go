package handlers

import (
	"net/http"
	"strings"

	"anesthesia_controller/internal/service"

	"github.com/gin-gonic/gin"
)

// operatorCtx is the gin context key holding the signed-in operator.
const operatorCtx = "operator"

const (
	errMissingAuth = "missing Authorization header"
	errAuthFormat  = "invalid Authorization header format"
	errBadToken    = "invalid or expired token"
)

// operatorMiddleware requires a bearer token and attributes the request to
// its operator, both in the gin context and in the request context the
// services see.
func (h *Handler) operatorMiddleware(c *gin.Context) {
	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	switch {
	case scheme == "":
		h.unauthorized(c, errMissingAuth)
		return
	case !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "":
		h.unauthorized(c, errAuthFormat)
		return
	}

	operator, err := h.services.ParseToken(strings.TrimSpace(token))
	if err != nil {
		if h.log != nil {
			h.log.Warnw("token_rejected", "path", c.FullPath(), "err", err)
		}
		h.unauthorized(c, errBadToken)
		return
	}

	c.Set(operatorCtx, operator)
	c.Request = c.Request.WithContext(service.WithOperator(c.Request.Context(), operator))
	c.Next()
}

func (h *Handler) unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}
