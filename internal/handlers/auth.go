package handlers

import (
	"errors"
	"net/http"

	"anesthesia_controller/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errInvalidCredentials = "invalid credentials"
	errSignIn             = "sign-in failed"
)

type signInRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type signInResponse struct {
	Token    string `json:"token"`
	Operator string `json:"operator"`
}

// bindJSONOrBadRequest binds the body into dst or answers 400. It reports
// whether the handler should go on.
func (h *Handler) bindJSONOrBadRequest(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if h.log != nil {
			h.log.Infow("bad_request_body", "path", c.FullPath(), "err", err)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return false
	}
	return true
}

// @Summary      Operator sign-in
// @Description  Operators come from the auth.operators config section.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signInRequest  true  "Credentials"
// @Success      200   {object}  signInResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /auth/sign-in [post]
func (h *Handler) signIn(c *gin.Context) {
	var req signInRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}

	token, err := h.services.GenerateToken(req.Username, req.Password)
	switch {
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrInvalidPassword):
		if h.log != nil {
			h.log.Warnw("sign_in_rejected", "operator", req.Username, "err", err)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": errInvalidCredentials})
		return
	case err != nil:
		h.logAndJSONError(c, http.StatusInternalServerError, errSignIn, "sign_in_failed", err, "operator", req.Username)
		return
	}

	if h.log != nil {
		h.log.Infow("operator_signed_in", "operator", req.Username)
	}
	c.JSON(http.StatusOK, signInResponse{Token: token, Operator: req.Username})
}
