package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type otpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func (h *Handler) sendOTP(c *gin.Context) {
	var body otpRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Email required")
		return
	}
	if err := h.otps.Send(c.Request.Context(), body.Email); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "OTP sent to email"})
}

func (h *Handler) verifyOTP(c *gin.Context) {
	var body otpRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Email and OTP required")
		return
	}
	if err := h.otps.Verify(c.Request.Context(), body.Email, body.OTP); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Email verified"})
}
