package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) sellerLogin(c *gin.Context) {
	var body loginRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid credentials")
		return
	}
	token, err := h.auth.SellerLogin(body.Email, body.Password)
	if err != nil {
		// Credential failures answer 400 like other form errors.
		badRequest(c, "Invalid credentials")
		return
	}
	h.setAuthCookie(c, sellerCookie, token, int(h.auth.TTL().Seconds()))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"token":   token,
	})
}

func (h *Handler) sellerIsAuth(c *gin.Context) {
	tok := bearer(c, sellerCookie)
	if tok == "" {
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}
	_, err := h.auth.VerifySeller(tok)
	c.JSON(http.StatusOK, gin.H{"success": err == nil})
}

func (h *Handler) sellerLogout(c *gin.Context) {
	h.setAuthCookie(c, sellerCookie, "", -1)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out successfully"})
}
