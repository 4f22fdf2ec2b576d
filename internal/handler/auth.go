package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vinitamart/storefront/internal/domain/auth"
)

const (
	userCookie   = "token"
	sellerCookie = "sellerToken"

	userIDKey = "userID"
	sellerKey = "seller"
)

// bearer returns the token from the named cookie, falling back to an
// Authorization: Bearer header.
func bearer(c *gin.Context, cookie string) string {
	if v, err := c.Cookie(cookie); err == nil && v != "" {
		return v
	}
	if v, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// optionalUser attaches the user id when a valid customer token is present.
// Guests and bad tokens pass through unauthenticated.
func (h *Handler) optionalUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tok := bearer(c, userCookie); tok != "" {
			if id, err := h.auth.VerifyUser(tok); err == nil {
				c.Set(userIDKey, id)
			}
		}
		c.Next()
	}
}

func (h *Handler) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := h.auth.VerifyUser(bearer(c, userCookie))
		if err != nil {
			fail(c, err)
			return
		}
		c.Set(userIDKey, id)
		c.Next()
	}
}

func (h *Handler) requireSeller() gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearer(c, sellerCookie)
		if tok == "" {
			fail(c, auth.ErrInvalidToken)
			return
		}
		claims, err := h.auth.VerifySeller(tok)
		if err != nil {
			fail(c, err)
			return
		}
		c.Set(sellerKey, claims.Email)
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func (h *Handler) setAuthCookie(c *gin.Context, name, value string, maxAge int) {
	if h.cfg.SecureCookies {
		c.SetSameSite(http.SameSiteNoneMode)
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
	}
	c.SetCookie(name, value, maxAge, "/", "", h.cfg.SecureCookies, true)
}
