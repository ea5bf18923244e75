package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gatewarden/gatewarden/core"
	"github.com/gatewarden/gatewarden/internal/siwe"
	"github.com/gatewarden/gatewarden/service"
)

// AuthHandlers contains HTTP handlers for the auth endpoints
type AuthHandlers struct {
	authService  *service.AuthService
	cookieName   string
	cookieSecure bool
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, cookieName string, cookieSecure bool) *AuthHandlers {
	return &AuthHandlers{
		authService:  authService,
		cookieName:   cookieName,
		cookieSecure: cookieSecure,
	}
}

// Nonce issues a fresh login nonce
func (h *AuthHandlers) Nonce(c *gin.Context) {
	nonce, err := h.authService.Nonce(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue nonce"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"nonce": nonce.Value})
}

// Login handles the login request. The message arrives either as the
// camelCase field object or as the prepared EIP-4361 text.
func (h *AuthHandlers) Login(c *gin.Context) {
	var req struct {
		Message   json.RawMessage `json:"message" binding:"required"`
		Signature string          `json:"signature" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	msg, err := decodeMessage(req.Message)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message"})
		return
	}

	session, token, err := h.authService.Login(c.Request.Context(), msg, req.Signature)
	if err != nil {
		status, errorMsg := loginStatus(err)
		c.JSON(status, gin.H{"error": errorMsg})
		return
	}

	h.setSessionCookie(c, token, session)
	c.JSON(http.StatusOK, gin.H{
		"address":    session.Address,
		"expires_at": session.ExpiresAt,
	})
}

// Refresh rotates the session behind the cookie
func (h *AuthHandlers) Refresh(c *gin.Context) {
	token, err := c.Cookie(h.cookieName)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	session, newToken, err := h.authService.Refresh(c.Request.Context(), token)
	if err != nil {
		status, errorMsg := sessionStatus(err)
		c.JSON(status, gin.H{"error": errorMsg})
		return
	}

	h.setSessionCookie(c, newToken, session)
	c.JSON(http.StatusOK, gin.H{
		"address":    session.Address,
		"expires_at": session.ExpiresAt,
	})
}

// Verify reports whether the session cookie is still valid
func (h *AuthHandlers) Verify(c *gin.Context) {
	token, err := c.Cookie(h.cookieName)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	session, err := h.authService.Verify(c.Request.Context(), token)
	if err != nil {
		status, errorMsg := sessionStatus(err)
		c.JSON(status, gin.H{"error": errorMsg})
		return
	}

	c.JSON(http.StatusOK, gin.H{"address": session.Address})
}

// Logout destroys the session and clears the cookie. Logging out
// without a live session still succeeds.
func (h *AuthHandlers) Logout(c *gin.Context) {
	if token, err := c.Cookie(h.cookieName); err == nil {
		if err := h.authService.Logout(c.Request.Context(), token); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
			return
		}
	}

	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns the authenticated wallet's profile
func (h *AuthHandlers) Me(c *gin.Context) {
	address := c.GetString("walletAddress")
	if address == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Wallet not found in context"})
		return
	}

	wallet, groupNames, err := h.authService.Wallet(c.Request.Context(), address)
	if err != nil {
		if errors.Is(err, core.ErrWalletNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Wallet not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load wallet"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address":      wallet.Address,
		"ens_name":     wallet.ENSName,
		"ens_avatar":   wallet.ENSAvatar,
		"created_at":   wallet.CreatedAt,
		"last_auth_at": wallet.LastAuthAt,
		"active":       wallet.IsActive,
		"admin":        wallet.IsAdmin,
		"groups":       groupNames,
	})
}

// Authorize checks if a wallet is authorized
func (h *AuthHandlers) Authorize(c *gin.Context) {
	address := c.GetString("walletAddress")
	if address == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Wallet not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authorized": true,
		"address":    address,
	})
}

func (h *AuthHandlers) setSessionCookie(c *gin.Context, token string, session *core.Session) {
	c.SetSameSite(http.SameSiteLaxMode)
	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	c.SetCookie(h.cookieName, token, maxAge, "/", "", h.cookieSecure, true)
}

func (h *AuthHandlers) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, "", -1, "/", "", h.cookieSecure, true)
}

// decodeMessage accepts both wire forms of the message field
func decodeMessage(raw json.RawMessage) (*siwe.Message, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return nil, err
		}
		return siwe.Parse(text)
	}

	var msg siwe.Message
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// loginStatus maps verification failures onto status codes
func loginStatus(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrMalformedMessage):
		return http.StatusBadRequest, "Malformed message"
	case errors.Is(err, core.ErrDomainMismatch):
		return http.StatusUnauthorized, "Domain mismatch"
	case errors.Is(err, core.ErrInvalidNonce):
		return http.StatusUnauthorized, "Invalid nonce"
	case errors.Is(err, core.ErrMessageExpired):
		return http.StatusUnauthorized, "Message expired"
	case errors.Is(err, core.ErrSignatureMismatch):
		return http.StatusUnauthorized, "Signature mismatch"
	case errors.Is(err, core.ErrWalletDisabled):
		return http.StatusForbidden, "Wallet disabled"
	}
	return http.StatusInternalServerError, "Authentication failed"
}

// sessionStatus maps session lookup failures onto status codes
func sessionStatus(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrSessionExpired):
		return http.StatusUnauthorized, "Session expired"
	case errors.Is(err, core.ErrSessionNotFound):
		return http.StatusUnauthorized, "Invalid session"
	}
	return http.StatusInternalServerError, "Session lookup failed"
}
