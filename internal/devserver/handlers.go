package devserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"esnafpanel-core/internal/auth"
	"esnafpanel-core/internal/middleware"
	"esnafpanel-core/internal/model"
)

type AuthHandler struct {
	Store       *Store
	TokenConfig auth.TokenConfig
	Log         *zap.Logger
}

type loginBody struct {
	Email string `json:"email"`
	Sifre string `json:"sifre"`
}

type refreshBody struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *AuthHandler) issueTokens(c *gin.Context, user model.User) (model.TokenPair, bool) {
	accessToken, err := auth.CreateAccessToken(user.ID, h.TokenConfig)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Token üretilemedi"})
		return model.TokenPair{}, false
	}
	refreshToken, err := auth.CreateRefreshToken(user.ID, h.TokenConfig)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Token üretilemedi"})
		return model.TokenPair{}, false
	}
	h.Store.RegisterRefreshToken(refreshToken, user.ID)
	return model.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, true
}

// GirisYap handles POST /auth/giris-yap.
func (h *AuthHandler) GirisYap(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Geçersiz istek"})
		return
	}

	user, err := h.Store.Authenticate(body.Email, body.Sifre)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "E-posta veya şifre hatalı"})
		return
	}

	pair, ok := h.issueTokens(c, user)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"kullanici":    user,
	})
}

// KayitOl handles POST /auth/kayit-ol.
func (h *AuthHandler) KayitOl(c *gin.Context) {
	var body model.RegisterInput
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Geçersiz istek"})
		return
	}

	user, err := h.Store.CreateUser(body)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "Bu e-posta adresi zaten kayıtlı"})
		case errors.Is(err, ErrInvalidCredentials):
			c.JSON(http.StatusBadRequest, gin.H{"error": "E-posta ve şifre zorunlu"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Kayıt başarısız"})
		}
		return
	}

	pair, ok := h.issueTokens(c, user)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"kullanici":    user,
	})
}

// CikisYap handles POST /auth/cikis-yap; it revokes every refresh token
// the user holds.
func (h *AuthHandler) CikisYap(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Geçersiz oturum"})
		return
	}
	h.Store.RevokeUserTokens(userID)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Profil handles GET /auth/profil.
func (h *AuthHandler) Profil(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Geçersiz oturum"})
		return
	}
	user, err := h.Store.UserByID(userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Kullanıcı bulunamadı"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// TokenYenile handles POST /auth/token-yenile. The presented refresh
// token is consumed and a rotated pair is returned.
func (h *AuthHandler) TokenYenile(c *gin.Context) {
	var body refreshBody
	if err := c.ShouldBindJSON(&body); err != nil || body.RefreshToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Geçersiz istek"})
		return
	}

	claims, err := auth.VerifyToken(body.RefreshToken, auth.TokenTypeRefresh, h.TokenConfig)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Geçersiz yenileme tokenı"})
		return
	}

	userID, err := h.Store.ConsumeRefreshToken(body.RefreshToken)
	if err != nil || userID != claims.UserID {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Geçersiz yenileme tokenı"})
		return
	}

	user, err := h.Store.UserByID(userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Geçersiz yenileme tokenı"})
		return
	}

	pair, ok := h.issueTokens(c, user)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}
