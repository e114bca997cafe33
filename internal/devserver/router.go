package devserver

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"esnafpanel-core/internal/auth"
	"esnafpanel-core/internal/middleware"
)

type Deps struct {
	Store       *Store
	TokenConfig auth.TokenConfig
	Log         *zap.Logger
}

// NewRouter wires the HTTP API and the push endpoint. The SocketServer is
// returned too so callers can publish events.
func NewRouter(deps Deps) (*gin.Engine, *SocketServer) {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	authHandler := &AuthHandler{Store: deps.Store, TokenConfig: deps.TokenConfig, Log: deps.Log}
	credentialLimiter := middleware.NewRateLimiter(10, time.Minute)

	api := r.Group("/api/v1")
	api.POST("/auth/giris-yap", middleware.RateLimitMiddleware(credentialLimiter), authHandler.GirisYap)
	api.POST("/auth/kayit-ol", middleware.RateLimitMiddleware(credentialLimiter), authHandler.KayitOl)
	api.POST("/auth/token-yenile", authHandler.TokenYenile)

	protected := api.Group("")
	protected.Use(middleware.RequireAuth(deps.TokenConfig))
	protected.POST("/auth/cikis-yap", authHandler.CikisYap)
	protected.GET("/auth/profil", authHandler.Profil)

	sock := NewSocketServer(deps.TokenConfig, deps.Log)
	r.GET("/socket.io/", sock.Handler())

	return r, sock
}
