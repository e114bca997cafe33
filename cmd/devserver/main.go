// Command devserver runs the local stand-in backend: the auth API and the
// socket.io push endpoint the panel client talks to.
package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"esnafpanel-core/internal/auth"
	"esnafpanel-core/internal/config"
	"esnafpanel-core/internal/devserver"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.LoadServerConfig()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	gin.SetMode(cfg.GinMode)

	tokenCfg := auth.TokenConfig{
		Secret:        cfg.JWTSecret,
		AccessExpiry:  cfg.AccessTokenExpiry,
		RefreshExpiry: cfg.RefreshTokenExpiry,
		Issuer:        "esnafpanel-dev",
	}

	st := devserver.NewStore()
	router, sock := devserver.NewRouter(devserver.Deps{Store: st, TokenConfig: tokenCfg, Log: logger})

	if cfg.SeedDemoUser {
		user, err := st.SeedUser("demo@esnafpanel.dev", "demo1234", "Ayşe", "Yılmaz")
		if err != nil {
			logger.Fatal("seeding demo user", zap.Error(err))
		}
		logger.Info("demo user ready",
			zap.String("email", user.Email),
			zap.String("sifre", "demo1234"),
		)
		go demoEvents(sock, user.ID)
	}

	logger.Info("listening", zap.Int("port", cfg.Port))
	logger.Fatal("server stopped", zap.Error(devserver.Run(cfg, router)))
}

// demoEvents pushes sample activity so a connected client has something
// to show.
func demoEvents(sock *devserver.SocketServer, userID string) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	n := 0
	for range ticker.C {
		n++
		switch n % 3 {
		case 0:
			sock.PublishTaxReminder(userID, "KDV Beyannamesi", "2026-09-26", 5)
		case 1:
			sock.PublishInvoiceCreated(userID, "inv-demo", "FTR-2026-001", "Demo Müşteri", 1250)
		case 2:
			sock.PublishPaymentReceived(userID, "pay-demo", "inv-demo", 1250, "TRY")
		}
	}
}
