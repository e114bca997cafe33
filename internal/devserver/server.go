package devserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"

	"esnafpanel-core/internal/config"
)

// NewHTTPServer wraps the router with CORS for the browser dashboard
// origin.
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	corsWrapper := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           corsWrapper.Handler(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func Run(cfg config.ServerConfig, handler http.Handler) error {
	srv := NewHTTPServer(cfg, handler)
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		return srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
	}
	return srv.ListenAndServe()
}
