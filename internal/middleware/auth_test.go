package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"esnafpanel-core/internal/auth"
)

func testTokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		Secret:        "test-secret",
		AccessExpiry:  time.Minute,
		RefreshExpiry: time.Hour,
		Issuer:        "esnafpanel-test",
	}
}

func protectedRouter(cfg auth.TokenConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", RequireAuth(cfg), func(c *gin.Context) {
		userID, ok := UserIDFromContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no user in context"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"userID": userID})
	})
	return r
}

func getWithHeader(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuthAcceptsValidToken(t *testing.T) {
	cfg := testTokenConfig()
	token, err := auth.CreateAccessToken("u-1", cfg)
	if err != nil {
		t.Fatal(err)
	}

	w := getWithHeader(protectedRouter(cfg), "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestRequireAuthRejections(t *testing.T) {
	cfg := testTokenConfig()
	refresh, err := auth.CreateRefreshToken("u-1", cfg)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
		{"refresh token on protected route", "Bearer " + refresh},
	}

	r := protectedRouter(cfg)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := getWithHeader(r, tc.header)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
		})
	}
}
