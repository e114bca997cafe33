package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimiterFixedWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiterWithNow(3, time.Minute, func() time.Time { return now })

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("request %d denied inside the limit", i+1)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Fatal("request over the limit allowed")
	}

	// Other keys have their own window.
	if !rl.Allow("5.6.7.8") {
		t.Fatal("separate key denied")
	}

	// The window elapses and the counter resets.
	now = now.Add(61 * time.Second)
	if !rl.Allow("1.2.3.4") {
		t.Fatal("request denied after window reset")
	}
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(1, time.Minute)

	r := gin.New()
	r.POST("/auth/giris-yap", RateLimitMiddleware(rl), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/giris-yap", nil)
		req.RemoteAddr = "9.9.9.9:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	if w := do(); w.Code != http.StatusOK {
		t.Fatalf("first request status = %d", w.Code)
	}
	if w := do(); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", w.Code)
	}
}
