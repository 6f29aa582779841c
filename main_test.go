package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketplace-server/config"
	"marketplace-server/middleware"
)

func TestRejectionsCarryCORSHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	const origin = "https://app.example.com"
	cfg := &config.Config{CORS: config.CORSConfig{AllowedOrigins: []string{origin}}}
	router := newRouter(cfg, middleware.NewRateLimiter(0.001, 1), zap.NewNop())
	router.POST("/echo", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	send := func(contentType string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{}`))
		req.Header.Set("Origin", origin)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	// One token: the first JSON request spends it, the content type check runs before the limiter.
	tests := []struct {
		name        string
		contentType string
		want        int
	}{
		{"accepted", "application/json", http.StatusNoContent},
		{"unsupported content type", "text/plain", http.StatusUnsupportedMediaType},
		{"rate limited", "application/json", http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		rec := send(tt.contentType)
		if rec.Code != tt.want {
			t.Fatalf("%s: expected %d, got %d", tt.name, tt.want, rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != origin {
			t.Fatalf("%s: expected Access-Control-Allow-Origin %q, got %q", tt.name, origin, got)
		}
	}
}

func TestOpenStore(t *testing.T) {
	tests := []struct {
		name    string
		driver  string
		ginMode string
		wantErr bool
	}{
		{"memory in debug", "memory", "debug", false},
		{"memory in release", "memory", "release", true},
		{"unknown driver", "sqlite", "debug", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				Server:   config.ServerConfig{GinMode: tt.ginMode},
				Database: config.DatabaseConfig{Driver: tt.driver},
			}
			store, _, closeStore, err := openStore(cfg, zap.NewNop())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("openStore: %v", err)
			}
			defer closeStore() //nolint:errcheck
			if store == nil {
				t.Fatal("expected a store")
			}
		})
	}
}
