package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	authRepo "notion-sync-backend/internal/auth/repository"
	authUsecase "notion-sync-backend/internal/auth/usecase"
	notionUsecase "notion-sync-backend/internal/notion/usecase"
	syncRepo "notion-sync-backend/internal/sync/repository"
	syncUsecase "notion-sync-backend/internal/sync/usecase"
	"notion-sync-backend/internal/sync/worker"
	"notion-sync-backend/pkg/config"
	"notion-sync-backend/pkg/database"
	"notion-sync-backend/pkg/firebase"

	"github.com/gin-gonic/gin"
)

func newTestHandler() *Handler {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{FrontendURL: "http://localhost:3000", OAuthStateSecret: "s", OAuthStateExpiry: time.Minute}

	store := database.NewMemoryStore()
	userRepo := authRepo.NewUserRepository(store)
	fcmRepo := authRepo.NewFCMTokenRepository(store)

	authUc := authUsecase.NewAuthUsecase(firebase.DisabledVerifier{}, userRepo, fcmRepo, time.Hour)
	notionUc := notionUsecase.NewNotionUsecase(userRepo, notionUsecase.NewOAuthConfig("id", "secret", ""), cfg.OAuthStateSecret, cfg.OAuthStateExpiry, nil)
	engine := syncUsecase.NewEngine(userRepo, nil)
	syncUc := syncUsecase.NewSyncUsecase(engine, userRepo, syncRepo.NewStatusRepository(store), syncRepo.NewLockRepository(store),
		syncRepo.NewMemoryRunRepository(), fcmRepo, worker.NewLocalDispatcher(1, 1), time.Minute)

	return NewHandler(authUc, notionUc, syncUc, cfg)
}

func TestRouterHealthAndCORS(t *testing.T) {
	r := newTestHandler().Router()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/notion/sync", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" || rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("unexpected CORS headers: %v", rec.Header())
	}
}

func TestRouterProtectsAuthenticatedRoutes(t *testing.T) {
	r := newTestHandler().Router()

	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/profile"},
		{http.MethodGet, "/api/notion/connect"},
		{http.MethodGet, "/api/notion/pages"},
		{http.MethodGet, "/api/notion/sync/history"},
		{http.MethodPost, "/api/notion/disconnect"},
	}
	for _, route := range routes {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(route.method, route.path, strings.NewReader(`{"email":"a@example.edu"}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", route.method, route.path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notion/connected?email=a@example.edu", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("connected is public, got %d", rec.Code)
	}
}
