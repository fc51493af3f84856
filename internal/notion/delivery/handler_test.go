package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	authdomain "notion-sync-backend/internal/auth/domain"
	"notion-sync-backend/internal/notion/usecase"

	"github.com/gin-gonic/gin"
)

type fakeNotionUsecase struct {
	callbackErr  error
	connected    map[string]bool
	disconnected []string
	refreshErr   error
	lastCode     string
	lastAuthUser string
}

func (f *fakeNotionUsecase) AuthURL(userID string) (string, error) {
	f.lastAuthUser = userID
	return "https://api.notion.com/v1/oauth/authorize?state=s", nil
}

func (f *fakeNotionUsecase) HandleCallback(ctx context.Context, code, state string) error {
	f.lastCode = code
	return f.callbackErr
}

func (f *fakeNotionUsecase) IsConnected(ctx context.Context, email string) (bool, error) {
	if email == "" {
		return false, usecase.ErrMissingEmail
	}
	return f.connected[email], nil
}

func (f *fakeNotionUsecase) Disconnect(ctx context.Context, email string) error {
	if _, ok := f.connected[email]; !ok {
		return usecase.ErrUserNotFound
	}
	f.disconnected = append(f.disconnected, email)
	return nil
}

func (f *fakeNotionUsecase) RefreshPages(ctx context.Context, userID string) ([]authdomain.PageRef, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return []authdomain.PageRef{{ID: "p1", Type: "page", Title: "School"}}, nil
}

func newNotionRouter(uc usecase.NotionUsecase) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewNotionHandler(uc, "http://localhost:3000/")

	r := gin.New()
	withUser := func(c *gin.Context) {
		c.Set("userID", "uid-1")
		c.Set("email", "student@example.edu")
		c.Next()
	}
	r.GET("/api/notion/connect", withUser, h.Connect)
	r.GET("/api/notion/callback", h.Callback)
	r.GET("/api/notion/connected", h.Connected)
	r.POST("/api/notion/disconnect", withUser, h.Disconnect)
	r.GET("/api/notion/pages", withUser, h.Pages)
	return r
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCallbackRedirectsToFrontend(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		err        error
		wantNotion string
		wantReason string
	}{
		{"connected", "?code=abc&state=s", nil, "connected", ""},
		{"denied", "?error=access_denied&state=s", nil, "error", "access_denied"},
		{"bad state", "?code=abc&state=s", usecase.ErrInvalidState, "error", "invalid_state"},
		{"exchange failed", "?code=abc&state=s", errors.New("boom"), "error", "exchange_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newNotionRouter(&fakeNotionUsecase{callbackErr: tt.err})
			rec := serve(r, http.MethodGet, "/api/notion/callback"+tt.query, "")
			if rec.Code != http.StatusFound {
				t.Fatalf("expected 302, got %d", rec.Code)
			}
			loc, err := url.Parse(rec.Header().Get("Location"))
			if err != nil {
				t.Fatalf("bad location: %v", err)
			}
			if loc.Host != "localhost:3000" || loc.Query().Get("notion") != tt.wantNotion || loc.Query().Get("reason") != tt.wantReason {
				t.Fatalf("unexpected redirect: %s", loc)
			}
		})
	}
}

func TestConnectedDisconnectAndPages(t *testing.T) {
	fake := &fakeNotionUsecase{connected: map[string]bool{"student@example.edu": true}}
	r := newNotionRouter(fake)

	rec := serve(r, http.MethodGet, "/api/notion/connect", "")
	if rec.Code != http.StatusOK || fake.lastAuthUser != "uid-1" {
		t.Fatalf("connect: %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(r, http.MethodGet, "/api/notion/connected?email=student@example.edu", "")
	var body map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if rec.Code != http.StatusOK || body["connected"] != true {
		t.Fatalf("connected: %d %+v", rec.Code, body)
	}

	if rec = serve(r, http.MethodGet, "/api/notion/connected", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without email, got %d", rec.Code)
	}

	if rec = serve(r, http.MethodPost, "/api/notion/disconnect", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without email, got %d", rec.Code)
	}
	rec = serve(r, http.MethodPost, "/api/notion/disconnect", `{"email":" Student@Example.edu "}`)
	body = nil
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if rec.Code != http.StatusOK || body["connected"] != false || len(fake.disconnected) != 1 {
		t.Fatalf("disconnect: %d %+v", rec.Code, body)
	}

	if rec = serve(r, http.MethodGet, "/api/notion/pages", ""); rec.Code != http.StatusOK {
		t.Fatalf("pages: %d", rec.Code)
	}
	fake.refreshErr = usecase.ErrNotConnected
	if rec = serve(r, http.MethodGet, "/api/notion/pages", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 when not connected, got %d", rec.Code)
	}
}

func TestDisconnectOnlyForTheSignedInUser(t *testing.T) {
	fake := &fakeNotionUsecase{connected: map[string]bool{"student@example.edu": true, "victim@example.edu": true}}
	r := newNotionRouter(fake)

	rec := serve(r, http.MethodPost, "/api/notion/disconnect", `{"email":"victim@example.edu"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another user's email, got %d", rec.Code)
	}
	if len(fake.disconnected) != 0 {
		t.Fatalf("nothing may be disconnected, got %v", fake.disconnected)
	}
}
