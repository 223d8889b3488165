package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/facewatch/internal/logger"
)

func newTestManager() *SessionManager {
	return NewSessionManager("test-secret", NewMemoryStore(), logger.Discard())
}

func TestSessionManager_CreateSession(t *testing.T) {
	sm := newTestManager()

	session, err := sm.CreateSession(context.Background(), "admin")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if session.ID == "" {
		t.Error("session ID is empty")
	}
	if session.Username != "admin" {
		t.Errorf("Username = %s, want admin", session.Username)
	}
	if session.ExpiresAt.Before(time.Now()) {
		t.Error("session expires in the past")
	}
}

func TestSessionManager_GetSession(t *testing.T) {
	sm := newTestManager()
	ctx := context.Background()

	session, _ := sm.CreateSession(ctx, "admin")

	retrieved := sm.GetSession(ctx, session.ID)
	if retrieved == nil {
		t.Fatal("GetSession() returned nil for existing session")
	}
	if retrieved.Username != "admin" {
		t.Errorf("Username = %s, want admin", retrieved.Username)
	}

	if sm.GetSession(ctx, "nonexistent-id") != nil {
		t.Error("GetSession() should return nil for non-existing session")
	}
}

func TestSessionManager_ExpiredSession(t *testing.T) {
	store := NewMemoryStore()
	sm := NewSessionManager("test-secret", store, logger.Discard())
	ctx := context.Background()

	store.Save(ctx, &Session{ID: "old", Username: "admin", ExpiresAt: time.Now().Add(-time.Minute)})

	if sm.GetSession(ctx, "old") != nil {
		t.Error("GetSession() should return nil for an expired session")
	}
}

func TestSessionManager_DeleteSession(t *testing.T) {
	sm := newTestManager()
	ctx := context.Background()

	session, _ := sm.CreateSession(ctx, "admin")
	sm.DeleteSession(ctx, session.ID)

	if sm.GetSession(ctx, session.ID) != nil {
		t.Error("GetSession() should return nil after deletion")
	}
}

func TestSessionManager_SetAndGetSessionCookie(t *testing.T) {
	sm := newTestManager()
	session, _ := sm.CreateSession(context.Background(), "admin")

	w := httptest.NewRecorder()
	sm.SetSessionCookie(w, session)

	var sessionCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookieName {
			sessionCookie = c
			break
		}
	}
	if sessionCookie == nil {
		t.Fatal("Session cookie not found")
	}
	if !sessionCookie.HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(sessionCookie)

	retrieved := sm.GetSessionFromRequest(req)
	if retrieved == nil {
		t.Fatal("GetSessionFromRequest() returned nil")
	}
	if retrieved.ID != session.ID {
		t.Errorf("Session ID = %s, want %s", retrieved.ID, session.ID)
	}
}

func TestSessionManager_InvalidCookie(t *testing.T) {
	sm := newTestManager()
	session, _ := sm.CreateSession(context.Background(), "admin")

	tests := []struct {
		name  string
		value string
	}{
		{"invalid signature", session.ID + ".invalid-signature"},
		{"missing signature", session.ID},
		{"signed by another secret", session.ID + "." + NewSessionManager("other", nil, nil).signData(session.ID)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: tt.value})

			if sm.GetSessionFromRequest(req) != nil {
				t.Error("GetSessionFromRequest() should return nil")
			}
		})
	}
}

func TestSessionManager_BearerAuth(t *testing.T) {
	sm := newTestManager()
	session, _ := sm.CreateSession(context.Background(), "admin")

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+session.ID)

	retrieved := sm.GetSessionFromRequest(req)
	if retrieved == nil {
		t.Fatal("GetSessionFromRequest() returned nil for Bearer auth")
	}
	if retrieved.ID != session.ID {
		t.Errorf("Session ID = %s, want %s", retrieved.ID, session.ID)
	}
}

func TestRequireAuth(t *testing.T) {
	sm := newTestManager()
	session, _ := sm.CreateSession(context.Background(), "admin")

	handlerCalled := false
	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		if GetSessionFromContext(r.Context()) == nil {
			t.Error("Session not found in context")
		}
		w.WriteHeader(http.StatusOK)
	})

	protectedHandler := RequireAuth(sm)(testHandler)

	t.Run("valid session", func(t *testing.T) {
		handlerCalled = false
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+session.ID)

		protectedHandler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		if !handlerCalled {
			t.Error("Handler was not called")
		}
	})

	t.Run("no session", func(t *testing.T) {
		handlerCalled = false
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/protected", nil)

		protectedHandler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if handlerCalled {
			t.Error("Handler should not be called for unauthorized request")
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("body is not JSON: %v", err)
		}
		if body["error"] != "officer login required" {
			t.Errorf("error = %q", body["error"])
		}
	})
}

func TestGetSessionFromContext(t *testing.T) {
	session := &Session{ID: "test123", Username: "admin"}
	ctx := SetSessionInContext(context.Background(), session)

	retrieved := GetSessionFromContext(ctx)
	if retrieved == nil {
		t.Fatal("GetSessionFromContext() returned nil")
	}
	if retrieved.ID != "test123" {
		t.Errorf("Session ID = %s, want test123", retrieved.ID)
	}

	if GetSessionFromContext(context.Background()) != nil {
		t.Error("GetSessionFromContext() should return nil for empty context")
	}
}

func TestOfficerFromContext(t *testing.T) {
	ctx := SetSessionInContext(context.Background(), &Session{ID: "s1", Username: "duty-officer"})
	if got := OfficerFromContext(ctx); got != "duty-officer" {
		t.Errorf("OfficerFromContext() = %q, want duty-officer", got)
	}
	if got := OfficerFromContext(context.Background()); got != "" {
		t.Errorf("OfficerFromContext() = %q, want empty", got)
	}
}

func TestSessionManager_ClearSessionCookie(t *testing.T) {
	sm := newTestManager()

	w := httptest.NewRecorder()
	sm.ClearSessionCookie(w)

	var sessionCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookieName {
			sessionCookie = c
			break
		}
	}
	if sessionCookie == nil {
		t.Fatal("Session cookie not found")
	}
	if sessionCookie.MaxAge != -1 {
		t.Errorf("MaxAge = %d, want -1 (expired)", sessionCookie.MaxAge)
	}
}

func TestSession_MarshalJSON(t *testing.T) {
	session := &Session{
		ID:        "test123",
		Username:  "admin",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}

	data, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var got SessionData
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.SessionID != "test123" || got.Username != "admin" {
		t.Errorf("unexpected session JSON: %s", data)
	}
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://police.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	tests := []struct {
		name       string
		origin     string
		method     string
		wantOrigin string
		wantStatus int
	}{
		{"configured origin", "https://police.example", "GET", "https://police.example", http.StatusTeapot},
		{"localhost", "http://localhost:5173", "GET", "http://localhost:5173", http.StatusTeapot},
		{"unknown origin", "https://evil.example", "GET", "", http.StatusTeapot},
		{"preflight", "https://police.example", "OPTIONS", "https://police.example", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/scan", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if w.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Level: "info", Output: &buf})

	var sawLogger bool
	handler := chimw.RequestID(RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawLogger = logger.FromContext(r.Context(), nil) != nil
		w.WriteHeader(http.StatusCreated)
	})))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/v1/cases", nil))

	if !sawLogger {
		t.Error("expected a request-scoped logger in the context")
	}
	out := buf.String()
	if !strings.Contains(out, `"status":201`) {
		t.Errorf("expected status field in log output, got %s", out)
	}
	if !strings.Contains(out, `"request_id"`) {
		t.Errorf("expected request_id field in log output, got %s", out)
	}
}
