package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/facewatch/internal/config"
	"github.com/kozaktomas/facewatch/internal/web/middleware"
	"golang.org/x/crypto/bcrypt"
)

func testWebConfig(t *testing.T) *config.WebConfig {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return &config.WebConfig{OfficerUsername: "officer", OfficerPasswordHash: string(hash)}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	sm := middleware.NewSessionManager("test-secret", nil, nil)
	handler := NewAuthHandler(testWebConfig(t), sm, nil)

	body := bytes.NewBufferString(`{"username": "officer", "password": "s3cret"}`)
	req := httptest.NewRequest("POST", "/api/v1/auth/login", body)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()

	handler.Login(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "application/json")

	var response LoginResponse
	parseJSONResponse(t, recorder, &response)

	if !response.Success {
		t.Error("expected success to be true")
	}
	if response.SessionID == "" {
		t.Error("expected session_id to be set")
	}
	if len(recorder.Result().Cookies()) == 0 {
		t.Error("expected a session cookie")
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"wrong password", `{"username": "officer", "password": "nope"}`},
		{"wrong username", `{"username": "admin", "password": "s3cret"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := middleware.NewSessionManager("test-secret", nil, nil)
			handler := NewAuthHandler(testWebConfig(t), sm, nil)

			req := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewBufferString(tt.body))
			recorder := httptest.NewRecorder()
			handler.Login(recorder, req)

			assertStatusCode(t, recorder, http.StatusUnauthorized)
			var response LoginResponse
			parseJSONResponse(t, recorder, &response)
			if response.Success || response.Error != "invalid credentials" {
				t.Errorf("unexpected response %+v", response)
			}
		})
	}
}

func TestAuthHandler_Login_MissingCredentials(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing username", `{"username": "", "password": "testpass"}`},
		{"missing password", `{"username": "testuser", "password": ""}`},
		{"missing both", `{"username": "", "password": ""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := middleware.NewSessionManager("test-secret", nil, nil)
			handler := NewAuthHandler(testWebConfig(t), sm, nil)

			req := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewBufferString(tt.body))
			recorder := httptest.NewRecorder()
			handler.Login(recorder, req)

			assertStatusCode(t, recorder, http.StatusBadRequest)
			assertJSONError(t, recorder, "username and password are required")
		})
	}
}

func TestAuthHandler_Login_InvalidJSON(t *testing.T) {
	sm := middleware.NewSessionManager("test-secret", nil, nil)
	handler := NewAuthHandler(testWebConfig(t), sm, nil)

	req := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewBufferString("not json"))
	recorder := httptest.NewRecorder()
	handler.Login(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, errInvalidRequestBody)
}

func TestAuthHandler_Login_NotConfigured(t *testing.T) {
	sm := middleware.NewSessionManager("test-secret", nil, nil)
	handler := NewAuthHandler(&config.WebConfig{OfficerUsername: "officer"}, sm, nil)

	req := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewBufferString(`{"username":"officer","password":"x"}`))
	recorder := httptest.NewRecorder()
	handler.Login(recorder, req)

	assertStatusCode(t, recorder, http.StatusServiceUnavailable)
}

func TestAuthHandler_StatusAndLogout(t *testing.T) {
	sm := middleware.NewSessionManager("test-secret", nil, nil)
	handler := NewAuthHandler(testWebConfig(t), sm, nil)

	session, err := sm.CreateSession(context.Background(), "officer")
	if err != nil {
		t.Fatal(err)
	}
	cookieRec := httptest.NewRecorder()
	sm.SetSessionCookie(cookieRec, session)
	cookies := cookieRec.Result().Cookies()

	// Authenticated status
	req := httptest.NewRequest("GET", "/api/v1/auth/status", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	recorder := httptest.NewRecorder()
	handler.Status(recorder, req)

	var status StatusResponse
	parseJSONResponse(t, recorder, &status)
	if !status.Authenticated || status.Username != "officer" {
		t.Errorf("unexpected status %+v", status)
	}

	// Logout deletes the session
	req = httptest.NewRequest("POST", "/api/v1/auth/logout", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	recorder = httptest.NewRecorder()
	handler.Logout(recorder, req)
	assertStatusCode(t, recorder, http.StatusOK)

	if sm.GetSession(context.Background(), session.ID) != nil {
		t.Error("session should be deleted after logout")
	}

	// Unauthenticated status
	req = httptest.NewRequest("GET", "/api/v1/auth/status", nil)
	recorder = httptest.NewRecorder()
	handler.Status(recorder, req)
	parseJSONResponse(t, recorder, &status)
	if status.Authenticated {
		t.Error("expected unauthenticated")
	}
}
