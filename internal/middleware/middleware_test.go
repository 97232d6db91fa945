package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/qcom/accounts/internal/config"
	"github.com/qcom/accounts/internal/service"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokens(t *testing.T) *service.JWTService {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	tokens, err := service.NewJWTService(&config.JWTConfig{
		SecretKey:        "0123456789abcdef0123456789abcdef",
		EmailTokenExpiry: time.Hour,
	}, logger)
	require.NoError(t, err)
	return tokens
}

func TestRequireAuth(t *testing.T) {
	tokens := newTokens(t)
	logger, _ := test.NewNullLogger()
	mw := NewAuthMiddleware(tokens, logger)

	session, err := tokens.IssueSessionToken("acct-1")
	require.NoError(t, err)
	emailToken, _, err := tokens.IssueEmailToken("acct-1", "a@x.com")
	require.NoError(t, err)

	var seen string
	protected := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = AccountIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantMsg    string
	}{
		{name: "valid session", header: "Bearer " + session, wantStatus: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + session, wantStatus: http.StatusOK},
		{name: "missing header", wantStatus: http.StatusUnauthorized, wantMsg: "Missing authorization header"},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized, wantMsg: "Invalid authorization header format"},
		{name: "garbage token", header: "Bearer nope", wantStatus: http.StatusUnauthorized, wantMsg: "Invalid or expired token"},
		{name: "email token", header: "Bearer " + emailToken, wantStatus: http.StatusUnauthorized, wantMsg: "Invalid or expired token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			protected.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "acct-1", seen)
				return
			}
			assert.Empty(t, seen)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "UNAUTHORIZED", body["code"])
			assert.Equal(t, tt.wantMsg, body["message"])
		})
	}
}

func TestAccountIDFromContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := AccountIDFromContext(req.Context())
	assert.False(t, ok)

	_, ok = AccountIDFromContext(WithAccountID(req.Context(), ""))
	assert.False(t, ok)

	id, ok := AccountIDFromContext(WithAccountID(req.Context(), "acct-9"))
	assert.True(t, ok)
	assert.Equal(t, "acct-9", id)
}

func TestLoggingMiddleware(t *testing.T) {
	logger, hook := test.NewNullLogger()

	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("hello"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, http.StatusOK, entry.Data["status"])
	assert.Equal(t, 5, entry.Data["bytes"])
	assert.Equal(t, "/ok", entry.Data["path"])

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/fail", bytes.NewBufferString("{}")))
	entry = hook.LastEntry()
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, http.StatusInternalServerError, entry.Data["status"])
	assert.Equal(t, http.MethodPost, entry.Data["method"])
}

func TestCORSMiddleware(t *testing.T) {
	called := false
	handler := CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.False(t, called)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.True(t, called)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}
