package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/mortgage-service/internal/config"
)

const testSecret = "test-secret"

func signedToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims(subject string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
}

func protected(t *testing.T) (http.Handler, *int64) {
	var seen int64 = -1
	h := AuthMiddleware(&config.Config{JWTSecret: testSecret})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserIDFromContext(r.Context())
		require.True(t, ok)
		seen = id
		w.WriteHeader(http.StatusNoContent)
	}))
	return h, &seen
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	h, seen := protected(t)
	req := httptest.NewRequest(http.MethodGet, "/api/loans", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("42")))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(42), *seen)
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	expired := validClaims("42")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noExpiry := jwt.RegisteredClaims{Subject: "42"}

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"garbage", "Bearer not-a-jwt"},
		{"wrong secret", "Bearer " + signedToken(t, jwt.SigningMethodHS256, []byte("other"), validClaims("42"))},
		{"expired", "Bearer " + signedToken(t, jwt.SigningMethodHS256, []byte(testSecret), expired)},
		{"no expiry", "Bearer " + signedToken(t, jwt.SigningMethodHS256, []byte(testSecret), noExpiry)},
		{"wrong algorithm", "Bearer " + signedToken(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims("42"))},
		{"non numeric subject", "Bearer " + signedToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("jane"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, seen := protected(t)
			req := httptest.NewRequest(http.MethodGet, "/api/loans", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, int64(-1), *seen)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.0001, 2, quietLogger())
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// a different client has its own bucket
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_KeysByUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/loans", nil)
	assert.Equal(t, "ip:192.0.2.1", clientKey(req))

	req = req.WithContext(WithUserID(req.Context(), 9))
	assert.Equal(t, "user:9", clientKey(req))
}

func TestRateLimiter_Cleanup(t *testing.T) {
	now := time.Now()
	rl := NewRateLimiter(1, 1, quietLogger())
	rl.now = func() time.Time { return now }

	rl.getLimiter("ip:a")
	now = now.Add(2 * time.Hour)
	rl.getLimiter("ip:b")

	assert.Equal(t, 1, rl.Cleanup())
	assert.Len(t, rl.limiters, 1)
}

func TestLogging(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/loans", nil))

	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, http.StatusBadRequest, entry.Data["status"])
	assert.Equal(t, rec.Header().Get(RequestIDHeader), entry.Data["request_id"])
}

func TestLogging_KeepsClientRequestID(t *testing.T) {
	logger, _ := test.NewNullLogger()
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestResponseRecorder(t *testing.T) {
	rec := NewResponseRecorder(httptest.NewRecorder())
	_, err := rec.Write([]byte(`{"ok":true}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Status())
	assert.Equal(t, 11, rec.Bytes())

	rec = NewResponseRecorder(httptest.NewRecorder())
	rec.WriteHeader(http.StatusCreated)
	assert.Equal(t, http.StatusCreated, rec.Status())
	assert.Zero(t, rec.Bytes())
}
