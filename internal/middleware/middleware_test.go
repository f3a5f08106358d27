package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/capitalize-ai/care-messaging/internal/model"
	"github.com/capitalize-ai/care-messaging/pkg/apperror"
	"github.com/capitalize-ai/care-messaging/pkg/logger"
)

const secret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims *Claims) string {
	t.Helper()

	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return s
}

func validClaims(sub string) *Claims {
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role:    model.RoleMentor,
		Name:    "Dr. Rivera",
		Email:   "rivera@example.com",
		Picture: "https://cdn.example.com/rivera.png",
	}
}

func TestAuth(t *testing.T) {
	var gotUser string
	var gotProfile model.Profile
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = GetUserID(r.Context())
		gotProfile, _ = GetProfile(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := Auth(secret)(next)

	expired := validClaims("mentor-1")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"valid bearer", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims("mentor-1")), "", http.StatusNoContent},
		{"valid query token", "", sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims("mentor-1")), http.StatusNoContent},
		{"missing", "", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", "", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("other"), validClaims("mentor-1")), "", http.StatusUnauthorized},
		{"expired", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), expired), "", http.StatusUnauthorized},
		{"no subject", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims("")), "", http.StatusUnauthorized},
		{"unsigned", "Bearer " + sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, validClaims("mentor-1")), "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotUser = ""
			target := "/api/v1/conversations"
			if tt.query != "" {
				target += "?access_token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusNoContent {
				if gotUser != "mentor-1" {
					t.Errorf("user id = %q, want mentor-1", gotUser)
				}
				if gotProfile.Role != model.RoleMentor || gotProfile.AvatarURL == nil {
					t.Errorf("profile = %+v", gotProfile)
				}
			}
		})
	}
}

func TestAuth_QueryTokenOnlyForGet(t *testing.T) {
	h := Auth(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tok := sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims("patient-1"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations?access_token="+tok, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestLogging_CorrelationID(t *testing.T) {
	var seen string
	h := Logging(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetCorrelationID(r.Context())
		if _, ok := w.(http.Flusher); !ok {
			t.Error("wrapped writer lost http.Flusher")
		}
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Correlation-ID", "corr-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "corr-123" || rec.Header().Get("X-Correlation-ID") != "corr-123" {
		t.Fatalf("correlation id = %q, header %q", seen, rec.Header().Get("X-Correlation-ID"))
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Fatal("expected a generated correlation id")
	}
}

func TestUserRateLimit(t *testing.T) {
	h := UserRateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithIdentity(req.Context(), model.Profile{UserID: user}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := call("patient-1"); code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, code)
		}
	}
	if code := call("patient-1"); code != http.StatusTooManyRequests {
		t.Fatalf("over-limit status = %d, want 429", code)
	}
	if code := call("patient-2"); code != http.StatusOK {
		t.Fatalf("other user status = %d, want 200", code)
	}
}

func TestValidateMessageContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"plain", "hello", false},
		{"padded", "  hi  ", false},
		{"empty", "", true},
		{"whitespace", " \n\t ", true},
		{"too long", strings.Repeat("a", MaxContentLength+1), true},
		{"invalid utf8", "bad \xff byte", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessageContent(tt.content)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !apperror.Is(err, apperror.KindInvalidInput) {
				t.Fatalf("kind = %s, want INVALID_INPUT", apperror.KindOf(err))
			}
		})
	}
}

func TestValidateParticipants(t *testing.T) {
	if err := ValidateParticipants("a", "b"); err != nil {
		t.Fatalf("distinct users: %v", err)
	}
	for _, other := range []string{"a", "", "  "} {
		if err := ValidateParticipants("a", other); !apperror.Is(err, apperror.KindInvalidParticipants) {
			t.Errorf("ValidateParticipants(a, %q) = %v, want INVALID_PARTICIPANTS", other, err)
		}
	}
}

func TestValidateIDsAndAttachment(t *testing.T) {
	if err := ValidateConversationID("0190a000-0000-7000-8000-000000000000"); err != nil {
		t.Errorf("valid conversation id: %v", err)
	}
	if err := ValidateMessageID("nope"); err == nil {
		t.Error("expected invalid message id")
	}
	if err := ValidateAttachment("https://files.example.com/a.pdf", "application/pdf"); err != nil {
		t.Errorf("valid attachment: %v", err)
	}
	if err := ValidateAttachment("file:///etc/passwd", ""); err == nil {
		t.Error("expected non-http attachment to be rejected")
	}
}
