package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/rentledger/internal/auth"
)

const secret = "test-secret"

func sign(t *testing.T, key string, claims auth.Claims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)

	return token
}

func validClaims() auth.Claims {
	return auth.Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin@example.com",
			Issuer:    "rentledger",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestVerifier_Middleware(t *testing.T) {
	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	otherIssuer := validClaims()
	otherIssuer.Issuer = "someone-else"

	noSubject := validClaims()
	noSubject.Subject = ""

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantActor  string
	}{
		{name: "Valid", header: "Bearer " + sign(t, secret, validClaims()), wantStatus: http.StatusOK, wantActor: "admin@example.com"},
		{name: "Missing", header: "", wantStatus: http.StatusUnauthorized},
		{name: "NotBearer", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "WrongKey", header: "Bearer " + sign(t, "other", validClaims()), wantStatus: http.StatusUnauthorized},
		{name: "Expired", header: "Bearer " + sign(t, secret, expired), wantStatus: http.StatusUnauthorized},
		{name: "WrongIssuer", header: "Bearer " + sign(t, secret, otherIssuer), wantStatus: http.StatusUnauthorized},
		{name: "NoSubject", header: "Bearer " + sign(t, secret, noSubject), wantStatus: http.StatusUnauthorized},
	}

	verifier := auth.NewVerifier(secret, "rentledger")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotActor string

			h := verifier.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotActor = auth.ActorFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantActor, gotActor)

			if tt.wantStatus == http.StatusUnauthorized {
				assert.Contains(t, rec.Body.String(), `"code":"UNAUTHORIZED"`)
			}
		})
	}
}

func TestVerifier_RejectsOtherAlgorithms(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, validClaims()).SignedString([]byte(secret))
	require.NoError(t, err)

	_, err = auth.NewVerifier(secret, "").Verify(token)
	assert.Error(t, err)
}
