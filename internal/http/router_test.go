package http_test

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/rentledger/internal/auth"
	rlhttp "github.com/MrJamesThe3rd/rentledger/internal/http"
	"github.com/MrJamesThe3rd/rentledger/internal/http/invoice"
	"github.com/MrJamesThe3rd/rentledger/internal/http/payment"
	"github.com/MrJamesThe3rd/rentledger/internal/settlement"
	"github.com/MrJamesThe3rd/rentledger/internal/settlement/memstore"
)

const secret = "router-secret"

func newRouter(t *testing.T) (http.Handler, *memstore.Store) {
	t.Helper()

	store := memstore.New()
	svc := settlement.NewService(store, nil)

	router := rlhttp.New(
		rlhttp.Options{AllowedOrigins: []string{"https://app.example.com"}, Timeout: 5 * time.Second},
		auth.NewVerifier(secret, ""),
		payment.NewHandler(svc),
		invoice.NewHandler(svc),
	)

	return router, store
}

func bearer(t *testing.T) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops@example.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	return "Bearer " + token
}

func TestRouter_Healthz(t *testing.T) {
	router, _ := newRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_RequiresToken(t *testing.T) {
	router, _ := newRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/pagos/1/aplicaciones", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"UNAUTHORIZED"`)
}

func TestRouter_ApplyEndToEnd(t *testing.T) {
	router, store := newRouter(t)
	pago := store.AddPayment(decimal.RequireFromString("1000.00"))
	factura := store.AddInvoice(decimal.RequireFromString("500.00"), settlement.InvoiceOpen)

	body := `{"factura_id":` + strconv.FormatInt(factura, 10) + `,"monto_aplicado":"500.00"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pagos/"+strconv.FormatInt(pago, 10)+"/aplicaciones", strings.NewReader(body))
	req.Header.Set("Authorization", bearer(t))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	inv, _ := store.Invoice(factura)
	assert.Equal(t, settlement.InvoicePaid, inv.Status)
}

func TestRouter_RejectsNonJSONBody(t *testing.T) {
	router, _ := newRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/pagos/1/aplicaciones", strings.NewReader("factura_id=1"))
	req.Header.Set("Authorization", bearer(t))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	router, _ := newRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/pagos/1/aplicaciones", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
