package invoice_test

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/rentledger/internal/http/invoice"
	"github.com/MrJamesThe3rd/rentledger/internal/settlement"
	"github.com/MrJamesThe3rd/rentledger/internal/settlement/memstore"
)

func TestHandler_Void(t *testing.T) {
	store := memstore.New()
	svc := settlement.NewService(store, nil)

	r := chi.NewRouter()
	r.Route("/facturas", invoice.NewHandler(svc).Routes)

	post := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader("")))

		return rec
	}

	open := store.AddInvoice(decimal.RequireFromString("250.00"), settlement.InvoiceOpen)
	path := "/facturas/" + strconv.FormatInt(open, 10) + "/anular"

	rec := post(path)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"message":"invoice voided","data":{"id":`+strconv.FormatInt(open, 10)+`,"estado":"ANULADA","saldo_pendiente":"250.00"}}`, rec.Body.String())

	rec = post(path)
	assert.Equal(t, http.StatusOK, rec.Code, "voiding twice is a no-op")

	pago := store.AddPayment(decimal.RequireFromString("100"))
	applied := store.AddInvoice(decimal.RequireFromString("100"), settlement.InvoiceOpen)
	_, err := svc.Apply(t.Context(), settlement.ApplyParams{PaymentID: pago, InvoiceID: applied, Amount: decimal.RequireFromString("40")})
	require.NoError(t, err)

	rec = post("/facturas/" + strconv.FormatInt(applied, 10) + "/anular")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"CONFLICT"`)

	assert.Equal(t, http.StatusNotFound, post("/facturas/999/anular").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, post("/facturas/x/anular").Code)
}
