package checkout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/soyeahso/shopchat/internal/api"
	"github.com/soyeahso/shopchat/internal/domain"
	"github.com/soyeahso/shopchat/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMachine(t *testing.T, handler http.Handler, token string) (*Machine, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	log := logging.New(nil, "silent")
	client := api.NewClient(srv.URL, srv.URL, func() string { return token }, log)
	return NewMachine(client, log), &calls
}

func draft() domain.OrderDraft {
	return domain.OrderDraft{
		Items: []domain.CartLine{
			{ProductID: 7, ProductName: "Bàn phím cơ", Price: 1200000, Quantity: 2, Subtotal: 2400000},
		},
		TotalAmount: 2400000,
	}
}

func okOrder(msg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": true, "message": msg})
	}
}

func TestBegin_DefaultsPaymentToCOD(t *testing.T) {
	m, _ := newMachine(t, okOrder("ok"), "tok")

	require.NoError(t, m.Begin(draft()))

	assert.Equal(t, StateReviewing, m.State())
	assert.Equal(t, domain.PaymentCOD, m.Draft().PaymentMethod)
}

func TestBegin_WhileOpenIsRejected(t *testing.T) {
	m, _ := newMachine(t, okOrder("ok"), "tok")
	require.NoError(t, m.Begin(draft()))

	assert.ErrorIs(t, m.Begin(draft()), ErrAlreadyOpen)
}

func TestSubmit_EmptyAddressNeverIssuesRequest(t *testing.T) {
	m, calls := newMachine(t, okOrder("ok"), "tok")
	require.NoError(t, m.Begin(draft()))

	_, err := m.Submit(context.Background())

	assert.ErrorIs(t, err, domain.ErrMissingAddress)
	assert.Equal(t, StateReviewing, m.State(), "dialog stays open for editing")
	assert.Equal(t, int32(0), calls.Load())
}

func TestSubmit_NoCredentialFailsClosed(t *testing.T) {
	m, calls := newMachine(t, okOrder("ok"), "")
	require.NoError(t, m.Begin(draft()))
	require.NoError(t, m.SetShippingAddress("12 Nguyễn Huệ, Q1"))

	_, err := m.Submit(context.Background())

	assert.ErrorIs(t, err, api.ErrNoCredential)
	assert.Equal(t, StateReviewing, m.State())
	assert.Equal(t, int32(0), calls.Load())
}

func TestSubmit_Success(t *testing.T) {
	m, calls := newMachine(t, okOrder("Đặt hàng thành công! Mã đơn #88"), "tok")
	require.NoError(t, m.Begin(draft()))
	require.NoError(t, m.SetShippingAddress("12 Nguyễn Huệ, Q1"))
	require.NoError(t, m.SetPaymentMethod(domain.PaymentBankTransfer))

	msg, err := m.Submit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "Đặt hàng thành công! Mã đơn #88", msg)
	assert.Equal(t, StateClosed, m.State())
	assert.Empty(t, m.Draft().Items, "draft destroyed on success")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSubmit_BackendFailureReturnsToReviewing(t *testing.T) {
	m, _ := newMachine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "sản phẩm đã hết hàng"})
	}), "tok")
	require.NoError(t, m.Begin(draft()))
	require.NoError(t, m.SetShippingAddress("12 Nguyễn Huệ, Q1"))

	_, err := m.Submit(context.Background())

	require.Error(t, err)
	assert.Equal(t, StateReviewing, m.State())
	assert.Equal(t, "sản phẩm đã hết hàng", m.FailureMessage())
	assert.Len(t, m.Draft().Items, 1, "draft retained for resubmission")

	// The user may edit and resubmit from here.
	require.NoError(t, m.SetShippingAddress("34 Lê Lợi, Q1"))
}

func TestSubmit_TransportFailureUsesFallbackText(t *testing.T) {
	m, _ := newMachine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}), "tok")
	require.NoError(t, m.Begin(draft()))
	require.NoError(t, m.SetShippingAddress("12 Nguyễn Huệ, Q1"))

	_, err := m.Submit(context.Background())

	require.Error(t, err)
	assert.Equal(t, fallbackFailure, m.FailureMessage())
	assert.Equal(t, StateReviewing, m.State())
}

func TestCancel(t *testing.T) {
	m, calls := newMachine(t, okOrder("ok"), "tok")
	require.NoError(t, m.Begin(draft()))
	require.NoError(t, m.SetShippingAddress("12 Nguyễn Huệ, Q1"))

	m.Cancel()

	assert.Equal(t, StateClosed, m.State())
	assert.Empty(t, m.Draft().Items)
	assert.Equal(t, int32(0), calls.Load())

	// Closed again: a new draft may be opened.
	require.NoError(t, m.Begin(draft()))
}

func TestEditsOutsideReviewingAreRejected(t *testing.T) {
	m, _ := newMachine(t, okOrder("ok"), "tok")

	assert.ErrorIs(t, m.SetShippingAddress("x"), ErrNotReviewing)
	assert.ErrorIs(t, m.SetPaymentMethod(domain.PaymentCOD), ErrNotReviewing)
	_, err := m.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNotReviewing)
}

func TestSetPaymentMethod_RejectsUnknownValue(t *testing.T) {
	m, _ := newMachine(t, okOrder("ok"), "tok")
	require.NoError(t, m.Begin(draft()))

	assert.Error(t, m.SetPaymentMethod(domain.PaymentMethod("CRYPTO")))
	assert.Equal(t, domain.PaymentCOD, m.Draft().PaymentMethod)
}
