package actions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/soyeahso/shopchat/internal/api"
	"github.com/soyeahso/shopchat/internal/cart"
	"github.com/soyeahso/shopchat/internal/checkout"
	"github.com/soyeahso/shopchat/internal/domain"
	"github.com/soyeahso/shopchat/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTranscript struct {
	appended []string
	consumed []domain.Action
}

func (f *fakeTranscript) AppendAssistant(content string) { f.appended = append(f.appended, content) }
func (f *fakeTranscript) ConsumeAction(a domain.Action) bool {
	f.consumed = append(f.consumed, a)
	return true
}

type fakeNotifier struct{ notices []string }

func (f *fakeNotifier) Notify(text string) { f.notices = append(f.notices, text) }

type fakeNavigator struct{ opened int }

func (f *fakeNavigator) OpenCart() { f.opened++ }

type fakeClipboard struct {
	copied string
	err    error
}

func (f *fakeClipboard) Copy(text string) error {
	if f.err != nil {
		return f.err
	}
	f.copied = text
	return nil
}

type dispatcherEnv struct {
	mux        *http.ServeMux
	calls      atomic.Int32
	transcript *fakeTranscript
	notifier   *fakeNotifier
	nav        *fakeNavigator
	clip       *fakeClipboard
	cache      *cart.Cache
	machine    *checkout.Machine
	d          *Dispatcher
}

func newDispatcherEnv(t *testing.T, token string) *dispatcherEnv {
	t.Helper()
	env := &dispatcherEnv{
		mux:        http.NewServeMux(),
		transcript: &fakeTranscript{},
		notifier:   &fakeNotifier{},
		nav:        &fakeNavigator{},
		clip:       &fakeClipboard{},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.calls.Add(1)
		env.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	log := logging.New(nil, "silent")
	client := api.NewClient(srv.URL, srv.URL, func() string { return token }, log)
	env.cache = cart.NewCache(client, log)
	env.machine = checkout.NewMachine(client, log)
	env.d = NewDispatcher(client, env.transcript, env.cache, env.machine, env.clip, env.notifier, env.nav, log)
	return env
}

func (e *dispatcherEnv) handleCart(total float64, items ...map[string]any) {
	e.mux.HandleFunc("/agent/cart", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"cart":    map[string]any{"items": items, "totalPrice": total},
		})
	})
}

func TestExecute_AddToCart(t *testing.T) {
	env := newDispatcherEnv(t, "tok")
	env.mux.HandleFunc("/agent/cart/add", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(7), body["productId"])
		assert.Equal(t, float64(2), body["quantity"])
		json.NewEncoder(w).Encode(map[string]any{"success": true, "message": "Đã thêm Bàn phím cơ x2"})
	})
	env.handleCart(2400000, map[string]any{"productId": 7, "quantity": 2})

	a := domain.Action{Type: domain.ActionAddToCart, Label: "Thêm", ProductID: 7, Quantity: 2}
	require.NoError(t, env.d.Execute(context.Background(), a))

	assert.Equal(t, []string{"Đã thêm Bàn phím cơ x2"}, env.transcript.appended)
	assert.Equal(t, []domain.Action{a}, env.transcript.consumed)
	assert.Equal(t, 2, env.cache.Count(), "cart badge refreshed after add")
}

func TestExecute_AddToCart_NoCredential(t *testing.T) {
	env := newDispatcherEnv(t, "")

	a := domain.Action{Type: domain.ActionAddToCart, ProductID: 7, Quantity: 1}
	err := env.d.Execute(context.Background(), a)

	assert.ErrorIs(t, err, api.ErrNoCredential)
	assert.Equal(t, int32(0), env.calls.Load(), "no request without a credential")
	assert.Empty(t, env.transcript.appended)
	assert.Len(t, env.notifier.notices, 1)
	assert.Len(t, env.transcript.consumed, 1, "failed action still consumed")
}

func TestExecute_AddToCart_BackendFailureIsNoticeOnly(t *testing.T) {
	env := newDispatcherEnv(t, "tok")
	env.mux.HandleFunc("/agent/cart/add", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "sản phẩm đã hết hàng"})
	})

	err := env.d.Execute(context.Background(), domain.Action{Type: domain.ActionAddToCart, ProductID: 7, Quantity: 1})

	require.Error(t, err)
	assert.Empty(t, env.transcript.appended, "failure must not mutate chat history")
	assert.Equal(t, []string{"sản phẩm đã hết hàng"}, env.notifier.notices)
}

func TestExecute_ApplyDiscount(t *testing.T) {
	env := newDispatcherEnv(t, "tok")

	a := domain.Action{Type: domain.ActionApplyDiscount, Label: "Mã giảm", Code: "SALE10"}
	require.NoError(t, env.d.Execute(context.Background(), a))

	assert.Equal(t, "SALE10", env.clip.copied)
	assert.Equal(t, int32(0), env.calls.Load(), "purely local, no backend call")
	assert.Empty(t, env.transcript.appended)
	require.Len(t, env.notifier.notices, 1)
	assert.Contains(t, env.notifier.notices[0], "SALE10")
}

func TestExecute_ApplyDiscount_ClipboardFailureShowsCode(t *testing.T) {
	env := newDispatcherEnv(t, "tok")
	env.clip.err = errors.New("no display")

	require.NoError(t, env.d.Execute(context.Background(), domain.Action{Type: domain.ActionApplyDiscount, Code: "SALE10"}))

	require.Len(t, env.notifier.notices, 1)
	assert.Contains(t, env.notifier.notices[0], "SALE10", "user must still see the code")
}

func TestExecute_ViewCart(t *testing.T) {
	env := newDispatcherEnv(t, "tok")

	require.NoError(t, env.d.Execute(context.Background(), domain.Action{Type: domain.ActionViewCart, Label: "Xem giỏ"}))

	assert.Equal(t, 1, env.nav.opened)
	assert.Equal(t, int32(0), env.calls.Load(), "preview reuses the last refresh")
}

func TestExecute_CreateOrder_OpensCheckoutWithFreshCart(t *testing.T) {
	env := newDispatcherEnv(t, "tok")
	env.handleCart(2400000,
		map[string]any{"productId": 7, "productName": "Bàn phím cơ", "price": 1200000, "quantity": 2, "subtotal": 2400000},
	)
	env.mux.HandleFunc("/users/me", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"username": "an", "address": "12 Nguyễn Huệ, Q1"})
	})

	require.NoError(t, env.d.Execute(context.Background(), domain.Action{Type: domain.ActionCreateOrder, Label: "Đặt hàng"}))

	assert.Equal(t, checkout.StateReviewing, env.machine.State())
	draft := env.machine.Draft()
	require.Len(t, draft.Items, 1)
	assert.Equal(t, float64(2400000), draft.TotalAmount)
	assert.Equal(t, "12 Nguyễn Huệ, Q1", draft.ShippingAddress, "address pre-filled from profile")
	assert.Equal(t, domain.PaymentCOD, draft.PaymentMethod)
	assert.Empty(t, env.transcript.appended, "no transcript entry until submit succeeds")
}

func TestExecute_CreateOrder_EmptyCartAborts(t *testing.T) {
	env := newDispatcherEnv(t, "tok")
	env.handleCart(0)
	env.mux.HandleFunc("/agent/order/create", func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("order endpoint must not be called")
	})

	require.NoError(t, env.d.Execute(context.Background(), domain.Action{Type: domain.ActionCreateOrder}))

	assert.Equal(t, checkout.StateClosed, env.machine.State(), "empty cart never opens the dialog")
	assert.Equal(t, []string{"Giỏ hàng của bạn đang trống."}, env.notifier.notices)
}

func TestExecute_CreateOrder_ProfileFailureDoesNotBlock(t *testing.T) {
	env := newDispatcherEnv(t, "tok")
	env.handleCart(100, map[string]any{"productId": 1, "quantity": 1})
	env.mux.HandleFunc("/users/me", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	})

	require.NoError(t, env.d.Execute(context.Background(), domain.Action{Type: domain.ActionCreateOrder}))

	assert.Equal(t, checkout.StateReviewing, env.machine.State())
	assert.Empty(t, env.machine.Draft().ShippingAddress, "pre-fill skipped, checkout still opens")
}

func TestExecute_UnknownTypeIsHandledError(t *testing.T) {
	env := newDispatcherEnv(t, "tok")

	err := env.d.Execute(context.Background(), domain.Action{Type: domain.ActionType("TELEPORT"), Label: "?"})

	assert.ErrorIs(t, err, ErrUnknownAction)
	assert.Equal(t, int32(0), env.calls.Load())
	assert.Len(t, env.transcript.consumed, 1, "unknown action is still cleared")
	require.Len(t, env.notifier.notices, 1, "unknown type must not be a silent no-op")
	assert.Contains(t, env.notifier.notices[0], "TELEPORT")
}
