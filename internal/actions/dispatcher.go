// Package actions executes the closed vocabulary of assistant-suggested
// actions. Each action is consumed from the pending set exactly once; a
// stale button can never be re-invoked.
package actions

import (
	"context"
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/soyeahso/shopchat/internal/api"
	"github.com/soyeahso/shopchat/internal/cart"
	"github.com/soyeahso/shopchat/internal/checkout"
	"github.com/soyeahso/shopchat/internal/domain"
	"github.com/soyeahso/shopchat/internal/logging"
)

// ErrUnknownAction rejects an action type outside the closed vocabulary.
var ErrUnknownAction = errors.New("unknown action type")

// Transcript is the slice of the conversation the dispatcher touches.
// Satisfied by chat.Controller.
type Transcript interface {
	AppendAssistant(content string)
	ConsumeAction(action domain.Action) bool
}

// Notifier surfaces transient, non-transcript notices (toast equivalents).
type Notifier interface {
	Notify(text string)
}

// Navigator leaves the conversation for the cart view. Terminal for the
// dispatcher.
type Navigator interface {
	OpenCart()
}

// Clipboard abstracts the system clipboard so tests can intercept it.
type Clipboard interface {
	Copy(text string) error
}

// SystemClipboard writes through to the OS clipboard.
type SystemClipboard struct{}

func (SystemClipboard) Copy(text string) error { return clipboard.WriteAll(text) }

// Dispatcher executes one action at a time against the commerce backend.
type Dispatcher struct {
	api        *api.Client
	transcript Transcript
	cart       *cart.Cache
	checkout   *checkout.Machine
	clip       Clipboard
	notify     Notifier
	nav        Navigator
	log        *logging.Logger
}

func NewDispatcher(client *api.Client, transcript Transcript, cache *cart.Cache, machine *checkout.Machine, clip Clipboard, notify Notifier, nav Navigator, log *logging.Logger) *Dispatcher {
	return &Dispatcher{
		api:        client,
		transcript: transcript,
		cart:       cache,
		checkout:   machine,
		clip:       clip,
		notify:     notify,
		nav:        nav,
		log:        log.Sub("actions"),
	}
}

// Execute runs one action. Whatever the outcome, the action is removed from
// the pending set.
func (d *Dispatcher) Execute(ctx context.Context, action domain.Action) error {
	d.transcript.ConsumeAction(action)

	switch action.Type {
	case domain.ActionAddToCart:
		return d.addToCart(ctx, action)
	case domain.ActionApplyDiscount:
		return d.applyDiscount(action)
	case domain.ActionViewCart:
		d.nav.OpenCart()
		return nil
	case domain.ActionCreateOrder:
		return d.createOrder(ctx)
	}

	d.notify.Notify(fmt.Sprintf("Hành động không được hỗ trợ: %s", action.Type))
	return fmt.Errorf("%w: %q", ErrUnknownAction, action.Type)
}

func (d *Dispatcher) addToCart(ctx context.Context, action domain.Action) error {
	qty := action.Quantity
	if qty <= 0 {
		qty = 1
	}

	msg, err := d.api.AddToCart(ctx, action.ProductID, qty)
	if err != nil {
		if errors.Is(err, api.ErrNoCredential) {
			d.notify.Notify("Vui lòng đăng nhập để thêm vào giỏ hàng.")
			return err
		}
		// Failure is a notice, not a transcript entry.
		d.notify.Notify(noticeText(err))
		return err
	}

	if msg == "" {
		msg = "Đã thêm sản phẩm vào giỏ hàng."
	}
	d.transcript.AppendAssistant(msg)

	if err := d.cart.Refresh(ctx); err != nil {
		d.log.Warn().Err(err).Msg("cart refresh after add failed")
	}
	return nil
}

// applyDiscount is purely local. No backend call, no transcript mutation.
func (d *Dispatcher) applyDiscount(action domain.Action) error {
	if action.Code == "" {
		d.notify.Notify("Mã giảm giá không hợp lệ.")
		return errors.New("discount action without a code")
	}

	if err := d.clip.Copy(action.Code); err != nil {
		d.log.Warn().Err(err).Msg("clipboard write failed")
		// Still show the code so the user can copy it by hand.
		d.notify.Notify(fmt.Sprintf("Mã giảm giá của bạn: %s", action.Code))
		return nil
	}
	d.notify.Notify(fmt.Sprintf("Đã sao chép mã %s vào clipboard.", action.Code))
	return nil
}

// createOrder assembles an OrderDraft from an authoritative cart fetch and
// hands it to the checkout machine. The transcript is untouched here; the
// confirmation is appended only after a successful submit.
func (d *Dispatcher) createOrder(ctx context.Context) error {
	snap, err := d.api.Cart(ctx)
	if err != nil {
		if errors.Is(err, api.ErrNoCredential) {
			d.notify.Notify("Vui lòng đăng nhập để đặt hàng.")
		} else {
			d.notify.Notify(noticeText(err))
		}
		return err
	}

	if snap.Empty() {
		d.notify.Notify("Giỏ hàng của bạn đang trống.")
		return nil
	}

	draft := domain.OrderDraft{
		Items:         snap.Items,
		TotalAmount:   snap.TotalPrice,
		PaymentMethod: domain.PaymentCOD,
	}

	// Best-effort address pre-fill. A missing profile never blocks checkout.
	if profile, err := d.api.Profile(ctx); err == nil {
		draft.ShippingAddress = profile.Address
	} else {
		d.log.Debug().Err(err).Msg("profile fetch failed, skipping address pre-fill")
	}

	if err := d.checkout.Begin(draft); err != nil {
		d.notify.Notify("Đang có một đơn hàng chờ xác nhận.")
		return err
	}
	return nil
}

// noticeText prefers the backend's own message over a generic one.
func noticeText(err error) string {
	var be *api.BackendError
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return "Đã xảy ra lỗi. Vui lòng thử lại."
}
