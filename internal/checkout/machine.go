// Package checkout drives the order confirmation flow as an explicit finite
// state machine. Order creation is the one action with financial consequence,
// so every transition is validated and the submit path fails closed.
package checkout

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/soyeahso/shopchat/internal/api"
	"github.com/soyeahso/shopchat/internal/domain"
	"github.com/soyeahso/shopchat/internal/logging"
)

// State is the checkout dialog state.
type State int

const (
	StateClosed State = iota
	StateReviewing
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateReviewing:
		return "reviewing"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

var (
	// ErrNotReviewing means the requested edit or submit is only legal in
	// the Reviewing state.
	ErrNotReviewing = errors.New("checkout is not open for review")

	// ErrAlreadyOpen means Begin was called while a draft is in progress.
	ErrAlreadyOpen = errors.New("a checkout is already in progress")
)

// fallbackFailure is shown when the backend rejects an order without a
// message of its own.
const fallbackFailure = "Không thể tạo đơn hàng. Vui lòng thử lại."

// Machine owns one OrderDraft at a time. Line items and totals are frozen at
// Begin; only the shipping address and payment method are editable.
type Machine struct {
	api *api.Client
	log *logging.Logger

	mu      sync.Mutex
	state   State
	draft   domain.OrderDraft
	failure string
}

func NewMachine(client *api.Client, log *logging.Logger) *Machine {
	return &Machine{api: client, log: log.Sub("checkout"), state: StateClosed}
}

// State returns the current dialog state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Draft returns a copy of the order under review.
func (m *Machine) Draft() domain.OrderDraft {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.draft
	out.Items = make([]domain.CartLine, len(m.draft.Items))
	copy(out.Items, m.draft.Items)
	return out
}

// FailureMessage returns the last submit failure, empty when none.
func (m *Machine) FailureMessage() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failure
}

// Begin opens the dialog in Reviewing with the given draft. The payment
// method defaults to COD when unset.
func (m *Machine) Begin(draft domain.OrderDraft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateClosed {
		return ErrAlreadyOpen
	}
	if draft.PaymentMethod == "" {
		draft.PaymentMethod = domain.PaymentCOD
	}
	m.draft = draft
	m.failure = ""
	m.state = StateReviewing
	return nil
}

// SetShippingAddress edits the draft address. Legal only while Reviewing.
func (m *Machine) SetShippingAddress(addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateReviewing {
		return ErrNotReviewing
	}
	m.draft.ShippingAddress = strings.TrimSpace(addr)
	return nil
}

// SetPaymentMethod edits the draft payment method. Legal only while Reviewing.
func (m *Machine) SetPaymentMethod(pm domain.PaymentMethod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateReviewing {
		return ErrNotReviewing
	}
	if pm != domain.PaymentCOD && pm != domain.PaymentBankTransfer {
		return errors.New("unknown payment method: " + string(pm))
	}
	m.draft.PaymentMethod = pm
	return nil
}

// Submit posts the order. An empty shipping address or a missing credential
// blocks the request client-side and the dialog stays in Reviewing. On
// backend failure the dialog returns to Reviewing with the draft intact so
// the user can edit and resubmit. On success the draft is destroyed and the
// dialog closes; the backend confirmation text is returned for the caller to
// append to the transcript.
func (m *Machine) Submit(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.state != StateReviewing {
		m.mu.Unlock()
		return "", ErrNotReviewing
	}
	if err := m.draft.Validate(); err != nil {
		m.failure = ""
		m.mu.Unlock()
		return "", err
	}
	m.state = StateSubmitting
	draft := m.draft
	m.mu.Unlock()

	msg, err := m.api.CreateOrder(ctx, draft)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.state = StateReviewing
		m.failure = failureText(err)
		m.log.Warn().Err(err).Msg("order submit failed")
		return "", err
	}

	// Succeeded is transient: the draft is destroyed and the dialog closes
	// as soon as the confirmation is handed back.
	m.state = StateClosed
	m.draft = domain.OrderDraft{}
	m.failure = ""
	return msg, nil
}

// Cancel discards the draft and closes the dialog. No network call.
func (m *Machine) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draft = domain.OrderDraft{}
	m.failure = ""
	m.state = StateClosed
}

func failureText(err error) string {
	var be *api.BackendError
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return fallbackFailure
}
