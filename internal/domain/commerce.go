package domain

import "errors"

// Product is an inline suggestion attached to an assistant message.
type Product struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	ImageURL string  `json:"imageUrl,omitempty"`
	Stock    int     `json:"stock,omitempty"`
	Category string  `json:"category,omitempty"`
}

// CartLine is one line of the server cart.
type CartLine struct {
	ProductID   int64   `json:"productId"`
	ProductName string  `json:"productName"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	Subtotal    float64 `json:"subtotal"`
}

// CartSnapshot is a pull-refreshed, non-authoritative mirror of server
// cart state.
type CartSnapshot struct {
	Items      []CartLine `json:"items"`
	TotalPrice float64    `json:"totalPrice"`
}

// ItemCount returns the sum of per-line quantities.
func (c CartSnapshot) ItemCount() int {
	n := 0
	for _, line := range c.Items {
		n += line.Quantity
	}
	return n
}

// Empty reports whether the cart has no lines.
func (c CartSnapshot) Empty() bool { return len(c.Items) == 0 }

// PaymentMethod enumerates supported checkout payment methods.
type PaymentMethod string

const (
	PaymentCOD          PaymentMethod = "COD"
	PaymentBankTransfer PaymentMethod = "BANK_TRANSFER"
)

// ErrMissingAddress blocks order submission with an empty shipping address.
var ErrMissingAddress = errors.New("shipping address is required")

// OrderDraft is the mutable, in-dialog representation of a not-yet-submitted
// order. Line items and totals are frozen at action-execution time.
type OrderDraft struct {
	Items           []CartLine    `json:"items"`
	TotalAmount     float64       `json:"totalAmount"`
	DiscountCode    string        `json:"discountCode,omitempty"`
	ShippingAddress string        `json:"shippingAddress"`
	PaymentMethod   PaymentMethod `json:"paymentMethod"`
}

// Validate checks the draft is submittable.
func (d OrderDraft) Validate() error {
	if d.ShippingAddress == "" {
		return ErrMissingAddress
	}
	return nil
}

// Profile is the commerce backend's view of the current user,
// fetched best-effort to pre-fill the shipping address.
type Profile struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Address     string `json:"address"`
}
