package api

import (
	"context"

	"github.com/soyeahso/shopchat/internal/domain"
)

// agentResponse is the commerce backend's structured result envelope.
type agentResponse struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Cart    *domain.CartSnapshot `json:"cart,omitempty"`
}

// unwrap converts {success:false, message} into a BackendError.
func (r agentResponse) unwrap() error {
	if r.Success {
		return nil
	}
	msg := r.Message
	if msg == "" {
		msg = "the store could not process the request"
	}
	return &BackendError{Message: msg}
}

// AddToCart adds a product to the server cart. Requires a stored credential.
func (c *Client) AddToCart(ctx context.Context, productID int64, quantity int) (string, error) {
	if c.token() == "" {
		return "", ErrNoCredential
	}

	body := map[string]any{"productId": productID, "quantity": quantity}
	req, err := c.newRequest(ctx, "POST", c.commerceBase+"/agent/cart/add", body)
	if err != nil {
		return "", err
	}

	var out agentResponse
	if err := c.doJSON(req, &out); err != nil {
		return "", err
	}
	if err := out.unwrap(); err != nil {
		return "", err
	}
	return out.Message, nil
}

// Cart fetches the authoritative server cart.
func (c *Client) Cart(ctx context.Context) (domain.CartSnapshot, error) {
	if c.token() == "" {
		return domain.CartSnapshot{}, ErrNoCredential
	}

	req, err := c.newRequest(ctx, "GET", c.commerceBase+"/agent/cart", nil)
	if err != nil {
		return domain.CartSnapshot{}, err
	}

	var out agentResponse
	if err := c.doJSON(req, &out); err != nil {
		return domain.CartSnapshot{}, err
	}
	if err := out.unwrap(); err != nil {
		return domain.CartSnapshot{}, err
	}
	if out.Cart == nil {
		return domain.CartSnapshot{}, nil
	}
	return *out.Cart, nil
}

// CreateOrder submits an order. Requires a stored credential.
func (c *Client) CreateOrder(ctx context.Context, draft domain.OrderDraft) (string, error) {
	if c.token() == "" {
		return "", ErrNoCredential
	}

	items := make([]map[string]any, 0, len(draft.Items))
	for _, line := range draft.Items {
		items = append(items, map[string]any{
			"productId": line.ProductID,
			"quantity":  line.Quantity,
		})
	}
	body := map[string]any{
		"items":           items,
		"shippingAddress": draft.ShippingAddress,
		"paymentMethod":   draft.PaymentMethod,
	}

	req, err := c.newRequest(ctx, "POST", c.commerceBase+"/agent/order/create", body)
	if err != nil {
		return "", err
	}

	var out agentResponse
	if err := c.doJSON(req, &out); err != nil {
		return "", err
	}
	if err := out.unwrap(); err != nil {
		return "", err
	}
	return out.Message, nil
}

// Profile fetches the current user's profile. Best-effort for callers:
// failures only skip address pre-fill.
func (c *Client) Profile(ctx context.Context) (domain.Profile, error) {
	if c.token() == "" {
		return domain.Profile{}, ErrNoCredential
	}

	req, err := c.newRequest(ctx, "GET", c.commerceBase+"/users/me", nil)
	if err != nil {
		return domain.Profile{}, err
	}

	var out domain.Profile
	if err := c.doJSON(req, &out); err != nil {
		return domain.Profile{}, err
	}
	return out, nil
}

// Login authenticates against the commerce backend and returns the
// principal blob to persist locally.
func (c *Client) Login(ctx context.Context, username, password string) (domain.Principal, error) {
	body := map[string]string{"username": username, "password": password}
	req, err := c.newRequest(ctx, "POST", c.commerceBase+"/auth/login", body)
	if err != nil {
		return domain.Principal{}, err
	}

	var out domain.Principal
	if err := c.doJSON(req, &out); err != nil {
		return domain.Principal{}, err
	}
	return out, nil
}
