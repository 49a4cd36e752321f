package domain

import "encoding/json"

// ActionType is the closed vocabulary of assistant-suggested actions.
type ActionType string

const (
	ActionAddToCart     ActionType = "ADD_TO_CART"
	ActionApplyDiscount ActionType = "APPLY_DISCOUNT"
	ActionViewCart      ActionType = "VIEW_CART"
	ActionCreateOrder   ActionType = "CREATE_ORDER"
)

// Known reports whether the type is part of the closed vocabulary.
// Unknown types are kept so the dispatcher can reject them explicitly.
func (t ActionType) Known() bool {
	switch t {
	case ActionAddToCart, ActionApplyDiscount, ActionViewCart, ActionCreateOrder:
		return true
	}
	return false
}

// Action is a structured, backend-suggested, client-executable side effect
// attached to an assistant turn. The current action set is replaced wholesale
// on every assistant turn and cleared after execution.
type Action struct {
	Type  ActionType `json:"type"`
	Label string     `json:"label"`

	// ADD_TO_CART
	ProductID int64 `json:"productId,omitempty"`
	Quantity  int   `json:"quantity,omitempty"`

	// APPLY_DISCOUNT
	Code string `json:"code,omitempty"`
}

// UnmarshalJSON defaults the quantity for ADD_TO_CART actions.
func (a *Action) UnmarshalJSON(data []byte) error {
	type raw Action
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*a = Action(r)
	if a.Type == ActionAddToCart && a.Quantity <= 0 {
		a.Quantity = 1
	}
	return nil
}
