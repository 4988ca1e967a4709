package orders

import (
	"github.com/google/uuid"

	"github.com/freshcart-vn/freshcart-backend/pkg/enums"
)

// LineInput is one requested order line. Prices always come from the catalog,
// never from the client.
type LineInput struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// ShippingInfo is the delivery contact captured on the order.
type ShippingInfo struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// CreateInput is the order placement request.
type CreateInput struct {
	CustomerID    *uuid.UUID
	Items         []LineInput
	Shipping      ShippingInfo
	PaymentMethod enums.PaymentMethod
}

// Requester identifies who is acting on an order. Admins bypass the
// ownership check; guests may only act through admin channels.
type Requester struct {
	CustomerID *uuid.UUID
	Admin      bool
}

// CanAccess reports whether the requester may read or mutate the order owned
// by ownerID (nil for guest orders).
func (r Requester) CanAccess(ownerID *uuid.UUID) bool {
	if r.Admin {
		return true
	}
	if r.CustomerID == nil || ownerID == nil {
		return false
	}
	return *r.CustomerID == *ownerID
}

// statusTransitions is the admin-driven forward path of the state machine.
// Cancellation is not listed; it goes through Cancel with its own guard.
var statusTransitions = map[enums.OrderStatus]enums.OrderStatus{
	enums.OrderStatusPending:   enums.OrderStatusConfirmed,
	enums.OrderStatusConfirmed: enums.OrderStatusShipped,
	enums.OrderStatusShipped:   enums.OrderStatusDelivered,
}

func transitionAllowed(from, to enums.OrderStatus) bool {
	next, ok := statusTransitions[from]
	return ok && next == to
}
