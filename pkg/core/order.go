package core

import "strings"

// transitions lists the allowed status changes. Same-status updates are no-ops
// and always allowed; CANCELLED is terminal.
var transitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderCompleted, OrderCancelled},
	OrderCompleted: {},
	OrderCancelled: {},
}

// Transition reports whether an order may move from one status to another.
func Transition(from, to OrderStatus) error {
	if _, ok := transitions[to]; !ok {
		return Invalid("status", "unknown order status %q", to)
	}
	if from == to {
		return nil
	}
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return &ValidationError{
		Line:   -1,
		Field:  "status",
		Reason: "cannot change order from " + string(from) + " to " + string(to),
		Err:    ErrInvalidTransition,
	}
}

// Restocks reports whether moving from one status to another returns the
// order's items to inventory.
func Restocks(from, to OrderStatus) bool {
	return from == OrderPending && to == OrderCancelled
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := transitions[st]; !ok {
		return "", Invalid("status", "unknown order status %q", s)
	}
	return st, nil
}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch pm := PaymentMethod(strings.ToUpper(strings.TrimSpace(s))); pm {
	case PayCash, PayCard, PayTransfer:
		return pm, nil
	}
	return "", Invalid("paymentMethod", "unknown payment method %q", s)
}

func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToUpper(strings.TrimSpace(s))); d {
	case StockIn, StockOut:
		return d, nil
	}
	return "", Invalid("type", "direction must be IN or OUT, got %q", s)
}

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleManager, RoleStaff:
		return r, nil
	}
	return "", Invalid("role", "unknown role %q", s)
}
