package domain

import "strings"

// OrderStatus is the lifecycle state of a purchase order.
type OrderStatus string

const (
	StatusPendingConfirmation OrderStatus = "pending_confirmation"
	StatusPreparing           OrderStatus = "preparing"
	StatusInTransit           OrderStatus = "in_transit"
	StatusReceived            OrderStatus = "received"
	StatusReconciliation      OrderStatus = "reconciliation"
	StatusCompleted           OrderStatus = "completed"
)

var orderStatusLabels = map[OrderStatus]string{
	StatusPendingConfirmation: "Pending Confirmation",
	StatusPreparing:           "Preparing",
	StatusInTransit:           "In Transit",
	StatusReceived:            "Received",
	StatusReconciliation:      "Reconciliation",
	StatusCompleted:           "Completed",
}

// Label returns a human-readable label for the status.
func (s OrderStatus) Label() string {
	if label, ok := orderStatusLabels[s]; ok {
		return label
	}

	return "Unknown"
}

// IsTerminal reports whether no further lifecycle transitions apply.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted
}

// ParseOrderStatus returns the status for a given code (case-insensitive).
func ParseOrderStatus(code string) (OrderStatus, bool) {
	s := OrderStatus(strings.ToLower(strings.TrimSpace(code)))
	_, ok := orderStatusLabels[s]

	return s, ok
}
