package billing

import "strings"

// Classification is the verdict on an order status.
type Classification struct {
	Paid   bool
	Reason string
}

// ClassifyOrder maps a WooCommerce order status to paid or an ignore reason.
// Only processing and completed orders are paid.
func ClassifyOrder(status string) Classification {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "processing", "completed":
		return Classification{Paid: true}
	case "refunded":
		return Classification{Reason: ReasonOrderRefunded}
	case "cancelled", "canceled":
		return Classification{Reason: ReasonOrderCancelled}
	case "failed":
		return Classification{Reason: ReasonOrderFailed}
	case "pending":
		return Classification{Reason: ReasonOrderPending}
	case "on-hold":
		return Classification{Reason: ReasonOrderOnHold}
	default:
		return Classification{Reason: ReasonOrderNotPaid}
	}
}
