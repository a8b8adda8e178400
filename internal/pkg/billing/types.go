package billing

import (
	"errors"
	"fmt"
)

// WooCommerce webhook topics.
const (
	TopicOrderCreated = "order.created"
	TopicOrderUpdated = "order.updated"
	TopicOrderPaid    = "order.paid"
)

// Reasons recorded on audit records and returned to the sender.
const (
	ReasonInvalidPayload       = "invalid_payload"
	ReasonInvalidSignature     = "invalid_signature"
	ReasonPing                 = "ping"
	ReasonUnsupportedTopic     = "unsupported_topic"
	ReasonOrderNotPaid         = "order_not_paid"
	ReasonOrderRefunded        = "order_refunded"
	ReasonOrderCancelled       = "order_cancelled"
	ReasonOrderFailed          = "order_failed"
	ReasonOrderPending         = "order_pending"
	ReasonOrderOnHold          = "order_on_hold"
	ReasonUnknownPackageSKU    = "unknown_package_sku"
	ReasonCustomerNotMapped    = "customer_not_mapped"
	ReasonCustomerConflict     = "customer_conflict"
	ReasonOwnershipMismatch    = "ownership_mismatch"
	ReasonEventNotFound        = "event_not_found"
	ReasonDirectoryUnavailable = "directory_unavailable"
	ReasonInternalError        = "internal_error"
	ReasonDuplicate            = "duplicate"
)

// OutcomeKind tags a successful provisioning outcome.
type OutcomeKind string

const (
	KindDuplicate OutcomeKind = "duplicate"
	KindUpgraded  OutcomeKind = "upgraded"
	KindCreated   OutcomeKind = "created"
)

// Outcome is the committed result of Processor.Apply.
type Outcome struct {
	Kind    OutcomeKind
	EventID uint
	UserID  uint
}

// Failure tags an aborted provisioning transaction.
type Failure string

const (
	OutcomeTargetNotFound    Failure = "target_not_found"
	OutcomeOwnershipMismatch Failure = "ownership_mismatch"
	OutcomeCustomerConflict  Failure = "customer_conflict"
)

// ProvisionError is returned when a business rule aborts the transaction.
// Nothing, including the idempotency receipt, has been committed.
type ProvisionError struct {
	Outcome Failure
	Reason  string
	Err     error
}

func (e *ProvisionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provisioning aborted (%s): %v", e.Outcome, e.Err)
	}
	return fmt.Sprintf("provisioning aborted (%s)", e.Outcome)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// AsProvisionError extracts a *ProvisionError from err.
func AsProvisionError(err error) (*ProvisionError, bool) {
	var pe *ProvisionError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// Response is the JSON body acknowledged to the webhook sender.
type Response struct {
	Success   bool   `json:"success"`
	EventID   uint   `json:"eventId,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Ignored   bool   `json:"ignored,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Result is what the pipeline hands back to the HTTP layer.
type Result struct {
	HTTPStatus int
	Response   Response
	AuditID    string
	AuditState string
}
