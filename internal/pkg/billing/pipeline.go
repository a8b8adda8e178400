package billing

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/EventBooth/app/models"
	"github.com/ManuelReschke/EventBooth/internal/pkg/audit"
	"github.com/ManuelReschke/EventBooth/internal/pkg/identity"
)

// CustomerResolver maps order customers to external customer ids.
type CustomerResolver interface {
	Resolve(ctx context.Context, ref identity.CustomerRef) (identity.Resolution, error)
	ContactEmail(ctx context.Context, customerID int64) (string, error)
}

// Delivery is one inbound webhook request.
type Delivery struct {
	Payload    []byte
	Signature  string
	Topic      string
	Source     string
	DeliveryID string
}

// Pipeline takes a webhook delivery from signature check to provisioning.
type Pipeline struct {
	verifier  *Verifier
	audit     *audit.Log
	packages  *PackageResolver
	customers CustomerResolver
	processor *Processor
}

func NewPipeline(verifier *Verifier, auditLog *audit.Log, packages *PackageResolver, customers CustomerResolver, processor *Processor) *Pipeline {
	return &Pipeline{
		verifier:  verifier,
		audit:     auditLog,
		packages:  packages,
		customers: customers,
		processor: processor,
	}
}

func acceptsTopic(topic string) bool {
	switch strings.TrimSpace(topic) {
	case "", TopicOrderCreated, TopicOrderUpdated, TopicOrderPaid:
		return true
	default:
		return false
	}
}

// Handle verifies and records a delivery, then runs it.
func (p *Pipeline) Handle(ctx context.Context, d Delivery) Result {
	signatureOK := p.verifier.Verify(d.Payload, d.Signature)

	entry := audit.Entry{
		Source:      models.AuditSourceWooCommerce,
		Topic:       d.Topic,
		DeliveryID:  d.DeliveryID,
		SignatureOK: signatureOK,
		Payload:     d.Payload,
	}
	if !signatureOK {
		entry.Status = models.AuditStatusForbidden
		entry.Reason = ReasonInvalidSignature
	}

	auditID := ""
	rec, err := p.audit.Begin(ctx, entry)
	if err != nil {
		log.Errorf("[Webhook] Failed to record delivery %q: %v", d.DeliveryID, err)
	} else {
		auditID = rec.ID
	}

	if !signatureOK {
		log.Warnf("[Webhook] Rejected delivery %q from %q: invalid signature", d.DeliveryID, d.Source)
		return Result{
			HTTPStatus: http.StatusForbidden,
			Response:   Response{Error: ReasonInvalidSignature},
			AuditID:    auditID,
			AuditState: models.AuditStatusForbidden,
		}
	}
	if IsPing(d.Payload) {
		return p.finish(auditID, ignored(ReasonPing), audit.Patch{})
	}
	if !acceptsTopic(d.Topic) {
		return p.finish(auditID, ignored(ReasonUnsupportedTopic), audit.Patch{})
	}
	return p.Run(ctx, auditID, d.Payload)
}

// Run processes an authenticated payload from the classifier on and moves
// the audit record auditID to its terminal status.
func (p *Pipeline) Run(ctx context.Context, auditID string, payload []byte) Result {
	var patch audit.Patch

	order, err := ParseOrder(payload)
	if err != nil {
		patch.Err = err
		return p.finish(auditID, failed(http.StatusBadRequest, ReasonInvalidPayload), patch)
	}
	patch.OrderID = order.ID
	patch.SKUs = order.SKUs()
	patch.EventCode = order.EventCode

	if c := ClassifyOrder(order.Status); !c.Paid {
		return p.finish(auditID, ignored(c.Reason), patch)
	}

	match, err := p.packages.Resolve(ctx, order.LineItems)
	if errors.Is(err, ErrUnknownPackageSKU) {
		return p.finish(auditID, ignored(ReasonUnknownPackageSKU), patch)
	}
	if err != nil {
		return p.internal(auditID, order.ID, err, patch)
	}
	patch.ProductID = match.LineItem.ProductID

	resolution, err := p.customers.Resolve(ctx, identity.CustomerRef{CustomerID: order.CustomerID, Email: order.Email})
	if err != nil {
		return p.identityFailure(auditID, order.ID, err, patch)
	}
	if !resolution.Found() {
		return p.finish(auditID, ignored(ReasonCustomerNotMapped), patch)
	}

	email := order.Email
	if order.EventCode == "" && email == "" {
		email, err = p.customers.ContactEmail(ctx, resolution.CustomerID)
		if err != nil {
			return p.identityFailure(auditID, order.ID, err, patch)
		}
	}

	outcome, err := p.processor.Apply(ctx, ProvisionRequest{
		OrderID:    order.ID,
		CustomerID: resolution.CustomerID,
		Email:      email,
		EventCode:  order.EventCode,
		Package:    match.Package,
		ProductID:  match.LineItem.ProductID,
		SKU:        match.LineItem.SKU,
	})
	if err != nil {
		pe, ok := AsProvisionError(err)
		if !ok {
			return p.internal(auditID, order.ID, err, patch)
		}
		patch.Err = pe
		log.Infof("[Webhook] Order %s: %v", order.ID, pe)
		if pe.Outcome == OutcomeTargetNotFound {
			return p.finish(auditID, failed(http.StatusNotFound, pe.Reason), patch)
		}
		return p.finish(auditID, ignored(pe.Reason), patch)
	}

	patch.EventID = outcome.EventID
	patch.UserID = outcome.UserID
	res := Result{
		HTTPStatus: http.StatusOK,
		Response:   Response{Success: true, EventID: outcome.EventID},
		AuditState: models.AuditStatusProcessed,
	}
	switch outcome.Kind {
	case KindDuplicate:
		res.Response.Duplicate = true
		patch.Reason = ReasonDuplicate
	case KindUpgraded:
		res.Response.Mode = "upgrade"
	default:
		res.Response.Mode = "create"
	}
	return p.finish(auditID, res, patch)
}

func (p *Pipeline) identityFailure(auditID, orderID string, err error, patch audit.Patch) Result {
	if !identity.IsUnavailable(err) {
		return p.internal(auditID, orderID, err, patch)
	}
	log.Warnf("[Webhook] Order %s: %s", orderID, audit.Truncate(err.Error()))
	patch.Err = err
	return p.finish(auditID, failed(http.StatusServiceUnavailable, ReasonDirectoryUnavailable), patch)
}

func (p *Pipeline) internal(auditID, orderID string, err error, patch audit.Patch) Result {
	log.Errorf("[Webhook] Order %s failed: %s", orderID, audit.Truncate(err.Error()))
	patch.Err = err
	return p.finish(auditID, failed(http.StatusInternalServerError, ReasonInternalError), patch)
}

func (p *Pipeline) finish(auditID string, res Result, patch audit.Patch) Result {
	res.AuditID = auditID
	patch.Status = res.AuditState
	if patch.Reason == "" {
		patch.Reason = res.Response.Reason
	}
	if patch.Reason == "" {
		patch.Reason = res.Response.Error
	}
	p.audit.Update(auditID, patch)
	return res
}

func ignored(reason string) Result {
	return Result{
		HTTPStatus: http.StatusOK,
		Response:   Response{Success: true, Ignored: true, Reason: reason},
		AuditState: models.AuditStatusIgnored,
	}
}

func failed(status int, reason string) Result {
	return Result{
		HTTPStatus: status,
		Response:   Response{Error: reason},
		AuditState: models.AuditStatusFailed,
	}
}
