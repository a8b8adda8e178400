package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/EventBooth/app/models"
	"github.com/ManuelReschke/EventBooth/internal/pkg/audit"
	"github.com/ManuelReschke/EventBooth/internal/pkg/database/dbtest"
	"github.com/ManuelReschke/EventBooth/internal/pkg/identity"
)

type pipelineFixture struct {
	db        *gorm.DB
	log       *audit.Log
	verifier  *Verifier
	customers *stubCustomers
	pipeline  *Pipeline
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	db := dbtest.Open(t)
	verifier, err := NewVerifier("wc-secret")
	require.NoError(t, err)

	f := &pipelineFixture{
		db:        db,
		log:       audit.NewLog(db, nil),
		verifier:  verifier,
		customers: &stubCustomers{byEmail: map[string]int64{}, byID: map[int64]string{}},
	}
	f.pipeline = NewPipeline(verifier, f.log, NewPackageResolver(db), f.customers, NewProcessor(db, nil))
	seedPackage(t, db, "BASE-10", models.PackageTypeBase, "base", 10240)
	return f
}

func (f *pipelineFixture) deliver(t *testing.T, topic string, payload string) Result {
	t.Helper()
	res := f.pipeline.Handle(context.Background(), Delivery{
		Payload:    []byte(payload),
		Signature:  f.verifier.Sign([]byte(payload)),
		Topic:      topic,
		Source:     "https://shop.example.com",
		DeliveryID: "d-1",
	})
	f.log.Wait()
	return res
}

func (f *pipelineFixture) record(t *testing.T, id string) *models.WebhookAuditRecord {
	t.Helper()
	rec, err := f.log.Get(context.Background(), id)
	require.NoError(t, err)
	return rec
}

const paidOrder = `{"id":"500","status":"completed","customer_id":42,"billing":{"email":"buyer@example.com"},"line_items":[{"sku":"BASE-10","product_id":77,"quantity":1}]}`

func TestPipeline_CreateThenDuplicate(t *testing.T) {
	f := newPipelineFixture(t)

	res := f.deliver(t, TopicOrderPaid, paidOrder)
	require.Equal(t, http.StatusOK, res.HTTPStatus)
	assert.True(t, res.Response.Success)
	assert.Equal(t, "create", res.Response.Mode)
	require.NotZero(t, res.Response.EventID)

	body, err := json.Marshal(res.Response)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"eventId":`+jsonUint(res.Response.EventID)+`,"mode":"create"}`, string(body))

	rec := f.record(t, res.AuditID)
	assert.Equal(t, models.AuditStatusProcessed, rec.Status)
	assert.Equal(t, "500", rec.OrderID)
	assert.Equal(t, "77", rec.ProductID)
	assert.Equal(t, "BASE-10", rec.SKUs)
	require.NotNil(t, rec.EventID)
	assert.Equal(t, res.Response.EventID, *rec.EventID)

	again := f.deliver(t, TopicOrderPaid, paidOrder)
	require.Equal(t, http.StatusOK, again.HTTPStatus)
	assert.True(t, again.Response.Duplicate)
	assert.Equal(t, res.Response.EventID, again.Response.EventID)
	assert.Equal(t, ReasonDuplicate, f.record(t, again.AuditID).Reason)
	assert.Equal(t, int64(1), countEntitlements(t, f.db, "external_order_id = ?", "500"))
}

func TestPipeline_IgnoredOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
		reason  string
	}{
		{name: "refunded", topic: TopicOrderUpdated, payload: `{"id":"500","status":"refunded","customer_id":42,"line_items":[{"sku":"BASE-10"}]}`, reason: ReasonOrderRefunded},
		{name: "no status", topic: TopicOrderUpdated, payload: `{"id":"500","customer_id":42}`, reason: ReasonOrderNotPaid},
		{name: "unknown sku", topic: TopicOrderPaid, payload: `{"id":"500","status":"processing","customer_id":42,"line_items":[{"sku":"GIFT"}]}`, reason: ReasonUnknownPackageSKU},
		{name: "guest without mapping", topic: TopicOrderPaid, payload: `{"id":"500","status":"processing","billing":{"email":"guest@example.com"},"line_items":[{"sku":"BASE-10"}]}`, reason: ReasonCustomerNotMapped},
		{name: "ping", topic: "action.woocommerce_webhook_ping", payload: `webhook_id=3`, reason: ReasonPing},
		{name: "other topic", topic: "product.updated", payload: `{"id":1}`, reason: ReasonUnsupportedTopic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPipelineFixture(t)
			res := f.deliver(t, tt.topic, tt.payload)

			assert.Equal(t, http.StatusOK, res.HTTPStatus)
			assert.Equal(t, Response{Success: true, Ignored: true, Reason: tt.reason}, res.Response)

			rec := f.record(t, res.AuditID)
			assert.Equal(t, models.AuditStatusIgnored, rec.Status)
			assert.Equal(t, tt.reason, rec.Reason)
			assert.Zero(t, countEntitlements(t, f.db, "1 = 1"))
		})
	}
}

func TestPipeline_InvalidSignature(t *testing.T) {
	f := newPipelineFixture(t)

	res := f.pipeline.Handle(context.Background(), Delivery{
		Payload:   []byte(paidOrder),
		Signature: "Zm9yZ2Vk",
		Topic:     TopicOrderPaid,
	})
	f.log.Wait()

	assert.Equal(t, http.StatusForbidden, res.HTTPStatus)
	assert.Equal(t, ReasonInvalidSignature, res.Response.Error)
	assert.False(t, res.Response.Success)

	rec := f.record(t, res.AuditID)
	assert.Equal(t, models.AuditStatusForbidden, rec.Status)
	assert.False(t, rec.SignatureOK)
	assert.Zero(t, countEntitlements(t, f.db, "1 = 1"))
}

func TestPipeline_InvalidPayload(t *testing.T) {
	f := newPipelineFixture(t)

	res := f.deliver(t, TopicOrderPaid, `{"status":"completed"}`)
	assert.Equal(t, http.StatusBadRequest, res.HTTPStatus)
	assert.Equal(t, ReasonInvalidPayload, res.Response.Error)

	rec := f.record(t, res.AuditID)
	assert.Equal(t, models.AuditStatusFailed, rec.Status)
	assert.Equal(t, ReasonInvalidPayload, rec.Reason)
	assert.NotEmpty(t, rec.Error)
}

func TestPipeline_DirectoryUnavailable(t *testing.T) {
	f := newPipelineFixture(t)
	f.customers.err = identity.Unavailable("remote directory timeout", context.DeadlineExceeded)

	res := f.deliver(t, TopicOrderPaid, `{"id":"500","status":"completed","billing":{"email":"buyer@example.com"},"line_items":[{"sku":"BASE-10"}]}`)
	assert.Equal(t, http.StatusServiceUnavailable, res.HTTPStatus)
	assert.Equal(t, ReasonDirectoryUnavailable, res.Response.Error)

	rec := f.record(t, res.AuditID)
	assert.Equal(t, models.AuditStatusFailed, rec.Status)
	assert.Zero(t, countEntitlements(t, f.db, "1 = 1"))

	// a later retry after the outage is not a duplicate
	f.customers.err = nil
	f.customers.byEmail["buyer@example.com"] = 42
	res = f.deliver(t, TopicOrderPaid, `{"id":"500","status":"completed","billing":{"email":"buyer@example.com"},"line_items":[{"sku":"BASE-10"}]}`)
	assert.Equal(t, http.StatusOK, res.HTTPStatus)
	assert.Equal(t, "create", res.Response.Mode)
}

func TestPipeline_ContactEmailForCustomerWithoutEmail(t *testing.T) {
	f := newPipelineFixture(t)
	f.customers.byID[42] = "buyer@example.com"

	res := f.deliver(t, TopicOrderPaid, `{"id":"500","status":"completed","customer_id":42,"line_items":[{"sku":"BASE-10"}]}`)
	require.Equal(t, http.StatusOK, res.HTTPStatus)
	assert.Equal(t, "create", res.Response.Mode)

	res = f.deliver(t, TopicOrderPaid, `{"id":"501","status":"completed","customer_id":43,"line_items":[{"sku":"BASE-10"}]}`)
	assert.Equal(t, http.StatusOK, res.HTTPStatus)
	assert.Equal(t, ReasonCustomerNotMapped, res.Response.Reason)
}

func TestPipeline_UpgradeFlow(t *testing.T) {
	f := newPipelineFixture(t)
	seedPackage(t, f.db, "UP-50", models.PackageTypeUpgrade, "pro", 51200)

	created := f.deliver(t, TopicOrderPaid, paidOrder)
	require.Equal(t, http.StatusOK, created.HTTPStatus)
	var event models.Event
	require.NoError(t, f.db.First(&event, created.Response.EventID).Error)

	upgrade := `{"id":"600","status":"processing","customer_id":42,"meta_data":[{"key":"eventCode","value":"` + event.Code + `"}],"line_items":[{"sku":"BASE-10"},{"sku":"UP-50"}]}`
	res := f.deliver(t, TopicOrderPaid, upgrade)
	require.Equal(t, http.StatusOK, res.HTTPStatus)
	assert.Equal(t, "upgrade", res.Response.Mode)
	assert.Equal(t, event.ID, res.Response.EventID)
	assert.Equal(t, event.Code, f.record(t, res.AuditID).EventCode)

	stranger := `{"id":"601","status":"processing","customer_id":99,"meta_data":[{"key":"eventCode","value":"` + event.Code + `"}],"line_items":[{"sku":"UP-50"}]}`
	res = f.deliver(t, TopicOrderPaid, stranger)
	assert.Equal(t, http.StatusOK, res.HTTPStatus)
	assert.Equal(t, ReasonOwnershipMismatch, res.Response.Reason)
	assert.Equal(t, models.AuditStatusIgnored, f.record(t, res.AuditID).Status)

	missing := `{"id":"602","status":"processing","customer_id":42,"meta_data":[{"key":"eventCode","value":"NOPE2345"}],"line_items":[{"sku":"UP-50"}]}`
	res = f.deliver(t, TopicOrderPaid, missing)
	assert.Equal(t, http.StatusNotFound, res.HTTPStatus)
	assert.Equal(t, ReasonEventNotFound, res.Response.Error)
	assert.Equal(t, models.AuditStatusFailed, f.record(t, res.AuditID).Status)
}

func jsonUint(v uint) string {
	b, _ := json.Marshal(v)
	return string(b)
}
