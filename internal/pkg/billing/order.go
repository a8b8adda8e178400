package billing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidPayload wraps every schema failure of an order payload.
var ErrInvalidPayload = errors.New("invalid order payload")

// eventCodeMetaKeys are the order meta keys that may carry the target event code.
var eventCodeMetaKeys = []string{"eventCode", "event_code", "_event_code"}

var validate = validator.New()

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*f = flexString(n.String())
	return nil
}

// flexInt accepts a JSON number, a numeric string or null.
type flexInt struct {
	value *int64
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	f.value = nil
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	if v, err := strconv.ParseInt(string(s), 10, 64); err == nil {
		f.value = &v
		return nil
	}
	fv, err := strconv.ParseFloat(string(s), 64)
	if err != nil || math.IsNaN(fv) || math.IsInf(fv, 0) || fv != math.Trunc(fv) {
		// not a usable id; treated as absent
		return nil
	}
	v := int64(fv)
	f.value = &v
	return nil
}

type orderPayload struct {
	ID         flexString `json:"id" validate:"required,max=64"`
	Status     string     `json:"status" validate:"max=64"`
	CustomerID flexInt    `json:"customer_id"`
	Billing    struct {
		Email string `json:"email" validate:"omitempty,email,max=200"`
	} `json:"billing"`
	MetaData  []metaItem        `json:"meta_data" validate:"dive"`
	LineItems []lineItemPayload `json:"line_items" validate:"dive"`
}

type metaItem struct {
	Key   string          `json:"key" validate:"max=255"`
	Value json.RawMessage `json:"value"`
}

type lineItemPayload struct {
	SKU       string     `json:"sku" validate:"max=100"`
	ProductID flexString `json:"product_id" validate:"max=64"`
	Quantity  int        `json:"quantity" validate:"gte=0"`
}

// LineItem is one purchased product.
type LineItem struct {
	SKU       string
	ProductID string
	Quantity  int
}

// Order is the typed view of a WooCommerce order payload.
type Order struct {
	ID         string
	Status     string
	CustomerID *int64
	Email      string
	EventCode  string
	LineItems  []LineItem
}

// SKUs returns the distinct non-empty SKUs in line item order.
func (o *Order) SKUs() []string {
	seen := make(map[string]struct{}, len(o.LineItems))
	out := make([]string, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		if li.SKU == "" {
			continue
		}
		if _, ok := seen[li.SKU]; ok {
			continue
		}
		seen[li.SKU] = struct{}{}
		out = append(out, li.SKU)
	}
	return out
}

// ParseOrder decodes and validates an order payload.
func ParseOrder(raw []byte) (*Order, error) {
	var p orderPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := validate.Struct(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if p.ID == "0" {
		return nil, fmt.Errorf("%w: order id must not be 0", ErrInvalidPayload)
	}

	order := &Order{
		ID:        string(p.ID),
		Status:    strings.TrimSpace(p.Status),
		Email:     strings.ToLower(strings.TrimSpace(p.Billing.Email)),
		EventCode: extractEventCode(p.MetaData),
		LineItems: make([]LineItem, 0, len(p.LineItems)),
	}
	if p.CustomerID.value != nil && *p.CustomerID.value > 0 {
		order.CustomerID = p.CustomerID.value
	}
	for _, li := range p.LineItems {
		order.LineItems = append(order.LineItems, LineItem{
			SKU:       strings.TrimSpace(li.SKU),
			ProductID: string(li.ProductID),
			Quantity:  li.Quantity,
		})
	}
	return order, nil
}

// extractEventCode returns the first non-empty value of a known event code
// meta key. Keys are checked in priority order, not payload order.
func extractEventCode(meta []metaItem) string {
	for _, key := range eventCodeMetaKeys {
		for _, m := range meta {
			if strings.TrimSpace(m.Key) != key {
				continue
			}
			var v flexString
			if err := v.UnmarshalJSON(m.Value); err != nil {
				continue
			}
			if code := strings.ToUpper(string(v)); code != "" {
				return code
			}
		}
	}
	return ""
}

// IsPing reports whether body is the form encoded ping WooCommerce sends when
// a webhook is saved.
func IsPing(body []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(body), []byte("webhook_id="))
}
