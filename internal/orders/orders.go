package orders

import (
	"fmt"
	"regexp"
	"strings"

	"zeb-assist-backend/internal/types"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	orderRe = regexp.MustCompile(`#?\d{6,8}`)
)

// ExtractIdentifier scans free text for a customer reference. Email is
// checked before order number; the first match wins and at most one
// identifier is returned.
func ExtractIdentifier(text string) *types.Identifier {
	if email := emailRe.FindString(text); email != "" {
		return &types.Identifier{Type: types.IdentifierEmail, Value: strings.ToLower(email)}
	}
	if order := orderRe.FindString(text); order != "" {
		return &types.Identifier{Type: types.IdentifierOrder, Value: order}
	}
	return nil
}

// Record is a raw order row as stored in the dataset.
type Record struct {
	OrderNumber       string  `json:"orderNumber"`
	Email             string  `json:"email"`
	Date              string  `json:"date"`
	PaymentStatus     string  `json:"paymentStatus"`
	FulfillmentStatus string  `json:"fulfillmentStatus"`
	Total             float64 `json:"total"`
	TotalRefund       float64 `json:"totalRefund"`
	RefundDate        string  `json:"refundDate"`
	ShippingAddress   string  `json:"shippingAddress"`
	ShippingCity      string  `json:"shippingCity"`
	ShippingCountry   string  `json:"shippingCountry"`
	FirstName         string  `json:"firstName"`
	LastName          string  `json:"lastName"`
	Cancelled         bool    `json:"cancelled"`
	Items             []Item  `json:"items"`
}

type Item struct {
	Title    string  `json:"title"`
	Variant  string  `json:"variant"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Index maps canonical order numbers to records and lowercased emails
// to order-number lists. Built once at startup, read-only afterwards.
type Index struct {
	orders map[string]Record
	emails map[string][]string
}

func NewIndex(orders map[string]Record, emails map[string][]string) *Index {
	normEmails := make(map[string][]string, len(emails))
	for k, v := range emails {
		normEmails[strings.ToLower(k)] = v
	}
	return &Index{orders: orders, emails: normEmails}
}

func (ix *Index) Size() (orders, emails int) {
	return len(ix.orders), len(ix.emails)
}

// Lookup resolves an identifier to display-formatted records. An order
// number yields at most one record; an email yields the records of
// every indexed order number still present in the order table, in
// index order. Returns nil when nothing resolves.
func (ix *Index) Lookup(id types.Identifier) []types.OrderView {
	switch id.Type {
	case types.IdentifierOrder:
		key := strings.ToUpper(id.Value)
		if !strings.HasPrefix(key, "#") {
			key = "#" + key
		}
		rec, ok := ix.orders[key]
		if !ok {
			return nil
		}
		return []types.OrderView{formatOrder(rec)}
	case types.IdentifierEmail:
		nums := ix.emails[strings.ToLower(id.Value)]
		if len(nums) == 0 {
			return nil
		}
		out := make([]types.OrderView, 0, len(nums))
		for _, n := range nums {
			if rec, ok := ix.orders[n]; ok {
				out = append(out, formatOrder(rec))
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}
	return nil
}

// formatOrder reshapes a raw record for external consumption. The full
// shipping address is never exposed.
func formatOrder(o Record) types.OrderView {
	v := types.OrderView{
		OrderNumber:       o.OrderNumber,
		Date:              o.Date,
		PaymentStatus:     o.PaymentStatus,
		FulfillmentStatus: o.FulfillmentStatus,
		Total:             euro(o.Total),
		ShippingCity:      o.ShippingCity,
		ShippingCountry:   o.ShippingCountry,
		CustomerName:      strings.TrimSpace(o.FirstName + " " + o.LastName),
		Cancelled:         o.Cancelled,
		Items:             make([]types.ItemView, 0, len(o.Items)),
	}
	if o.TotalRefund > 0 {
		refunded := euro(o.TotalRefund)
		v.Refunded = &refunded
		if o.RefundDate != "" {
			d := o.RefundDate
			v.RefundDate = &d
		}
	}
	for _, it := range o.Items {
		product := it.Title
		if it.Variant != "" && it.Variant != "Default Title" {
			product += " – " + it.Variant
		}
		v.Items = append(v.Items, types.ItemView{
			Product: product,
			Qty:     it.Quantity,
			Price:   euro(it.Price),
		})
	}
	return v
}

func euro(amount float64) string {
	return fmt.Sprintf("€%.2f", amount)
}
