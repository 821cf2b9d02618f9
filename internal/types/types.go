package types

// Message is a single conversation turn. Role is "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	SessionID string    `json:"sessionId,omitempty"`
	Message   string    `json:"message"`
	History   []Message `json:"history,omitempty"`
}

// ChatResponse is the full per-turn result. Nullable fields are
// explicit nulls, never absent.
type ChatResponse struct {
	SessionID        string       `json:"sessionId,omitempty"`
	Reply            string       `json:"reply"`
	Intent           string       `json:"intent"`
	Language         string       `json:"language"`
	Sentiment        string       `json:"sentiment"`
	Orders           []OrderView  `json:"orders"`
	Sources          []SourceView `json:"sources"`
	Escalated        bool         `json:"escalated"`
	EscalationReason *string      `json:"escalationReason"`
	Ms               int64        `json:"ms"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// IntentResult is the classifier's verdict on one inbound message.
type IntentResult struct {
	Intent         string  `json:"intent"`
	Language       string  `json:"language"`
	Sentiment      string  `json:"sentiment"`
	HasOrderNumber bool    `json:"has_order_number"`
	HasEmail       bool    `json:"has_email"`
	Confidence     float64 `json:"confidence"`
}

// GuardrailResult is the reviewer's verdict on a draft reply.
type GuardrailResult struct {
	Approved          bool     `json:"approved"`
	Issues            []string `json:"issues"`
	CorrectedResponse *string  `json:"corrected_response"`
	Escalate          bool     `json:"escalate"`
	EscalateReason    *string  `json:"escalate_reason"`
}

type IdentifierType string

const (
	IdentifierOrder IdentifierType = "order"
	IdentifierEmail IdentifierType = "email"
)

// Identifier is a customer reference extracted from free text.
type Identifier struct {
	Type  IdentifierType `json:"type"`
	Value string         `json:"value"`
}

// OrderView is the customer-safe rendering of an order record:
// currency as €-prefixed two-decimal strings, refund fields null when
// no refund exists, shipping reduced to city and country.
type OrderView struct {
	OrderNumber       string     `json:"orderNumber"`
	Date              string     `json:"date"`
	PaymentStatus     string     `json:"paymentStatus"`
	FulfillmentStatus string     `json:"fulfillmentStatus"`
	Total             string     `json:"total"`
	Refunded          *string    `json:"refunded"`
	RefundDate        *string    `json:"refundDate"`
	ShippingCity      string     `json:"shippingCity"`
	ShippingCountry   string     `json:"shippingCountry"`
	CustomerName      string     `json:"customerName"`
	Cancelled         bool       `json:"cancelled"`
	Items             []ItemView `json:"items"`
}

type ItemView struct {
	Product string `json:"product"`
	Qty     int    `json:"qty"`
	Price   string `json:"price"`
}

// SourceView is the provenance of one retrieved passage, for UI badges
// and the guardrail's hallucination signal.
type SourceView struct {
	Title    string  `json:"title"`
	Source   string  `json:"source"`
	Score    float64 `json:"score"`
	Category string  `json:"category"`
	Language string  `json:"language"`
}
