// Package payment integrates the booking core with the external payment
// gateway: creating checkout sessions, verifying signed webhooks and
// reconciling gateway state into reservation state.
package payment

import "context"

// Session and payment states reported by the gateway.
const (
	SessionActive  = "active"
	SessionExpired = "expired"

	PaymentPaid    = "paid"
	PaymentFailed  = "failed"
	PaymentPending = "pending"
)

// LineItem is one priced entry shown on the checkout page.
type LineItem struct {
	Name        string `json:"name"`
	AmountCents int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
	Quantity    int    `json:"quantity"`
}

// Billing carries the payer details prefilled on the checkout page.
type Billing struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// CheckoutRequest is everything needed to open a checkout session.
type CheckoutRequest struct {
	LineItems   []LineItem
	Description string
	SuccessURL  string
	CancelURL   string
	MethodTypes []string
	Billing     *Billing
	Metadata    map[string]string
}

// Payment is one payment attempt attached to a session.
type Payment struct {
	ID     string
	Status string
}

// Session is the gateway's view of a checkout session.
type Session struct {
	ID          string
	CheckoutURL string
	Status      string
	Payments    []Payment
}

// Paid reports whether any payment on the session succeeded.
func (s Session) Paid() bool { return s.anyPayment(PaymentPaid) }

// Failed reports whether any payment failed or the session expired.
func (s Session) Failed() bool { return s.Status == SessionExpired || s.anyPayment(PaymentFailed) }

func (s Session) anyPayment(status string) bool {
	for _, p := range s.Payments {
		if p.Status == status {
			return true
		}
	}
	return false
}

// Gateway is the external payment collaborator.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (Session, error)
	GetSession(ctx context.Context, sessionID string) (Session, error)
}
