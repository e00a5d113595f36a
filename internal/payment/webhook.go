package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "Paymongo-Signature"

// Webhook event types acted upon.  Anything else is acknowledged and
// ignored.
const (
	EventPaymentPaid    = "checkout_session.payment.paid"
	EventSessionExpired = "checkout_session.expired"
)

// Sign returns the signature the gateway would send for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares signature against the expected HMAC of the raw
// body in constant time.
func VerifySignature(secret string, body []byte, signature string) bool {
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// WebhookEvent is the part of a gateway event the reconciler needs.
type WebhookEvent struct {
	ID            string
	Type          string
	SessionID     string
	ReferenceCode string
}

type webhookPayload struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Type string `json:"type"`
			Data struct {
				ID         string `json:"id"`
				Attributes struct {
					CheckoutSessionID string            `json:"checkout_session_id"`
					Metadata          map[string]string `json:"metadata"`
				} `json:"attributes"`
			} `json:"data"`
		} `json:"attributes"`
	} `json:"data"`
}

// ParseWebhook extracts the event from a verified body.
func ParseWebhook(body []byte) (WebhookEvent, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return WebhookEvent{}, err
	}
	inner := p.Data.Attributes.Data
	ev := WebhookEvent{
		ID:            p.Data.ID,
		Type:          p.Data.Attributes.Type,
		SessionID:     inner.Attributes.CheckoutSessionID,
		ReferenceCode: inner.Attributes.Metadata["reference_code"],
	}
	if ev.SessionID == "" && strings.HasPrefix(inner.ID, "cs_") {
		ev.SessionID = inner.ID
	}
	return ev, nil
}
