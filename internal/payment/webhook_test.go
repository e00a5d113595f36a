package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paidBody(eventID, ref string) []byte {
	return []byte(`{"data":{"id":"` + eventID + `","attributes":{"type":"checkout_session.payment.paid","data":{"id":"cs_1","attributes":{"metadata":{"reference_code":"` + ref + `"}}}}}}`)
}

func TestSignatureRoundTrip(t *testing.T) {
	body := []byte(`{"hello":"world"}`)
	sig := Sign("whsk", body)

	assert.True(t, VerifySignature("whsk", body, sig))
	assert.True(t, VerifySignature("whsk", body, " "+sig+"\n"))
	assert.False(t, VerifySignature("other", body, sig))
	assert.False(t, VerifySignature("whsk", []byte(`{"hello":"world!"}`), sig))
	assert.False(t, VerifySignature("whsk", body, "not-hex"))
	assert.False(t, VerifySignature("whsk", body, ""))
}

func TestParseWebhook(t *testing.T) {
	ev, err := ParseWebhook(paidBody("evt_1", "BKG-ABC-12345678"))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, EventPaymentPaid, ev.Type)
	assert.Equal(t, "cs_1", ev.SessionID)
	assert.Equal(t, "BKG-ABC-12345678", ev.ReferenceCode)

	_, err = ParseWebhook([]byte(`{`))
	assert.Error(t, err)
}
