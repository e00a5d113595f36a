package config

import "os"

// PaymentConfig configures the PayMongo checkout integration.
type PaymentConfig struct {
	Driver        string // paymongo or sandbox
	APIURL        string
	SecretKey     string
	WebhookSecret string
	Live          bool
	Currency      string
	MethodTypes   []string
	SuccessPath   string
	CancelPath    string
	DedupEnabled  bool
}

// LoadPaymentConfig picks the live or test secret key depending on
// PAYMONGO_IS_LIVE.  A missing key is not fatal here; creating a checkout
// session reports it as a configuration error instead.
func LoadPaymentConfig() PaymentConfig {
	live := envBool("PAYMONGO_IS_LIVE", false)
	key := os.Getenv("PAYMONGO_TEST_SECRET_KEY")
	if live {
		key = os.Getenv("PAYMONGO_SECRET_KEY_LIVE")
	}
	return PaymentConfig{
		Driver:        getenv("PAYMENT_DRIVER", "paymongo"),
		APIURL:        getenv("PAYMONGO_API_URL", "https://api.paymongo.com/v1"),
		SecretKey:     key,
		WebhookSecret: os.Getenv("PAYMONGO_WEBHOOK_SECRET"),
		Live:          live,
		Currency:      getenv("PAYMONGO_CURRENCY", "PHP"),
		MethodTypes:   envList("PAYMONGO_METHOD_TYPES", []string{"qrph"}),
		SuccessPath:   getenv("PAYMONGO_SUCCESS_PATH", "/booking-success"),
		CancelPath:    getenv("PAYMONGO_CANCEL_PATH", "/booking"),
		DedupEnabled:  envBool("WEBHOOK_DEDUP_ENABLED", true),
	}
}
