package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
)

// PayMongo is a Gateway backed by the PayMongo checkout sessions API.
type PayMongo struct {
	baseURL string
	secret  string
	http    *http.Client
}

// NewHTTPClient returns the client used for gateway calls.  Each call gets
// a client span and carries the caller's trace context downstream.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return "paymongo " + r.Method + " " + r.URL.Path
			}),
		),
	}
}

// NewPayMongo returns a client for baseURL (e.g. https://api.paymongo.com/v1)
// authenticating with secretKey.  A nil httpClient gets NewHTTPClient with a
// 20 second timeout; callers bound each call further through the context.
func NewPayMongo(baseURL, secretKey string, httpClient *http.Client) *PayMongo {
	if httpClient == nil {
		httpClient = NewHTTPClient(20 * time.Second)
	}
	return &PayMongo{baseURL: strings.TrimRight(baseURL, "/"), secret: secretKey, http: httpClient}
}

type pmEnvelope[T any] struct {
	Data T `json:"data"`
}

type pmCreateAttributes struct {
	SendEmailReceipt   bool              `json:"send_email_receipt"`
	ShowDescription    bool              `json:"show_description"`
	ShowLineItems      bool              `json:"show_line_items"`
	LineItems          []LineItem        `json:"line_items"`
	PaymentMethodTypes []string          `json:"payment_method_types"`
	Description        string            `json:"description,omitempty"`
	SuccessURL         string            `json:"success_url"`
	CancelURL          string            `json:"cancel_url"`
	Billing            *Billing          `json:"billing,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

type pmSession struct {
	ID         string `json:"id"`
	Attributes struct {
		CheckoutURL string `json:"checkout_url"`
		Status      string `json:"status"`
		Payments    []struct {
			ID         string `json:"id"`
			Attributes struct {
				Status string `json:"status"`
			} `json:"attributes"`
		} `json:"payments"`
	} `json:"attributes"`
}

type pmError struct {
	Errors []struct {
		Code   string `json:"code"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

func (s pmSession) toSession() Session {
	out := Session{ID: s.ID, CheckoutURL: s.Attributes.CheckoutURL, Status: s.Attributes.Status}
	for _, p := range s.Attributes.Payments {
		out.Payments = append(out.Payments, Payment{ID: p.ID, Status: p.Attributes.Status})
	}
	return out
}

// CreateCheckoutSession opens a hosted checkout session.
func (p *PayMongo) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (Session, error) {
	body := pmEnvelope[struct {
		Attributes pmCreateAttributes `json:"attributes"`
	}]{}
	body.Data.Attributes = pmCreateAttributes{
		SendEmailReceipt:   true,
		ShowDescription:    true,
		ShowLineItems:      true,
		LineItems:          req.LineItems,
		PaymentMethodTypes: req.MethodTypes,
		Description:        req.Description,
		SuccessURL:         req.SuccessURL,
		CancelURL:          req.CancelURL,
		Billing:            req.Billing,
		Metadata:           req.Metadata,
	}
	var out pmEnvelope[pmSession]
	if err := p.do(ctx, http.MethodPost, "/checkout_sessions", body, &out); err != nil {
		return Session{}, err
	}
	if out.Data.ID == "" {
		return Session{}, apperr.External("payment gateway returned no session", nil)
	}
	return out.Data.toSession(), nil
}

// GetSession fetches a checkout session with its payments.
func (p *PayMongo) GetSession(ctx context.Context, sessionID string) (Session, error) {
	var out pmEnvelope[pmSession]
	if err := p.do(ctx, http.MethodGet, "/checkout_sessions/"+sessionID, nil, &out); err != nil {
		return Session{}, err
	}
	return out.Data.toSession(), nil
}

func (p *PayMongo) do(ctx context.Context, method, path string, in, out any) error {
	if p.secret == "" {
		return apperr.Configuration("payment gateway secret key is not configured")
	}
	var rdr io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return apperr.Internal("encode gateway request", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, rdr)
	if err != nil {
		return apperr.Internal("build gateway request", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(p.secret+":")))

	resp, err := p.http.Do(req)
	if err != nil {
		return apperr.External("payment gateway unavailable", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperr.External("read gateway response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var pe pmError
		detail := http.StatusText(resp.StatusCode)
		if json.Unmarshal(raw, &pe) == nil && len(pe.Errors) > 0 && pe.Errors[0].Detail != "" {
			detail = pe.Errors[0].Detail
		}
		return apperr.External("payment gateway rejected request",
			fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, detail))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.External("decode gateway response", err)
	}
	return nil
}

var _ Gateway = (*PayMongo)(nil)
