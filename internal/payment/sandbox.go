package payment

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Sandbox is an in-process Gateway for local runs (PAYMENT_DRIVER=sandbox)
// and tests.  Sessions start active and are settled with MarkPaid,
// MarkFailed or Expire.
type Sandbox struct {
	mu       sync.Mutex
	baseURL  string
	sessions map[string]*sandboxSession
	seq      atomic.Int64

	// Err, when set, is returned by every call.
	Err error
	// Created counts CreateCheckoutSession calls.
	Created atomic.Int64
}

type sandboxSession struct {
	Session
	req CheckoutRequest
}

// NewSandbox returns a sandbox whose checkout URLs live under baseURL.
func NewSandbox(baseURL string) *Sandbox {
	return &Sandbox{baseURL: baseURL, sessions: make(map[string]*sandboxSession)}
}

func (s *Sandbox) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (Session, error) {
	s.Created.Add(1)
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return Session{}, s.Err
	}
	id := fmt.Sprintf("cs_sandbox_%d", s.seq.Add(1))
	sess := Session{ID: id, CheckoutURL: s.baseURL + "/checkout/" + id, Status: SessionActive}
	s.sessions[id] = &sandboxSession{Session: sess, req: req}
	return sess, nil
}

func (s *Sandbox) GetSession(ctx context.Context, sessionID string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return Session{}, s.Err
	}
	sess, ok := s.sessions[sessionID]
	if !ok {
		return Session{}, fmt.Errorf("session %s not found", sessionID)
	}
	out := sess.Session
	out.Payments = append([]Payment(nil), sess.Payments...)
	return out, nil
}

// Request returns the request a session was created with.
func (s *Sandbox) Request(sessionID string) (CheckoutRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return CheckoutRequest{}, false
	}
	return sess.req, true
}

func (s *Sandbox) settle(sessionID string, fn func(*sandboxSession)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if ok {
		fn(sess)
	}
	return ok
}

// MarkPaid attaches a paid payment to the session.
func (s *Sandbox) MarkPaid(sessionID string) bool {
	return s.settle(sessionID, func(ss *sandboxSession) {
		ss.Payments = append(ss.Payments, Payment{ID: "pay_" + sessionID, Status: PaymentPaid})
	})
}

// MarkFailed attaches a failed payment to the session.
func (s *Sandbox) MarkFailed(sessionID string) bool {
	return s.settle(sessionID, func(ss *sandboxSession) {
		ss.Payments = append(ss.Payments, Payment{ID: "pay_" + sessionID, Status: PaymentFailed})
	})
}

// Expire marks the session expired.
func (s *Sandbox) Expire(sessionID string) bool {
	return s.settle(sessionID, func(ss *sandboxSession) { ss.Status = SessionExpired })
}

var _ Gateway = (*Sandbox)(nil)
