package paymentgateway

import (
	"context"
	"sync"
)

type OutcomeKind string

const (
	OutcomeSuccess   OutcomeKind = "success"
	OutcomeCancelled OutcomeKind = "cancelled"
)

// Transaction is what the gateway reports back on a successful charge.
type Transaction struct {
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// Outcome is the single result of a checkout: either a transaction or a
// cancellation, never both.
type Outcome struct {
	Kind        OutcomeKind  `json:"kind"`
	Transaction *Transaction `json:"transaction,omitempty"`
}

func Succeeded(tx Transaction) Outcome {
	return Outcome{Kind: OutcomeSuccess, Transaction: &tx}
}

func Cancelled() Outcome {
	return Outcome{Kind: OutcomeCancelled}
}

// Checkout is one open payment popup. It resolves at most once and has no
// deadline of its own.
type Checkout struct {
	Reference        string
	AuthorizationURL string
	AccessCode       string

	once    sync.Once
	done    chan struct{}
	outcome Outcome
}

func newCheckout(reference string) *Checkout {
	return &Checkout{
		Reference: reference,
		done:      make(chan struct{}),
	}
}

// resolve reports whether this call was the one that settled the checkout.
func (c *Checkout) resolve(o Outcome) bool {
	settled := false
	c.once.Do(func() {
		c.outcome = o
		close(c.done)
		settled = true
	})
	return settled
}

func (c *Checkout) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the donor pays or closes the popup, or ctx ends.
func (c *Checkout) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-c.done:
		return c.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Outcome returns the result without blocking.
func (c *Checkout) Outcome() (Outcome, bool) {
	select {
	case <-c.done:
		return c.outcome, true
	default:
		return Outcome{}, false
	}
}
