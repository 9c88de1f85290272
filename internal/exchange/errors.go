package exchange

import (
	"errors"
	"fmt"
)

// ErrTransient wraps network/timeout/5xx failures (§4.1). Only these are
// retried by the Executor.
type ErrTransient struct {
	Cause error
}

func (e *ErrTransient) Error() string {
	if e.Cause == nil {
		return "exchange: transient error"
	}
	return fmt.Sprintf("exchange: transient error: %v", e.Cause)
}

func (e *ErrTransient) Unwrap() error { return e.Cause }

// PermanentReason enumerates the named permanent failure reasons (§4.1).
type PermanentReason string

const (
	ReasonInsufficientBalance   PermanentReason = "InsufficientBalance"
	ReasonInsufficientAllowance PermanentReason = "InsufficientAllowance"
	ReasonMarketClosed          PermanentReason = "MarketClosed"
	ReasonNoOrderbook           PermanentReason = "NoOrderbook"
	ReasonNoPrice               PermanentReason = "NoPrice"
	ReasonInvalidSignature      PermanentReason = "InvalidSignature"
	ReasonOther                 PermanentReason = "Other"
)

// ErrPermanent is a named, non-retryable failure (§4.1).
type ErrPermanent struct {
	Reason PermanentReason
	Detail string
}

func (e *ErrPermanent) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("exchange: permanent error: %s", e.Reason)
	}
	return fmt.Sprintf("exchange: permanent error: %s: %s", e.Reason, e.Detail)
}

// IsTransient reports whether err (or something it wraps) is an
// ErrTransient.
func IsTransient(err error) bool {
	var t *ErrTransient
	return errors.As(err, &t)
}

// IsPermanent reports whether err (or something it wraps) is an
// ErrPermanent, and returns it.
func IsPermanent(err error) (*ErrPermanent, bool) {
	var p *ErrPermanent
	if errors.As(err, &p) {
		return p, true
	}
	return nil, false
}
