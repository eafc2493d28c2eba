package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/adshao/go-binance/v2/common"
)

// Kind names a class of exchange failure. Kinds are logged and persisted.
type Kind string

const (
	KindRateLimited         Kind = "rate_limited"
	KindClockSkew           Kind = "clock_skew"
	KindNetwork             Kind = "network"
	KindTimeout             Kind = "timeout"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindInvalidOrder        Kind = "invalid_order"
	KindUnknownSymbol       Kind = "unknown_symbol"
	KindCredentials         Kind = "credentials"
	KindCanceled            Kind = "canceled"
	KindNotFilled           Kind = "not_filled"
	KindExchange            Kind = "exchange"
)

// Retryable reports whether a failure of this kind is transient.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimited, KindClockSkew, KindNetwork, KindTimeout:
		return true
	}
	return false
}

// Error is a classified exchange failure.
type Error struct {
	Kind Kind
	Code int64 // venue error code, 0 when not from the venue
	Err  error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("exchange %s (code %d): %v", e.Kind, e.Code, e.Err)
	}
	return fmt.Sprintf("exchange %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Retryable() bool { return e.Kind.Retryable() }

// binance 错误码 -> 分类
var codeKinds = map[int64]Kind{
	-1000: KindNetwork,     // UNKNOWN
	-1001: KindNetwork,     // DISCONNECTED
	-1003: KindRateLimited, // TOO_MANY_REQUESTS
	-1006: KindNetwork,     // UNEXPECTED_RESP
	-1007: KindTimeout,     // TIMEOUT
	-1015: KindRateLimited, // TOO_MANY_ORDERS
	-1021: KindClockSkew,   // INVALID_TIMESTAMP
	-1022: KindCredentials, // INVALID_SIGNATURE
	-1002: KindCredentials, // UNAUTHORIZED
	-2014: KindCredentials, // BAD_API_KEY_FMT
	-2015: KindCredentials, // REJECTED_MBX_KEY

	-1013: KindInvalidOrder, // filter failure
	-1100: KindInvalidOrder,
	-1101: KindInvalidOrder,
	-1102: KindInvalidOrder,
	-1106: KindInvalidOrder,
	-1111: KindInvalidOrder, // BAD_PRECISION
	-1116: KindInvalidOrder,
	-1117: KindInvalidOrder,
	-2011: KindInvalidOrder, // CANCEL_REJECTED / unknown order

	-1121: KindUnknownSymbol,
	-2010: KindInsufficientBalance, // NEW_ORDER_REJECTED
}

// Classify maps any error from a session into an *Error. nil stays nil.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		kind, ok := codeKinds[apiErr.Code]
		if !ok {
			kind = KindExchange
		}
		return &Error{Kind: kind, Code: apiErr.Code, Err: err}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindCanceled, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &Error{Kind: KindTimeout, Err: err}
		}
		return &Error{Kind: KindNetwork, Err: err}
	}

	return &Error{Kind: KindExchange, Err: err}
}

// KindOf returns the classified kind of err, or "" for nil.
func KindOf(err error) Kind {
	if c := Classify(err); c != nil {
		return c.Kind
	}
	return ""
}
