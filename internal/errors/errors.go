package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Kind is the category of a failure as seen by the user of the client
type Kind string

const (
	// KindWalletUnavailable means there is no wallet capability to talk to
	KindWalletUnavailable Kind = "wallet_unavailable"
	// KindUserRejected means the user declined a connection, signature or network prompt
	KindUserRejected Kind = "user_rejected"
	// KindWrongNetwork means the wallet is on another chain and switching failed
	KindWrongNetwork Kind = "wrong_network"
	// KindContractCallReverted means the contract rejected the call
	KindContractCallReverted Kind = "contract_call_reverted"
	// KindPartialFetchFailure means some items of a batch could not be resolved
	KindPartialFetchFailure Kind = "partial_fetch_failure"
	// KindStaleReadFailure means a background refresh failed and the previous value was kept
	KindStaleReadFailure Kind = "stale_read_failure"
	// KindNoSignerAvailable means a signed handle was requested without a wallet session
	KindNoSignerAvailable Kind = "no_signer_available"
	// KindInvalidRequest means the action was refused before reaching the chain
	KindInvalidRequest Kind = "invalid_request"
	// KindInternal is everything else
	KindInternal Kind = "internal"
)

// Sentinels to be used with errors.Is, they match any error of the same kind
var (
	ErrWalletUnavailable    = &Error{Kind: KindWalletUnavailable}
	ErrUserRejected         = &Error{Kind: KindUserRejected}
	ErrWrongNetwork         = &Error{Kind: KindWrongNetwork}
	ErrContractCallReverted = &Error{Kind: KindContractCallReverted}
	ErrPartialFetchFailure  = &Error{Kind: KindPartialFetchFailure}
	ErrStaleReadFailure     = &Error{Kind: KindStaleReadFailure}
	ErrNoSignerAvailable    = &Error{Kind: KindNoSignerAvailable}
	ErrInvalidRequest       = &Error{Kind: KindInvalidRequest}
)

// Error is a categorized failure with the operation that produced it
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
	Details map[string]interface{}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Op != "" {
		b.WriteString(" [" + e.Op + "]")
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(" (caused by: %v)", e.Cause))
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches sentinels by kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op == "" && t.Message == "" {
		return t.Kind == e.Kind
	}
	return t == e
}

func WalletUnavailable(op string) *Error {
	return &Error{
		Kind:    KindWalletUnavailable,
		Op:      op,
		Message: "no wallet available",
	}
}

func UserRejected(op string, cause error) *Error {
	return &Error{
		Kind:    KindUserRejected,
		Op:      op,
		Message: "request rejected by user",
		Cause:   cause,
	}
}

func WrongNetwork(op string, expected, actual uint64) *Error {
	return &Error{
		Kind:    KindWrongNetwork,
		Op:      op,
		Message: fmt.Sprintf("wallet is on chain %d, expected %d", actual, expected),
		Details: map[string]interface{}{
			"expectedChainId": expected,
			"actualChainId":   actual,
		},
	}
}

// Reverted creates a contract rejection, reason may be empty if the node did not return one
func Reverted(op string, reason string, cause error) *Error {
	msg := "transaction reverted"
	if reason != "" {
		msg = reason
	}
	return &Error{
		Kind:    KindContractCallReverted,
		Op:      op,
		Message: msg,
		Cause:   cause,
		Details: map[string]interface{}{
			"reason": reason,
		},
	}
}

// PartialFetch reports the ids of a batch that failed, keyed by id
func PartialFetch(op string, failed map[string]error) *Error {
	ids := make([]string, 0, len(failed))
	for id := range failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return &Error{
		Kind:    KindPartialFetchFailure,
		Op:      op,
		Message: fmt.Sprintf("%d item(s) could not be loaded: %s", len(ids), strings.Join(ids, ", ")),
		Details: map[string]interface{}{
			"failedIds": ids,
		},
	}
}

func StaleRead(op string, cause error) *Error {
	return &Error{
		Kind:    KindStaleReadFailure,
		Op:      op,
		Message: "refresh failed, keeping previous value",
		Cause:   cause,
	}
}

func NoSigner(contract string) *Error {
	return &Error{
		Kind:    KindNoSignerAvailable,
		Op:      "handle",
		Message: fmt.Sprintf("signed handle for %s requires a connected wallet", contract),
	}
}

func InvalidRequest(op string, message string) *Error {
	return &Error{
		Kind:    KindInvalidRequest,
		Op:      op,
		Message: message,
	}
}

func Internal(op string, cause error) *Error {
	return &Error{
		Kind:    KindInternal,
		Op:      op,
		Message: "unexpected error",
		Cause:   cause,
	}
}

// KindOf returns the kind of err or KindInternal for uncategorized errors
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// UserMessage returns the actionable text shown in a notification
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !stderrors.As(err, &e) {
		return err.Error()
	}

	switch e.Kind {
	case KindWalletUnavailable:
		return "No wallet found. Configure a wallet key to continue."
	case KindUserRejected:
		return "Request was rejected in the wallet. Retry the action to continue."
	case KindWrongNetwork:
		return "Wrong network: " + e.Message + ". Switch the wallet network and retry."
	case KindContractCallReverted:
		return "Transaction rejected by the contract: " + e.Message
	case KindNoSignerAvailable:
		return "Connect a wallet first."
	case KindPartialFetchFailure, KindStaleReadFailure, KindInvalidRequest:
		return e.Message
	default:
		return "Something went wrong: " + err.Error()
	}
}

// IsRetriable tells whether re-invoking the same action can succeed without user changes
func IsRetriable(err error) bool {
	switch KindOf(err) {
	case KindUserRejected, KindStaleReadFailure, KindPartialFetchFailure:
		return true
	default:
		return false
	}
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindWalletUnavailable, KindNoSignerAvailable:
		return http.StatusPreconditionFailed
	case KindUserRejected:
		return http.StatusForbidden
	case KindWrongNetwork:
		return http.StatusConflict
	case KindContractCallReverted:
		return http.StatusUnprocessableEntity
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindPartialFetchFailure, KindStaleReadFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
