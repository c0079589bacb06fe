package resources

import (
	"context"

	"github.com/rentchain/rental-client/internal/repositories/contracts"
)

// Reader performs read-only contract calls
type Reader interface {
	Call(ctx context.Context, h *contracts.Handle, method string, args ...interface{}) ([]interface{}, error)
}

// HandleProvider resolves logical contract names
type HandleProvider interface {
	Handle(name contracts.Name, signed bool) (*contracts.Handle, error)
}

// LoadState tells a view whether it has data to show
type LoadState string

const (
	LoadStateIdle        LoadState = "idle"
	LoadStateLoading     LoadState = "loading"
	LoadStateReady       LoadState = "ready"
	LoadStateUnavailable LoadState = "unavailable"
)

// NextLoadState applies the outcome of a read: a failure only makes a view unavailable when
// nothing was loaded yet, later failures keep the previous data.
func NextLoadState(current LoadState, readErr error) LoadState {
	if readErr == nil {
		return LoadStateReady
	}
	switch current {
	case LoadStateIdle, LoadStateLoading, LoadStateUnavailable:
		return LoadStateUnavailable
	default:
		return current
	}
}
