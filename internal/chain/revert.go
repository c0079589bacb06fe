package chain

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

const revertPrefix = "execution reverted"

// revertReason extracts the contract supplied reason from a node error. ok is false when
// the error is not a revert at all.
func revertReason(err error) (reason string, ok bool) {
	if err == nil {
		return "", false
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if hexData, isStr := dataErr.ErrorData().(string); isStr {
			if raw, decodeErr := hexutil.Decode(hexData); decodeErr == nil {
				if unpacked, unpackErr := abi.UnpackRevert(raw); unpackErr == nil {
					return unpacked, true
				}
			}
		}
	}

	msg := err.Error()
	idx := strings.Index(msg, revertPrefix)
	if idx < 0 {
		return "", false
	}
	reason = strings.TrimSpace(strings.TrimPrefix(msg[idx+len(revertPrefix):], ":"))
	return reason, true
}
