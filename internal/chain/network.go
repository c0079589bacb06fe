package chain

import (
	"fmt"
	"strconv"
	"strings"
)

type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// NetworkDescriptor is the static description of the chain the client requires
type NetworkDescriptor struct {
	ChainID          uint64         `json:"chainId"`
	DisplayName      string         `json:"chainName"`
	RPCURL           string         `json:"rpcUrl"`
	NativeCurrency   NativeCurrency `json:"nativeCurrency"`
	BlockExplorerURL string         `json:"blockExplorerUrl"`
}

func (n NetworkDescriptor) ChainIDHex() string {
	return ChainIDToHex(n.ChainID)
}

func ChainIDToHex(id uint64) string {
	return "0x" + strconv.FormatUint(id, 16)
}

func ParseChainIDHex(s string) (uint64, error) {
	trimmed := strings.TrimPrefix(strings.ToLower(s), "0x")
	id, err := strconv.ParseUint(trimmed, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chain id %q: %w", s, err)
	}
	return id, nil
}
