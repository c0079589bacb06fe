package contracts

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rentchain/rental-client/internal/errors"
)

// Name is the logical name of a deployed contract
type Name string

const (
	Token            Name = "token"
	Vault            Name = "vault"
	PropertyRegistry Name = "registry"
	Passport         Name = "passport"
	AgreementFactory Name = "agreement-factory"
	AgreementNFT     Name = "agreement-nft"
)

func (n Name) String() string {
	return string(n)
}

// DefaultDecimals is the unit scale of the stable token and every amount the contracts report
const DefaultDecimals uint8 = 6

var AllNames = []Name{Token, Vault, PropertyRegistry, Passport, AgreementFactory, AgreementNFT}

var abis = map[Name]*abi.ABI{
	Token:            TokenABI,
	Vault:            VaultABI,
	PropertyRegistry: PropertyRegistryABI,
	Passport:         PassportABI,
	AgreementFactory: AgreementFactoryABI,
	AgreementNFT:     AgreementNFTABI,
}

var ErrUnknownContract = fmt.Errorf("unknown contract")

// Handle binds a contract address to its ABI. A signed handle may be used to send transactions.
type Handle struct {
	Name     Name
	Address  common.Address
	ABI      *abi.ABI
	Decimals uint8
	Signed   bool
}

func (h *Handle) String() string {
	return fmt.Sprintf("%s(%s)", h.Name, h.Address.Hex())
}

// SignerState reports whether a wallet session is currently able to sign
type SignerState interface {
	IsConnected() bool
}

type entry struct {
	address  common.Address
	decimals uint8
}

type Registry struct {
	entries map[Name]entry

	signerMu sync.RWMutex
	signer   SignerState
}

// NewRegistry validates that every logical contract has an address. Decimals missing from
// overrides fall back to DefaultDecimals.
func NewRegistry(addresses map[Name]common.Address, decimals map[Name]uint8) (*Registry, error) {
	entries := make(map[Name]entry, len(AllNames))
	for _, name := range AllNames {
		addr, ok := addresses[name]
		if !ok || addr == (common.Address{}) {
			return nil, fmt.Errorf("missing address for contract %s", name)
		}
		dec, ok := decimals[name]
		if !ok {
			dec = DefaultDecimals
		}
		entries[name] = entry{address: addr, decimals: dec}
	}
	return &Registry{entries: entries}, nil
}

// SetSigner attaches the session that gates signed handles
func (r *Registry) SetSigner(s SignerState) {
	r.signerMu.Lock()
	defer r.signerMu.Unlock()
	r.signer = s
}

func (r *Registry) hasSigner() bool {
	r.signerMu.RLock()
	defer r.signerMu.RUnlock()
	return r.signer != nil && r.signer.IsConnected()
}

// Handle returns a read-only or signed handle for the named contract
func (r *Registry) Handle(name Name, signed bool) (*Handle, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContract, name)
	}
	if signed && !r.hasSigner() {
		return nil, errors.NoSigner(string(name))
	}
	return &Handle{
		Name:     name,
		Address:  e.address,
		ABI:      abis[name],
		Decimals: e.decimals,
		Signed:   signed,
	}, nil
}

func (r *Registry) Address(name Name) common.Address {
	return r.entries[name].address
}

// Decimals returns the unit scale used to format amounts of the named contract
func (r *Registry) Decimals(name Name) uint8 {
	e, ok := r.entries[name]
	if !ok {
		return DefaultDecimals
	}
	return e.decimals
}
