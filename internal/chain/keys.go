package chain

import (
	"crypto/ecdsa"
	"fmt"

	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
	"github.com/rentchain/rental-client/internal/lib"
)

// KeySource provides signing keys by account index
type KeySource interface {
	Key(index int) (*ecdsa.PrivateKey, error)
}

type privateKeySource struct {
	key *ecdsa.PrivateKey
}

func NewPrivateKeySource(privateKeyHex string) (KeySource, error) {
	key, _, err := lib.ParsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}
	return &privateKeySource{key: key}, nil
}

func (s *privateKeySource) Key(index int) (*ecdsa.PrivateKey, error) {
	if index != 0 {
		return nil, fmt.Errorf("private key wallet has a single account, requested index %d", index)
	}
	return s.key, nil
}

type mnemonicSource struct {
	wallet *hdwallet.Wallet
}

func NewMnemonicSource(mnemonic string) (KeySource, error) {
	wallet, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, err
	}
	return &mnemonicSource{wallet: wallet}, nil
}

func (s *mnemonicSource) Key(index int) (*ecdsa.PrivateKey, error) {
	path, err := hdwallet.ParseDerivationPath(fmt.Sprintf("m/44'/60'/0'/0/%d", index))
	if err != nil {
		return nil, err
	}
	account, err := s.wallet.Derive(path, false)
	if err != nil {
		return nil, err
	}
	return s.wallet.PrivateKey(account)
}
