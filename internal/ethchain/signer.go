package ethchain

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
)

// settlerDerivationPath is the standard first external account of an
// Ethereum HD wallet. The derived address must match the escrow contract's
// configured settler.
const settlerDerivationPath = "m/44'/60'/0'/0/0"

// Signer holds the server's settlement key, derived once at startup.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSignerFromMnemonic derives the settler key from a BIP-39 mnemonic.
func NewSignerFromMnemonic(mnemonic string) (*Signer, error) {
	wallet, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("parse mnemonic: %w", err)
	}
	path, err := hdwallet.ParseDerivationPath(settlerDerivationPath)
	if err != nil {
		return nil, err
	}
	account, err := wallet.Derive(path, false)
	if err != nil {
		return nil, fmt.Errorf("derive settler account: %w", err)
	}
	key, err := wallet.PrivateKey(account)
	if err != nil {
		return nil, fmt.Errorf("extract settler key: %w", err)
	}
	return &Signer{key: key, address: account.Address}, nil
}

// Address returns the settler address.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignTx signs a transaction for the given chain.
func (s *Signer) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}
