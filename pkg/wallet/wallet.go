// Package wallet provides the deterministic key tree, address derivation,
// coin selection and transaction building/signing primitives of the daemon.
//
// A Wallet is built from a recovered master secret and holds the BIP32 root
// for the duration of the operation that needs it; it never touches storage
// or the network.
package wallet

import (
	"errors"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

var (
	// ErrNullNetwork ...
	ErrNullNetwork = errors.New("network params are null")
	// ErrNullMasterSecret ...
	ErrNullMasterSecret = errors.New("master secret must not be null")
	// ErrInvalidMasterSecretLength ...
	ErrInvalidMasterSecretLength = errors.New("master secret must be 16 or 32 bytes")
	// ErrDerivationFailed is returned when a BIP32 step yields an invalid key.
	ErrDerivationFailed = errors.New("hierarchical deterministic derivation failed")
	// ErrInvalidExtendedKey is returned when an extended public key cannot be
	// parsed or carries version bytes of no known network.
	ErrInvalidExtendedKey = errors.New("invalid extended public key")
	// ErrExpectedPublicKey is returned when an extended private key is
	// supplied where only a public one is accepted.
	ErrExpectedPublicKey = errors.New("expected an extended public key, not a private one")
	// ErrInsufficientFunds is returned by coin selection when the available
	// utxos cannot cover amount plus fee.
	ErrInsufficientFunds = errors.New("insufficient funds to cover amount and fee")
	// ErrInvalidFeeRate ...
	ErrInvalidFeeRate = errors.New("fee rate must be a positive sats/vbyte value")
	// ErrInvalidAmount ...
	ErrInvalidAmount = errors.New("amount must be a positive number of satoshis")
	// ErrInvalidAddress ...
	ErrInvalidAddress = errors.New("address is not valid for the configured network")
	// ErrEmptyInputs ...
	ErrEmptyInputs = errors.New("input list must not be empty")
	// ErrEmptyOutputs ...
	ErrEmptyOutputs = errors.New("output list must not be empty")
	// ErrUnrecognizedInput is returned when a partial transaction references
	// an input this party cannot match to any of its known outpoints.
	ErrUnrecognizedInput = errors.New("partial transaction input does not belong to this wallet")
	// ErrMissingSignatures is returned by finalization when an input lacks
	// the signatures its script requires.
	ErrMissingSignatures = errors.New("transaction input is missing required signatures")
	// ErrMalformedPartialTransaction ...
	ErrMalformedPartialTransaction = errors.New("partial transaction is malformed")
	// ErrUnsupportedScriptType ...
	ErrUnsupportedScriptType = errors.New("unsupported input script type")
)

// Wallet holds the BIP32 root derived from a SLIP-39 master secret along with
// the network it derives addresses for.
type Wallet struct {
	masterKey *hdkeychain.ExtendedKey
	net       *chaincfg.Params
}

// NewWalletOpts is the struct given to NewWalletFromMasterSecret.
type NewWalletOpts struct {
	MasterSecret []byte
	Network      *chaincfg.Params
}

func (o NewWalletOpts) validate() error {
	if len(o.MasterSecret) <= 0 {
		return ErrNullMasterSecret
	}
	if len(o.MasterSecret) != 16 && len(o.MasterSecret) != 32 {
		return ErrInvalidMasterSecretLength
	}
	if o.Network == nil {
		return ErrNullNetwork
	}
	return nil
}

// NewWalletFromMasterSecret builds the hierarchical deterministic root from
// the master secret bytes. The secret is only read, never retained: the
// caller keeps ownership and should zero it when done.
func NewWalletFromMasterSecret(opts NewWalletOpts) (*Wallet, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	masterKey, err := hdkeychain.NewMaster(opts.MasterSecret, opts.Network)
	if err != nil {
		return nil, ErrDerivationFailed
	}

	return &Wallet{masterKey: masterKey, net: opts.Network}, nil
}

// Network returns the chain parameters the wallet derives addresses for.
func (w *Wallet) Network() *chaincfg.Params {
	return w.net
}

func (w *Wallet) validate() error {
	if w.masterKey == nil {
		return ErrNullMasterSecret
	}
	if w.net == nil {
		return ErrNullNetwork
	}
	return nil
}

// deriveNode walks the wallet root along the given path, mapping any invalid
// intermediate key to ErrDerivationFailed.
func (w *Wallet) deriveNode(path DerivationPath) (*hdkeychain.ExtendedKey, error) {
	node := w.masterKey
	var err error
	for _, step := range path {
		node, err = node.Derive(step)
		if err != nil {
			return nil, ErrDerivationFailed
		}
	}
	return node, nil
}
