// Package escrow provides a wallet-backed implementation of the escrow
// co-signer capability. The identity is built from an injected mnemonic and
// handed explicitly to the operations that need it: a production deployment
// replaces this with a remote signing party exposing the same surface.
package escrow

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/heirvault/heirvault-daemon/internal/core/ports"
	"github.com/heirvault/heirvault-daemon/pkg/slip39"
	"github.com/heirvault/heirvault-daemon/pkg/wallet"
)

// ErrKeyNotFound is returned when no child key of the escrow account appears
// in a witness script it was asked to sign for.
var ErrKeyNotFound = errors.New("no escrow key found in witness script")

// probeWindow bounds the child positions scanned to re-identify the escrow
// key inside a witness script.
const probeWindow = 100

type localSigner struct {
	w           *wallet.Wallet
	xpub        string
	fingerprint string
}

// NewLocalSignerOpts is the struct given to NewLocalSigner.
type NewLocalSignerOpts struct {
	Mnemonic string
	Network  *chaincfg.Params
}

// NewLocalSigner builds the escrow identity from its backup mnemonic.
func NewLocalSigner(opts NewLocalSignerOpts) (ports.EscrowIdentityProvider, error) {
	masterSecret, err := slip39.RecoverMasterSecret(slip39.RecoverMasterSecretOpts{
		Mnemonic: opts.Mnemonic,
	})
	if err != nil {
		return nil, err
	}

	w, err := wallet.NewWalletFromMasterSecret(wallet.NewWalletOpts{
		MasterSecret: masterSecret,
		Network:      opts.Network,
	})
	if err != nil {
		return nil, err
	}

	xpub, err := w.AccountExtendedPublicKey(wallet.AccountExtendedKeyOpts{
		BasePath: wallet.MultisigBaseDerivationPath,
		Account:  0,
	})
	if err != nil {
		return nil, err
	}
	fingerprint, err := w.MasterFingerprint()
	if err != nil {
		return nil, err
	}

	return &localSigner{
		w:           w,
		xpub:        xpub,
		fingerprint: fingerprint,
	}, nil
}

func (s *localSigner) Fingerprint() string {
	return s.fingerprint
}

func (s *localSigner) AccountExtendedPublicKey() string {
	return s.xpub
}

// SignPartialTransaction adds the escrow signatures to every script-hash
// input whose witness script contains one of its child keys.
func (s *localSigner) SignPartialTransaction(partialTx string) (string, error) {
	partial, err := wallet.DecodePartialTransaction(partialTx)
	if err != nil {
		return "", err
	}

	inputPaths := make(map[string]string)
	for _, in := range partial.Inputs {
		if in.Script != wallet.P2WSH2of2 {
			continue
		}
		witnessScript, err := hex.DecodeString(in.WitnessScript)
		if err != nil {
			return "", wallet.ErrMalformedPartialTransaction
		}
		path, err := s.findPath(witnessScript)
		if err != nil {
			return "", err
		}
		inputPaths[fmt.Sprintf("%s:%d", in.TxID, in.VOut)] = path
	}

	signed, err := s.w.SignPartialTransaction(wallet.SignPartialTransactionOpts{
		Partial:    partial,
		InputPaths: inputPaths,
	})
	if err != nil {
		return "", err
	}
	return signed.Encode()
}

// findPath scans the external and internal chains of the escrow account for
// the child key embedded in the witness script. The funding-branch level is
// walked on the counterparty's subtree only, so the escrow's own children
// always sit at depth two below the account key.
func (s *localSigner) findPath(witnessScript []byte) (string, error) {
	key, err := wallet.ParseExtendedPublicKey(s.xpub, s.w.Network())
	if err != nil {
		return "", err
	}

	for change := uint32(0); change <= 1; change++ {
		changeNode, err := key.Derive(change)
		if err != nil {
			continue
		}
		for index := uint32(0); index < probeWindow; index++ {
			node, err := changeNode.Derive(index)
			if err != nil {
				continue
			}
			pubKey, err := node.ECPubKey()
			if err != nil {
				continue
			}
			if bytes.Contains(witnessScript, pubKey.SerializeCompressed()) {
				return fmt.Sprintf("m/48'/0'/0'/%d/%d", change, index), nil
			}
		}
	}
	return "", ErrKeyNotFound
}
