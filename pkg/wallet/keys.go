package wallet

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// AccountExtendedKeyOpts is the struct given to AccountExtendedPublicKey.
type AccountExtendedKeyOpts struct {
	BasePath DerivationPath
	Account  uint32
}

func (o AccountExtendedKeyOpts) validate() error {
	if len(o.BasePath) <= 0 {
		return ErrNullDerivationPath
	}
	if o.Account >= hdkeychain.HardenedKeyStart {
		return ErrInvalidDerivationPathAccount
	}
	return nil
}

// AccountExtendedPublicKey derives the hardened account node under the given
// purpose root and returns its neutered extended key in base58 format. This
// is the key material exchanged with co-signing parties.
func (w *Wallet) AccountExtendedPublicKey(opts AccountExtendedKeyOpts) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}
	if err := w.validate(); err != nil {
		return "", err
	}

	node, err := w.deriveNode(
		opts.BasePath.Extend(hdkeychain.HardenedKeyStart + opts.Account),
	)
	if err != nil {
		return "", err
	}
	xpub, err := node.Neuter()
	if err != nil {
		return "", ErrDerivationFailed
	}
	return xpub.String(), nil
}

// MasterFingerprint returns the first 4 bytes of the hash160 of the master
// public key in hex, the identifier exchanged with co-signing parties to
// attribute keys in multi-party scripts.
func (w *Wallet) MasterFingerprint() (string, error) {
	if err := w.validate(); err != nil {
		return "", err
	}
	pubKey, err := w.masterKey.ECPubKey()
	if err != nil {
		return "", ErrDerivationFailed
	}
	return hex.EncodeToString(
		btcutil.Hash160(pubKey.SerializeCompressed())[:4],
	), nil
}

// DeriveSigningKeyPairOpts is the struct given to DeriveSigningKeyPair.
type DeriveSigningKeyPairOpts struct {
	DerivationPath string
}

func (o DeriveSigningKeyPairOpts) validate() error {
	derivationPath, err := ParseDerivationPath(o.DerivationPath)
	if err != nil {
		return err
	}
	return checkDerivationPath(derivationPath)
}

// DeriveSigningKeyPair derives the key pair at the provided relative path
// "account'/change/index" under the taproot purpose root.
func (w *Wallet) DeriveSigningKeyPair(opts DeriveSigningKeyPairOpts) (
	*btcec.PrivateKey, *btcec.PublicKey, error,
) {
	if err := opts.validate(); err != nil {
		return nil, nil, err
	}
	if err := w.validate(); err != nil {
		return nil, nil, err
	}

	derivationPath, _ := ParseDerivationPath(opts.DerivationPath)
	node, err := w.deriveNode(TaprootBaseDerivationPath.Extend(derivationPath...))
	if err != nil {
		return nil, nil, err
	}

	privateKey, err := node.ECPrivKey()
	if err != nil {
		return nil, nil, ErrDerivationFailed
	}
	publicKey, err := node.ECPubKey()
	if err != nil {
		return nil, nil, ErrDerivationFailed
	}
	return privateKey, publicKey, nil
}

// TaprootAddressOpts is the struct given to DeriveTaprootAddress.
type TaprootAddressOpts struct {
	Account uint32
	Change  uint32
	Index   uint32
}

func (o TaprootAddressOpts) validate() error {
	if o.Account >= hdkeychain.HardenedKeyStart {
		return ErrInvalidDerivationPathAccount
	}
	return nil
}

// DeriveTaprootAddress derives the key at
// m/86'/0'/account'/change/index, applies the BIP-341 key tweak and returns
// the segwit v1 address together with its output script.
func (w *Wallet) DeriveTaprootAddress(opts TaprootAddressOpts) (string, []byte, error) {
	if err := opts.validate(); err != nil {
		return "", nil, err
	}
	if err := w.validate(); err != nil {
		return "", nil, err
	}

	node, err := w.deriveNode(TaprootBaseDerivationPath.Extend(
		hdkeychain.HardenedKeyStart+opts.Account, opts.Change, opts.Index,
	))
	if err != nil {
		return "", nil, err
	}
	internalKey, err := node.ECPubKey()
	if err != nil {
		return "", nil, ErrDerivationFailed
	}

	// tweak the internal key with the TapTweak tagged hash of its own x-only
	// serialization (no script tree commitment)
	taprootKey := txscript.ComputeTaprootKeyNoScript(internalKey)

	addr, err := btcutil.NewAddressTaproot(
		schnorr.SerializePubKey(taprootKey), w.net,
	)
	if err != nil {
		return "", nil, err
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return "", nil, err
	}
	return addr.EncodeAddress(), script, nil
}

// ParseExtendedPublicKey parses an externally supplied account extended
// public key. Keys are accepted for the configured network first, then for
// the other known version table (production vs. test networks), so that a
// key exported by a differently-configured peer still parses; anything else
// fails with ErrInvalidExtendedKey.
func ParseExtendedPublicKey(xpub string, net *chaincfg.Params) (*hdkeychain.ExtendedKey, error) {
	if net == nil {
		return nil, ErrNullNetwork
	}
	key, err := hdkeychain.NewKeyFromString(xpub)
	if err != nil {
		return nil, ErrInvalidExtendedKey
	}
	if key.IsPrivate() {
		return nil, ErrExpectedPublicKey
	}
	if key.IsForNet(net) {
		return key, nil
	}
	for _, alt := range []*chaincfg.Params{
		&chaincfg.MainNetParams, &chaincfg.RegressionNetParams,
	} {
		if alt.Net != net.Net && key.IsForNet(alt) {
			return key, nil
		}
	}
	return nil, ErrInvalidExtendedKey
}

// MultisigAddressOpts is the struct given to DeriveMultisigAddress. The two
// extended public keys are account-level; each is child-derived by
// change/index, with an optional extra funding-branch level walked on the
// local party's subtree to separate funding outputs per account instance.
type MultisigAddressOpts struct {
	LocalXPub       string
	CounterpartXPub string
	FundingBranch   *uint32
	Change          uint32
	Index           uint32
	Network         *chaincfg.Params
}

func (o MultisigAddressOpts) validate() error {
	if o.Network == nil {
		return ErrNullNetwork
	}
	if _, err := ParseExtendedPublicKey(o.LocalXPub, o.Network); err != nil {
		return err
	}
	if _, err := ParseExtendedPublicKey(o.CounterpartXPub, o.Network); err != nil {
		return err
	}
	return nil
}

// DeriveMultisigAddress builds the 2-of-2 witness script over the two derived
// public keys (sorted canonically for determinism) and returns the P2WSH
// address, the output script and the witness script.
func DeriveMultisigAddress(opts MultisigAddressOpts) (string, []byte, []byte, error) {
	if err := opts.validate(); err != nil {
		return "", nil, nil, err
	}

	localKey, _ := ParseExtendedPublicKey(opts.LocalXPub, opts.Network)
	counterKey, _ := ParseExtendedPublicKey(opts.CounterpartXPub, opts.Network)

	localSteps := []uint32{opts.Change, opts.Index}
	if opts.FundingBranch != nil {
		localSteps = append([]uint32{*opts.FundingBranch}, localSteps...)
	}

	localPub, err := deriveChildPubKey(localKey, localSteps)
	if err != nil {
		return "", nil, nil, err
	}
	counterPub, err := deriveChildPubKey(counterKey, []uint32{opts.Change, opts.Index})
	if err != nil {
		return "", nil, nil, err
	}

	witnessScript, err := buildMultisigScript(localPub, counterPub)
	if err != nil {
		return "", nil, nil, err
	}

	scriptHash := sha256.Sum256(witnessScript)
	addr, err := btcutil.NewAddressWitnessScriptHash(scriptHash[:], opts.Network)
	if err != nil {
		return "", nil, nil, err
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return "", nil, nil, err
	}
	return addr.EncodeAddress(), script, witnessScript, nil
}

func deriveChildPubKey(key *hdkeychain.ExtendedKey, steps []uint32) (*btcec.PublicKey, error) {
	node := key
	var err error
	for _, step := range steps {
		node, err = node.Derive(step)
		if err != nil {
			return nil, ErrDerivationFailed
		}
	}
	pub, err := node.ECPubKey()
	if err != nil {
		return nil, ErrDerivationFailed
	}
	return pub, nil
}

// buildMultisigScript assembles the 2-of-2 CHECKMULTISIG witness script with
// the public keys in canonical (lexicographic) order.
func buildMultisigScript(a, b *btcec.PublicKey) ([]byte, error) {
	keys := sortPubKeys(a, b)
	builder := txscript.NewScriptBuilder().AddOp(txscript.OP_2)
	for _, key := range keys {
		builder.AddData(key.SerializeCompressed())
	}
	builder.AddOp(txscript.OP_2).AddOp(txscript.OP_CHECKMULTISIG)
	return builder.Script()
}

func sortPubKeys(a, b *btcec.PublicKey) []*btcec.PublicKey {
	if bytes.Compare(a.SerializeCompressed(), b.SerializeCompressed()) <= 0 {
		return []*btcec.PublicKey{a, b}
	}
	return []*btcec.PublicKey{b, a}
}
