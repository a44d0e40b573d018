package escrow

import (
	"strings"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heirvault/heirvault-daemon/pkg/slip39"
	"github.com/heirvault/heirvault-daemon/pkg/wallet"
)

var testNetwork = &chaincfg.RegressionNetParams

func newTestSigner(t *testing.T) *localSigner {
	t.Helper()
	mnemonic, err := slip39.GenerateMnemonic(slip39.GenerateMnemonicOpts{
		MasterSecret: []byte("an-escrow-master-secret-32-bytes"),
	})
	require.NoError(t, err)

	signer, err := NewLocalSigner(NewLocalSignerOpts{
		Mnemonic: mnemonic,
		Network:  testNetwork,
	})
	require.NoError(t, err)
	return signer.(*localSigner)
}

func newTestWallet(t *testing.T, secret string) *wallet.Wallet {
	t.Helper()
	w, err := wallet.NewWalletFromMasterSecret(wallet.NewWalletOpts{
		MasterSecret: []byte(secret),
		Network:      testNetwork,
	})
	require.NoError(t, err)
	return w
}

func accountXPub(t *testing.T, w *wallet.Wallet) string {
	t.Helper()
	xpub, err := w.AccountExtendedPublicKey(wallet.AccountExtendedKeyOpts{
		BasePath: wallet.MultisigBaseDerivationPath,
		Account:  0,
	})
	require.NoError(t, err)
	return xpub
}

func TestNewLocalSigner(t *testing.T) {
	signer := newTestSigner(t)

	assert.Len(t, signer.Fingerprint(), 8)
	_, err := wallet.ParseExtendedPublicKey(signer.AccountExtendedPublicKey(), testNetwork)
	require.NoError(t, err)
}

func TestFailingNewLocalSigner(t *testing.T) {
	_, err := NewLocalSigner(NewLocalSignerOpts{
		Mnemonic: "not a valid mnemonic",
		Network:  testNetwork,
	})
	assert.Error(t, err)
}

func TestSignPartialTransaction(t *testing.T) {
	signer := newTestSigner(t)
	w := newTestWallet(t, "the-local-master-secret-32-bytes")

	branch := uint32(0)
	_, script, witnessScript, err := wallet.DeriveMultisigAddress(wallet.MultisigAddressOpts{
		LocalXPub:       accountXPub(t, w),
		CounterpartXPub: signer.AccountExtendedPublicKey(),
		FundingBranch:   &branch,
		Change:          0,
		Index:           0,
		Network:         testNetwork,
	})
	require.NoError(t, err)

	payout, _, err := w.DeriveTaprootAddress(wallet.TaprootAddressOpts{
		Account: 0, Change: 0, Index: 0,
	})
	require.NoError(t, err)

	input := wallet.TxInput{
		TxID:           strings.Repeat("ab", 32),
		VOut:           0,
		Value:          100_000,
		PrevScript:     script,
		Script:         wallet.P2WSH2of2,
		DerivationPath: "m/48'/0'/0'/0/0/0",
		WitnessScript:  witnessScript,
	}
	tx, err := wallet.CreateTx(wallet.CreateTxOpts{
		Inputs:  []wallet.TxInput{input},
		Outputs: []wallet.TxOutput{{Address: payout, Value: 90_000}},
		Network: testNetwork,
	})
	require.NoError(t, err)
	partial, err := wallet.NewPartialTransaction(tx, []wallet.TxInput{input})
	require.NoError(t, err)
	encoded, err := partial.Encode()
	require.NoError(t, err)

	signedEncoded, err := signer.SignPartialTransaction(encoded)
	require.NoError(t, err)

	signed, err := wallet.DecodePartialTransaction(signedEncoded)
	require.NoError(t, err)
	require.Len(t, signed.Inputs, 1)
	assert.Len(t, signed.Inputs[0].Signatures, 1)
}

func TestSignPartialTransactionUnknownKeys(t *testing.T) {
	signer := newTestSigner(t)
	w := newTestWallet(t, "the-local-master-secret-32-bytes")
	other := newTestWallet(t, "another-party-master-secret-32by")

	_, script, witnessScript, err := wallet.DeriveMultisigAddress(wallet.MultisigAddressOpts{
		LocalXPub:       accountXPub(t, w),
		CounterpartXPub: accountXPub(t, other),
		Change:          0,
		Index:           0,
		Network:         testNetwork,
	})
	require.NoError(t, err)

	payout, _, err := w.DeriveTaprootAddress(wallet.TaprootAddressOpts{
		Account: 0, Change: 0, Index: 0,
	})
	require.NoError(t, err)

	input := wallet.TxInput{
		TxID:           strings.Repeat("cd", 32),
		VOut:           0,
		Value:          100_000,
		PrevScript:     script,
		Script:         wallet.P2WSH2of2,
		DerivationPath: "m/48'/0'/0'/0/0",
		WitnessScript:  witnessScript,
	}
	tx, err := wallet.CreateTx(wallet.CreateTxOpts{
		Inputs:  []wallet.TxInput{input},
		Outputs: []wallet.TxOutput{{Address: payout, Value: 90_000}},
		Network: testNetwork,
	})
	require.NoError(t, err)
	partial, err := wallet.NewPartialTransaction(tx, []wallet.TxInput{input})
	require.NoError(t, err)
	encoded, err := partial.Encode()
	require.NoError(t, err)

	_, err = signer.SignPartialTransaction(encoded)
	assert.Equal(t, ErrKeyNotFound, err)
}
