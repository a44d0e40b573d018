package application

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heirvault/heirvault-daemon/internal/core/domain"
	"github.com/heirvault/heirvault-daemon/pkg/wallet"
)

func TestSendToAddress(t *testing.T) {
	svcs := newTestServices(t)

	account, err := svcs.accountSvc.CreateAccount(ctx, "savings")
	require.NoError(t, err)
	source, err := svcs.accountSvc.GenerateNewAddress(ctx, account.ID)
	require.NoError(t, err)
	payout, err := svcs.accountSvc.GenerateNewAddress(ctx, account.ID)
	require.NoError(t, err)

	script, err := hex.DecodeString(addressScript(t, svcs, account.ID, source.Address))
	require.NoError(t, err)
	svcs.explorerSvc.fundAddress(source.Address, script, 100_000, 95)

	txid, err := svcs.txSvc.SendToAddress(ctx, SendToAddressOpts{
		AccountID: account.ID,
		Address:   payout.Address,
		Amount:    40_000,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, txid)
	require.Len(t, svcs.explorerSvc.broadcasted, 1)

	tx := decodeTx(t, svcs.explorerSvc.broadcasted[0])
	require.Len(t, tx.TxIn, 1)
	require.Len(t, tx.TxOut, 2)

	// key-path taproot spend carries a single 64-byte schnorr signature
	require.Len(t, tx.TxIn[0].Witness, 1)
	assert.Len(t, tx.TxIn[0].Witness[0], 64)
	assertValidSpend(t, tx, []wallet.TxInput{{
		TxID:       svcs.explorerSvc.utxos[source.Address][0].Hash(),
		VOut:       0,
		Value:      100_000,
		PrevScript: script,
	}})

	// a change address was derived on the internal chain
	info, err := svcs.accountSvc.GetAccountInfo(ctx, account.ID)
	require.NoError(t, err)
	change := make([]AddressInfo, 0)
	for _, addr := range info.Addresses {
		if addr.IsChange {
			change = append(change, addr)
		}
	}
	require.Len(t, change, 1)
	assert.Equal(t, "m/86'/0'/0'/1/0", change[0].DerivationPath)
}

func TestFailingSendToAddress(t *testing.T) {
	svcs := newTestServices(t)

	account, err := svcs.accountSvc.CreateAccount(ctx, "savings")
	require.NoError(t, err)
	_, err = svcs.accountSvc.GenerateNewAddress(ctx, account.ID)
	require.NoError(t, err)
	payout, err := svcs.accountSvc.GenerateNewAddress(ctx, account.ID)
	require.NoError(t, err)

	tests := []struct {
		name string
		opts SendToAddressOpts
		err  error
	}{
		{
			name: "invalid address",
			opts: SendToAddressOpts{
				AccountID: account.ID, Address: "not an address", Amount: 1000,
			},
			err: wallet.ErrInvalidAddress,
		},
		{
			name: "invalid amount",
			opts: SendToAddressOpts{
				AccountID: account.ID, Address: payout.Address, Amount: 0,
			},
			err: wallet.ErrInvalidAmount,
		},
		{
			name: "insufficient funds",
			opts: SendToAddressOpts{
				AccountID: account.ID, Address: payout.Address, Amount: 1000,
			},
			err: wallet.ErrInsufficientFunds,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svcs.txSvc.SendToAddress(ctx, tt.opts)
			assert.Equal(t, tt.err, err)
		})
	}

	// validation fails before any network or signing work
	assert.Len(t, svcs.explorerSvc.broadcasted, 0)
}

func TestSendToAddressOnInheritanceAccount(t *testing.T) {
	svcs := newTestServices(t)
	account := newInheritanceAccount(t, svcs, counterpartyXPub(t))
	payoutSvcs := newTestServices(t)
	payoutAccount, err := payoutSvcs.accountSvc.CreateAccount(ctx, "savings")
	require.NoError(t, err)
	payout, err := payoutSvcs.accountSvc.GenerateNewAddress(ctx, payoutAccount.ID)
	require.NoError(t, err)

	_, err = svcs.txSvc.SendToAddress(ctx, SendToAddressOpts{
		AccountID: account.ID,
		Address:   payout.Address,
		Amount:    1000,
	})
	assert.Equal(t, ErrNotStandardAccount, err)
}

// TestMultisigSpendFlow walks the full partial envelope handoff: the user
// activates the account, initiates a spend during its own window, the heir
// co-signs the imported envelope and the finalized transaction verifies
// against the spent outputs.
func TestMultisigSpendFlow(t *testing.T) {
	userSvcs := newTestServices(t)
	heirSvcs := newTestServices(t)

	userXPub := accountXPub(t, userSvcs.walletSvc)
	heirXPub := accountXPub(t, heirSvcs.walletSvc)

	userAccount := newInheritanceAccount(t, userSvcs, heirXPub)
	heirAccount, err := heirSvcs.inheritSvc.CreateInheritanceAccount(ctx, CreateInheritanceAccountOpts{
		Name:                    "legacy",
		LocalRole:               domain.LocalRoleHeir,
		CounterpartyFingerprint: "f00dbabe",
		CounterpartyXPub:        userXPub,
		SpendingConditions:      testConditions,
	})
	require.NoError(t, err)

	// fund and activate on the user side
	funding, err := userSvcs.inheritSvc.GenerateFundingAddress(ctx, userAccount.ID)
	require.NoError(t, err)
	userSvcs.explorerSvc.fundAddress(
		funding.Address,
		fundingScript(t, userSvcs, userAccount.ID, funding.Address),
		200_000, 90,
	)
	_, err = userSvcs.inheritSvc.ActivateAccount(ctx, userAccount.ID)
	require.NoError(t, err)

	// both parties derive the same active address from the swapped xpubs
	userInfo, err := userSvcs.accountSvc.GetAccountInfo(ctx, userAccount.ID)
	require.NoError(t, err)
	active := activeAddresses(userInfo)
	require.Len(t, active, 1)

	heirStored, err := heirSvcs.repoManager.AccountRepository().GetAccountByID(ctx, heirAccount.ID)
	require.NoError(t, err)
	heirActive, err := heirSvcs.inheritSvc.deriveMultisigAddress(
		heirStored, domain.AddressRoleActive, false, 0,
	)
	require.NoError(t, err)
	assert.Equal(t, active[0].Address, heirActive.Address)
	require.NoError(t, heirSvcs.repoManager.AccountRepository().UpdateAccount(
		ctx, heirAccount.ID, func(a *domain.Account) (*domain.Account, error) {
			return a, a.AddDerivedAddress(*heirActive)
		},
	))

	// expose the sweep output as the active utxo
	sweep := decodeTx(t, userSvcs.explorerSvc.broadcasted[0])
	activeScript, err := hex.DecodeString(heirActive.Script)
	require.NoError(t, err)
	userSvcs.explorerSvc.utxos[active[0].Address] = append(
		userSvcs.explorerSvc.utxos[active[0].Address], mockUtxo{
			hash:      sweep.TxHash().String(),
			index:     0,
			value:     uint64(sweep.TxOut[0].Value),
			script:    activeScript,
			confirmed: true,
			height:    96,
		},
	)

	payoutAccount, err := userSvcs.accountSvc.CreateAccount(ctx, "savings")
	require.NoError(t, err)
	payout, err := userSvcs.accountSvc.GenerateNewAddress(ctx, payoutAccount.ID)
	require.NoError(t, err)

	// user initiates during its own window (10 blocks elapsed)
	encoded, err := userSvcs.txSvc.PrepareMultisigSpend(ctx, SendToAddressOpts{
		AccountID: userAccount.ID,
		Address:   payout.Address,
		Amount:    50_000,
	})
	require.NoError(t, err)

	partial, err := wallet.DecodePartialTransaction(encoded)
	require.NoError(t, err)
	require.Len(t, partial.Inputs, 1)
	assert.Len(t, partial.Inputs[0].Signatures, 1)

	// finalizing with a single signature must fail
	_, err = wallet.FinalizeTransaction(partial)
	assert.Equal(t, wallet.ErrMissingSignatures, err)

	// heir co-signs by matching the input against its own records
	coSigned, err := heirSvcs.txSvc.CoSignTransaction(ctx, encoded)
	require.NoError(t, err)
	partial, err = wallet.DecodePartialTransaction(coSigned)
	require.NoError(t, err)
	assert.Len(t, partial.Inputs[0].Signatures, 2)

	_, err = userSvcs.txSvc.FinalizeAndBroadcast(ctx, coSigned)
	require.NoError(t, err)
	require.Len(t, userSvcs.explorerSvc.broadcasted, 2)

	tx := decodeTx(t, userSvcs.explorerSvc.broadcasted[1])
	require.Len(t, tx.TxIn, 1)
	require.Len(t, tx.TxIn[0].Witness, 4)
	assertValidSpend(t, tx, []wallet.TxInput{{
		TxID:       sweep.TxHash().String(),
		VOut:       0,
		Value:      uint64(sweep.TxOut[0].Value),
		PrevScript: activeScript,
	}})
}

func TestPrepareMultisigSpendBeforeActivation(t *testing.T) {
	svcs := newTestServices(t)
	account := newInheritanceAccount(t, svcs, counterpartyXPub(t))

	_, err := svcs.txSvc.PrepareMultisigSpend(ctx, SendToAddressOpts{
		AccountID: account.ID,
		Address:   newTaprootAddress(t),
		Amount:    1000,
	})
	assert.Equal(t, domain.ErrAccountNotActivated, err)
}

func TestPrepareMultisigSpendOutsideWindows(t *testing.T) {
	svcs := newTestServices(t)
	account := newInheritanceAccount(t, svcs, counterpartyXPub(t))

	funding, err := svcs.inheritSvc.GenerateFundingAddress(ctx, account.ID)
	require.NoError(t, err)
	svcs.explorerSvc.fundAddress(
		funding.Address, fundingScript(t, svcs, account.ID, funding.Address), 100_000, 98,
	)
	_, err = svcs.inheritSvc.ActivateAccount(ctx, account.ID)
	require.NoError(t, err)

	// 2 blocks elapsed: before the multisig window opens no one may spend
	_, err = svcs.txSvc.PrepareMultisigSpend(ctx, SendToAddressOpts{
		AccountID: account.ID,
		Address:   newTaprootAddress(t),
		Amount:    1000,
	})
	assert.Equal(t, ErrSpendingNotAllowed, err)
}

func TestCoSignUnrecognizedInput(t *testing.T) {
	userSvcs := newTestServices(t)
	heirSvcs := newTestServices(t)

	// an envelope whose input belongs to no account of the co-signer
	account := newInheritanceAccount(t, userSvcs, accountXPub(t, heirSvcs.walletSvc))
	funding, err := userSvcs.inheritSvc.GenerateFundingAddress(ctx, account.ID)
	require.NoError(t, err)
	script := fundingScript(t, userSvcs, account.ID, funding.Address)

	stored, err := userSvcs.repoManager.AccountRepository().GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	record, err := stored.AddressInfo(funding.Address)
	require.NoError(t, err)
	_, witnessScript, err := userSvcs.inheritSvc.multisigScripts(stored, *record)
	require.NoError(t, err)

	inputs := []wallet.TxInput{{
		TxID:          "aa" + decodeTxID(),
		VOut:          0,
		Value:         10_000,
		PrevScript:    script,
		Script:        wallet.P2WSH2of2,
		WitnessScript: witnessScript,
	}}
	tx, err := wallet.CreateTx(wallet.CreateTxOpts{
		Inputs:  inputs,
		Outputs: []wallet.TxOutput{{Address: newTaprootAddress(t), Value: 9000}},
		Network: userSvcs.walletSvc.Network(),
	})
	require.NoError(t, err)
	partial, err := wallet.NewPartialTransaction(tx, inputs)
	require.NoError(t, err)
	encoded, err := partial.Encode()
	require.NoError(t, err)

	_, err = heirSvcs.txSvc.CoSignTransaction(ctx, encoded)
	assert.Equal(t, wallet.ErrUnrecognizedInput, err)
}

func decodeTxID() string {
	return "00112233445566778899aabbccddeeff00112233445566778899aabbccddee"
}

func newTaprootAddress(t *testing.T) string {
	t.Helper()
	svcs := newTestServices(t)
	account, err := svcs.accountSvc.CreateAccount(ctx, "payout")
	require.NoError(t, err)
	addr, err := svcs.accountSvc.GenerateNewAddress(ctx, account.ID)
	require.NoError(t, err)
	return addr.Address
}

func decodeTx(t *testing.T, txHex string) *wire.MsgTx {
	t.Helper()
	buf, err := hex.DecodeString(txHex)
	require.NoError(t, err)
	tx := &wire.MsgTx{}
	require.NoError(t, tx.Deserialize(bytes.NewReader(buf)))
	return tx
}

// assertValidSpend runs the script engine over every input of the signed
// transaction against the outputs it spends.
func assertValidSpend(t *testing.T, tx *wire.MsgTx, inputs []wallet.TxInput) {
	t.Helper()

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, in := range inputs {
		fetcher.AddPrevOut(
			tx.TxIn[i].PreviousOutPoint,
			wire.NewTxOut(int64(in.Value), in.PrevScript),
		)
	}
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	for i, in := range inputs {
		engine, err := txscript.NewEngine(
			in.PrevScript, tx, i, txscript.StandardVerifyFlags, nil,
			sigHashes, int64(in.Value), fetcher,
		)
		require.NoError(t, err)
		require.NoError(t, engine.Execute())
	}
}
