package application

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	log "github.com/sirupsen/logrus"

	"github.com/heirvault/heirvault-daemon/internal/core/domain"
	"github.com/heirvault/heirvault-daemon/internal/core/ports"
	"github.com/heirvault/heirvault-daemon/pkg/explorer"
	"github.com/heirvault/heirvault-daemon/pkg/mathutil"
	"github.com/heirvault/heirvault-daemon/pkg/wallet"
)

// TransactionService builds, signs and broadcasts transactions. Standard
// accounts spend single-sig taproot inputs in one call; activated inheritance
// accounts go through the partial envelope flow so the counterparty can add
// its signatures out of band.
type TransactionService struct {
	repoManager    ports.RepoManager
	explorerSvc    explorer.Service
	walletSvc      *WalletService
	accountSvc     *AccountService
	inheritanceSvc *InheritanceService
	fees           *feeProvider
	locker         *accountLocker
}

// TransactionServiceOpts is the struct given to NewTransactionService.
type TransactionServiceOpts struct {
	RepoManager     ports.RepoManager
	ExplorerSvc     explorer.Service
	WalletSvc       *WalletService
	AccountSvc      *AccountService
	InheritanceSvc  *InheritanceService
	FeeTargetBlocks int
	FallbackFeeRate uint64
}

func (o TransactionServiceOpts) validate() error {
	if o.RepoManager == nil {
		return ErrNullRepoManager
	}
	if o.ExplorerSvc == nil {
		return explorer.ErrNullInnerService
	}
	if o.WalletSvc == nil || o.AccountSvc == nil || o.InheritanceSvc == nil {
		return ErrNullWalletService
	}
	return nil
}

func NewTransactionService(opts TransactionServiceOpts) (*TransactionService, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	fees, err := newFeeProvider(opts.ExplorerSvc, opts.FeeTargetBlocks, opts.FallbackFeeRate)
	if err != nil {
		return nil, err
	}
	return &TransactionService{
		repoManager:    opts.RepoManager,
		explorerSvc:    opts.ExplorerSvc,
		walletSvc:      opts.WalletSvc,
		accountSvc:     opts.AccountSvc,
		inheritanceSvc: opts.InheritanceSvc,
		fees:           fees,
		locker:         newAccountLocker(),
	}, nil
}

// SendToAddressOpts is the struct given to SendToAddress and
// PrepareMultisigSpend. A zero SatsPerVByte picks the rate from the explorer
// fee estimates.
type SendToAddressOpts struct {
	AccountID    string
	Address      string
	Amount       uint64
	SatsPerVByte uint64
}

func (o SendToAddressOpts) validate(s *TransactionService) error {
	if o.Amount <= 0 {
		return wallet.ErrInvalidAmount
	}
	if _, err := s.payoutScriptType(o.Address); err != nil {
		return err
	}
	return nil
}

// SendToAddress spends from a standard account: selects confirmed taproot
// utxos, signs and broadcasts in one call and returns the txid. Input
// validation happens before any network or signing work begins.
func (s *TransactionService) SendToAddress(
	ctx context.Context, opts SendToAddressOpts,
) (string, error) {
	if err := opts.validate(s); err != nil {
		return "", err
	}

	unlock := s.locker.lock(opts.AccountID)
	defer unlock()

	w, err := s.walletSvc.wallet()
	if err != nil {
		return "", err
	}
	account, err := s.repoManager.AccountRepository().GetAccountByID(ctx, opts.AccountID)
	if err != nil {
		return "", err
	}
	if account.Kind != domain.AccountKindStandard {
		return "", ErrNotStandardAccount
	}

	utxos, recordByScript, err := s.spendableUtxos(account, domain.AddressRoleUnspecified)
	if err != nil {
		return "", err
	}

	payoutType, _ := s.payoutScriptType(opts.Address)
	rate := opts.SatsPerVByte
	if rate <= 0 {
		rate = s.fees.satsPerVByte()
	}

	candidates := make([]wallet.CandidateInput, 0, len(utxos))
	for _, utxo := range utxos {
		candidates = append(candidates, wallet.CandidateInput{
			TxID:   utxo.Hash(),
			VOut:   utxo.Index(),
			Value:  utxo.Value(),
			Script: wallet.P2TR,
		})
	}
	selection, err := wallet.SelectUtxos(wallet.SelectUtxosOpts{
		Utxos:        candidates,
		TargetAmount: opts.Amount,
		SatsPerVByte: rate,
		PayoutScript: payoutType,
		ChangeScript: wallet.P2TR,
	})
	if err != nil {
		return "", err
	}

	outputs := []wallet.TxOutput{{Address: opts.Address, Value: opts.Amount}}
	if selection.Change > 0 {
		change, err := s.accountSvc.generateChangeAddress(ctx, opts.AccountID)
		if err != nil {
			return "", err
		}
		outputs = append(outputs, wallet.TxOutput{
			Address: change.Address,
			Value:   selection.Change,
		})
	}

	inputs, err := s.txInputs(selection.SelectedInputs, utxos, recordByScript, nil)
	if err != nil {
		return "", err
	}
	tx, err := wallet.CreateTx(wallet.CreateTxOpts{
		Inputs:  inputs,
		Outputs: outputs,
		Network: s.walletSvc.Network(),
	})
	if err != nil {
		return "", err
	}
	signedTx, err := w.SignTransaction(wallet.SignTransactionOpts{
		Tx:     tx,
		Inputs: inputs,
	})
	if err != nil {
		return "", err
	}

	buf := &bytes.Buffer{}
	if err := signedTx.Serialize(buf); err != nil {
		return "", err
	}
	txid, err := s.explorerSvc.BroadcastTransaction(hex.EncodeToString(buf.Bytes()))
	if err != nil {
		return "", err
	}

	log.WithFields(log.Fields{
		"account": account.Name,
		"txid":    txid,
		"amount":  mathutil.SatsToCoins(opts.Amount).String(),
	}).Info("transaction broadcasted")
	return txid, nil
}

// PrepareMultisigSpend starts a spend from an activated inheritance account:
// it selects the active multisig utxos, adds the local signatures and returns
// the base64 envelope to hand to the co-signer. The spend is refused while
// the spending conditions leave the local role outside every open window.
func (s *TransactionService) PrepareMultisigSpend(
	ctx context.Context, opts SendToAddressOpts,
) (string, error) {
	if err := opts.validate(s); err != nil {
		return "", err
	}

	unlock := s.locker.lock(opts.AccountID)
	defer unlock()

	w, err := s.walletSvc.wallet()
	if err != nil {
		return "", err
	}
	account, err := s.repoManager.AccountRepository().GetAccountByID(ctx, opts.AccountID)
	if err != nil {
		return "", err
	}
	if account.Inheritance == nil {
		return "", domain.ErrNotInheritanceAccount
	}
	if !account.IsActivated() {
		return "", domain.ErrAccountNotActivated
	}
	if err := s.checkEligibility(ctx, account); err != nil {
		return "", err
	}

	utxos, recordByScript, err := s.spendableUtxos(account, domain.AddressRoleActive)
	if err != nil {
		return "", err
	}

	payoutType, _ := s.payoutScriptType(opts.Address)
	rate := opts.SatsPerVByte
	if rate <= 0 {
		rate = s.fees.satsPerVByte()
	}

	candidates := make([]wallet.CandidateInput, 0, len(utxos))
	for _, utxo := range utxos {
		candidates = append(candidates, wallet.CandidateInput{
			TxID:   utxo.Hash(),
			VOut:   utxo.Index(),
			Value:  utxo.Value(),
			Script: wallet.P2WSH2of2,
		})
	}
	selection, err := wallet.SelectUtxos(wallet.SelectUtxosOpts{
		Utxos:        candidates,
		TargetAmount: opts.Amount,
		SatsPerVByte: rate,
		PayoutScript: payoutType,
		ChangeScript: wallet.P2WSH2of2,
	})
	if err != nil {
		return "", err
	}

	outputs := []wallet.TxOutput{{Address: opts.Address, Value: opts.Amount}}
	if selection.Change > 0 {
		changeIndex := nextIndex(account, true, domain.AddressRoleActive)
		change, err := s.inheritanceSvc.deriveMultisigAddress(
			account, domain.AddressRoleActive, true, changeIndex,
		)
		if err != nil {
			return "", err
		}
		if err := s.repoManager.AccountRepository().UpdateAccount(
			ctx, opts.AccountID, func(a *domain.Account) (*domain.Account, error) {
				if err := a.AddDerivedAddress(*change); err != nil {
					return nil, err
				}
				return a, nil
			},
		); err != nil {
			return "", err
		}
		outputs = append(outputs, wallet.TxOutput{
			Address: change.Address,
			Value:   selection.Change,
		})
	}

	inputs, err := s.txInputs(selection.SelectedInputs, utxos, recordByScript, account)
	if err != nil {
		return "", err
	}
	tx, err := wallet.CreateTx(wallet.CreateTxOpts{
		Inputs:  inputs,
		Outputs: outputs,
		Network: s.walletSvc.Network(),
	})
	if err != nil {
		return "", err
	}

	partial, err := wallet.NewPartialTransaction(tx, inputs)
	if err != nil {
		return "", err
	}
	inputPaths := make(map[string]string, len(inputs))
	for _, in := range inputs {
		inputPaths[fmt.Sprintf("%s:%d", in.TxID, in.VOut)] = in.DerivationPath
	}
	partial, err = w.SignPartialTransaction(wallet.SignPartialTransactionOpts{
		Partial:    partial,
		InputPaths: inputPaths,
	})
	if err != nil {
		return "", err
	}
	return partial.Encode()
}

// CoSignTransaction imports a partial envelope built by the counterparty,
// matches every multisig input against this party's own addresses by
// txid:vout and adds the missing signatures. Inputs that cannot be attributed
// to any local account fail the import.
func (s *TransactionService) CoSignTransaction(
	ctx context.Context, encodedTx string,
) (string, error) {
	w, err := s.walletSvc.wallet()
	if err != nil {
		return "", err
	}
	partial, err := wallet.DecodePartialTransaction(encodedTx)
	if err != nil {
		return "", err
	}

	inputPaths := make(map[string]string, len(partial.Inputs))
	for _, in := range partial.Inputs {
		if in.Script != wallet.P2WSH2of2 {
			continue
		}
		record, err := s.findAddressByScript(ctx, in.PrevScript)
		if err != nil {
			return "", wallet.ErrUnrecognizedInput
		}
		inputPaths[fmt.Sprintf("%s:%d", in.TxID, in.VOut)] = record.DerivationPath
	}

	signed, err := w.SignPartialTransaction(wallet.SignPartialTransactionOpts{
		Partial:    partial,
		InputPaths: inputPaths,
	})
	if err != nil {
		return "", err
	}
	return signed.Encode()
}

// FinalizeAndBroadcast assembles the witnesses of a fully signed envelope and
// hands the raw transaction to the chain-data collaborator.
func (s *TransactionService) FinalizeAndBroadcast(
	ctx context.Context, encodedTx string,
) (string, error) {
	partial, err := wallet.DecodePartialTransaction(encodedTx)
	if err != nil {
		return "", err
	}
	txHex, err := wallet.FinalizeTransaction(partial)
	if err != nil {
		return "", err
	}
	return s.explorerSvc.BroadcastTransaction(txHex)
}

// checkEligibility refuses a spend initiated outside every window open to the
// local role.
func (s *TransactionService) checkEligibility(
	ctx context.Context, account *domain.Account,
) error {
	eligibility, err := s.inheritanceSvc.GetSpendEligibility(ctx, account.ID)
	if err != nil {
		return err
	}

	switch {
	case eligibility.RequiresMultisig:
		return nil
	case account.Inheritance.LocalRole == domain.LocalRoleUser && eligibility.CanUserSpend:
		return nil
	case account.Inheritance.LocalRole == domain.LocalRoleHeir && eligibility.CanHeirSpend:
		return nil
	}
	return ErrSpendingNotAllowed
}

// spendableUtxos returns the confirmed utxos of the account addresses with
// the given role, along with the owning records keyed by output script.
func (s *TransactionService) spendableUtxos(
	account *domain.Account, role domain.AddressRole,
) ([]explorer.Utxo, map[string]domain.DerivedAddress, error) {
	recordByScript := make(map[string]domain.DerivedAddress)
	addresses := make([]string, 0, len(account.DerivedAddresses))
	for _, addr := range account.DerivedAddresses {
		if addr.Role != role {
			continue
		}
		recordByScript[addr.Script] = addr
		addresses = append(addresses, addr.Address)
	}
	if len(addresses) <= 0 {
		return nil, recordByScript, nil
	}

	utxos, err := s.explorerSvc.GetUnspentsForAddresses(addresses)
	if err != nil {
		return nil, nil, err
	}
	confirmed := make([]explorer.Utxo, 0, len(utxos))
	for _, utxo := range utxos {
		if utxo.IsConfirmed() {
			confirmed = append(confirmed, utxo)
		}
	}
	return confirmed, recordByScript, nil
}

// txInputs resolves the selected candidates back to fully described inputs.
// A non-nil account means multisig inputs whose witness scripts must be
// rebuilt from the owning records.
func (s *TransactionService) txInputs(
	selected []wallet.CandidateInput,
	utxos []explorer.Utxo,
	recordByScript map[string]domain.DerivedAddress,
	account *domain.Account,
) ([]wallet.TxInput, error) {
	utxoByOutpoint := make(map[string]explorer.Utxo, len(utxos))
	for _, utxo := range utxos {
		utxoByOutpoint[fmt.Sprintf("%s:%d", utxo.Hash(), utxo.Index())] = utxo
	}

	inputs := make([]wallet.TxInput, 0, len(selected))
	for _, candidate := range selected {
		utxo, ok := utxoByOutpoint[fmt.Sprintf("%s:%d", candidate.TxID, candidate.VOut)]
		if !ok {
			return nil, wallet.ErrUnrecognizedInput
		}
		record, ok := recordByScript[hex.EncodeToString(utxo.Script())]
		if !ok {
			return nil, wallet.ErrUnrecognizedInput
		}

		input := wallet.TxInput{
			TxID:           candidate.TxID,
			VOut:           candidate.VOut,
			Value:          candidate.Value,
			PrevScript:     utxo.Script(),
			Script:         candidate.Script,
			DerivationPath: record.DerivationPath,
		}
		if account != nil {
			_, witnessScript, err := s.inheritanceSvc.multisigScripts(account, record)
			if err != nil {
				return nil, err
			}
			input.WitnessScript = witnessScript
		}
		inputs = append(inputs, input)
	}
	return inputs, nil
}

// payoutScriptType maps a destination address to the script type of the
// output paying it. Only the native segwit shapes the fee model knows are
// accepted.
func (s *TransactionService) payoutScriptType(address string) (wallet.ScriptType, error) {
	net := s.walletSvc.Network()
	addr, err := btcutil.DecodeAddress(address, net)
	if err != nil || !addr.IsForNet(net) {
		return 0, wallet.ErrInvalidAddress
	}
	switch addr.(type) {
	case *btcutil.AddressTaproot:
		return wallet.P2TR, nil
	case *btcutil.AddressWitnessScriptHash:
		return wallet.P2WSH2of2, nil
	default:
		return 0, wallet.ErrInvalidAddress
	}
}

// findAddressByScript locates the derived address record owning the given
// output script across all accounts.
func (s *TransactionService) findAddressByScript(
	ctx context.Context, scriptHex string,
) (*domain.DerivedAddress, error) {
	accounts, err := s.repoManager.AccountRepository().GetAllAccounts(ctx)
	if err != nil {
		return nil, err
	}
	for _, account := range accounts {
		for i := range account.DerivedAddresses {
			if account.DerivedAddresses[i].Script == scriptHex {
				return &account.DerivedAddresses[i], nil
			}
		}
	}
	return nil, domain.ErrAddressNotFound
}
