package application

import (
	"context"
	"encoding/hex"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/heirvault/heirvault-daemon/internal/core/domain"
	"github.com/heirvault/heirvault-daemon/internal/core/ports"
	"github.com/heirvault/heirvault-daemon/pkg/explorer"
	"github.com/heirvault/heirvault-daemon/pkg/mathutil"
	"github.com/heirvault/heirvault-daemon/pkg/wallet"
)

// InheritanceService manages staged-custody accounts: creation against a
// counterparty identity, escrow-assisted funding address issuance, the
// activation sweep into the user+heir multisig and the eligibility
// computation gating post-activation spends.
type InheritanceService struct {
	repoManager ports.RepoManager
	explorerSvc explorer.Service
	walletSvc   *WalletService
	escrow      ports.EscrowIdentityProvider
	contacts    ports.ContactDirectory
	fees        *feeProvider
	locker      *accountLocker
}

// InheritanceServiceOpts is the struct given to NewInheritanceService.
type InheritanceServiceOpts struct {
	RepoManager     ports.RepoManager
	ExplorerSvc     explorer.Service
	WalletSvc       *WalletService
	Escrow          ports.EscrowIdentityProvider
	Contacts        ports.ContactDirectory
	FeeTargetBlocks int
	FallbackFeeRate uint64
}

func (o InheritanceServiceOpts) validate() error {
	if o.RepoManager == nil {
		return ErrNullRepoManager
	}
	if o.ExplorerSvc == nil {
		return explorer.ErrNullInnerService
	}
	if o.WalletSvc == nil {
		return ErrNullWalletService
	}
	if o.Escrow == nil {
		return ErrNullEscrowProvider
	}
	if o.Contacts == nil {
		return ErrNullContactDirectory
	}
	return nil
}

func NewInheritanceService(opts InheritanceServiceOpts) (*InheritanceService, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	fees, err := newFeeProvider(opts.ExplorerSvc, opts.FeeTargetBlocks, opts.FallbackFeeRate)
	if err != nil {
		return nil, err
	}
	return &InheritanceService{
		repoManager: opts.RepoManager,
		explorerSvc: opts.ExplorerSvc,
		walletSvc:   opts.WalletSvc,
		escrow:      opts.Escrow,
		contacts:    opts.Contacts,
		fees:        fees,
		locker:      newAccountLocker(),
	}, nil
}

// ListHeirCandidates returns the contact directory entries a counterparty can
// be picked from.
func (s *InheritanceService) ListHeirCandidates(ctx context.Context) ([]ports.Contact, error) {
	return s.contacts.ListContacts()
}

// CreateInheritanceAccountOpts is the struct given to CreateInheritanceAccount.
// The counterparty key material is exchanged out of band between user and
// heir; both parties must agree on the funding branch index.
type CreateInheritanceAccountOpts struct {
	Name                    string
	LocalRole               domain.LocalRole
	CounterpartyFingerprint string
	CounterpartyXPub        string
	FundingBranchIndex      uint32
	SpendingConditions      domain.SpendingConditions
}

// CreateInheritanceAccount adds an inheritance account in the funding stage.
// The local account-level extended public key is derived under the multisig
// purpose root at the account's index and stored alongside the counterparty's
// so address derivation no longer needs the unlocked wallet.
func (s *InheritanceService) CreateInheritanceAccount(
	ctx context.Context, opts CreateInheritanceAccountOpts,
) (*AccountInfo, error) {
	w, err := s.walletSvc.wallet()
	if err != nil {
		return nil, err
	}
	if _, err := wallet.ParseExtendedPublicKey(
		opts.CounterpartyXPub, s.walletSvc.Network(),
	); err != nil {
		return nil, err
	}

	accounts, err := s.repoManager.AccountRepository().GetAllAccounts(ctx)
	if err != nil {
		return nil, err
	}
	index := uint32(len(accounts))

	localXPub, err := w.AccountExtendedPublicKey(wallet.AccountExtendedKeyOpts{
		BasePath: wallet.MultisigBaseDerivationPath,
		Account:  index,
	})
	if err != nil {
		return nil, err
	}
	localFingerprint, err := w.MasterFingerprint()
	if err != nil {
		return nil, err
	}

	account, err := domain.NewInheritanceAccount(domain.NewInheritanceAccountOpts{
		Name:      opts.Name,
		Index:     index,
		LocalRole: opts.LocalRole,
		LocalKey: domain.PartyKey{
			Fingerprint:       localFingerprint,
			ExtendedPublicKey: localXPub,
		},
		CounterpartyKey: domain.PartyKey{
			Fingerprint:       opts.CounterpartyFingerprint,
			ExtendedPublicKey: opts.CounterpartyXPub,
		},
		FundingBranchIndex: opts.FundingBranchIndex,
		SpendingConditions: opts.SpendingConditions,
	})
	if err != nil {
		return nil, err
	}
	if err := s.repoManager.AccountRepository().AddAccount(ctx, account); err != nil {
		return nil, err
	}

	log.WithField("account", account.Name).Info("inheritance account created")
	return accountInfo(account), nil
}

// GenerateFundingAddress issues the next escrow-assisted multisig deposit
// address. Issuance stays open for unbounded deposits until activation
// permanently closes it.
func (s *InheritanceService) GenerateFundingAddress(
	ctx context.Context, accountID string,
) (*AddressInfo, error) {
	unlock := s.locker.lock(accountID)
	defer unlock()

	account, err := s.repoManager.AccountRepository().GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Inheritance == nil {
		return nil, domain.ErrNotInheritanceAccount
	}
	if account.IsActivated() {
		return nil, domain.ErrFundingClosed
	}

	index := nextIndex(account, false, domain.AddressRoleFunding)
	derived, err := s.deriveMultisigAddress(account, domain.AddressRoleFunding, false, index)
	if err != nil {
		return nil, err
	}

	if err := s.repoManager.AccountRepository().UpdateAccount(
		ctx, accountID, func(a *domain.Account) (*domain.Account, error) {
			if err := a.AddDerivedAddress(*derived); err != nil {
				return nil, err
			}
			return a, nil
		},
	); err != nil {
		return nil, err
	}

	return &AddressInfo{
		Index:          derived.Index,
		Address:        derived.Address,
		DerivationPath: derived.DerivationPath,
		Role:           derived.Role,
	}, nil
}

// GetSpendEligibility evaluates the spending conditions against the number
// of blocks elapsed since the earliest confirmed funding transaction. The
// computation is read-only and recomputed on every call, never cached as
// authoritative state.
func (s *InheritanceService) GetSpendEligibility(
	ctx context.Context, accountID string,
) (*SpendEligibilityInfo, error) {
	account, err := s.repoManager.AccountRepository().GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Inheritance == nil {
		return nil, domain.ErrNotInheritanceAccount
	}

	elapsed, err := s.blocksSinceFunding(account)
	if err != nil {
		return nil, err
	}

	eligibility := domain.ComputeSpendEligibility(
		account.Inheritance.SpendingConditions, elapsed,
	)
	return &SpendEligibilityInfo{
		BlocksSinceFunding: elapsed,
		RequiresMultisig:   eligibility.RequiresMultisig,
		CanUserSpend:       eligibility.CanUserSpend,
		CanHeirSpend:       eligibility.CanHeirSpend,
	}, nil
}

// ActivateAccount sweeps every confirmed funding utxo into one transaction
// whose sole output is the user+heir multisig address, co-signed by the
// escrow through the partial envelope flow. The activated state and the
// active address are persisted atomically before the sweep is broadcast,
// closing funding address issuance for good; a failed broadcast is recovered
// by rebroadcasting the logged transaction.
func (s *InheritanceService) ActivateAccount(
	ctx context.Context, accountID string,
) (string, error) {
	unlock := s.locker.lock(accountID)
	defer unlock()

	w, err := s.walletSvc.wallet()
	if err != nil {
		return "", err
	}
	account, err := s.repoManager.AccountRepository().GetAccountByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	if account.Inheritance == nil {
		return "", domain.ErrNotInheritanceAccount
	}
	if account.IsActivated() {
		return "", domain.ErrAlreadyActivated
	}

	utxos, fundingByScript, err := s.fundingUtxos(account)
	if err != nil {
		return "", err
	}
	if len(utxos) <= 0 {
		return "", ErrNoFundingUtxos
	}

	inputs := make([]wallet.TxInput, 0, len(utxos))
	inputPaths := make(map[string]string, len(utxos))
	inputTypes := make([]wallet.ScriptType, 0, len(utxos))
	total := uint64(0)
	for _, utxo := range utxos {
		record, ok := fundingByScript[hex.EncodeToString(utxo.Script())]
		if !ok {
			return "", wallet.ErrUnrecognizedInput
		}
		_, witnessScript, err := s.multisigScripts(account, record)
		if err != nil {
			return "", err
		}
		inputs = append(inputs, wallet.TxInput{
			TxID:           utxo.Hash(),
			VOut:           utxo.Index(),
			Value:          utxo.Value(),
			PrevScript:     utxo.Script(),
			Script:         wallet.P2WSH2of2,
			DerivationPath: record.DerivationPath,
			WitnessScript:  witnessScript,
		})
		inputPaths[fmt.Sprintf("%s:%d", utxo.Hash(), utxo.Index())] = record.DerivationPath
		inputTypes = append(inputTypes, wallet.P2WSH2of2)
		total += utxo.Value()
	}

	fee, err := wallet.EstimateFeeAmount(wallet.EstimateFeeAmountOpts{
		Inputs:       inputTypes,
		Outputs:      []wallet.ScriptType{wallet.P2WSH2of2},
		SatsPerVByte: s.fees.satsPerVByte(),
	})
	if err != nil {
		return "", err
	}
	if total <= fee || total-fee < wallet.DustLimit {
		return "", wallet.ErrInsufficientFunds
	}

	active, err := s.deriveMultisigAddress(account, domain.AddressRoleActive, false, 0)
	if err != nil {
		return "", err
	}

	tx, err := wallet.CreateTx(wallet.CreateTxOpts{
		Inputs: inputs,
		Outputs: []wallet.TxOutput{
			{Address: active.Address, Value: total - fee},
		},
		Network: s.walletSvc.Network(),
	})
	if err != nil {
		return "", err
	}
	partial, err := wallet.NewPartialTransaction(tx, inputs)
	if err != nil {
		return "", err
	}
	partial, err = w.SignPartialTransaction(wallet.SignPartialTransactionOpts{
		Partial:    partial,
		InputPaths: inputPaths,
	})
	if err != nil {
		return "", err
	}

	encoded, err := partial.Encode()
	if err != nil {
		return "", err
	}
	coSigned, err := s.escrow.SignPartialTransaction(encoded)
	if err != nil {
		return "", err
	}
	partial, err = wallet.DecodePartialTransaction(coSigned)
	if err != nil {
		return "", err
	}

	txHex, err := wallet.FinalizeTransaction(partial)
	if err != nil {
		return "", err
	}
	txid := tx.TxHash().String()

	// committed before broadcast: a persisted activation with a missing
	// sweep is recoverable by rebroadcasting the finalized transaction,
	// while a swept chain with funding issuance still open is not
	if _, err := s.repoManager.RunTransaction(
		ctx, false, func(ctx context.Context) (interface{}, error) {
			return nil, s.repoManager.AccountRepository().UpdateAccount(
				ctx, accountID, func(a *domain.Account) (*domain.Account, error) {
					if err := a.Activate(); err != nil {
						return nil, err
					}
					if err := a.AddDerivedAddress(*active); err != nil {
						return nil, err
					}
					return a, nil
				},
			)
		},
	); err != nil {
		return "", err
	}

	if _, err := s.explorerSvc.BroadcastTransaction(txHex); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"account": account.Name,
			"txid":    txid,
			"txhex":   txHex,
		}).Error("activation sweep broadcast failed, rebroadcast the logged transaction")
		return "", err
	}

	log.WithFields(log.Fields{
		"account": account.Name,
		"txid":    txid,
		"amount":  mathutil.SatsToCoins(total - fee).String(),
	}).Info("inheritance account activated")
	return txid, nil
}

// blocksSinceFunding returns the confirmed blocks elapsed since the earliest
// confirmed transaction towards any funding address, or -1 when no funding
// transaction is confirmed yet.
func (s *InheritanceService) blocksSinceFunding(account *domain.Account) (int64, error) {
	earliest := -1
	for _, addr := range account.AddressesByRole(domain.AddressRoleFunding) {
		txs, err := s.explorerSvc.GetTransactionsForAddress(addr.Address)
		if err != nil {
			log.WithError(err).WithField("address", addr.Address).Warn(
				"funding history degraded to empty",
			)
			continue
		}
		for _, tx := range txs {
			if !tx.Confirmed() {
				continue
			}
			if earliest < 0 || tx.BlockHeight() < earliest {
				earliest = tx.BlockHeight()
			}
		}
	}
	if earliest < 0 {
		return -1, nil
	}

	tip, err := s.explorerSvc.GetBlockHeight()
	if err != nil {
		return 0, err
	}
	if tip < earliest {
		return 0, nil
	}
	return int64(tip - earliest), nil
}

// fundingUtxos returns the confirmed utxos of the funding addresses along
// with the records they belong to, keyed by output script.
func (s *InheritanceService) fundingUtxos(account *domain.Account) (
	[]explorer.Utxo, map[string]domain.DerivedAddress, error,
) {
	fundingAddresses := account.AddressesByRole(domain.AddressRoleFunding)
	byScript := make(map[string]domain.DerivedAddress, len(fundingAddresses))
	addresses := make([]string, 0, len(fundingAddresses))
	for _, addr := range fundingAddresses {
		byScript[addr.Script] = addr
		addresses = append(addresses, addr.Address)
	}
	if len(addresses) <= 0 {
		return nil, byScript, nil
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
	return confirmed, byScript, nil
}

// deriveMultisigAddress derives the multisig address of the given role at the
// given branch position. Funding addresses pair the local key with the
// escrow's and walk the extra funding-branch level on the local subtree;
// active addresses pair user and heir directly.
func (s *InheritanceService) deriveMultisigAddress(
	account *domain.Account, role domain.AddressRole, isChange bool, index uint32,
) (*domain.DerivedAddress, error) {
	chain := uint32(externalChain)
	if isChange {
		chain = internalChain
	}

	opts := wallet.MultisigAddressOpts{
		LocalXPub: account.Inheritance.LocalKey.ExtendedPublicKey,
		Change:    chain,
		Index:     index,
		Network:   s.walletSvc.Network(),
	}
	path := fmt.Sprintf("m/48'/0'/%d'/%d/%d", account.Index, chain, index)
	switch role {
	case domain.AddressRoleFunding:
		branch := account.Inheritance.FundingBranchIndex
		opts.CounterpartXPub = s.escrow.AccountExtendedPublicKey()
		opts.FundingBranch = &branch
		path = fmt.Sprintf(
			"m/48'/0'/%d'/%d/%d/%d", account.Index, branch, chain, index,
		)
	case domain.AddressRoleActive:
		opts.CounterpartXPub = account.Inheritance.CounterpartyKey.ExtendedPublicKey
	default:
		return nil, domain.ErrNotInheritanceAccount
	}

	address, script, _, err := wallet.DeriveMultisigAddress(opts)
	if err != nil {
		return nil, err
	}
	return &domain.DerivedAddress{
		Index:          index,
		Address:        address,
		Script:         hex.EncodeToString(script),
		DerivationPath: path,
		IsChange:       isChange,
		Role:           role,
	}, nil
}

// multisigScripts rebuilds the output and witness scripts of a stored
// multisig address record from its position alone.
func (s *InheritanceService) multisigScripts(
	account *domain.Account, record domain.DerivedAddress,
) ([]byte, []byte, error) {
	chain := uint32(externalChain)
	if record.IsChange {
		chain = internalChain
	}

	opts := wallet.MultisigAddressOpts{
		LocalXPub: account.Inheritance.LocalKey.ExtendedPublicKey,
		Change:    chain,
		Index:     record.Index,
		Network:   s.walletSvc.Network(),
	}
	switch record.Role {
	case domain.AddressRoleFunding:
		branch := account.Inheritance.FundingBranchIndex
		opts.CounterpartXPub = s.escrow.AccountExtendedPublicKey()
		opts.FundingBranch = &branch
	case domain.AddressRoleActive:
		opts.CounterpartXPub = account.Inheritance.CounterpartyKey.ExtendedPublicKey
	default:
		return nil, nil, wallet.ErrUnsupportedScriptType
	}

	_, script, witnessScript, err := wallet.DeriveMultisigAddress(opts)
	if err != nil {
		return nil, nil, err
	}
	return script, witnessScript, nil
}
