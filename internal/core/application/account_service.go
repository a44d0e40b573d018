package application

import (
	"context"
	"encoding/hex"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/heirvault/heirvault-daemon/internal/core/domain"
	"github.com/heirvault/heirvault-daemon/internal/core/ports"
	"github.com/heirvault/heirvault-daemon/pkg/explorer"
	"github.com/heirvault/heirvault-daemon/pkg/wallet"
)

const (
	externalChain = 0
	internalChain = 1
)

// AccountService manages standard single-sig accounts: creation, taproot
// address issuance and balance refresh against the chain-data source.
type AccountService struct {
	repoManager ports.RepoManager
	explorerSvc explorer.Service
	walletSvc   *WalletService
	locker      *accountLocker
}

// AccountServiceOpts is the struct given to NewAccountService.
type AccountServiceOpts struct {
	RepoManager ports.RepoManager
	ExplorerSvc explorer.Service
	WalletSvc   *WalletService
}

func (o AccountServiceOpts) validate() error {
	if o.RepoManager == nil {
		return ErrNullRepoManager
	}
	if o.ExplorerSvc == nil {
		return explorer.ErrNullInnerService
	}
	if o.WalletSvc == nil {
		return ErrNullWalletService
	}
	return nil
}

func NewAccountService(opts AccountServiceOpts) (*AccountService, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &AccountService{
		repoManager: opts.RepoManager,
		explorerSvc: opts.ExplorerSvc,
		walletSvc:   opts.WalletSvc,
		locker:      newAccountLocker(),
	}, nil
}

// CreateAccount adds a standard account. The hardened account index of its
// derivation paths is the position in creation order and is never reused.
func (s *AccountService) CreateAccount(
	ctx context.Context, name string,
) (*AccountInfo, error) {
	accounts, err := s.repoManager.AccountRepository().GetAllAccounts(ctx)
	if err != nil {
		return nil, err
	}

	account, err := domain.NewAccount(name, uint32(len(accounts)))
	if err != nil {
		return nil, err
	}
	if err := s.repoManager.AccountRepository().AddAccount(ctx, account); err != nil {
		return nil, err
	}

	log.WithField("account", account.Name).Info("account created")
	return accountInfo(account), nil
}

// ListAccounts returns the stored view of all accounts.
func (s *AccountService) ListAccounts(ctx context.Context) ([]AccountInfo, error) {
	accounts, err := s.repoManager.AccountRepository().GetAllAccounts(ctx)
	if err != nil {
		return nil, err
	}

	list := make([]AccountInfo, 0, len(accounts))
	for _, account := range accounts {
		list = append(list, *accountInfo(account))
	}
	return list, nil
}

// GetAccountInfo returns the stored view of one account.
func (s *AccountService) GetAccountInfo(
	ctx context.Context, accountID string,
) (*AccountInfo, error) {
	account, err := s.repoManager.AccountRepository().GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return accountInfo(account), nil
}

// GenerateNewAddress derives the next external taproot address of a standard
// account and records it along with its derivation path.
func (s *AccountService) GenerateNewAddress(
	ctx context.Context, accountID string,
) (*AddressInfo, error) {
	unlock := s.locker.lock(accountID)
	defer unlock()

	return s.generateAddress(ctx, accountID, false)
}

// generateChangeAddress derives the next internal taproot address. Callers
// must hold the account lock.
func (s *AccountService) generateChangeAddress(
	ctx context.Context, accountID string,
) (*AddressInfo, error) {
	return s.generateAddress(ctx, accountID, true)
}

func (s *AccountService) generateAddress(
	ctx context.Context, accountID string, isChange bool,
) (*AddressInfo, error) {
	w, err := s.walletSvc.wallet()
	if err != nil {
		return nil, err
	}
	account, err := s.repoManager.AccountRepository().GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Kind != domain.AccountKindStandard {
		return nil, ErrNotStandardAccount
	}

	chain := uint32(externalChain)
	index := account.NextAddressIndex
	if isChange {
		chain = internalChain
		index = nextIndex(account, true, domain.AddressRoleUnspecified)
	}

	address, script, err := w.DeriveTaprootAddress(wallet.TaprootAddressOpts{
		Account: account.Index,
		Change:  chain,
		Index:   index,
	})
	if err != nil {
		return nil, err
	}

	derived := domain.DerivedAddress{
		Index:   index,
		Address: address,
		Script:  hex.EncodeToString(script),
		DerivationPath: fmt.Sprintf(
			"m/86'/0'/%d'/%d/%d", account.Index, chain, index,
		),
		IsChange: isChange,
	}
	if err := s.repoManager.AccountRepository().UpdateAccount(
		ctx, accountID, func(a *domain.Account) (*domain.Account, error) {
			if err := a.AddDerivedAddress(derived); err != nil {
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
		IsChange:       derived.IsChange,
		Role:           derived.Role,
	}, nil
}

// GetBalance refreshes the per-address balances of an account from the
// chain-data source and returns the new total. An unreachable explorer
// degrades an address to a zero balance so a stale view can still render;
// transaction building never relies on these cached figures.
func (s *AccountService) GetBalance(
	ctx context.Context, accountID string,
) (uint64, error) {
	unlock := s.locker.lock(accountID)
	defer unlock()

	account, err := s.repoManager.AccountRepository().GetAccountByID(ctx, accountID)
	if err != nil {
		return 0, err
	}

	balances := make(map[string]uint64, len(account.DerivedAddresses))
	for _, addr := range account.DerivedAddresses {
		balance, err := s.explorerSvc.GetBalance(addr.Address)
		if err != nil {
			log.WithError(err).WithField("address", addr.Address).Warn(
				"balance refresh degraded to zero",
			)
			balance = 0
		}
		balances[addr.Address] = balance
	}

	total := uint64(0)
	if err := s.repoManager.AccountRepository().UpdateAccount(
		ctx, accountID, func(a *domain.Account) (*domain.Account, error) {
			a.UpdateBalances(balances)
			total = a.Balance
			return a, nil
		},
	); err != nil {
		return 0, err
	}
	return total, nil
}

// nextIndex returns the next free index of the (change, role) branch.
func nextIndex(account *domain.Account, isChange bool, role domain.AddressRole) uint32 {
	next := uint32(0)
	for _, addr := range account.DerivedAddresses {
		if addr.IsChange == isChange && addr.Role == role && addr.Index >= next {
			next = addr.Index + 1
		}
	}
	return next
}
