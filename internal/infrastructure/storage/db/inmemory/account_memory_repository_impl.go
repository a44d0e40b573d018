package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/heirvault/heirvault-daemon/internal/core/domain"
)

type accountRepositoryImpl struct {
	accounts map[string]*domain.Account
	lock     *sync.RWMutex
}

func newAccountRepositoryImpl() domain.AccountRepository {
	return &accountRepositoryImpl{
		accounts: map[string]*domain.Account{},
		lock:     &sync.RWMutex{},
	}
}

func (r *accountRepositoryImpl) AddAccount(
	ctx context.Context, account *domain.Account,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.accounts[account.ID] = cloneAccount(account)
	return nil
}

func (r *accountRepositoryImpl) GetAccountByID(
	ctx context.Context, id string,
) (*domain.Account, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	account, ok := r.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return cloneAccount(account), nil
}

func (r *accountRepositoryImpl) GetAccountByAddress(
	ctx context.Context, address string,
) (*domain.Account, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	for _, account := range r.accounts {
		if _, err := account.AddressInfo(address); err == nil {
			return cloneAccount(account), nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (r *accountRepositoryImpl) GetAllAccounts(
	ctx context.Context,
) ([]*domain.Account, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	accounts := make([]*domain.Account, 0, len(r.accounts))
	for _, account := range r.accounts {
		accounts = append(accounts, cloneAccount(account))
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Index < accounts[j].Index
	})
	return accounts, nil
}

func (r *accountRepositoryImpl) UpdateAccount(
	ctx context.Context,
	id string,
	updateFn func(a *domain.Account) (*domain.Account, error),
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}

	updated, err := updateFn(cloneAccount(account))
	if err != nil {
		return err
	}

	r.accounts[id] = cloneAccount(updated)
	return nil
}

// cloneAccount deep-copies an account so callers never share the stored
// instance.
func cloneAccount(account *domain.Account) *domain.Account {
	clone := *account
	clone.DerivedAddresses = make([]domain.DerivedAddress, len(account.DerivedAddresses))
	copy(clone.DerivedAddresses, account.DerivedAddresses)
	if account.Inheritance != nil {
		inheritance := *account.Inheritance
		clone.Inheritance = &inheritance
	}
	return &clone
}
