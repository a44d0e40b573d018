package dbbadger

import (
	"context"

	"github.com/timshannon/badgerhold/v4"

	"github.com/heirvault/heirvault-daemon/internal/core/domain"
)

type accountRepositoryImpl struct {
	store *badgerhold.Store
}

func newAccountRepositoryImpl(store *badgerhold.Store) domain.AccountRepository {
	return accountRepositoryImpl{store: store}
}

func (r accountRepositoryImpl) AddAccount(
	ctx context.Context, account *domain.Account,
) error {
	var err error
	if tx := txFromContext(ctx); tx != nil {
		err = r.store.TxInsert(tx, account.ID, *account)
	} else {
		err = r.store.Insert(account.ID, *account)
	}
	return err
}

func (r accountRepositoryImpl) GetAccountByID(
	ctx context.Context, id string,
) (*domain.Account, error) {
	var account domain.Account
	var err error
	if tx := txFromContext(ctx); tx != nil {
		err = r.store.TxGet(tx, id, &account)
	} else {
		err = r.store.Get(id, &account)
	}
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r accountRepositoryImpl) GetAccountByAddress(
	ctx context.Context, address string,
) (*domain.Account, error) {
	accounts, err := r.GetAllAccounts(ctx)
	if err != nil {
		return nil, err
	}
	for _, account := range accounts {
		if _, err := account.AddressInfo(address); err == nil {
			return account, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (r accountRepositoryImpl) GetAllAccounts(
	ctx context.Context,
) ([]*domain.Account, error) {
	var accounts []domain.Account
	var err error
	if tx := txFromContext(ctx); tx != nil {
		err = r.store.TxFind(tx, &accounts, nil)
	} else {
		err = r.store.Find(&accounts, nil)
	}
	if err != nil {
		return nil, err
	}

	list := make([]*domain.Account, 0, len(accounts))
	for i := range accounts {
		list = append(list, &accounts[i])
	}
	return list, nil
}

func (r accountRepositoryImpl) UpdateAccount(
	ctx context.Context,
	id string,
	updateFn func(a *domain.Account) (*domain.Account, error),
) error {
	account, err := r.GetAccountByID(ctx, id)
	if err != nil {
		return err
	}

	updated, err := updateFn(account)
	if err != nil {
		return err
	}

	if tx := txFromContext(ctx); tx != nil {
		return r.store.TxUpdate(tx, id, *updated)
	}
	return r.store.Update(id, *updated)
}
