package domain

import "context"

// AccountRepository is the persistence boundary for accounts. The storage
// medium is an external collaborator: the domain reads opaque records and
// produces updated copies, it never owns the medium.
type AccountRepository interface {
	AddAccount(ctx context.Context, account *Account) error
	GetAccountByID(ctx context.Context, id string) (*Account, error)
	GetAccountByAddress(ctx context.Context, address string) (*Account, error)
	GetAllAccounts(ctx context.Context) ([]*Account, error)
	UpdateAccount(
		ctx context.Context,
		id string,
		updateFn func(a *Account) (*Account, error),
	) error
}
