// Package inmemory provides a volatile implementation of the repositories,
// used by tests and by deployments that do not need a datadir.
package inmemory

import (
	"context"

	"github.com/heirvault/heirvault-daemon/internal/core/domain"
	"github.com/heirvault/heirvault-daemon/internal/core/ports"
)

type repoManager struct {
	accountRepo domain.AccountRepository
	vaultRepo   domain.VaultRepository
}

// NewRepoManager returns an empty in-memory repo manager.
func NewRepoManager() ports.RepoManager {
	return &repoManager{
		accountRepo: newAccountRepositoryImpl(),
		vaultRepo:   newVaultRepositoryImpl(),
	}
}

func (d *repoManager) AccountRepository() domain.AccountRepository {
	return d.accountRepo
}

func (d *repoManager) VaultRepository() domain.VaultRepository {
	return d.vaultRepo
}

// RunTransaction degrades to running the handler directly: each repository
// operation is individually atomic under its own lock.
func (d *repoManager) RunTransaction(
	ctx context.Context,
	readOnly bool,
	handler func(ctx context.Context) (interface{}, error),
) (interface{}, error) {
	return handler(ctx)
}

func (d *repoManager) Close() {}
