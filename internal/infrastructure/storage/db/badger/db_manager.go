// Package dbbadger provides the on-disk persistence of accounts and vault,
// backed by a badgerhold store.
package dbbadger

import (
	"context"
	"path/filepath"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	"github.com/timshannon/badgerhold/v4"

	"github.com/heirvault/heirvault-daemon/internal/core/domain"
	"github.com/heirvault/heirvault-daemon/internal/core/ports"
)

type repoManager struct {
	store       *badgerhold.Store
	accountRepo domain.AccountRepository
	vaultRepo   domain.VaultRepository
}

// NewRepoManager opens (or creates if not exists) the badger store under the
// given data directory and returns the repo manager giving access to the
// account and vault repositories.
func NewRepoManager(baseDbDir string, logger badger.Logger) (ports.RepoManager, error) {
	store, err := createDb(filepath.Join(baseDbDir, "db"), logger)
	if err != nil {
		return nil, err
	}

	return &repoManager{
		store:       store,
		accountRepo: newAccountRepositoryImpl(store),
		vaultRepo:   newVaultRepositoryImpl(store),
	}, nil
}

func (d *repoManager) AccountRepository() domain.AccountRepository {
	return d.accountRepo
}

func (d *repoManager) VaultRepository() domain.VaultRepository {
	return d.vaultRepo
}

// RunTransaction runs the handler against a single badger transaction,
// injected into the context the repositories read it back from. The
// transaction is committed only if the handler returns no error.
func (d *repoManager) RunTransaction(
	ctx context.Context,
	readOnly bool,
	handler func(ctx context.Context) (interface{}, error),
) (interface{}, error) {
	tx := d.store.Badger().NewTransaction(!readOnly)
	defer tx.Discard()

	res, err := handler(context.WithValue(ctx, "tx", tx))
	if err != nil {
		return nil, err
	}

	if !readOnly {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (d *repoManager) Close() {
	d.store.Close()
}

func txFromContext(ctx context.Context) *badger.Txn {
	if tx, ok := ctx.Value("tx").(*badger.Txn); ok {
		return tx
	}
	return nil
}

func createDb(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger
	opts.Compression = options.ZSTD

	return badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
}
