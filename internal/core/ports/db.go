package ports

import (
	"context"

	"github.com/heirvault/heirvault-daemon/internal/core/domain"
)

// RepoManager gives access to the repositories of the persistence
// collaborator and lets callers run multiple repository operations in one
// atomic transaction.
type RepoManager interface {
	AccountRepository() domain.AccountRepository
	VaultRepository() domain.VaultRepository

	RunTransaction(
		ctx context.Context,
		readOnly bool,
		handler func(ctx context.Context) (interface{}, error),
	) (interface{}, error)

	Close()
}
