package application

import "errors"

var (
	// ErrNullRepoManager ...
	ErrNullRepoManager = errors.New("repo manager must not be null")
	// ErrNullWalletService ...
	ErrNullWalletService = errors.New("wallet service must not be null")
	// ErrNullEscrowProvider ...
	ErrNullEscrowProvider = errors.New("escrow identity provider must not be null")
	// ErrNullContactDirectory ...
	ErrNullContactDirectory = errors.New("contact directory must not be null")
	// ErrWalletNotInitialized is thrown when operating before a mnemonic was
	// generated or restored.
	ErrWalletNotInitialized = errors.New("wallet is not initialized")
	// ErrWalletAlreadyInitialized ...
	ErrWalletAlreadyInitialized = errors.New("wallet is already initialized")
	// ErrWalletIsLocked is thrown when an operation needs key material while
	// no wallet is unlocked in memory.
	ErrWalletIsLocked = errors.New("wallet must be unlocked to perform this operation")
	// ErrNoFundingUtxos is thrown by the activation sweep when the funding
	// addresses hold nothing to sweep.
	ErrNoFundingUtxos = errors.New("no funding utxos to activate the account with")
	// ErrNoFeeEstimates is thrown when neither the explorer nor the
	// configuration provide a usable fee rate.
	ErrNoFeeEstimates = errors.New("no fee rate available")
	// ErrInvalidFeeTarget ...
	ErrInvalidFeeTarget = errors.New("fee target must be a positive number of blocks")
	// ErrNotStandardAccount is thrown when a single-sig operation is attempted
	// on an inheritance account.
	ErrNotStandardAccount = errors.New("operation requires a standard account")
	// ErrSpendingNotAllowed is thrown when a spend is initiated outside every
	// window the local role is eligible for.
	ErrSpendingNotAllowed = errors.New(
		"spending conditions do not allow this party to spend yet",
	)
)
