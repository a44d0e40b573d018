package domain

import "errors"

var (
	// ErrNullMnemonicOrPassphrase ...
	ErrNullMnemonicOrPassphrase = errors.New("mnemonic and/or passphrase must not be null")
	// ErrInvalidMnemonic ...
	ErrInvalidMnemonic = errors.New("mnemonic is not a valid backup phrase")
	// ErrInvalidPassphrase ...
	ErrInvalidPassphrase = errors.New("passphrase is not valid")
	// ErrVaultAlreadyInitialized ...
	ErrVaultAlreadyInitialized = errors.New("vault is already initialized")
	// ErrVaultNotFound ...
	ErrVaultNotFound = errors.New("vault not found")

	// ErrNullAccountName ...
	ErrNullAccountName = errors.New("account name must not be null")
	// ErrAccountNotFound ...
	ErrAccountNotFound = errors.New("account not found")
	// ErrNotInheritanceAccount is thrown when an inheritance-only operation
	// is attempted on a standard account.
	ErrNotInheritanceAccount = errors.New("account is not an inheritance account")
	// ErrAlreadyActivated is thrown when the activation transition is
	// attempted on an already-activated account.
	ErrAlreadyActivated = errors.New("account is already activated")
	// ErrAccountNotActivated ...
	ErrAccountNotActivated = errors.New("account is not activated")
	// ErrInvalidSpendingConditions is thrown at account creation when the
	// multisig window does not open before the single-key ones.
	ErrInvalidSpendingConditions = errors.New(
		"multisig delay must not exceed the user-only nor the heir-only delay",
	)
	// ErrNullPartyKey ...
	ErrNullPartyKey = errors.New("party extended public key must not be null")
	// ErrDuplicateDerivedAddress is thrown when an (index, change, role)
	// position is derived twice for the same account.
	ErrDuplicateDerivedAddress = errors.New("address position already derived for this account")
	// ErrFundingClosed is thrown when issuing funding addresses after
	// activation permanently closed the funding branch.
	ErrFundingClosed = errors.New("funding address issuance is closed after activation")
	// ErrAddressNotFound ...
	ErrAddressNotFound = errors.New("address does not belong to this account")
)
