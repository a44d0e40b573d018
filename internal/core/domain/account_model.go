package domain

import (
	"github.com/google/uuid"
)

// AccountKind discriminates plain spending accounts from staged-custody
// inheritance accounts.
type AccountKind int

const (
	// AccountKindStandard is a plain single-sig taproot account.
	AccountKindStandard AccountKind = iota
	// AccountKindInheritance is an escrow-assisted staged-custody account.
	AccountKindInheritance
)

// LocalRole is the side this party plays in an inheritance account.
type LocalRole int

const (
	// LocalRoleUser is the account owner.
	LocalRoleUser LocalRole = iota
	// LocalRoleHeir is the designated beneficiary.
	LocalRoleHeir
)

// AddressRole qualifies what stage of an inheritance account an address
// belongs to.
type AddressRole int

const (
	// AddressRoleUnspecified is used by standard accounts.
	AddressRoleUnspecified AddressRole = iota
	// AddressRoleFunding is a pre-activation escrow multisig address.
	AddressRoleFunding
	// AddressRoleActive is a post-activation user+heir multisig address.
	AddressRoleActive
)

// PartyKey identifies one co-signing party by master fingerprint and
// account-level extended public key.
type PartyKey struct {
	Fingerprint       string
	ExtendedPublicKey string
}

// DerivedAddress is one issued address of an account. The derivation path is
// recorded at creation time so that re-identifying the key behind an address
// is a map lookup, never a search over candidate paths.
type DerivedAddress struct {
	Index          uint32
	Address        string
	Script         string
	DerivationPath string
	IsChange       bool
	Role           AddressRole
	Used           bool
	Balance        uint64
}

// SpendingConditions are the block delays gating post-activation spending,
// all counted from the earliest confirmed funding transaction.
type SpendingConditions struct {
	NoSpendBlocks       uint32
	MultisigAfterBlocks uint32
	UserOnlyAfterBlocks uint32
	HeirOnlyAfterBlocks uint32
}

// Validate enforces that the co-signed window opens no later than either
// single-key window.
func (c SpendingConditions) Validate() error {
	if c.MultisigAfterBlocks > c.UserOnlyAfterBlocks ||
		c.MultisigAfterBlocks > c.HeirOnlyAfterBlocks {
		return ErrInvalidSpendingConditions
	}
	return nil
}

// Inheritance carries the staged-custody state of an inheritance account.
// Activated is monotonic: once true it is never reset.
type Inheritance struct {
	LocalRole          LocalRole
	LocalKey           PartyKey
	CounterpartyKey    PartyKey
	FundingBranchIndex uint32
	SpendingConditions SpendingConditions
	Activated          bool
}

// Account is the entity data structure for a derived account of the
// daemon's HD wallet.
type Account struct {
	ID               string
	Name             string
	Kind             AccountKind
	Index            uint32
	Balance          uint64
	NextAddressIndex uint32
	DerivedAddresses []DerivedAddress
	Inheritance      *Inheritance
}

// NewAccount returns a standard account with no derived addresses. The index
// is the hardened account level of every path derived for it.
func NewAccount(name string, index uint32) (*Account, error) {
	if len(name) <= 0 {
		return nil, ErrNullAccountName
	}
	return &Account{
		ID:               uuid.New().String(),
		Name:             name,
		Kind:             AccountKindStandard,
		Index:            index,
		DerivedAddresses: make([]DerivedAddress, 0),
	}, nil
}

// NewInheritanceAccountOpts is the struct given to NewInheritanceAccount.
type NewInheritanceAccountOpts struct {
	Name               string
	Index              uint32
	LocalRole          LocalRole
	LocalKey           PartyKey
	CounterpartyKey    PartyKey
	FundingBranchIndex uint32
	SpendingConditions SpendingConditions
}

func (o NewInheritanceAccountOpts) validate() error {
	if len(o.Name) <= 0 {
		return ErrNullAccountName
	}
	if len(o.LocalKey.ExtendedPublicKey) <= 0 ||
		len(o.CounterpartyKey.ExtendedPublicKey) <= 0 {
		return ErrNullPartyKey
	}
	return o.SpendingConditions.Validate()
}

// NewInheritanceAccount returns an inheritance account in the funding stage.
// Bad spending conditions are rejected here, never at spend time.
func NewInheritanceAccount(opts NewInheritanceAccountOpts) (*Account, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Account{
		ID:               uuid.New().String(),
		Name:             opts.Name,
		Kind:             AccountKindInheritance,
		Index:            opts.Index,
		DerivedAddresses: make([]DerivedAddress, 0),
		Inheritance: &Inheritance{
			LocalRole:          opts.LocalRole,
			LocalKey:           opts.LocalKey,
			CounterpartyKey:    opts.CounterpartyKey,
			FundingBranchIndex: opts.FundingBranchIndex,
			SpendingConditions: opts.SpendingConditions,
		},
	}, nil
}

// IsActivated returns whether the inheritance account completed its
// activation sweep. Standard accounts are never activated.
func (a *Account) IsActivated() bool {
	return a.Inheritance != nil && a.Inheritance.Activated
}

// Activate marks the activation sweep as done and permanently closes funding
// address issuance. The transition is one-way and idempotent-guarded.
func (a *Account) Activate() error {
	if a.Inheritance == nil {
		return ErrNotInheritanceAccount
	}
	if a.Inheritance.Activated {
		return ErrAlreadyActivated
	}
	a.Inheritance.Activated = true
	return nil
}

// AddDerivedAddress records a freshly derived address. The (index, change,
// role) position must be unique within the account; funding addresses cannot
// be issued once the account is activated.
func (a *Account) AddDerivedAddress(addr DerivedAddress) error {
	if addr.Role == AddressRoleFunding && a.IsActivated() {
		return ErrFundingClosed
	}
	for _, existing := range a.DerivedAddresses {
		if existing.Index == addr.Index &&
			existing.IsChange == addr.IsChange &&
			existing.Role == addr.Role {
			return ErrDuplicateDerivedAddress
		}
	}

	a.DerivedAddresses = append(a.DerivedAddresses, addr)
	if !addr.IsChange && addr.Index >= a.NextAddressIndex {
		a.NextAddressIndex = addr.Index + 1
	}
	return nil
}

// AddressInfo returns the derived address record matching the given address
// string.
func (a *Account) AddressInfo(address string) (*DerivedAddress, error) {
	for i := range a.DerivedAddresses {
		if a.DerivedAddresses[i].Address == address {
			return &a.DerivedAddresses[i], nil
		}
	}
	return nil, ErrAddressNotFound
}

// AddressesByRole returns the derived addresses with the given role in
// issuance order.
func (a *Account) AddressesByRole(role AddressRole) []DerivedAddress {
	addresses := make([]DerivedAddress, 0)
	for _, addr := range a.DerivedAddresses {
		if addr.Role == role {
			addresses = append(addresses, addr)
		}
	}
	return addresses
}

// UpdateBalances overwrites the per-address balances and recomputes the
// account total. Addresses are marked used once any balance was seen.
func (a *Account) UpdateBalances(balanceByAddress map[string]uint64) {
	total := uint64(0)
	for i := range a.DerivedAddresses {
		balance, ok := balanceByAddress[a.DerivedAddresses[i].Address]
		if !ok {
			balance = 0
		}
		if balance > 0 {
			a.DerivedAddresses[i].Used = true
		}
		a.DerivedAddresses[i].Balance = balance
		total += balance
	}
	a.Balance = total
}
