package application

import (
	"github.com/heirvault/heirvault-daemon/internal/core/domain"
)

// AddressInfo is the external view of one derived address.
type AddressInfo struct {
	Index          uint32
	Address        string
	DerivationPath string
	IsChange       bool
	Role           domain.AddressRole
	Used           bool
	Balance        uint64
}

// InheritanceInfo is the external view of the staged-custody state of an
// inheritance account.
type InheritanceInfo struct {
	LocalRole               domain.LocalRole
	LocalFingerprint        string
	CounterpartyFingerprint string
	FundingBranchIndex      uint32
	SpendingConditions      domain.SpendingConditions
	Activated               bool
}

// AccountInfo is the external view of an account.
type AccountInfo struct {
	ID          string
	Name        string
	Kind        domain.AccountKind
	Index       uint32
	Balance     uint64
	Addresses   []AddressInfo
	Inheritance *InheritanceInfo
}

// SpendEligibilityInfo pairs the eligibility flags with the elapsed block
// count they were computed from. BlocksSinceFunding is -1 while no funding
// transaction is confirmed yet.
type SpendEligibilityInfo struct {
	BlocksSinceFunding int64
	RequiresMultisig   bool
	CanUserSpend       bool
	CanHeirSpend       bool
}

func accountInfo(account *domain.Account) *AccountInfo {
	addresses := make([]AddressInfo, 0, len(account.DerivedAddresses))
	for _, addr := range account.DerivedAddresses {
		addresses = append(addresses, AddressInfo{
			Index:          addr.Index,
			Address:        addr.Address,
			DerivationPath: addr.DerivationPath,
			IsChange:       addr.IsChange,
			Role:           addr.Role,
			Used:           addr.Used,
			Balance:        addr.Balance,
		})
	}

	info := &AccountInfo{
		ID:        account.ID,
		Name:      account.Name,
		Kind:      account.Kind,
		Index:     account.Index,
		Balance:   account.Balance,
		Addresses: addresses,
	}
	if account.Inheritance != nil {
		info.Inheritance = &InheritanceInfo{
			LocalRole:               account.Inheritance.LocalRole,
			LocalFingerprint:        account.Inheritance.LocalKey.Fingerprint,
			CounterpartyFingerprint: account.Inheritance.CounterpartyKey.Fingerprint,
			FundingBranchIndex:      account.Inheritance.FundingBranchIndex,
			SpendingConditions:      account.Inheritance.SpendingConditions,
			Activated:               account.Inheritance.Activated,
		}
	}
	return info
}
