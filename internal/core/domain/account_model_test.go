package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccount(t *testing.T) {
	account, err := NewAccount("savings", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, account.ID)
	assert.Equal(t, AccountKindStandard, account.Kind)
	assert.False(t, account.IsActivated())
	assert.Zero(t, account.NextAddressIndex)

	_, err = NewAccount("", 0)
	assert.Equal(t, ErrNullAccountName, err)
}

func TestNewInheritanceAccount(t *testing.T) {
	account, err := NewInheritanceAccount(validInheritanceOpts())
	require.NoError(t, err)
	assert.Equal(t, AccountKindInheritance, account.Kind)
	require.NotNil(t, account.Inheritance)
	assert.False(t, account.IsActivated())
	assert.Equal(t, LocalRoleUser, account.Inheritance.LocalRole)
}

func TestFailingNewInheritanceAccount(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*NewInheritanceAccountOpts)
		err    error
	}{
		{
			name:   "null name",
			mutate: func(o *NewInheritanceAccountOpts) { o.Name = "" },
			err:    ErrNullAccountName,
		},
		{
			name: "null local key",
			mutate: func(o *NewInheritanceAccountOpts) {
				o.LocalKey.ExtendedPublicKey = ""
			},
			err: ErrNullPartyKey,
		},
		{
			name: "multisig window after user-only window",
			mutate: func(o *NewInheritanceAccountOpts) {
				o.SpendingConditions.MultisigAfterBlocks = 50
			},
			err: ErrInvalidSpendingConditions,
		},
		{
			name: "multisig window after heir-only window",
			mutate: func(o *NewInheritanceAccountOpts) {
				o.SpendingConditions = SpendingConditions{
					MultisigAfterBlocks: 30,
					UserOnlyAfterBlocks: 40,
					HeirOnlyAfterBlocks: 20,
				}
			},
			err: ErrInvalidSpendingConditions,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := validInheritanceOpts()
			tt.mutate(&opts)
			_, err := NewInheritanceAccount(opts)
			assert.Equal(t, tt.err, err)
		})
	}
}

func TestActivate(t *testing.T) {
	account, err := NewInheritanceAccount(validInheritanceOpts())
	require.NoError(t, err)

	require.NoError(t, account.Activate())
	assert.True(t, account.IsActivated())

	// one-way, idempotent-guarded
	assert.Equal(t, ErrAlreadyActivated, account.Activate())
	assert.True(t, account.IsActivated())
}

func TestActivateStandardAccount(t *testing.T) {
	account, err := NewAccount("savings", 0)
	require.NoError(t, err)
	assert.Equal(t, ErrNotInheritanceAccount, account.Activate())
}

func TestAddDerivedAddress(t *testing.T) {
	account, err := NewAccount("savings", 0)
	require.NoError(t, err)

	require.NoError(t, account.AddDerivedAddress(DerivedAddress{
		Index: 0, Address: "bcrt1p...0", DerivationPath: "m/86'/0'/0'/0/0",
	}))
	assert.EqualValues(t, 1, account.NextAddressIndex)

	// change addresses do not advance the external index
	require.NoError(t, account.AddDerivedAddress(DerivedAddress{
		Index: 0, Address: "bcrt1p...c0", IsChange: true,
	}))
	assert.EqualValues(t, 1, account.NextAddressIndex)

	// same (index, change, role) position twice
	err = account.AddDerivedAddress(DerivedAddress{
		Index: 0, Address: "bcrt1p...dup",
	})
	assert.Equal(t, ErrDuplicateDerivedAddress, err)

	info, err := account.AddressInfo("bcrt1p...0")
	require.NoError(t, err)
	assert.Equal(t, "m/86'/0'/0'/0/0", info.DerivationPath)

	_, err = account.AddressInfo("bcrt1p...unknown")
	assert.Equal(t, ErrAddressNotFound, err)
}

func TestFundingAddressIssuanceClosesOnActivation(t *testing.T) {
	account, err := NewInheritanceAccount(validInheritanceOpts())
	require.NoError(t, err)

	require.NoError(t, account.AddDerivedAddress(DerivedAddress{
		Index: 0, Address: "bcrt1q...f0", Role: AddressRoleFunding,
	}))
	require.NoError(t, account.Activate())

	err = account.AddDerivedAddress(DerivedAddress{
		Index: 1, Address: "bcrt1q...f1", Role: AddressRoleFunding,
	})
	assert.Equal(t, ErrFundingClosed, err)

	// post-activation addresses are still issuable
	assert.NoError(t, account.AddDerivedAddress(DerivedAddress{
		Index: 0, Address: "bcrt1q...a0", Role: AddressRoleActive,
	}))

	funding := account.AddressesByRole(AddressRoleFunding)
	require.Len(t, funding, 1)
	assert.Equal(t, "bcrt1q...f0", funding[0].Address)
}

func TestUpdateBalances(t *testing.T) {
	account, err := NewAccount("savings", 0)
	require.NoError(t, err)
	require.NoError(t, account.AddDerivedAddress(DerivedAddress{Index: 0, Address: "addr0"}))
	require.NoError(t, account.AddDerivedAddress(DerivedAddress{Index: 1, Address: "addr1"}))

	account.UpdateBalances(map[string]uint64{"addr0": 1500})
	assert.EqualValues(t, 1500, account.Balance)

	info, _ := account.AddressInfo("addr0")
	assert.True(t, info.Used)
	assert.EqualValues(t, 1500, info.Balance)

	// a spent-down address stays used
	account.UpdateBalances(map[string]uint64{"addr1": 700})
	assert.EqualValues(t, 700, account.Balance)
	info, _ = account.AddressInfo("addr0")
	assert.True(t, info.Used)
	assert.Zero(t, info.Balance)
}

func validInheritanceOpts() NewInheritanceAccountOpts {
	return NewInheritanceAccountOpts{
		Name:      "legacy",
		LocalRole: LocalRoleUser,
		LocalKey: PartyKey{
			Fingerprint:       "f00dbabe",
			ExtendedPublicKey: "tpubLocal",
		},
		CounterpartyKey: PartyKey{
			Fingerprint:       "deadbeef",
			ExtendedPublicKey: "tpubCounterpart",
		},
		FundingBranchIndex: 0,
		SpendingConditions: SpendingConditions{
			MultisigAfterBlocks: 5,
			UserOnlyAfterBlocks: 10,
			HeirOnlyAfterBlocks: 20,
		},
	}
}
