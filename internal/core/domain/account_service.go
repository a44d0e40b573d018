package domain

// SpendEligibility is the read-only outcome of the post-activation eligibility
// computation. It is recomputed on every balance refresh and never cached as
// authoritative state.
type SpendEligibility struct {
	RequiresMultisig bool
	CanUserSpend     bool
	CanHeirSpend     bool
}

// NoOneCanSpend returns whether no spend path is open yet.
func (e SpendEligibility) NoOneCanSpend() bool {
	return !e.RequiresMultisig && !e.CanUserSpend && !e.CanHeirSpend
}

// ComputeSpendEligibility evaluates the spending conditions against the
// number of confirmed blocks elapsed since the earliest confirmed funding
// transaction. Before the multisig delay no one may spend; between the
// multisig delay and the first single-key delay, user and heir must co-sign;
// past its own delay either party spends alone, and both single-key windows
// can be concurrently open.
func ComputeSpendEligibility(
	conditions SpendingConditions, blocksSinceFunding int64,
) SpendEligibility {
	if blocksSinceFunding < 0 {
		return SpendEligibility{}
	}

	elapsed := uint64(blocksSinceFunding)
	canUserSpend := elapsed >= uint64(conditions.UserOnlyAfterBlocks)
	canHeirSpend := elapsed >= uint64(conditions.HeirOnlyAfterBlocks)
	requiresMultisig := elapsed >= uint64(conditions.MultisigAfterBlocks) &&
		!canUserSpend && !canHeirSpend

	return SpendEligibility{
		RequiresMultisig: requiresMultisig,
		CanUserSpend:     canUserSpend,
		CanHeirSpend:     canHeirSpend,
	}
}
