package wallet

import "sort"

// CandidateInput is a confirmed unspent output eligible for selection.
type CandidateInput struct {
	TxID   string
	VOut   uint32
	Value  uint64
	Script ScriptType
}

// CoinSelectionResult carries the selected inputs along with the fee and
// change implied by them. A zero Change means the excess was folded into the
// fee because a change output would have been dust.
type CoinSelectionResult struct {
	SelectedInputs []CandidateInput
	Fee            uint64
	Change         uint64
}

// SelectUtxosOpts is the struct given to SelectUtxos.
type SelectUtxosOpts struct {
	Utxos        []CandidateInput
	TargetAmount uint64
	SatsPerVByte uint64
	PayoutScript ScriptType
	ChangeScript ScriptType
}

func (o SelectUtxosOpts) validate() error {
	if o.TargetAmount <= 0 {
		return ErrInvalidAmount
	}
	if o.SatsPerVByte <= 0 {
		return ErrInvalidFeeRate
	}
	if _, ok := outputVSizes[o.PayoutScript]; !ok {
		return ErrUnsupportedScriptType
	}
	if _, ok := outputVSizes[o.ChangeScript]; !ok {
		return ErrUnsupportedScriptType
	}
	for _, utxo := range o.Utxos {
		if _, ok := inputVSizes[utxo.Script]; !ok {
			return ErrUnsupportedScriptType
		}
	}
	return nil
}

// SelectUtxos picks inputs greedily, largest value first, until they cover
// the target amount plus the fee of the transaction they imply. The fee is
// recomputed at every step since each added input grows the transaction; the
// one- and two-output shapes are tried in that order, so change is only kept
// when it clears the dust limit.
func SelectUtxos(opts SelectUtxosOpts) (*CoinSelectionResult, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	candidates := make([]CandidateInput, len(opts.Utxos))
	copy(candidates, opts.Utxos)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Value > candidates[j].Value
	})

	selected := make([]CandidateInput, 0, len(candidates))
	inputTypes := make([]ScriptType, 0, len(candidates))
	total := uint64(0)

	for _, utxo := range candidates {
		selected = append(selected, utxo)
		inputTypes = append(inputTypes, utxo.Script)
		total += utxo.Value

		feeNoChange, err := EstimateFeeAmount(EstimateFeeAmountOpts{
			Inputs:       inputTypes,
			Outputs:      []ScriptType{opts.PayoutScript},
			SatsPerVByte: opts.SatsPerVByte,
		})
		if err != nil {
			return nil, err
		}
		if total < opts.TargetAmount+feeNoChange {
			continue
		}

		feeWithChange, err := EstimateFeeAmount(EstimateFeeAmountOpts{
			Inputs:       inputTypes,
			Outputs:      []ScriptType{opts.PayoutScript, opts.ChangeScript},
			SatsPerVByte: opts.SatsPerVByte,
		})
		if err != nil {
			return nil, err
		}

		if total >= opts.TargetAmount+feeWithChange &&
			total-opts.TargetAmount-feeWithChange >= DustLimit {
			return &CoinSelectionResult{
				SelectedInputs: selected,
				Fee:            feeWithChange,
				Change:         total - opts.TargetAmount - feeWithChange,
			}, nil
		}

		// sub-dust change is given up to the miner
		return &CoinSelectionResult{
			SelectedInputs: selected,
			Fee:            total - opts.TargetAmount,
			Change:         0,
		}, nil
	}

	return nil, ErrInsufficientFunds
}
