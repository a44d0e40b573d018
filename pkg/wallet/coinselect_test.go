package wallet

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectUtxos(t *testing.T) {
	utxos := []CandidateInput{
		{TxID: txid(1), VOut: 0, Value: 10_000, Script: P2TR},
		{TxID: txid(2), VOut: 1, Value: 50_000, Script: P2TR},
		{TxID: txid(3), VOut: 0, Value: 2_000, Script: P2TR},
	}

	result, err := SelectUtxos(SelectUtxosOpts{
		Utxos:        utxos,
		TargetAmount: 30_000,
		SatsPerVByte: 1,
		PayoutScript: P2TR,
		ChangeScript: P2TR,
	})
	require.NoError(t, err)

	// the largest utxo alone covers target plus fee, change clears dust
	require.Len(t, result.SelectedInputs, 1)
	assert.Equal(t, txid(2), result.SelectedInputs[0].TxID)
	expectedFee := uint64(11 + 58 + 2*43)
	assert.Equal(t, expectedFee, result.Fee)
	assert.Equal(t, uint64(50_000-30_000)-expectedFee, result.Change)
}

func TestSelectUtxosAccumulates(t *testing.T) {
	utxos := []CandidateInput{
		{TxID: txid(1), VOut: 0, Value: 10_000, Script: P2TR},
		{TxID: txid(2), VOut: 0, Value: 8_000, Script: P2TR},
		{TxID: txid(3), VOut: 0, Value: 6_000, Script: P2TR},
	}

	result, err := SelectUtxos(SelectUtxosOpts{
		Utxos:        utxos,
		TargetAmount: 15_000,
		SatsPerVByte: 2,
		PayoutScript: P2TR,
		ChangeScript: P2TR,
	})
	require.NoError(t, err)

	// 10k alone cannot cover 15k, the next largest is pulled in
	require.Len(t, result.SelectedInputs, 2)
	assert.Equal(t, txid(1), result.SelectedInputs[0].TxID)
	assert.Equal(t, txid(2), result.SelectedInputs[1].TxID)
	total := uint64(18_000)
	assert.Equal(t, total-15_000, result.Fee+result.Change)
	assert.GreaterOrEqual(t, result.Change, DustLimit)
}

func TestSelectUtxosDustChange(t *testing.T) {
	feeNoChange := uint64(11 + 58 + 43)
	utxos := []CandidateInput{
		// leaves 200 sats over the no-change fee, below the dust limit
		{TxID: txid(1), VOut: 0, Value: 20_000 + feeNoChange + 200, Script: P2TR},
	}

	result, err := SelectUtxos(SelectUtxosOpts{
		Utxos:        utxos,
		TargetAmount: 20_000,
		SatsPerVByte: 1,
		PayoutScript: P2TR,
		ChangeScript: P2TR,
	})
	require.NoError(t, err)

	require.Len(t, result.SelectedInputs, 1)
	assert.Zero(t, result.Change)
	assert.Equal(t, feeNoChange+200, result.Fee)
}

func TestSelectUtxosMultisigInputs(t *testing.T) {
	utxos := []CandidateInput{
		{TxID: txid(1), VOut: 0, Value: 40_000, Script: P2WSH2of2},
	}

	result, err := SelectUtxos(SelectUtxosOpts{
		Utxos:        utxos,
		TargetAmount: 10_000,
		SatsPerVByte: 3,
		PayoutScript: P2TR,
		ChangeScript: P2TR,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(3*(11+105+2*43)), result.Fee)
}

func TestFailingSelectUtxos(t *testing.T) {
	utxos := []CandidateInput{
		{TxID: txid(1), VOut: 0, Value: 1_000, Script: P2TR},
	}

	tests := []struct {
		name string
		opts SelectUtxosOpts
		err  error
	}{
		{
			name: "insufficient funds",
			opts: SelectUtxosOpts{
				Utxos: utxos, TargetAmount: 50_000, SatsPerVByte: 1,
				PayoutScript: P2TR, ChangeScript: P2TR,
			},
			err: ErrInsufficientFunds,
		},
		{
			name: "no utxos at all",
			opts: SelectUtxosOpts{
				TargetAmount: 100, SatsPerVByte: 1,
				PayoutScript: P2TR, ChangeScript: P2TR,
			},
			err: ErrInsufficientFunds,
		},
		{
			name: "zero target",
			opts: SelectUtxosOpts{
				Utxos: utxos, SatsPerVByte: 1,
				PayoutScript: P2TR, ChangeScript: P2TR,
			},
			err: ErrInvalidAmount,
		},
		{
			name: "zero fee rate",
			opts: SelectUtxosOpts{
				Utxos: utxos, TargetAmount: 100,
				PayoutScript: P2TR, ChangeScript: P2TR,
			},
			err: ErrInvalidFeeRate,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SelectUtxos(tt.opts)
			assert.Equal(t, tt.err, err)
		})
	}
}

func txid(i int) string {
	return fmt.Sprintf("%064x", i)
}
