package esplora

import (
	"github.com/heirvault/heirvault-daemon/pkg/explorer"
)

type status struct {
	Confirmed   bool   `json:"confirmed"`
	BlockHeight int    `json:"block_height"`
	BlockHash   string `json:"block_hash"`
	BlockTime   int64  `json:"block_time"`
}

// witnessUtxo is the implementation of the explorer's Utxo interface. The
// output script is not part of the utxo endpoint payload and is filled in by
// fetching the funding transaction.
type witnessUtxo struct {
	UHash   string `json:"txid"`
	UIndex  uint32 `json:"vout"`
	UValue  uint64 `json:"value"`
	UStatus status `json:"status"`
	UScript []byte `json:"-"`
}

// NewWitnessUtxo returns an explorer.Utxo built from its raw fields.
func NewWitnessUtxo(
	hash string, index uint32, value uint64, script []byte,
	confirmed bool, blockHeight int,
) explorer.Utxo {
	return witnessUtxo{
		UHash:   hash,
		UIndex:  index,
		UValue:  value,
		UScript: script,
		UStatus: status{Confirmed: confirmed, BlockHeight: blockHeight},
	}
}

func (u witnessUtxo) Hash() string {
	return u.UHash
}

func (u witnessUtxo) Index() uint32 {
	return u.UIndex
}

func (u witnessUtxo) Value() uint64 {
	return u.UValue
}

func (u witnessUtxo) Script() []byte {
	return u.UScript
}

func (u witnessUtxo) IsConfirmed() bool {
	return u.UStatus.Confirmed
}

func (u witnessUtxo) BlockHeight() int {
	if !u.UStatus.Confirmed {
		return -1
	}
	return u.UStatus.BlockHeight
}

// txInfo is the implementation of the explorer's Transaction interface.
type txInfo struct {
	TxHash   string `json:"txid"`
	TxStatus status `json:"status"`
}

func (t txInfo) Hash() string {
	return t.TxHash
}

func (t txInfo) Confirmed() bool {
	return t.TxStatus.Confirmed
}

func (t txInfo) BlockHeight() int {
	if !t.TxStatus.Confirmed {
		return -1
	}
	return t.TxStatus.BlockHeight
}

func (t txInfo) BlockTime() int64 {
	return t.TxStatus.BlockTime
}

// txStatus implements the explorer.TxStatus interface over the raw status
// endpoint payload.
type txStatus map[string]interface{}

func (s txStatus) Confirmed() bool {
	iConfirmed := s["confirmed"]
	if iConfirmed == nil {
		return false
	}
	confirmed, ok := iConfirmed.(bool)
	if !ok {
		return false
	}
	return confirmed
}

func (s txStatus) BlockHash() string {
	iBlockHash := s["block_hash"]
	if iBlockHash == nil {
		return ""
	}
	blockHash, ok := iBlockHash.(string)
	if !ok {
		return ""
	}
	return blockHash
}

func (s txStatus) BlockHeight() int {
	iBlockHeight := s["block_height"]
	if iBlockHeight == nil {
		return -1
	}
	blockHeight, ok := iBlockHeight.(float64)
	if !ok {
		return -1
	}
	return int(blockHeight)
}

func (s txStatus) BlockTime() int64 {
	iBlockTime := s["block_time"]
	if iBlockTime == nil {
		return -1
	}
	blockTime, ok := iBlockTime.(float64)
	if !ok {
		return -1
	}
	return int64(blockTime)
}
