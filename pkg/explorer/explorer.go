// Package explorer defines the interface towards the blockchain data source
// and the decorators layered on top of its implementations.
package explorer

// Utxo represents a confirmed or pending transaction output.
type Utxo interface {
	Hash() string
	Index() uint32
	Value() uint64
	Script() []byte
	IsConfirmed() bool
	BlockHeight() int
}

// Transaction is the chain-level view of a transaction touching a watched
// address.
type Transaction interface {
	Hash() string
	Confirmed() bool
	BlockHeight() int
	BlockTime() int64
}

// TxStatus is the confirmation status of a transaction.
type TxStatus interface {
	Confirmed() bool
	BlockHash() string
	BlockHeight() int
	BlockTime() int64
}

// Service is representation of an explorer that allows to fetch data from
// the blockchain, to broadcast transactions and, for regtest only, to fund
// an address.
type Service interface {
	// GetBlockHeight returns the current tip height of the chain.
	GetBlockHeight() (int, error)
	// GetBalance returns the confirmed balance in satoshis of the address.
	GetBalance(addr string) (uint64, error)
	// GetUnspents fetches the utxos of the given address.
	GetUnspents(addr string) ([]Utxo, error)
	// GetUnspentsForAddresses fetches the utxos of the given list of
	// addresses.
	GetUnspentsForAddresses(addresses []string) ([]Utxo, error)
	// GetTransactionHex fetches the transaction in hex format given its hash.
	GetTransactionHex(txid string) (string, error)
	// IsTransactionConfirmed returns whether the tx identified by its hash
	// has been included in the blockchain.
	IsTransactionConfirmed(txid string) (bool, error)
	// GetTransactionStatus returns the status of the tx identified by its
	// hash.
	GetTransactionStatus(txid string) (TxStatus, error)
	// GetTransactionsForAddress returns the list of all txs relative to the
	// given address.
	GetTransactionsForAddress(addr string) ([]Transaction, error)
	// GetFeeEstimates returns the estimated fee rate in sats/vbyte by
	// confirmation target in blocks.
	GetFeeEstimates() (map[int]float64, error)
	// BroadcastTransaction attempts to add the given tx in hex format to the
	// mempool and returns its tx hash.
	BroadcastTransaction(txhex string) (string, error)
	/**** REGTEST ONLY ****/
	// Faucet funds the given address with 1 BTC.
	Faucet(address string) (string, error)
}
