package crawler

import "github.com/heirvault/heirvault-daemon/pkg/explorer"

const (
	QuitSignal EventType = iota
	AccountDeposit
	FundingDeposit
	TransactionConfirmed
	TransactionUnconfirmed
)

type EventType int

func (et EventType) String() string {
	switch et {
	case QuitSignal:
		return "QuitSignal"
	case AccountDeposit:
		return "AccountDeposit"
	case FundingDeposit:
		return "FundingDeposit"
	case TransactionConfirmed:
		return "TransactionConfirmed"
	case TransactionUnconfirmed:
		return "TransactionUnconfirmed"
	default:
		return "Unknown"
	}
}

type QuitEvent struct{}

func (q QuitEvent) Type() EventType {
	return QuitSignal
}

// AddressEvent carries the current unspents of a watched address.
type AddressEvent struct {
	EventType EventType
	AccountID string
	Address   string
	Utxos     []explorer.Utxo
}

func (a AddressEvent) Type() EventType {
	return a.EventType
}

// TransactionEvent reports the confirmation status of a watched transaction.
type TransactionEvent struct {
	TxID      string
	EventType EventType
	BlockHash string
	BlockTime int64
}

func (t TransactionEvent) Type() EventType {
	return t.EventType
}
