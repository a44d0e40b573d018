package explorer

import (
	"errors"
	"fmt"
)

var (
	// ErrNullInnerService ...
	ErrNullInnerService = errors.New("inner explorer service must not be null")
)

// TxRejectedError is returned when a node rejects a broadcasted transaction,
// for example for spending missing inputs or paying a fee below the relay
// minimum. Rejections are final: retrying the same hex yields the same answer.
type TxRejectedError struct {
	Reason string
}

func (e *TxRejectedError) Error() string {
	return fmt.Sprintf("transaction rejected: %s", e.Reason)
}
