package application

import "sync"

// accountLocker serializes the mutating operations against one account.
// Address generation, balance refresh and activation all read then rewrite
// the derived-address sequence, so they must not interleave per account;
// operations on different accounts share nothing and run in parallel.
type accountLocker struct {
	locks sync.Map
}

func newAccountLocker() *accountLocker {
	return &accountLocker{}
}

// lock takes the mutex of the given account and returns the function that
// releases it.
func (l *accountLocker) lock(accountID string) func() {
	value, _ := l.locks.LoadOrStore(accountID, &sync.Mutex{})
	mtx := value.(*sync.Mutex)
	mtx.Lock()
	return mtx.Unlock
}
