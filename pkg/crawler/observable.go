package crawler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	log "github.com/sirupsen/logrus"

	"github.com/heirvault/heirvault-daemon/pkg/explorer"
)

const (
	statusNew       observationStatus = "NEW"
	statusWaiting   observationStatus = "WAITING"
	statusProcessed observationStatus = "PROCESSED"
)

type observationStatus string

type observableStatus struct {
	sync.RWMutex
	status observationStatus
}

func newObservableStatus() *observableStatus {
	return &observableStatus{
		status: statusNew,
	}
}

func (o *observableStatus) Get() observationStatus {
	o.RLock()
	defer o.RUnlock()
	return o.status
}

func (o *observableStatus) Set(status observationStatus) {
	o.Lock()
	defer o.Unlock()
	o.status = status
}

// AddressObservable watches the unspents of an address. IsFunding marks the
// funding addresses of inheritance accounts so that consumers can tell a
// staged-custody deposit apart from a plain one.
type AddressObservable struct {
	AccountID string
	Address   string
	IsFunding bool
}

func (a *AddressObservable) observe(
	explorerSvc explorer.Service,
	errChan chan error,
	eventChan chan Event,
	observableStatus *observableStatus,
	rateLimiter *rate.Limiter,
) {
	if a == nil {
		return
	}

	observableStatus.Set(statusWaiting)
	if err := rateLimiter.Wait(context.Background()); err != nil {
		errChan <- err
		return
	}

	unspents, err := explorerSvc.GetUnspents(a.Address)
	if err != nil {
		errChan <- err
		return
	}

	observableStatus.Set(statusProcessed)

	eventType := AccountDeposit
	if a.IsFunding {
		eventType = FundingDeposit
	}
	eventChan <- AddressEvent{
		EventType: eventType,
		AccountID: a.AccountID,
		Address:   a.Address,
		Utxos:     unspents,
	}
}

func (a *AddressObservable) key() string {
	return a.Address
}

// TransactionObservable watches the confirmation status of a transaction,
// typically an activation sweep or a broadcasted spend.
type TransactionObservable struct {
	TxID string
}

func (t *TransactionObservable) observe(
	explorerSvc explorer.Service,
	errChan chan error,
	eventChan chan Event,
	observableStatus *observableStatus,
	rateLimiter *rate.Limiter,
) {
	if t == nil {
		return
	}

	observableStatus.Set(statusWaiting)
	if err := rateLimiter.Wait(context.Background()); err != nil {
		errChan <- err
		return
	}

	txStatus, err := explorerSvc.GetTransactionStatus(t.TxID)
	if err != nil {
		errChan <- err
		return
	}

	observableStatus.Set(statusProcessed)

	eventType := TransactionUnconfirmed
	if txStatus.Confirmed() {
		eventType = TransactionConfirmed
	}
	eventChan <- TransactionEvent{
		TxID:      t.TxID,
		EventType: eventType,
		BlockHash: txStatus.BlockHash(),
		BlockTime: txStatus.BlockTime(),
	}
}

func (t *TransactionObservable) key() string {
	return t.TxID
}

type observableHandler struct {
	observable       Observable
	explorerSvc      explorer.Service
	wg               *sync.WaitGroup
	ticker           *time.Ticker
	eventChan        chan Event
	errChan          chan error
	stopChan         chan int
	observableStatus *observableStatus
	rateLimiter      *rate.Limiter
	stopOnce         sync.Once
}

func newObservableHandler(
	observable Observable,
	explorerSvc explorer.Service,
	wg *sync.WaitGroup,
	interval int,
	eventChan chan Event,
	errChan chan error,
	rateLimiter *rate.Limiter,
) *observableHandler {
	ticker := time.NewTicker(time.Duration(interval) * time.Millisecond)
	stopChan := make(chan int, 1)

	return &observableHandler{
		observable:       observable,
		explorerSvc:      explorerSvc,
		wg:               wg,
		ticker:           ticker,
		eventChan:        eventChan,
		errChan:          errChan,
		stopChan:         stopChan,
		observableStatus: newObservableStatus(),
		rateLimiter:      rateLimiter,
	}
}

// start runs the polling loop. The handler's waitgroup slot is taken by
// AddObservable before this goroutine is scheduled.
func (oh *observableHandler) start() {
	oh.logAction("start")
	for {
		select {
		case <-oh.ticker.C:
			if oh.observableStatus.Get() != statusWaiting {
				oh.observable.observe(
					oh.explorerSvc,
					oh.errChan,
					oh.eventChan,
					oh.observableStatus,
					oh.rateLimiter,
				)
			}
		case <-oh.stopChan:
			oh.ticker.Stop()
			close(oh.stopChan)
			return
		}
	}
}

// stop is idempotent, it can be reached from both RemoveObservable and Stop
// for the same handler.
func (oh *observableHandler) stop() {
	oh.stopOnce.Do(func() {
		oh.logAction("stop")
		oh.stopChan <- 1
		oh.wg.Done()
	})
}

func (oh *observableHandler) logAction(action string) {
	switch oh.observable.(type) {
	case *AddressObservable:
		log.Debugf("%s observing address: %v", action, oh.observable.key())
	case *TransactionObservable:
		log.Debugf("%s observing tx: %v", action, oh.observable.key())
	}
}
