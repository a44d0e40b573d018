package crawler

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/heirvault/heirvault-daemon/pkg/explorer"
)

const (
	eventQueueMaxSize = 100
	errorQueueMaxSize = 10
)

type blockchainCrawler struct {
	interval     int
	explorerSvc  explorer.Service
	errChan      chan error
	eventChan    chan Event
	observables  map[string]*observableHandler
	errorHandler func(err error)
	mutex        *sync.RWMutex
	wg           *sync.WaitGroup
	rateLimiter  *rate.Limiter
}

// Opts defines the parameters needed for creating a crawler service with
// NewService.
type Opts struct {
	ExplorerSvc            explorer.Service
	IntervalInMilliseconds int
	RequestsPerSecond      int
	ErrorHandler           func(err error)
}

// NewService returns a crawler ready to watch for blockchain activity. Use
// the Start and Stop methods to manage it.
func NewService(opts Opts) Service {
	return &blockchainCrawler{
		interval:     opts.IntervalInMilliseconds,
		explorerSvc:  opts.ExplorerSvc,
		errChan:      make(chan error, errorQueueMaxSize),
		eventChan:    make(chan Event, eventQueueMaxSize),
		observables:  map[string]*observableHandler{},
		errorHandler: opts.ErrorHandler,
		mutex:        &sync.RWMutex{},
		wg:           &sync.WaitGroup{},
		rateLimiter:  rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
	}
}

// Start runs the error loop until Stop closes the error channel. Observables
// are polled on their own goroutines as soon as they are added.
func (bc *blockchainCrawler) Start() {
	for err := range bc.errChan {
		go bc.errorHandler(err)
	}
}

// Stop stops every observation loop and signals consumers with a QuitEvent.
func (bc *blockchainCrawler) Stop() {
	bc.mutex.Lock()
	defer bc.mutex.Unlock()
	for _, obsHandler := range bc.observables {
		go obsHandler.stop()
	}
	bc.wg.Wait()
	bc.eventChan <- QuitEvent{}
	close(bc.errChan)
}

// GetEventChannel returns the channel events are pushed on.
func (bc *blockchainCrawler) GetEventChannel() chan Event {
	bc.mutex.RLock()
	defer bc.mutex.RUnlock()
	return bc.eventChan
}

// AddObservable starts watching the given observable unless it is watched
// already.
func (bc *blockchainCrawler) AddObservable(observable Observable) {
	bc.mutex.Lock()
	defer bc.mutex.Unlock()

	if _, ok := bc.observables[observable.key()]; !ok {
		obsHandler := newObservableHandler(
			observable,
			bc.explorerSvc,
			bc.wg,
			bc.interval,
			bc.eventChan,
			bc.errChan,
			bc.rateLimiter,
		)

		bc.observables[observable.key()] = obsHandler
		bc.wg.Add(1)
		go obsHandler.start()
	}
}

// RemoveObservable stops watching the given observable.
func (bc *blockchainCrawler) RemoveObservable(observable Observable) {
	bc.mutex.Lock()
	defer bc.mutex.Unlock()

	if obsHandler, ok := bc.observables[observable.key()]; ok {
		obsHandler.stop()
		delete(bc.observables, observable.key())
	}
}

// IsObservingAddresses returns whether every address in the list is
// currently watched. An empty list returns false.
func (bc *blockchainCrawler) IsObservingAddresses(addresses []string) bool {
	if len(addresses) == 0 {
		return false
	}

	bc.mutex.RLock()
	defer bc.mutex.RUnlock()

	for _, addr := range addresses {
		if _, ok := bc.observables[addr]; !ok {
			return false
		}
	}
	return true
}
