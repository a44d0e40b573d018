// Package crawler periodically polls the chain-data provider for the
// addresses and transactions it is told to watch and turns any change into
// events pushed on a channel.
package crawler

import (
	"golang.org/x/time/rate"

	"github.com/heirvault/heirvault-daemon/pkg/explorer"
)

// Event are emitted through a channel during observation.
type Event interface {
	Type() EventType
}

// Observable represents an object that can be observed on the blockchain.
type Observable interface {
	observe(
		explorerSvc explorer.Service,
		errChan chan error,
		eventChan chan Event,
		observableStatus *observableStatus,
		rateLimiter *rate.Limiter,
	)
	key() string
}

// Service is the interface of the crawler.
type Service interface {
	Start()
	Stop()
	AddObservable(observable Observable)
	RemoveObservable(observable Observable)
	GetEventChannel() chan Event
	IsObservingAddresses(addresses []string) bool
}
