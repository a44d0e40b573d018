package explorer

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"
	"golang.org/x/sync/singleflight"

	"github.com/heirvault/heirvault-daemon/pkg/circuitbreaker"
)

const (
	defaultRequestsPerSecond = 10
	defaultMaxRetries        = 3
	defaultRetryDelay        = 500 * time.Millisecond
)

// ResilientServiceOpts is the struct given to NewResilientService. Zero
// values fall back to defaults.
type ResilientServiceOpts struct {
	Inner             Service
	RequestsPerSecond int
	MaxRetries        int
	RetryDelay        time.Duration
}

func (o ResilientServiceOpts) validate() error {
	if o.Inner == nil {
		return ErrNullInnerService
	}
	return nil
}

type resilientService struct {
	inner      Service
	breaker    *gobreaker.CircuitBreaker
	limiter    ratelimit.Limiter
	group      singleflight.Group
	maxRetries int
	retryDelay time.Duration
}

// NewResilientService decorates an explorer service with outbound rate
// limiting, bounded-backoff retries, a circuit breaker and single-flight
// deduplication of identical concurrent reads.
func NewResilientService(opts ResilientServiceOpts) (Service, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	requestsPerSecond := opts.RequestsPerSecond
	if requestsPerSecond <= 0 {
		requestsPerSecond = defaultRequestsPerSecond
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}

	return &resilientService{
		inner:      opts.Inner,
		breaker:    circuitbreaker.NewCircuitBreaker(),
		limiter:    ratelimit.New(requestsPerSecond),
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}, nil
}

// read funnels identical concurrent requests into a single in-flight call.
func (s *resilientService) read(key string, fn func() (interface{}, error)) (interface{}, error) {
	res, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.execute(fn)
	})
	return res, err
}

// execute runs the call behind the breaker, retrying transient failures with
// a bounded exponential backoff. Every attempt is paced by the rate limiter
// so retries never make an overload worse. Final answers, like a node
// rejecting a broadcasted transaction, are returned without retrying.
func (s *resilientService) execute(fn func() (interface{}, error)) (interface{}, error) {
	return s.breaker.Execute(func() (interface{}, error) {
		var lastErr error
		delay := s.retryDelay
		for attempt := 0; attempt <= s.maxRetries; attempt++ {
			if attempt > 0 {
				time.Sleep(delay)
				delay *= 2
			}
			s.limiter.Take()

			res, err := fn()
			if err == nil {
				return res, nil
			}
			lastErr = err

			var rejected *TxRejectedError
			if errors.As(err, &rejected) {
				break
			}
		}
		return nil, lastErr
	})
}

func (s *resilientService) GetBlockHeight() (int, error) {
	res, err := s.read("tip", func() (interface{}, error) {
		return s.inner.GetBlockHeight()
	})
	if err != nil {
		return -1, err
	}
	return res.(int), nil
}

func (s *resilientService) GetBalance(addr string) (uint64, error) {
	res, err := s.read("balance:"+addr, func() (interface{}, error) {
		return s.inner.GetBalance(addr)
	})
	if err != nil {
		return 0, err
	}
	return res.(uint64), nil
}

func (s *resilientService) GetUnspents(addr string) ([]Utxo, error) {
	res, err := s.read("unspents:"+addr, func() (interface{}, error) {
		return s.inner.GetUnspents(addr)
	})
	if err != nil {
		return nil, err
	}
	return res.([]Utxo), nil
}

func (s *resilientService) GetUnspentsForAddresses(addresses []string) ([]Utxo, error) {
	key := "unspents"
	for _, addr := range addresses {
		key += ":" + addr
	}
	res, err := s.read(key, func() (interface{}, error) {
		return s.inner.GetUnspentsForAddresses(addresses)
	})
	if err != nil {
		return nil, err
	}
	return res.([]Utxo), nil
}

func (s *resilientService) GetTransactionHex(txid string) (string, error) {
	res, err := s.read("txhex:"+txid, func() (interface{}, error) {
		return s.inner.GetTransactionHex(txid)
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

func (s *resilientService) IsTransactionConfirmed(txid string) (bool, error) {
	res, err := s.read("txconfirmed:"+txid, func() (interface{}, error) {
		return s.inner.IsTransactionConfirmed(txid)
	})
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}

func (s *resilientService) GetTransactionStatus(txid string) (TxStatus, error) {
	res, err := s.read("txstatus:"+txid, func() (interface{}, error) {
		return s.inner.GetTransactionStatus(txid)
	})
	if err != nil {
		return nil, err
	}
	return res.(TxStatus), nil
}

func (s *resilientService) GetTransactionsForAddress(addr string) ([]Transaction, error) {
	res, err := s.read("txs:"+addr, func() (interface{}, error) {
		return s.inner.GetTransactionsForAddress(addr)
	})
	if err != nil {
		return nil, err
	}
	return res.([]Transaction), nil
}

func (s *resilientService) GetFeeEstimates() (map[int]float64, error) {
	res, err := s.read("fees", func() (interface{}, error) {
		return s.inner.GetFeeEstimates()
	})
	if err != nil {
		return nil, err
	}
	return res.(map[int]float64), nil
}

// BroadcastTransaction goes through the breaker and limiter but is never
// deduplicated: rebroadcasting the same transaction is idempotent and the
// caller decides when to do it.
func (s *resilientService) BroadcastTransaction(txhex string) (string, error) {
	res, err := s.execute(func() (interface{}, error) {
		return s.inner.BroadcastTransaction(txhex)
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

func (s *resilientService) Faucet(address string) (string, error) {
	res, err := s.execute(func() (interface{}, error) {
		return s.inner.Faucet(address)
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}
