package application

import (
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/heirvault/heirvault-daemon/pkg/explorer"
)

// feeProvider turns the explorer fee estimates into a single sats/vbyte rate
// for the configured confirmation target. Estimates are indexed by target in
// blocks; when the exact target is missing the closest lower target (ie. the
// more generous rate) is used. Explorer failures and empty estimate maps
// degrade to the fallback rate with a warning, never to a hard failure.
type feeProvider struct {
	explorerSvc  explorer.Service
	targetBlocks int
	fallbackRate uint64
}

func newFeeProvider(
	explorerSvc explorer.Service, targetBlocks int, fallbackRate uint64,
) (*feeProvider, error) {
	if explorerSvc == nil {
		return nil, explorer.ErrNullInnerService
	}
	if targetBlocks <= 0 {
		return nil, ErrInvalidFeeTarget
	}
	if fallbackRate <= 0 {
		return nil, ErrNoFeeEstimates
	}
	return &feeProvider{
		explorerSvc:  explorerSvc,
		targetBlocks: targetBlocks,
		fallbackRate: fallbackRate,
	}, nil
}

func (p *feeProvider) satsPerVByte() uint64 {
	estimates, err := p.explorerSvc.GetFeeEstimates()
	if err != nil {
		log.WithError(err).Warn("fees: falling back to configured rate")
		return p.fallbackRate
	}

	bestTarget := -1
	for target := range estimates {
		if target <= p.targetBlocks && target > bestTarget {
			bestTarget = target
		}
	}
	if bestTarget < 0 {
		return p.fallbackRate
	}

	rate := uint64(math.Ceil(estimates[bestTarget]))
	if rate <= 0 {
		return p.fallbackRate
	}
	return rate
}
