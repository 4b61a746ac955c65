package timeoutcollector

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kengeo/libra/consensus/chainedbft/model"
)

// NewCollectorFactoryMethod creates a fresh collector for the given round.
type NewCollectorFactoryMethod = func(round uint64) (*TimeoutCollector, error)

// TimeoutCollectors is a thread-safe map of round to the timeout collector
// for that round, with the same retention discipline as the vote side:
// rounds below the lowest retained round are gone for good.
type TimeoutCollectors struct {
	log                 zerolog.Logger
	createCollector     NewCollectorFactoryMethod
	mu                  sync.RWMutex
	lowestRetainedRound uint64
	collectors          map[uint64]*TimeoutCollector
}

// NewTimeoutCollectors creates the collectors map, retaining rounds at or
// above lowestRetainedRound.
func NewTimeoutCollectors(log zerolog.Logger, lowestRetainedRound uint64, factory NewCollectorFactoryMethod) *TimeoutCollectors {
	return &TimeoutCollectors{
		log:                 log.With().Str("component", "timeout_collectors").Logger(),
		createCollector:     factory,
		lowestRetainedRound: lowestRetainedRound,
		collectors:          make(map[uint64]*TimeoutCollector),
	}
}

// GetOrCreateCollector retrieves the collector for the given round or creates
// one if none exists yet. The second return value indicates whether the
// collector was newly created.
// Expected error returns during normal operations:
//   - model.StaleMessageError if the round is below the lowest retained round
func (cs *TimeoutCollectors) GetOrCreateCollector(round uint64) (*TimeoutCollector, bool, error) {
	cs.mu.RLock()
	if round < cs.lowestRetainedRound {
		lowest := cs.lowestRetainedRound
		cs.mu.RUnlock()
		return nil, false, model.NewStaleMessageErrorf("round %d is below lowest retained round %d", round, lowest)
	}
	if collector, ok := cs.collectors[round]; ok {
		cs.mu.RUnlock()
		return collector, false, nil
	}
	cs.mu.RUnlock()

	collector, err := cs.createCollector(round)
	if err != nil {
		return nil, false, fmt.Errorf("could not create timeout collector for round %d: %w", round, err)
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	if round < cs.lowestRetainedRound {
		return nil, false, model.NewStaleMessageErrorf("round %d is below lowest retained round %d", round, cs.lowestRetainedRound)
	}
	if existing, ok := cs.collectors[round]; ok {
		return existing, false, nil
	}
	cs.collectors[round] = collector
	return collector, true, nil
}

// PruneUpToRound drops all collectors for rounds strictly below the given
// round. The retention boundary never regresses.
func (cs *TimeoutCollectors) PruneUpToRound(round uint64) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if round <= cs.lowestRetainedRound {
		return
	}

	if len(cs.collectors) < int(round-cs.lowestRetainedRound) {
		for r := range cs.collectors {
			if r < round {
				delete(cs.collectors, r)
			}
		}
	} else {
		for r := cs.lowestRetainedRound; r < round; r++ {
			delete(cs.collectors, r)
		}
	}

	cs.log.Debug().
		Uint64("prior_lowest_retained_round", cs.lowestRetainedRound).
		Uint64("lowest_retained_round", round).
		Msg("pruned timeout collectors")
	cs.lowestRetainedRound = round
}
