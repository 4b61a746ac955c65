// Package timeoutaggregator provides the asynchronous front-end of timeout
// processing, mirroring the vote aggregator: verification and accumulation
// run on a worker pool off the event loop's critical path.
package timeoutaggregator

import (
	"errors"

	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog"

	"github.com/kengeo/libra/consensus/chainedbft"
	"github.com/kengeo/libra/consensus/chainedbft/model"
	"github.com/kengeo/libra/consensus/chainedbft/timeoutcollector"
)

const defaultWorkers = 4

// TimeoutAggregator accumulates timeout evidence across rounds. Implements
// chainedbft.TimeoutAggregator.
type TimeoutAggregator struct {
	log        zerolog.Logger
	violations chainedbft.ViolationConsumer
	collectors *timeoutcollector.TimeoutCollectors
	workers    *workerpool.WorkerPool
}

var _ chainedbft.TimeoutAggregator = (*TimeoutAggregator)(nil)

// New creates a timeout aggregator on top of the given collectors map.
func New(
	log zerolog.Logger,
	violations chainedbft.ViolationConsumer,
	collectors *timeoutcollector.TimeoutCollectors,
) *TimeoutAggregator {
	return &TimeoutAggregator{
		log:        log.With().Str("component", "timeout_aggregator").Logger(),
		violations: violations,
		collectors: collectors,
		workers:    workerpool.New(defaultWorkers),
	}
}

// AddTimeout submits timeout evidence for asynchronous processing.
func (ta *TimeoutAggregator) AddTimeout(timeout *model.TimeoutObject) {
	ta.workers.Submit(func() {
		ta.processTimeout(timeout)
	})
}

func (ta *TimeoutAggregator) processTimeout(timeout *model.TimeoutObject) {
	log := ta.log.With().
		Uint64("round", timeout.Round).
		Str("author", timeout.Author.String()).
		Logger()

	collector, _, err := ta.collectors.GetOrCreateCollector(timeout.Round)
	if err != nil {
		if model.IsStaleMessageError(err) {
			log.Debug().Msg("dropping timeout for pruned round")
			return
		}
		log.Err(err).Msg("could not get collector for timeout")
		return
	}

	err = collector.AddTimeout(timeout)
	if err == nil {
		return
	}
	switch {
	case model.IsInvalidTimeoutError(err):
		log.Warn().Err(err).Msg("invalid timeout detected")
		ta.violations.OnInvalidContribution(err)
	case errors.Is(err, timeoutcollector.TimeoutForIncompatibleRoundError),
		errors.Is(err, timeoutcollector.TimeoutForIncompatibleEpochError):
		log.Err(err).Msg("timeout dispatched to incompatible collector")
	default:
		log.Err(err).Msg("unexpected error processing timeout")
	}
}

// PruneUpToRound discards all timeout state for rounds strictly below the
// given round.
func (ta *TimeoutAggregator) PruneUpToRound(round uint64) {
	ta.collectors.PruneUpToRound(round)
}

// Stop drains the worker pool. Blocks until all submitted timeouts have been
// processed.
func (ta *TimeoutAggregator) Stop() {
	ta.workers.StopWait()
}
