// Package notifications provides consumers for protocol violation reports.
package notifications

import (
	"github.com/rs/zerolog"

	"github.com/kengeo/libra/consensus/chainedbft"
	"github.com/kengeo/libra/model/libra"
)

// LogConsumer reports violations to the log. Accountability action (slashing
// submission, peer scoring) hangs off a richer consumer in deployments that
// have one; the engine only requires that reports do not block.
type LogConsumer struct {
	log zerolog.Logger
}

var _ chainedbft.ViolationConsumer = (*LogConsumer)(nil)

// NewLogConsumer creates a consumer writing to the given logger.
func NewLogConsumer(log zerolog.Logger) *LogConsumer {
	return &LogConsumer{
		log: log.With().Str("component", "violation_consumer").Logger(),
	}
}

func (lc *LogConsumer) OnDoubleVoteDetected(first *libra.Vote, conflicting *libra.Vote) {
	lc.log.Warn().
		Uint64("round", first.Round()).
		Str("author", first.Author.String()).
		Str("first_block", first.BlockID().String()).
		Str("conflicting_block", conflicting.BlockID().String()).
		Msg("double vote detected")
}

func (lc *LogConsumer) OnInvalidContribution(err error) {
	lc.log.Warn().Err(err).Msg("invalid contribution detected")
}
