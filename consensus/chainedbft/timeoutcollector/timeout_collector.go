// Package timeoutcollector accumulates timeout objects for one round until a
// timeout certificate can be built. Timeout evidence arrives both as
// dedicated signatures and as the round-only signatures piggybacked on votes,
// and both forms feed the same accumulator.
package timeoutcollector

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/kengeo/libra/consensus/chainedbft"
	"github.com/kengeo/libra/consensus/chainedbft/model"
	"github.com/kengeo/libra/model/libra"
)

var (
	// TimeoutForIncompatibleRoundError is returned when a timeout is submitted
	// to a collector of a different round.
	TimeoutForIncompatibleRoundError = errors.New("timeout for incompatible round")
	// TimeoutForIncompatibleEpochError is returned when a timeout is submitted
	// to a collector of a different epoch.
	TimeoutForIncompatibleEpochError = errors.New("timeout for incompatible epoch")
)

// TimeoutCollector collects the timeout objects of a single (epoch, round).
// Safe for concurrent use.
type TimeoutCollector struct {
	log         zerolog.Logger
	epoch       uint64
	round       uint64
	committee   chainedbft.Committee
	verifier    chainedbft.Verifier
	onTCCreated chainedbft.OnTCCreated
	threshold   uint64

	mu          sync.Mutex
	seen        map[libra.Identifier]struct{}
	timeouts    []*model.TimeoutObject
	totalWeight uint64
	done        atomic.Bool
}

// NewTimeoutCollector creates a collector for the given epoch and round.
func NewTimeoutCollector(
	log zerolog.Logger,
	epoch uint64,
	round uint64,
	committee chainedbft.Committee,
	verifier chainedbft.Verifier,
	onTCCreated chainedbft.OnTCCreated,
) (*TimeoutCollector, error) {
	threshold, err := committee.QuorumThreshold(epoch)
	if err != nil {
		return nil, fmt.Errorf("could not get quorum threshold for epoch %d: %w", epoch, err)
	}

	return &TimeoutCollector{
		log: log.With().
			Str("component", "timeout_collector").
			Uint64("epoch", epoch).
			Uint64("round", round).
			Logger(),
		epoch:       epoch,
		round:       round,
		committee:   committee,
		verifier:    verifier,
		onTCCreated: onTCCreated,
		threshold:   threshold,
		seen:        make(map[libra.Identifier]struct{}),
	}, nil
}

// Round returns the round this collector is responsible for.
func (c *TimeoutCollector) Round() uint64 {
	return c.round
}

// AddTimeout validates and accumulates a timeout object. Once the
// accumulated weight reaches the quorum threshold, the timeout certificate
// is built exactly once and handed to the OnTCCreated callback.
// Expected error returns during normal operations:
//   - TimeoutForIncompatibleRoundError / TimeoutForIncompatibleEpochError
//   - model.InvalidTimeoutError for unknown authors or bad signatures
//
// All other errors are unexpected.
func (c *TimeoutCollector) AddTimeout(timeout *model.TimeoutObject) error {
	if timeout.Round != c.round {
		return fmt.Errorf("expecting timeout for round %d, got %d: %w", c.round, timeout.Round, TimeoutForIncompatibleRoundError)
	}
	if timeout.Epoch != c.epoch {
		return fmt.Errorf("expecting timeout for epoch %d, got %d: %w", c.epoch, timeout.Epoch, TimeoutForIncompatibleEpochError)
	}

	weight, err := c.committee.Weight(c.epoch, timeout.Author)
	if model.IsInvalidSignerError(err) {
		return model.NewInvalidTimeoutErrorf(timeout, "timeout from non-committee member: %w", err)
	}
	if err != nil {
		return fmt.Errorf("could not get weight of author %v: %w", timeout.Author, err)
	}

	err = c.verifier.VerifyTimeout(timeout)
	if errors.Is(err, model.ErrInvalidSignature) || model.IsInvalidSignerError(err) {
		return model.NewInvalidTimeoutErrorf(timeout, "invalid signature: %w", err)
	}
	if err != nil {
		return fmt.Errorf("could not verify timeout signature: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[timeout.Author]; ok {
		// the timeout's semantic content is (epoch, round, author), all of
		// which this collector has already matched; a repeat by the same
		// author is a duplicate even when the signature bytes differ
		// (vote-derived round signature vs a dedicated timeout signature)
		return nil
	}
	c.seen[timeout.Author] = struct{}{}
	c.timeouts = append(c.timeouts, timeout)
	c.totalWeight += weight

	c.log.Debug().
		Str("author", timeout.Author.String()).
		Uint64("accumulated_weight", c.totalWeight).
		Msg("timeout added")

	if c.totalWeight >= c.threshold && c.done.CompareAndSwap(false, true) {
		tc := c.buildTC()
		c.log.Info().
			Uint64("weight", c.totalWeight).
			Msg("timeout certificate built")
		c.onTCCreated(tc)
	}
	return nil
}

// buildTC assembles the certificate from the contributions gathered so far,
// with signers in arrival order. Caller must hold the lock.
func (c *TimeoutCollector) buildTC() *libra.TimeoutCertificate {
	signerIDs := make(libra.IdentifierList, 0, len(c.timeouts))
	signatures := make([][]byte, 0, len(c.timeouts))
	for _, timeout := range c.timeouts {
		signerIDs = append(signerIDs, timeout.Author)
		signatures = append(signatures, timeout.Signature)
	}
	return &libra.TimeoutCertificate{
		Epoch: c.epoch,
		Round: c.round,
		Signatures: libra.AggregatedSignature{
			SignerIDs:  signerIDs,
			Signatures: signatures,
		},
	}
}
