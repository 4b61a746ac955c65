// Package eventhandler implements the single-threaded core of the consensus
// engine. All methods must be called from the same goroutine (the event
// loop); the handler itself holds no locks and mutates the block tree,
// safety rules and round state directly.
package eventhandler

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/kengeo/libra/chainsync"
	"github.com/kengeo/libra/consensus/chainedbft"
	"github.com/kengeo/libra/consensus/chainedbft/model"
	"github.com/kengeo/libra/model/libra"
	"github.com/kengeo/libra/model/messages"
)

// maxBufferedOrphans bounds the blocks parked while their parent is being
// retrieved. Beyond the bound the oldest entries are dropped; sync will
// deliver them again if they still matter.
const maxBufferedOrphans = 64

// Option customizes an EventHandler.
type Option func(*EventHandler)

// WithCommitConsumer registers a callback invoked for every committed block,
// in commit order. The callback runs on the event loop goroutine and must
// not block.
func WithCommitConsumer(consumer func(*libra.Block)) Option {
	return func(e *EventHandler) {
		e.onCommittedBlock = consumer
	}
}

// EventHandler reacts to consensus events: proposals, votes, certificates,
// timeouts and sync messages. Not safe for concurrent use; the event loop
// serializes all calls.
type EventHandler struct {
	log   zerolog.Logger
	epoch uint64

	committee         chainedbft.Committee
	election          chainedbft.ProposerElection
	safetyRules       chainedbft.SafetyRules
	blockTree         chainedbft.BlockTree
	producer          chainedbft.BlockProducer
	voteAggregator    chainedbft.VoteAggregator
	timeoutAggregator chainedbft.TimeoutAggregator
	verifier          chainedbft.Verifier
	syncCore          *chainsync.Core
	syncProvider      *chainsync.Provider
	communicator      chainedbft.Communicator
	metrics           chainedbft.Metrics
	violations        chainedbft.ViolationConsumer

	currentRound     uint64
	lastVote         *libra.Vote
	onCommittedBlock func(*libra.Block)

	// blocks whose parent is missing, keyed by the missing parent ID
	orphans     map[libra.Identifier][]*libra.Block
	orphanCount int
}

// New creates an event handler. The starting round is derived from the
// highest certificate in the block tree.
func New(
	log zerolog.Logger,
	epoch uint64,
	committee chainedbft.Committee,
	election chainedbft.ProposerElection,
	safetyRules chainedbft.SafetyRules,
	blockTree chainedbft.BlockTree,
	producer chainedbft.BlockProducer,
	voteAggregator chainedbft.VoteAggregator,
	timeoutAggregator chainedbft.TimeoutAggregator,
	verifier chainedbft.Verifier,
	syncCore *chainsync.Core,
	syncProvider *chainsync.Provider,
	communicator chainedbft.Communicator,
	metrics chainedbft.Metrics,
	violations chainedbft.ViolationConsumer,
	opts ...Option,
) *EventHandler {
	e := &EventHandler{
		log:               log.With().Str("component", "event_handler").Uint64("epoch", epoch).Logger(),
		epoch:             epoch,
		committee:         committee,
		election:          election,
		safetyRules:       safetyRules,
		blockTree:         blockTree,
		producer:          producer,
		voteAggregator:    voteAggregator,
		timeoutAggregator: timeoutAggregator,
		verifier:          verifier,
		syncCore:          syncCore,
		syncProvider:      syncProvider,
		communicator:      communicator,
		metrics:           metrics,
		violations:        violations,
		currentRound:      blockTree.HighestQuorumCert().Round() + 1,
		orphans:           make(map[libra.Identifier][]*libra.Block),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CurrentRound returns the round the replica currently operates in.
func (e *EventHandler) CurrentRound() uint64 {
	return e.currentRound
}

// Start enters the current round: announces it on the metrics and, if the
// replica leads it, broadcasts a proposal.
func (e *EventHandler) Start() error {
	e.metrics.SetCurrentRound(e.currentRound)
	e.log.Info().Uint64("cur_round", e.currentRound).Msg("starting event handler")
	return e.proposeIfLeader()
}

// OnReceiveProposal processes a leader's proposal: adopts the certificates
// of the embedded summary, validates and inserts the block, and votes if
// the safety rules allow. Errors returned are fatal; all expected failure
// modes are handled internally.
func (e *EventHandler) OnReceiveProposal(proposal *model.Proposal) error {
	block := proposal.Block
	log := e.log.With().
		Uint64("round", block.Round).
		Str("block_id", block.ID().String()).
		Str("author", block.Author.String()).
		Logger()

	// certificates in the embedded summary may advance our state even when
	// the block itself turns out stale or invalid
	err := e.processSyncInfo(proposal.SyncInfo, block.Author)
	if err != nil {
		return fmt.Errorf("could not process proposal sync info: %w", err)
	}

	if block.Epoch != e.epoch {
		log.Debug().Msg("dropping proposal for different epoch")
		return nil
	}
	if block.Round < e.currentRound {
		log.Debug().Uint64("cur_round", e.currentRound).Msg("dropping stale proposal")
		return nil
	}
	if err := block.CheckWellFormed(); err != nil {
		e.violations.OnInvalidContribution(model.InvalidBlockError{BlockID: block.ID(), Round: block.Round, Err: err})
		return nil
	}
	if leader := e.election.LeaderForRound(block.Epoch, block.Round); leader != block.Author {
		e.violations.OnInvalidContribution(model.InvalidBlockError{
			BlockID: block.ID(),
			Round:   block.Round,
			Err:     fmt.Errorf("author is not the round leader (%v)", leader),
		})
		return nil
	}
	err = e.verifier.VerifyBlock(block)
	if errors.Is(err, model.ErrInvalidSignature) || model.IsInvalidSignerError(err) {
		e.violations.OnInvalidContribution(model.InvalidBlockError{BlockID: block.ID(), Round: block.Round, Err: err})
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not verify proposal: %w", err)
	}

	inserted, err := e.insertBlock(block, block.Author)
	if err != nil {
		return err
	}
	if !inserted {
		return nil
	}

	if block.Round == e.currentRound {
		err = e.tryVote(proposal)
		if err != nil {
			return err
		}
	}
	return e.processCertificates()
}

// OnReceiveVote feeds a peer's vote into the aggregation pipeline and
// opportunistically derives timeout evidence from its round signature.
func (e *EventHandler) OnReceiveVote(vote *libra.Vote) error {
	err := e.processSyncInfo(&vote.SyncInfo, vote.Author)
	if err != nil {
		return fmt.Errorf("could not process vote sync info: %w", err)
	}
	if vote.Epoch() != e.epoch {
		e.log.Debug().Uint64("round", vote.Round()).Msg("dropping vote for different epoch")
		return nil
	}

	e.voteAggregator.AddVote(vote)
	if timeout, ok := model.TimeoutFromVote(vote); ok {
		e.timeoutAggregator.AddTimeout(timeout)
	}
	return nil
}

// OnQCCreated processes a quorum certificate emitted by the vote
// aggregator: records the certification, applies the commit rule and
// advances the round.
func (e *EventHandler) OnQCCreated(qc *libra.QuorumCert) error {
	e.metrics.QCBuilt()
	committed, err := e.blockTree.ProcessCertificate(qc)
	switch {
	case model.IsOrphanBlockError(err):
		e.requestMissing(qc.CertifiedBlockID(), qc.Round(), libra.ZeroID)
		return nil
	case model.IsStaleMessageError(err):
		return nil
	case err != nil:
		return fmt.Errorf("could not process quorum certificate: %w", err)
	}
	e.afterCommits(committed)
	return e.processCertificates()
}

// OnTCCreated processes a timeout certificate emitted by the timeout
// aggregator: records it, advances the round and advertises it so lagging
// peers advance too.
func (e *EventHandler) OnTCCreated(tc *libra.TimeoutCertificate) error {
	e.metrics.TCBuilt()
	e.syncCore.NoteTimeoutCert(tc)
	err := e.communicator.BroadcastSyncInfo(e.syncCore.Summary())
	if err != nil {
		e.log.Err(err).Msg("could not broadcast sync info")
	}
	return e.processCertificates()
}

// OnLocalTimeout gives up on the current round: produces timeout evidence,
// feeds it to the local aggregator and disseminates it. The round only
// advances once a timeout or quorum certificate forms.
func (e *EventHandler) OnLocalTimeout() error {
	timeout, err := e.safetyRules.ProduceTimeout(e.currentRound)
	if model.IsStaleProposalError(err) {
		e.log.Debug().Uint64("cur_round", e.currentRound).Msg("timeout for already superseded round")
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not produce timeout for round %d: %w", e.currentRound, err)
	}
	e.log.Info().Uint64("cur_round", e.currentRound).Msg("local timeout")

	e.timeoutAggregator.AddTimeout(timeout)

	// our vote's round signature doubles as timeout evidence for peers
	if e.lastVote != nil && e.lastVote.Round() == e.currentRound {
		err = e.communicator.SendVote(e.lastVote)
		if err != nil {
			e.log.Err(err).Msg("could not re-send vote as timeout evidence")
		}
	}
	err = e.communicator.BroadcastSyncInfo(e.syncCore.Summary())
	if err != nil {
		e.log.Err(err).Msg("could not broadcast sync info")
	}
	return nil
}

// OnReceiveSyncInfo processes a peer's state summary.
func (e *EventHandler) OnReceiveSyncInfo(syncInfo *libra.SyncInfo, origin libra.Identifier) error {
	return e.processSyncInfo(syncInfo, origin)
}

// OnReceiveRequestBlock serves a peer's block retrieval request.
func (e *EventHandler) OnReceiveRequestBlock(req *messages.RequestBlock, origin libra.Identifier) error {
	resp := e.syncProvider.HandleRequestBlock(req)
	err := e.communicator.SendRespondBlock(resp, origin)
	if err != nil {
		e.log.Err(err).Str("peer", origin.String()).Msg("could not send block response")
	}
	return nil
}

// OnReceiveRespondBlock processes a block retrieval response: inserts the
// retrieved chain ancestor-first and follows up on any remaining gap.
func (e *EventHandler) OnReceiveRespondBlock(resp *messages.RespondBlock, origin libra.Identifier) error {
	blocks, retry, err := e.syncCore.HandleRespondBlock(resp)
	if model.IsStaleMessageError(err) {
		return nil
	}
	if model.IsSyncStallError(err) {
		e.metrics.SyncStalled()
		e.log.Warn().Err(err).Msg("sync stalled, awaiting next summary exchange")
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not handle block response: %w", err)
	}
	if retry != nil {
		// retry on an alternate peer, leaving the choice to the router
		e.sendRequestBlock(retry, libra.ZeroID)
		return nil
	}

	// responses are ordered child to ancestor; insertion goes the other way
	var insertErrs *multierror.Error
	for i := len(blocks) - 1; i >= 0; i-- {
		block := blocks[i]
		if block.Epoch != e.epoch {
			continue
		}
		if err := block.CheckWellFormed(); err != nil {
			e.violations.OnInvalidContribution(model.InvalidBlockError{BlockID: block.ID(), Round: block.Round, Err: err})
			break
		}
		if i == len(blocks)-1 {
			if _, present := e.blockTree.GetBlock(block.ParentID()); !present {
				// the retrieved range still hangs in the air; go deeper
				e.requestMissing(block.ParentID(), block.Round, origin)
				e.bufferOrphan(block)
				continue
			}
		}
		_, err := e.insertBlock(block, origin)
		if err != nil {
			insertErrs = multierror.Append(insertErrs, err)
		}
	}
	if err := insertErrs.ErrorOrNil(); err != nil {
		return fmt.Errorf("could not insert retrieved blocks: %w", err)
	}
	return e.processCertificates()
}

// insertBlock inserts a block into the tree, handling the expected failure
// modes: orphans are buffered and their parent requested from the given
// peer, stale and duplicate blocks are dropped. Returns whether the block
// (and any buffered descendants) ended up in the tree.
func (e *EventHandler) insertBlock(block *libra.Block, origin libra.Identifier) (bool, error) {
	committed, err := e.blockTree.Insert(block)
	switch {
	case model.IsOrphanBlockError(err):
		e.bufferOrphan(block)
		e.requestMissing(block.ParentID(), block.Round, origin)
		return false, nil
	case model.IsStaleMessageError(err):
		return false, nil
	case model.IsInvalidBlockError(err):
		e.violations.OnInvalidContribution(err)
		return false, nil
	case err != nil:
		return false, fmt.Errorf("could not insert block %v: %w", block.ID(), err)
	}

	e.afterCommits(committed)
	err = e.retryOrphans(block.ID())
	if err != nil {
		return true, err
	}
	return true, nil
}

// tryVote asks the safety rules for a vote on the proposal and sends it to
// the next round's leader.
func (e *EventHandler) tryVote(proposal *model.Proposal) error {
	vote, err := e.safetyRules.ProduceVote(proposal, e.currentRound)
	switch {
	case model.IsStaleProposalError(err):
		e.log.Debug().Uint64("round", proposal.Block.Round).Msg("proposal round already voted or timed out")
		return nil
	case model.IsNoVoteError(err):
		e.log.Debug().Uint64("round", proposal.Block.Round).Err(err).Msg("not safe to vote")
		return nil
	case err != nil:
		return fmt.Errorf("could not produce vote: %w", err)
	}
	vote.SyncInfo = *e.syncCore.Summary()
	e.lastVote = vote

	nextLeader := e.election.LeaderForRound(e.epoch, vote.Round()+1)
	if nextLeader == e.committee.Self() {
		e.voteAggregator.AddVote(vote)
		return nil
	}
	err = e.communicator.SendVote(vote)
	if err != nil {
		e.log.Err(err).Uint64("round", vote.Round()).Msg("could not send vote")
	}
	return nil
}

// processSyncInfo adopts the certificates of a summary after verification
// and triggers retrieval when the peer is ahead of us.
func (e *EventHandler) processSyncInfo(syncInfo *libra.SyncInfo, origin libra.Identifier) error {
	if syncInfo == nil {
		return nil
	}

	certs := []*libra.QuorumCert{syncInfo.HighestQuorumCert}
	if cc := syncInfo.HighestCommitCert; cc != nil &&
		(syncInfo.HighestQuorumCert == nil || cc.Round() != syncInfo.HighestQuorumCert.Round()) {
		certs = append(certs, cc)
	}
	for _, qc := range certs {
		if qc == nil || qc.Round() <= e.blockTree.HighestQuorumCert().Round() {
			continue
		}
		if err := qc.CheckWellFormed(); err != nil {
			e.violations.OnInvalidContribution(fmt.Errorf("malformed quorum cert in sync info: %w", err))
			return nil
		}
		if sig := &qc.SignedLedgerInfo.Signatures; sig.CardinalitySignerSet() != len(sig.SignerIDs) {
			e.violations.OnInvalidContribution(model.NewDuplicatedSignerErrorf(
				"quorum cert for round %d lists a signer more than once", qc.Round()))
			return nil
		}
		err := e.verifier.VerifyQC(qc)
		if errors.Is(err, model.ErrInvalidSignature) || model.IsInvalidSignerError(err) || model.IsInsufficientSignaturesError(err) {
			e.violations.OnInvalidContribution(fmt.Errorf("invalid quorum cert in sync info: %w", err))
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not verify quorum cert: %w", err)
		}

		committed, err := e.blockTree.ProcessCertificate(qc)
		switch {
		case model.IsOrphanBlockError(err):
			e.requestMissing(qc.CertifiedBlockID(), qc.Round(), origin)
		case model.IsStaleMessageError(err):
			// raced with our own progress
		case err != nil:
			return fmt.Errorf("could not process quorum cert from sync info: %w", err)
		default:
			e.afterCommits(committed)
		}
	}

	if tc := syncInfo.HighestTimeoutCert; tc != nil && tc.Round > e.syncCore.Summary().HighestTimeoutRound() {
		if sig := &tc.Signatures; sig.CardinalitySignerSet() != len(sig.SignerIDs) {
			e.violations.OnInvalidContribution(model.NewDuplicatedSignerErrorf(
				"timeout cert for round %d lists a signer more than once", tc.Round))
			return nil
		}
		err := e.verifier.VerifyTC(tc)
		if errors.Is(err, model.ErrInvalidSignature) || model.IsInvalidSignerError(err) || model.IsInsufficientSignaturesError(err) {
			e.violations.OnInvalidContribution(fmt.Errorf("invalid timeout cert in sync info: %w", err))
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not verify timeout cert: %w", err)
		}
		e.syncCore.NoteTimeoutCert(tc)
	}

	if req := e.syncCore.HandleSyncInfo(syncInfo); req != nil {
		e.sendRequestBlock(req, origin)
	}
	return e.processCertificates()
}

// processCertificates advances the current round to one above the highest
// certificate (quorum or timeout) and, on advancement, proposes if we lead
// the new round.
func (e *EventHandler) processCertificates() error {
	newRound := e.blockTree.HighestQuorumCert().Round() + 1
	if tcRound := e.syncCore.Summary().HighestTimeoutRound(); tcRound+1 > newRound {
		newRound = tcRound + 1
	}
	if newRound <= e.currentRound {
		return nil
	}

	e.currentRound = newRound
	e.metrics.SetCurrentRound(newRound)
	e.log.Info().Uint64("cur_round", newRound).Msg("entering round")
	return e.proposeIfLeader()
}

// proposeIfLeader builds and broadcasts a proposal when the replica leads
// the current round, then processes it locally like any other proposal.
func (e *EventHandler) proposeIfLeader() error {
	if e.election.LeaderForRound(e.epoch, e.currentRound) != e.committee.Self() {
		return nil
	}

	highestQC := e.blockTree.HighestQuorumCert()
	block, err := e.producer.MakeBlockProposal(e.epoch, e.currentRound, highestQC)
	if err != nil {
		return fmt.Errorf("could not produce proposal for round %d: %w", e.currentRound, err)
	}
	summary := e.syncCore.Summary()
	err = e.communicator.BroadcastProposal(&messages.Proposal{
		ProposedBlock: *block,
		SyncInfo:      *summary,
	})
	if err != nil {
		e.log.Err(err).Uint64("round", block.Round).Msg("could not broadcast proposal")
	}

	// process our own proposal through the regular path so we insert and
	// vote exactly like the other replicas
	return e.OnReceiveProposal(&model.Proposal{Block: block, SyncInfo: summary})
}

// afterCommits publishes newly committed blocks and garbage collects state
// below the new root.
func (e *EventHandler) afterCommits(committed []*libra.Block) {
	if len(committed) == 0 {
		return
	}
	for _, block := range committed {
		e.metrics.BlockCommitted()
		e.log.Info().
			Uint64("round", block.Round).
			Str("block_id", block.ID().String()).
			Msg("block committed")
		if e.onCommittedBlock != nil {
			e.onCommittedBlock(block)
		}
	}

	committedRound := e.blockTree.CommittedRound()
	e.metrics.SetCommittedRound(committedRound)
	e.voteAggregator.PruneUpToRound(committedRound)
	e.timeoutAggregator.PruneUpToRound(committedRound)
	e.pruneOrphans(committedRound)
}

// requestMissing emits a retrieval request for the given block towards the
// given peer (zero peer lets the router choose).
func (e *EventHandler) requestMissing(blockID libra.Identifier, round uint64, peer libra.Identifier) {
	numBlocks := uint64(1)
	if round > e.blockTree.CommittedRound() {
		numBlocks = round - e.blockTree.CommittedRound()
	}
	req := e.syncCore.RequestBlock(blockID, numBlocks)
	if req == nil {
		return
	}
	e.sendRequestBlock(req, peer)
}

func (e *EventHandler) sendRequestBlock(req *messages.RequestBlock, peer libra.Identifier) {
	e.metrics.BlockRequested()
	err := e.communicator.SendRequestBlock(req, peer)
	if err != nil {
		e.log.Err(err).Str("block_id", req.BlockID.String()).Msg("could not send block request")
	}
}

// bufferOrphan parks a block until its missing parent arrives. The buffer
// is bounded; over the bound the block is dropped and will be re-delivered
// by sync if still relevant.
func (e *EventHandler) bufferOrphan(block *libra.Block) {
	if e.orphanCount >= maxBufferedOrphans {
		e.log.Debug().Str("block_id", block.ID().String()).Msg("orphan buffer full, dropping block")
		return
	}
	parentID := block.ParentID()
	for _, buffered := range e.orphans[parentID] {
		if buffered.ID() == block.ID() {
			return
		}
	}
	e.orphans[parentID] = append(e.orphans[parentID], block)
	e.orphanCount++
}

// retryOrphans re-inserts the blocks that were waiting for the given parent.
func (e *EventHandler) retryOrphans(parentID libra.Identifier) error {
	waiting, ok := e.orphans[parentID]
	if !ok {
		return nil
	}
	delete(e.orphans, parentID)
	e.orphanCount -= len(waiting)

	for _, block := range waiting {
		_, err := e.insertBlock(block, libra.ZeroID)
		if err != nil {
			return err
		}
	}
	return nil
}

// pruneOrphans drops buffered orphans at or below the committed round.
func (e *EventHandler) pruneOrphans(committedRound uint64) {
	for parentID, waiting := range e.orphans {
		kept := waiting[:0]
		for _, block := range waiting {
			if block.Round > committedRound {
				kept = append(kept, block)
			} else {
				e.orphanCount--
			}
		}
		if len(kept) == 0 {
			delete(e.orphans, parentID)
		} else {
			e.orphans[parentID] = kept
		}
	}
}
