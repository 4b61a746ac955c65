// Package eventloop serializes all consensus events onto a single
// goroutine. Inbound messages, certificate callbacks and local timeouts
// share one bounded FIFO; the loop drains it in order and feeds the
// event handler, which therefore never needs internal locking.
package eventloop

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kengeo/libra/consensus/chainedbft"
	"github.com/kengeo/libra/consensus/chainedbft/model"
	"github.com/kengeo/libra/engine"
	"github.com/kengeo/libra/engine/fifoqueue"
	"github.com/kengeo/libra/model/libra"
	"github.com/kengeo/libra/model/messages"
)

// defaultQueueCapacity bounds the pending events. Overflow drops the
// newest message; the protocol re-delivers whatever still matters.
const defaultQueueCapacity = 1000

type proposalEvent struct {
	proposal *model.Proposal
}

type voteEvent struct {
	vote *libra.Vote
}

type syncInfoEvent struct {
	syncInfo *libra.SyncInfo
	origin   libra.Identifier
}

type requestBlockEvent struct {
	req    *messages.RequestBlock
	origin libra.Identifier
}

type respondBlockEvent struct {
	resp   *messages.RespondBlock
	origin libra.Identifier
}

type localTimeoutEvent struct{}

type qcCreatedEvent struct {
	qc *libra.QuorumCert
}

type tcCreatedEvent struct {
	tc *libra.TimeoutCertificate
}

// EventLoop runs the event handler on a dedicated goroutine. Submission
// methods are safe for concurrent use and never block: over-capacity
// events are dropped.
type EventLoop struct {
	log      zerolog.Logger
	handler  chainedbft.EventHandler
	queue    *fifoqueue.FifoQueue
	notifier engine.Notifier

	startOnce sync.Once
	done      chan struct{}
	runErr    error
}

// New creates an event loop around the given handler.
func New(log zerolog.Logger, handler chainedbft.EventHandler) (*EventLoop, error) {
	queue, err := fifoqueue.NewFifoQueue(fifoqueue.WithCapacity(defaultQueueCapacity))
	if err != nil {
		return nil, fmt.Errorf("could not create event queue: %w", err)
	}
	return &EventLoop{
		log:      log.With().Str("component", "event_loop").Logger(),
		handler:  handler,
		queue:    queue,
		notifier: engine.NewNotifier(),
		done:     make(chan struct{}),
	}, nil
}

// Start launches the loop goroutine. It runs until the context is cancelled
// or the handler returns a fatal error. Subsequent calls are no-ops.
func (el *EventLoop) Start(ctx context.Context) {
	el.startOnce.Do(func() {
		go func() {
			defer close(el.done)
			el.runErr = el.run(ctx)
		}()
	})
}

// Done is closed once the loop goroutine has exited.
func (el *EventLoop) Done() <-chan struct{} {
	return el.done
}

// Err returns the fatal error that stopped the loop, if any. Only valid
// after Done is closed.
func (el *EventLoop) Err() error {
	return el.runErr
}

func (el *EventLoop) run(ctx context.Context) error {
	err := el.handler.Start()
	if err != nil {
		return fmt.Errorf("could not start event handler: %w", err)
	}

	for {
		// drain fully before sleeping, a notification may cover many events
		for {
			event, ok := el.queue.Pop()
			if !ok {
				break
			}
			err := el.dispatch(event)
			if err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-el.notifier.Channel():
		}
	}
}

func (el *EventLoop) dispatch(event interface{}) error {
	switch ev := event.(type) {
	case proposalEvent:
		return el.handler.OnReceiveProposal(ev.proposal)
	case voteEvent:
		return el.handler.OnReceiveVote(ev.vote)
	case syncInfoEvent:
		return el.handler.OnReceiveSyncInfo(ev.syncInfo, ev.origin)
	case requestBlockEvent:
		return el.handler.OnReceiveRequestBlock(ev.req, ev.origin)
	case respondBlockEvent:
		return el.handler.OnReceiveRespondBlock(ev.resp, ev.origin)
	case localTimeoutEvent:
		return el.handler.OnLocalTimeout()
	case qcCreatedEvent:
		return el.handler.OnQCCreated(ev.qc)
	case tcCreatedEvent:
		return el.handler.OnTCCreated(ev.tc)
	default:
		el.log.Error().Msgf("unknown event type %T", event)
		return nil
	}
}

func (el *EventLoop) submit(event interface{}) {
	if !el.queue.Push(event) {
		el.log.Warn().Msgf("event queue full, dropping %T", event)
		return
	}
	el.notifier.Notify()
}

// SubmitProposal queues a peer's proposal for processing.
func (el *EventLoop) SubmitProposal(proposal *model.Proposal) {
	el.submit(proposalEvent{proposal: proposal})
}

// SubmitVote queues a peer's vote for processing.
func (el *EventLoop) SubmitVote(vote *libra.Vote) {
	el.submit(voteEvent{vote: vote})
}

// SubmitSyncInfo queues a peer's state summary for processing.
func (el *EventLoop) SubmitSyncInfo(syncInfo *libra.SyncInfo, origin libra.Identifier) {
	el.submit(syncInfoEvent{syncInfo: syncInfo, origin: origin})
}

// SubmitRequestBlock queues a peer's retrieval request for processing.
func (el *EventLoop) SubmitRequestBlock(req *messages.RequestBlock, origin libra.Identifier) {
	el.submit(requestBlockEvent{req: req, origin: origin})
}

// SubmitRespondBlock queues a peer's retrieval response for processing.
func (el *EventLoop) SubmitRespondBlock(resp *messages.RespondBlock, origin libra.Identifier) {
	el.submit(respondBlockEvent{resp: resp, origin: origin})
}

// SubmitLocalTimeout queues a pacemaker timeout for the current round.
// The pacemaker tick source is external; it only needs to call this.
func (el *EventLoop) SubmitLocalTimeout() {
	el.submit(localTimeoutEvent{})
}

// OnQCCreated queues a freshly built quorum certificate. Wired as the vote
// aggregator's callback; safe to call from worker goroutines.
func (el *EventLoop) OnQCCreated(qc *libra.QuorumCert) {
	el.submit(qcCreatedEvent{qc: qc})
}

// OnTCCreated queues a freshly built timeout certificate. Wired as the
// timeout aggregator's callback.
func (el *EventLoop) OnTCCreated(tc *libra.TimeoutCertificate) {
	el.submit(tcCreatedEvent{tc: tc})
}
