package eventloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kengeo/libra/consensus/chainedbft"
	"github.com/kengeo/libra/consensus/chainedbft/model"
	"github.com/kengeo/libra/model/libra"
	"github.com/kengeo/libra/model/messages"
	"github.com/kengeo/libra/utils/unittest"
)

// recordingHandler records the sequence of handler invocations. Safe for
// concurrent inspection while the loop runs.
type recordingHandler struct {
	mu     sync.Mutex
	calls  []string
	failOn string
}

var _ chainedbft.EventHandler = (*recordingHandler)(nil)

func (h *recordingHandler) record(call string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, call)
	if call == h.failOn {
		return errors.New("handler failure")
	}
	return nil
}

func (h *recordingHandler) recorded() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.calls))
	copy(out, h.calls)
	return out
}

func (h *recordingHandler) Start() error { return h.record("start") }
func (h *recordingHandler) OnReceiveProposal(*model.Proposal) error {
	return h.record("proposal")
}
func (h *recordingHandler) OnReceiveVote(*libra.Vote) error { return h.record("vote") }
func (h *recordingHandler) OnReceiveSyncInfo(*libra.SyncInfo, libra.Identifier) error {
	return h.record("sync_info")
}
func (h *recordingHandler) OnReceiveRequestBlock(*messages.RequestBlock, libra.Identifier) error {
	return h.record("request_block")
}
func (h *recordingHandler) OnReceiveRespondBlock(*messages.RespondBlock, libra.Identifier) error {
	return h.record("respond_block")
}
func (h *recordingHandler) OnLocalTimeout() error               { return h.record("local_timeout") }
func (h *recordingHandler) OnQCCreated(*libra.QuorumCert) error { return h.record("qc_created") }
func (h *recordingHandler) OnTCCreated(*libra.TimeoutCertificate) error {
	return h.record("tc_created")
}
func (h *recordingHandler) CurrentRound() uint64 { return 0 }

// TestEventLoop_DispatchOrder verifies that submitted events reach the
// handler one at a time, in submission order, after Start ran.
func TestEventLoop_DispatchOrder(t *testing.T) {
	handler := &recordingHandler{}
	loop, err := New(unittest.Logger(), handler)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop.Start(ctx)

	genesis, rootQC := unittest.GenesisFixture(1)
	block := unittest.BlockWithParentFixture(genesis)
	loop.SubmitProposal(&model.Proposal{Block: block})
	loop.SubmitVote(unittest.VoteForBlock(block, unittest.IdentifierFixture()))
	loop.SubmitSyncInfo(unittest.SyncInfoFixture(rootQC), unittest.IdentifierFixture())
	loop.SubmitRequestBlock(&messages.RequestBlock{BlockID: block.ID(), NumBlocks: 1}, unittest.IdentifierFixture())
	loop.SubmitRespondBlock(&messages.RespondBlock{Status: messages.BlockRetrievalStatusIDNotFound}, unittest.IdentifierFixture())
	loop.SubmitLocalTimeout()
	loop.OnQCCreated(rootQC)
	loop.OnTCCreated(unittest.TimeoutCertFixture(1, 2))

	expected := []string{
		"start", "proposal", "vote", "sync_info", "request_block",
		"respond_block", "local_timeout", "qc_created", "tc_created",
	}
	require.Eventually(t, func() bool {
		return len(handler.recorded()) == len(expected)
	}, time.Second, time.Millisecond)
	require.Equal(t, expected, handler.recorded())

	cancel()
	select {
	case <-loop.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not stop on context cancellation")
	}
	require.NoError(t, loop.Err())
}

// TestEventLoop_FatalError verifies that a handler error stops the loop and
// surfaces through Err.
func TestEventLoop_FatalError(t *testing.T) {
	handler := &recordingHandler{failOn: "local_timeout"}
	loop, err := New(unittest.Logger(), handler)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop.Start(ctx)
	loop.SubmitLocalTimeout()

	select {
	case <-loop.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not stop on handler error")
	}
	require.Error(t, loop.Err())
}

func TestEventLoop_StartOnce(t *testing.T) {
	handler := &recordingHandler{}
	loop, err := New(unittest.Logger(), handler)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop.Start(ctx)
	loop.Start(ctx)

	require.Eventually(t, func() bool {
		return len(handler.recorded()) == 1
	}, time.Second, time.Millisecond)
	require.Equal(t, []string{"start"}, handler.recorded())
}
