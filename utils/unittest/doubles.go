package unittest

import (
	"sync"

	"github.com/kengeo/libra/consensus/chainedbft"
	"github.com/kengeo/libra/consensus/chainedbft/model"
	"github.com/kengeo/libra/model/libra"
)

// FakeSigner produces structurally valid signatures without any key
// material. Pair it with PassingVerifier.
type FakeSigner struct {
	Self libra.Identifier
}

var _ chainedbft.Signer = (*FakeSigner)(nil)

func (s *FakeSigner) SignVote(voteData libra.VoteData, ledgerInfo libra.LedgerInfo) (*libra.Vote, error) {
	return &libra.Vote{
		VoteData:       voteData,
		Author:         s.Self,
		LedgerInfo:     ledgerInfo,
		Signature:      SignatureFixture(),
		RoundSignature: SignatureFixture(),
	}, nil
}

func (s *FakeSigner) SignTimeout(epoch uint64, round uint64) (*model.TimeoutObject, error) {
	return &model.TimeoutObject{
		Epoch:     epoch,
		Round:     round,
		Author:    s.Self,
		Signature: SignatureFixture(),
	}, nil
}

func (s *FakeSigner) SignBlock(block *libra.Block) error {
	block.Author = s.Self
	block.Signature = SignatureFixture()
	return nil
}

// PassingVerifier accepts every signature.
type PassingVerifier struct{}

var _ chainedbft.Verifier = (*PassingVerifier)(nil)

func (PassingVerifier) VerifyVote(*libra.Vote) error             { return nil }
func (PassingVerifier) VerifyTimeout(*model.TimeoutObject) error { return nil }
func (PassingVerifier) VerifyBlock(*libra.Block) error           { return nil }
func (PassingVerifier) VerifyQC(*libra.QuorumCert) error         { return nil }
func (PassingVerifier) VerifyTC(*libra.TimeoutCertificate) error { return nil }

// FailingVerifier rejects every signature with the configured error.
type FailingVerifier struct {
	Err error
}

var _ chainedbft.Verifier = (*FailingVerifier)(nil)

func (v FailingVerifier) VerifyVote(*libra.Vote) error             { return v.Err }
func (v FailingVerifier) VerifyTimeout(*model.TimeoutObject) error { return v.Err }
func (v FailingVerifier) VerifyBlock(*libra.Block) error           { return v.Err }
func (v FailingVerifier) VerifyQC(*libra.QuorumCert) error         { return v.Err }
func (v FailingVerifier) VerifyTC(*libra.TimeoutCertificate) error { return v.Err }

// FakeComputer returns the fixture executed-state derivation, so votes from
// independent replicas agree in tests.
type FakeComputer struct{}

var _ chainedbft.StateComputer = (*FakeComputer)(nil)

func (FakeComputer) Compute(block *libra.Block) (libra.Identifier, uint64, error) {
	stateID, version := ExecutedState(block)
	return stateID, version, nil
}

// CollectingConsumer records reported violations for assertions. Safe for
// concurrent use.
type CollectingConsumer struct {
	mu          sync.Mutex
	DoubleVotes [][2]*libra.Vote
	Invalid     []error
}

var _ chainedbft.ViolationConsumer = (*CollectingConsumer)(nil)

func (c *CollectingConsumer) OnDoubleVoteDetected(first *libra.Vote, conflicting *libra.Vote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DoubleVotes = append(c.DoubleVotes, [2]*libra.Vote{first, conflicting})
}

func (c *CollectingConsumer) OnInvalidContribution(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Invalid = append(c.Invalid, err)
}

// DoubleVoteCount returns the number of double votes reported so far.
func (c *CollectingConsumer) DoubleVoteCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.DoubleVotes)
}

// InvalidCount returns the number of invalid contributions reported so far.
func (c *CollectingConsumer) InvalidCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Invalid)
}
