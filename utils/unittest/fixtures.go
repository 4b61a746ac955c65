// Package unittest provides test fixtures and collaborator doubles for the
// consensus engine.
package unittest

import (
	"crypto/rand"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kengeo/libra/consensus/chainedbft/model"
	"github.com/kengeo/libra/model/libra"
)

// Logger returns a silenced logger for tests.
func Logger() zerolog.Logger {
	return zerolog.Nop()
}

// IdentifierFixture returns a random identifier.
func IdentifierFixture() libra.Identifier {
	var id libra.Identifier
	_, err := rand.Read(id[:])
	if err != nil {
		panic(fmt.Sprintf("could not read random bytes: %v", err))
	}
	return id
}

// IdentifierListFixture returns n random identifiers.
func IdentifierListFixture(n int) libra.IdentifierList {
	ids := make(libra.IdentifierList, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, IdentifierFixture())
	}
	return ids
}

// SignatureFixture returns random bytes shaped like a signature.
func SignatureFixture() []byte {
	sig := make([]byte, 48)
	_, err := rand.Read(sig)
	if err != nil {
		panic(fmt.Sprintf("could not read random bytes: %v", err))
	}
	return sig
}

// ExecutedState derives a deterministic executed-state digest and ledger
// version for a block. All fixtures and doubles share this derivation, so
// votes and certificates built independently for the same block agree.
func ExecutedState(block *libra.Block) (libra.Identifier, uint64) {
	blockID := block.ID()
	return libra.HashToID(append([]byte("executed"), blockID[:]...)), block.Round
}

// GenesisFixture returns a root block for the given epoch together with the
// certificate proving it. The pair anchors a block tree in tests.
func GenesisFixture(epoch uint64) (*libra.Block, *libra.QuorumCert) {
	genesis := &libra.Block{
		Payload: []byte("genesis"),
		Epoch:   epoch,
		Round:   1,
		QuorumCert: libra.QuorumCert{
			VoteData: libra.VoteData{
				Proposed: libra.BlockInfo{Epoch: epoch, Round: 0},
				Parent:   libra.BlockInfo{Epoch: epoch, Round: 0},
			},
		},
		Author:    IdentifierFixture(),
		Signature: SignatureFixture(),
	}
	return genesis, CertifyingQC(genesis)
}

// CertifyingQC builds a well-formed quorum certificate for the given block,
// signed by three arbitrary validators.
func CertifyingQC(block *libra.Block) *libra.QuorumCert {
	stateID, version := ExecutedState(block)
	voteData := libra.VoteData{
		Proposed: block.BlockInfo(stateID, version),
		Parent:   block.QuorumCert.VoteData.Proposed,
	}
	signers := IdentifierListFixture(3)
	return &libra.QuorumCert{
		VoteData: voteData,
		SignedLedgerInfo: libra.LedgerInfoWithSignatures{
			LedgerInfo: libra.LedgerInfo{
				CommitInfo:        block.QuorumCert.VoteData.Parent,
				ConsensusDataHash: voteData.ID(),
			},
			Signatures: libra.AggregatedSignature{
				SignerIDs:  signers,
				Signatures: [][]byte{SignatureFixture(), SignatureFixture(), SignatureFixture()},
			},
		},
	}
}

// BlockWithParentFixture builds a block extending the given parent,
// carrying a certificate for it.
func BlockWithParentFixture(parent *libra.Block, opts ...func(*libra.Block)) *libra.Block {
	block := &libra.Block{
		Payload:        []byte("payload"),
		Epoch:          parent.Epoch,
		Round:          parent.Round + 1,
		TimestampUsecs: 1_600_000_000_000_000 + parent.Round*1_000_000,
		QuorumCert:     *CertifyingQC(parent),
		Author:         IdentifierFixture(),
		Signature:      SignatureFixture(),
	}
	for _, opt := range opts {
		opt(block)
	}
	return block
}

// WithBlockRound overrides the round of a block fixture. The round must
// stay above the certified parent round for the block to remain well
// formed.
func WithBlockRound(round uint64) func(*libra.Block) {
	return func(block *libra.Block) {
		block.Round = round
	}
}

// WithBlockAuthor overrides the author of a block fixture.
func WithBlockAuthor(author libra.Identifier) func(*libra.Block) {
	return func(block *libra.Block) {
		block.Author = author
	}
}

// ChainFixture builds a linear chain of n blocks descending from the given
// parent, ordered parent-first.
func ChainFixture(parent *libra.Block, n int) []*libra.Block {
	chain := make([]*libra.Block, 0, n)
	for i := 0; i < n; i++ {
		block := BlockWithParentFixture(parent)
		chain = append(chain, block)
		parent = block
	}
	return chain
}

// VoteDataForBlock derives the vote data all honest voters produce for the
// block.
func VoteDataForBlock(block *libra.Block) libra.VoteData {
	stateID, version := ExecutedState(block)
	return libra.VoteData{
		Proposed: block.BlockInfo(stateID, version),
		Parent:   block.QuorumCert.VoteData.Proposed,
	}
}

// VoteForBlock builds a well-formed vote of the given author for the block.
func VoteForBlock(block *libra.Block, author libra.Identifier, opts ...func(*libra.Vote)) *libra.Vote {
	voteData := VoteDataForBlock(block)
	vote := &libra.Vote{
		VoteData: voteData,
		Author:   author,
		LedgerInfo: libra.LedgerInfo{
			CommitInfo:        block.QuorumCert.VoteData.Parent,
			ConsensusDataHash: voteData.ID(),
		},
		Signature:      SignatureFixture(),
		RoundSignature: SignatureFixture(),
	}
	for _, opt := range opts {
		opt(vote)
	}
	return vote
}

// WithoutRoundSignature strips the opportunistic timeout evidence from a
// vote fixture.
func WithoutRoundSignature() func(*libra.Vote) {
	return func(vote *libra.Vote) {
		vote.RoundSignature = nil
	}
}

// TimeoutObjectFixture builds timeout evidence of the given author for the
// given round.
func TimeoutObjectFixture(epoch uint64, round uint64, author libra.Identifier) *model.TimeoutObject {
	return &model.TimeoutObject{
		Epoch:     epoch,
		Round:     round,
		Author:    author,
		Signature: SignatureFixture(),
	}
}

// EqualWeights assigns weight 1 to each of the given participants.
func EqualWeights(participants libra.IdentifierList) map[libra.Identifier]uint64 {
	weights := make(map[libra.Identifier]uint64, len(participants))
	for _, id := range participants {
		weights[id] = 1
	}
	return weights
}

// SyncInfoFixture builds a summary advertising the given certificate.
func SyncInfoFixture(highestQC *libra.QuorumCert, opts ...func(*libra.SyncInfo)) *libra.SyncInfo {
	syncInfo := &libra.SyncInfo{
		HighestQuorumCert: highestQC,
		HighestCommitCert: highestQC,
	}
	for _, opt := range opts {
		opt(syncInfo)
	}
	return syncInfo
}

// WithTimeoutCert attaches a timeout certificate to a summary fixture.
func WithTimeoutCert(tc *libra.TimeoutCertificate) func(*libra.SyncInfo) {
	return func(syncInfo *libra.SyncInfo) {
		syncInfo.HighestTimeoutCert = tc
	}
}

// TimeoutCertFixture builds a timeout certificate for the given round,
// signed by three arbitrary validators.
func TimeoutCertFixture(epoch uint64, round uint64) *libra.TimeoutCertificate {
	return &libra.TimeoutCertificate{
		Epoch: epoch,
		Round: round,
		Signatures: libra.AggregatedSignature{
			SignerIDs:  IdentifierListFixture(3),
			Signatures: [][]byte{SignatureFixture(), SignatureFixture(), SignatureFixture()},
		},
	}
}
