// Package txbuilder splits instructions into signed transactions that fit a bundle.
package txbuilder

import (
	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/pkg/solana"
	"github.com/bundleminer/bundleminer/settings"
)

// ChunkSize is the most program instructions a chunk carries. The tip transfer is appended on
// top of that to the last chunk.
const ChunkSize = 5

// Chunk is the content of one transaction. Signers starts with the fee payer and lists every
// other signer once.
type Chunk struct {
	Instructions []solana.Instruction
	Signers      []*solana.Keypair
}

type Builder struct {
	feePayer *solana.Keypair
	tip      *solana.Instruction
}

// NewBuilder creates a builder paying fees from feePayer. When tipping is enabled with a
// non-zero amount, the last chunk of every bundle transfers the tip to the tip account.
func NewBuilder(feePayer *solana.Keypair, tSettings *settings.Settings) (*Builder, error) {
	if feePayer == nil {
		return nil, errors.NewConfigurationError("[Builder] fee payer is required")
	}

	b := &Builder{feePayer: feePayer}

	if tSettings.Tip.Enabled && tSettings.Tip.Lamports > 0 {
		account, err := solana.PublicKeyFromBase58(tSettings.Tip.Account)
		if err != nil {
			return nil, errors.NewConfigurationError("[Builder] invalid tip account %q", tSettings.Tip.Account, err)
		}

		tip := solana.TransferInstruction(feePayer.PublicKey(), account, tSettings.Tip.Lamports)
		b.tip = &tip
	}

	return b, nil
}

func (b *Builder) FeePayer() solana.PublicKey {
	return b.feePayer.PublicKey()
}

func (b *Builder) Tipping() bool {
	return b.tip != nil
}

// Partition groups the instructions into ceil(N/ChunkSize) chunks in order. signers[i] is the
// wallet that must sign ixs[i].
func (b *Builder) Partition(ixs []solana.Instruction, signers []*solana.Keypair) ([]Chunk, error) {
	if len(ixs) == 0 {
		return nil, errors.NewInvalidArgumentError("[Builder] no instructions to partition")
	}

	if len(ixs) != len(signers) {
		return nil, errors.NewInvalidArgumentError("[Builder] %d instructions but %d signers", len(ixs), len(signers))
	}

	for i, ix := range ixs {
		if signers[i] == nil {
			return nil, errors.NewSigningConstraintError("[Builder] instruction %d has no signer", i)
		}

		if !ix.RequiresSigner(signers[i].PublicKey()) {
			return nil, errors.NewSigningConstraintError("[Builder] instruction %d does not take %s as signer", i, signers[i].PublicKey())
		}
	}

	chunks := make([]Chunk, 0, (len(ixs)+ChunkSize-1)/ChunkSize)

	for start := 0; start < len(ixs); start += ChunkSize {
		end := min(start+ChunkSize, len(ixs))

		chunk := Chunk{
			Instructions: append([]solana.Instruction(nil), ixs[start:end]...),
			Signers:      []*solana.Keypair{b.feePayer},
		}

		seen := map[solana.PublicKey]struct{}{b.feePayer.PublicKey(): {}}

		for _, kp := range signers[start:end] {
			if _, ok := seen[kp.PublicKey()]; ok {
				continue
			}

			seen[kp.PublicKey()] = struct{}{}
			chunk.Signers = append(chunk.Signers, kp)
		}

		chunks = append(chunks, chunk)
	}

	if b.tip != nil {
		last := &chunks[len(chunks)-1]
		last.Instructions = append(last.Instructions, *b.tip)
	}

	return chunks, nil
}

// Build compiles and signs every chunk against the same blockhash.
func (b *Builder) Build(chunks []Chunk, blockhash solana.Hash) ([]*solana.Transaction, error) {
	txs := make([]*solana.Transaction, 0, len(chunks))

	for i, chunk := range chunks {
		tx, err := solana.NewTransaction(chunk.Instructions, blockhash, b.feePayer.PublicKey())
		if err != nil {
			return nil, errors.NewSigningConstraintError("[Builder] failed to compile chunk %d", i, err)
		}

		if err = tx.Sign(chunk.Signers...); err != nil {
			return nil, errors.NewSigningConstraintError("[Builder] failed to sign chunk %d", i, err)
		}

		size, err := tx.Size()
		if err != nil {
			return nil, errors.NewSigningConstraintError("[Builder] failed to encode chunk %d", i, err)
		}

		if size > solana.MaxTransactionSize {
			return nil, errors.NewSigningConstraintError("[Builder] chunk %d is %d bytes, limit is %d", i, size, solana.MaxTransactionSize)
		}

		txs = append(txs, tx)
	}

	return txs, nil
}

// Bundle partitions and builds in one step.
func (b *Builder) Bundle(ixs []solana.Instruction, signers []*solana.Keypair, blockhash solana.Hash) ([]*solana.Transaction, error) {
	chunks, err := b.Partition(ixs, signers)
	if err != nil {
		return nil, err
	}

	return b.Build(chunks, blockhash)
}
