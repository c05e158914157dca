package solana

import (
	"encoding/binary"
)

type AccountMeta struct {
	PublicKey  PublicKey
	IsSigner   bool
	IsWritable bool
}

func NewAccountMeta(pk PublicKey, isSigner, isWritable bool) AccountMeta {
	return AccountMeta{PublicKey: pk, IsSigner: isSigner, IsWritable: isWritable}
}

type Instruction struct {
	ProgramID PublicKey
	Accounts  []AccountMeta
	Data      []byte
}

// Signers returns the accounts the instruction requires signatures from, in order.
func (ix Instruction) Signers() []PublicKey {
	var signers []PublicKey

	for _, meta := range ix.Accounts {
		if meta.IsSigner {
			signers = append(signers, meta.PublicKey)
		}
	}

	return signers
}

// RequiresSigner reports whether pk must sign for this instruction.
func (ix Instruction) RequiresSigner(pk PublicKey) bool {
	for _, meta := range ix.Accounts {
		if meta.IsSigner && meta.PublicKey == pk {
			return true
		}
	}

	return false
}

const systemTransferIndex = 2

// TransferInstruction moves lamports between system accounts.
func TransferInstruction(from, to PublicKey, lamports uint64) Instruction {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], systemTransferIndex)
	binary.LittleEndian.PutUint64(data[4:12], lamports)

	return Instruction{
		ProgramID: SystemProgramID,
		Accounts: []AccountMeta{
			NewAccountMeta(from, true, true),
			NewAccountMeta(to, false, true),
		},
		Data: data,
	}
}
