// Package ore builds the mining program's instructions and decodes its accounts.
package ore

import (
	"encoding/binary"

	"github.com/bundleminer/bundleminer/pkg/solana"
)

const (
	BusCount = 8

	instructionReset    = 0
	instructionRegister = 1
	instructionMine     = 2
)

var (
	ProgramID = solana.MustPublicKeyFromBase58("mineRHF5r6S7HyD9SppBfVMXMavDkJsxwGesEvxZr2A")
	MintID    = solana.MustPublicKeyFromBase58("oreoN2tQbHXVaZsr3pf66A48miqcBXCDJozganhEJgz")

	seedBus      = []byte("bus")
	seedProof    = []byte("proof")
	seedTreasury = []byte("treasury")
)

var (
	treasuryAddress solana.PublicKey
	treasuryTokens  solana.PublicKey
	busAddresses    [BusCount]solana.PublicKey
)

func init() {
	var err error

	if treasuryAddress, _, err = solana.FindProgramAddress([][]byte{seedTreasury}, ProgramID); err != nil {
		panic(err)
	}

	if treasuryTokens, err = solana.FindAssociatedTokenAddress(treasuryAddress, MintID); err != nil {
		panic(err)
	}

	for i := range busAddresses {
		if busAddresses[i], _, err = solana.FindProgramAddress([][]byte{seedBus, {byte(i)}}, ProgramID); err != nil {
			panic(err)
		}
	}
}

func TreasuryAddress() solana.PublicKey {
	return treasuryAddress
}

// TreasuryTokenAddress is the treasury's token account for the mint.
func TreasuryTokenAddress() solana.PublicKey {
	return treasuryTokens
}

// BusAddress returns the address of bus id. It panics for ids outside [0, BusCount).
func BusAddress(id uint64) solana.PublicKey {
	return busAddresses[id]
}

func BusAddresses() []solana.PublicKey {
	return busAddresses[:]
}

func ProofAddress(authority solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedProof, authority[:]}, ProgramID)
}

// Mine submits a solution for signer against bus.
func Mine(signer, bus solana.PublicKey, hash [32]byte, nonce uint64) (solana.Instruction, error) {
	proof, _, err := ProofAddress(signer)
	if err != nil {
		return solana.Instruction{}, err
	}

	data := make([]byte, 1+32+8)
	data[0] = instructionMine
	copy(data[1:33], hash[:])
	binary.LittleEndian.PutUint64(data[33:], nonce)

	return solana.Instruction{
		ProgramID: ProgramID,
		Accounts: []solana.AccountMeta{
			solana.NewAccountMeta(signer, true, true),
			solana.NewAccountMeta(bus, false, true),
			solana.NewAccountMeta(proof, false, true),
			solana.NewAccountMeta(treasuryAddress, false, false),
			solana.NewAccountMeta(solana.SysvarSlotHashesID, false, false),
		},
		Data: data,
	}, nil
}

// Reset starts a new epoch, refilling every bus.
func Reset(signer solana.PublicKey) solana.Instruction {
	accounts := []solana.AccountMeta{solana.NewAccountMeta(signer, true, true)}

	for _, bus := range busAddresses {
		accounts = append(accounts, solana.NewAccountMeta(bus, false, true))
	}

	accounts = append(accounts,
		solana.NewAccountMeta(MintID, false, true),
		solana.NewAccountMeta(treasuryAddress, false, true),
		solana.NewAccountMeta(treasuryTokens, false, true),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	)

	return solana.Instruction{
		ProgramID: ProgramID,
		Accounts:  accounts,
		Data:      []byte{instructionReset},
	}
}

// Register creates the proof account for signer.
func Register(signer solana.PublicKey) (solana.Instruction, error) {
	proof, bump, err := ProofAddress(signer)
	if err != nil {
		return solana.Instruction{}, err
	}

	return solana.Instruction{
		ProgramID: ProgramID,
		Accounts: []solana.AccountMeta{
			solana.NewAccountMeta(signer, true, true),
			solana.NewAccountMeta(proof, false, true),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
		},
		Data: []byte{instructionRegister, bump},
	}, nil
}
