package solana

import (
	"bytes"

	"github.com/bundleminer/bundleminer/errors"
	"github.com/mr-tron/base58"
)

// MaxTransactionSize is the largest serialized transaction the ledger accepts in one packet.
const MaxTransactionSize = 1232

// Hash is a recent blockhash.
type Hash [32]byte

func HashFromBase58(s string) (Hash, error) {
	var h Hash

	b, err := base58.Decode(s)
	if err != nil {
		return h, errors.NewInvalidArgumentError("invalid base58 hash %q", s, err)
	}

	if len(b) != len(h) {
		return h, errors.NewInvalidArgumentError("hash must be 32 bytes, got %d", len(b))
	}

	copy(h[:], b)

	return h, nil
}

func (h Hash) String() string {
	return base58.Encode(h[:])
}

type MessageHeader struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

type CompiledInstruction struct {
	ProgramIDIndex uint8
	Accounts       []uint8
	Data           []byte
}

type Message struct {
	Header          MessageHeader
	AccountKeys     []PublicKey
	RecentBlockhash Hash
	Instructions    []CompiledInstruction
}

type Transaction struct {
	Signatures []Signature
	Message    Message
}

type keyFlags struct {
	key      PublicKey
	signer   bool
	writable bool
}

// NewTransaction compiles instructions into a legacy message paid for by payer. Accounts are
// ordered writable signers, readonly signers, writable non-signers, readonly non-signers, with
// the payer always first.
func NewTransaction(instructions []Instruction, blockhash Hash, payer PublicKey) (*Transaction, error) {
	if len(instructions) == 0 {
		return nil, errors.NewInvalidArgumentError("transaction needs at least one instruction")
	}

	index := map[PublicKey]int{}
	flags := make([]keyFlags, 0, 16)

	add := func(pk PublicKey, signer, writable bool) {
		if i, ok := index[pk]; ok {
			flags[i].signer = flags[i].signer || signer
			flags[i].writable = flags[i].writable || writable

			return
		}

		index[pk] = len(flags)
		flags = append(flags, keyFlags{key: pk, signer: signer, writable: writable})
	}

	add(payer, true, true)

	for _, ix := range instructions {
		for _, meta := range ix.Accounts {
			add(meta.PublicKey, meta.IsSigner, meta.IsWritable)
		}

		add(ix.ProgramID, false, false)
	}

	if len(flags) > 256 {
		return nil, errors.NewSigningConstraintError("transaction references %d accounts, limit is 256", len(flags))
	}

	ordered := make([]keyFlags, 0, len(flags))

	for _, group := range []struct{ signer, writable bool }{
		{true, true}, {true, false}, {false, true}, {false, false},
	} {
		for _, f := range flags {
			if f.signer == group.signer && f.writable == group.writable {
				ordered = append(ordered, f)
			}
		}
	}

	msg := Message{
		AccountKeys:     make([]PublicKey, len(ordered)),
		RecentBlockhash: blockhash,
		Instructions:    make([]CompiledInstruction, 0, len(instructions)),
	}

	position := make(map[PublicKey]uint8, len(ordered))

	for i, f := range ordered {
		msg.AccountKeys[i] = f.key
		position[f.key] = uint8(i) //nolint:gosec // bounded by the 256 account check above

		switch {
		case f.signer:
			msg.Header.NumRequiredSignatures++
			if !f.writable {
				msg.Header.NumReadonlySignedAccounts++
			}
		case !f.writable:
			msg.Header.NumReadonlyUnsignedAccounts++
		}
	}

	for _, ix := range instructions {
		compiled := CompiledInstruction{
			ProgramIDIndex: position[ix.ProgramID],
			Accounts:       make([]uint8, len(ix.Accounts)),
			Data:           ix.Data,
		}

		for i, meta := range ix.Accounts {
			compiled.Accounts[i] = position[meta.PublicKey]
		}

		msg.Instructions = append(msg.Instructions, compiled)
	}

	return &Transaction{
		Signatures: make([]Signature, msg.Header.NumRequiredSignatures),
		Message:    msg,
	}, nil
}

// Signers returns the accounts whose signatures the message requires, payer first.
func (m *Message) Signers() []PublicKey {
	return m.AccountKeys[:m.Header.NumRequiredSignatures]
}

func (m *Message) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(m.Header.NumRequiredSignatures)
	buf.WriteByte(m.Header.NumReadonlySignedAccounts)
	buf.WriteByte(m.Header.NumReadonlyUnsignedAccounts)

	if err := encodeCompactU16(&buf, len(m.AccountKeys)); err != nil {
		return nil, err
	}

	for _, key := range m.AccountKeys {
		buf.Write(key[:])
	}

	buf.Write(m.RecentBlockhash[:])

	if err := encodeCompactU16(&buf, len(m.Instructions)); err != nil {
		return nil, err
	}

	for _, ix := range m.Instructions {
		buf.WriteByte(ix.ProgramIDIndex)

		if err := encodeCompactU16(&buf, len(ix.Accounts)); err != nil {
			return nil, err
		}

		buf.Write(ix.Accounts)

		if err := encodeCompactU16(&buf, len(ix.Data)); err != nil {
			return nil, err
		}

		buf.Write(ix.Data)
	}

	return buf.Bytes(), nil
}

// Sign signs the message with every keypair. Each keypair must be a required signer and every
// required signer must be covered.
func (tx *Transaction) Sign(signers ...*Keypair) error {
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return err
	}

	required := tx.Message.Signers()
	signed := make([]bool, len(required))

	for _, kp := range signers {
		found := false

		for i, pk := range required {
			if pk == kp.PublicKey() {
				tx.Signatures[i] = kp.Sign(message)
				signed[i] = true
				found = true
			}
		}

		if !found {
			return errors.NewSigningConstraintError("keypair %s is not a required signer", kp.PublicKey())
		}
	}

	for i, ok := range signed {
		if !ok {
			return errors.NewSigningConstraintError("missing signature for %s", required[i])
		}
	}

	return nil
}

// VerifySignatures checks every signature against the serialized message.
func (tx *Transaction) VerifySignatures() bool {
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return false
	}

	required := tx.Message.Signers()
	if len(required) != len(tx.Signatures) {
		return false
	}

	for i, pk := range required {
		if !Verify(pk, message, tx.Signatures[i]) {
			return false
		}
	}

	return true
}

// ID is the first signature, which the ledger uses as the transaction id.
func (tx *Transaction) ID() Signature {
	if len(tx.Signatures) == 0 {
		return Signature{}
	}

	return tx.Signatures[0]
}

func (tx *Transaction) MarshalBinary() ([]byte, error) {
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer

	if err = encodeCompactU16(&buf, len(tx.Signatures)); err != nil {
		return nil, err
	}

	for _, sig := range tx.Signatures {
		buf.Write(sig[:])
	}

	buf.Write(message)

	return buf.Bytes(), nil
}

// Size is the serialized length in bytes.
func (tx *Transaction) Size() (int, error) {
	b, err := tx.MarshalBinary()
	if err != nil {
		return 0, err
	}

	return len(b), nil
}

// UnmarshalBinary decodes a serialized legacy transaction.
func (tx *Transaction) UnmarshalBinary(b []byte) error {
	r := &reader{b: b}

	numSigs, err := r.compactU16()
	if err != nil {
		return err
	}

	tx.Signatures = make([]Signature, numSigs)

	for i := range tx.Signatures {
		if err = r.read(tx.Signatures[i][:]); err != nil {
			return err
		}
	}

	header := make([]byte, 3)
	if err = r.read(header); err != nil {
		return err
	}

	tx.Message.Header = MessageHeader{header[0], header[1], header[2]}

	numKeys, err := r.compactU16()
	if err != nil {
		return err
	}

	tx.Message.AccountKeys = make([]PublicKey, numKeys)

	for i := range tx.Message.AccountKeys {
		if err = r.read(tx.Message.AccountKeys[i][:]); err != nil {
			return err
		}
	}

	if err = r.read(tx.Message.RecentBlockhash[:]); err != nil {
		return err
	}

	numIxs, err := r.compactU16()
	if err != nil {
		return err
	}

	tx.Message.Instructions = make([]CompiledInstruction, numIxs)

	for i := range tx.Message.Instructions {
		ix := &tx.Message.Instructions[i]

		programIndex := make([]byte, 1)
		if err = r.read(programIndex); err != nil {
			return err
		}

		ix.ProgramIDIndex = programIndex[0]

		if ix.Accounts, err = r.compactBytes(); err != nil {
			return err
		}

		if ix.Data, err = r.compactBytes(); err != nil {
			return err
		}
	}

	if r.pos != len(b) {
		return errors.NewInvalidArgumentError("%d trailing bytes after transaction", len(b)-r.pos)
	}

	return nil
}

type reader struct {
	b   []byte
	pos int
}

func (r *reader) read(dst []byte) error {
	if r.pos+len(dst) > len(r.b) {
		return errors.NewInvalidArgumentError("transaction truncated at byte %d", r.pos)
	}

	copy(dst, r.b[r.pos:])
	r.pos += len(dst)

	return nil
}

func (r *reader) compactU16() (int, error) {
	n, size, err := decodeCompactU16(r.b[r.pos:])
	if err != nil {
		return 0, err
	}

	r.pos += size

	return n, nil
}

func (r *reader) compactBytes() ([]byte, error) {
	n, err := r.compactU16()
	if err != nil {
		return nil, err
	}

	out := make([]byte, n)

	return out, r.read(out)
}
