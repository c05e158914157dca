package solana

import (
	"bufio"
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"strings"

	"github.com/bundleminer/bundleminer/errors"
	jsoniter "github.com/json-iterator/go"
	"github.com/mr-tron/base58"
)

const SignatureLength = 64

type Signature [SignatureLength]byte

func (s Signature) String() string {
	return base58.Encode(s[:])
}

// Keypair is an ed25519 signing identity. The 64-byte secret is seed followed by public key,
// the layout used by keypair files.
type Keypair struct {
	privateKey ed25519.PrivateKey
	publicKey  PublicKey
}

func NewKeypair() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.NewProcessingError("failed to generate keypair", err)
	}

	return newKeypair(priv), nil
}

func KeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errors.NewInvalidArgumentError("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}

	return newKeypair(ed25519.NewKeyFromSeed(seed)), nil
}

// KeypairFromBytes accepts the 64-byte secret and checks that its public half matches the seed.
func KeypairFromBytes(secret []byte) (*Keypair, error) {
	if len(secret) != ed25519.PrivateKeySize {
		return nil, errors.NewInvalidArgumentError("secret key must be %d bytes, got %d", ed25519.PrivateKeySize, len(secret))
	}

	kp := newKeypair(ed25519.NewKeyFromSeed(secret[:ed25519.SeedSize]))

	if !bytes.Equal(kp.publicKey[:], secret[ed25519.SeedSize:]) {
		return nil, errors.NewInvalidArgumentError("secret key public half does not match its seed")
	}

	return kp, nil
}

func KeypairFromBase58(s string) (*Keypair, error) {
	b, err := base58.Decode(strings.TrimSpace(s))
	if err != nil {
		return nil, errors.NewInvalidArgumentError("invalid base58 secret key", err)
	}

	return KeypairFromBytes(b)
}

// LoadKeypairFile reads a keypair stored as a JSON array of 64 byte values.
func LoadKeypairFile(path string) (*Keypair, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigurationError("failed to read keypair file %s", path, err)
	}

	var values []int
	if err = jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(b, &values); err != nil {
		return nil, errors.NewConfigurationError("keypair file %s is not a JSON byte array", path, err)
	}

	secret := make([]byte, len(values))

	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, errors.NewConfigurationError("keypair file %s has out of range value %d at index %d", path, v, i)
		}

		secret[i] = byte(v)
	}

	kp, err := KeypairFromBytes(secret)
	if err != nil {
		return nil, errors.NewConfigurationError("keypair file %s is invalid", path, err)
	}

	return kp, nil
}

// WriteKeypairFile stores the keypair as a JSON array of its 64 secret bytes, readable by
// LoadKeypairFile. An existing file is never overwritten.
func WriteKeypairFile(path string, kp *Keypair) error {
	values := make([]int, len(kp.privateKey))
	for i, b := range kp.privateKey {
		values[i] = int(b)
	}

	b, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(values)
	if err != nil {
		return errors.NewProcessingError("failed to encode keypair", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return errors.NewStorageError("failed to create keypair file %s", path, err)
	}

	if _, err = f.Write(b); err != nil {
		_ = f.Close()
		return errors.NewStorageError("failed to write keypair file %s", path, err)
	}

	if err = f.Close(); err != nil {
		return errors.NewStorageError("failed to close keypair file %s", path, err)
	}

	return nil
}

// Base58 renders the 64-byte secret the way keys files store it.
func (k *Keypair) Base58() string {
	return base58.Encode(k.privateKey)
}

// LoadBase58KeysFile reads one base58 secret key per line. Blank lines and lines starting with
// '#' are skipped.
func LoadBase58KeysFile(path string) ([]*Keypair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewConfigurationError("failed to open keys file %s", path, err)
	}

	defer func() {
		_ = f.Close()
	}()

	var keypairs []*Keypair

	scanner := bufio.NewScanner(f)
	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		kp, err := KeypairFromBase58(line)
		if err != nil {
			return nil, errors.NewConfigurationError("keys file %s line %d", path, lineNo, err)
		}

		keypairs = append(keypairs, kp)
	}

	if err = scanner.Err(); err != nil {
		return nil, errors.NewConfigurationError("failed to read keys file %s", path, err)
	}

	return keypairs, nil
}

func newKeypair(priv ed25519.PrivateKey) *Keypair {
	var pk PublicKey

	copy(pk[:], priv.Public().(ed25519.PublicKey))

	return &Keypair{
		privateKey: priv,
		publicKey:  pk,
	}
}

func (k *Keypair) PublicKey() PublicKey {
	return k.publicKey
}

// SecretBytes returns a copy of the 64-byte secret.
func (k *Keypair) SecretBytes() []byte {
	return append([]byte(nil), k.privateKey...)
}

func (k *Keypair) Sign(message []byte) Signature {
	var sig Signature

	copy(sig[:], ed25519.Sign(k.privateKey, message))

	return sig
}

func Verify(pk PublicKey, message []byte, sig Signature) bool {
	return ed25519.Verify(pk[:], message, sig[:])
}
