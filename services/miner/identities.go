package miner

import (
	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/pkg/solana"
	"github.com/bundleminer/bundleminer/settings"
)

// Identities are the signing keys of a mining session. They are loaded once at startup and
// never change.
type Identities struct {
	FeePayer *solana.Keypair
	Auth     *solana.Keypair
	Miners   []*solana.Keypair
}

// LoadIdentities reads the fee payer and auth keypair files, then the miner keys: first the
// miner_keypair_N files, then the base58 keys file. A session mines with one to
// settings.MaxMinerIdentities distinct wallets.
func LoadIdentities(tSettings *settings.Settings) (*Identities, error) {
	if tSettings.Wallets.FeePayerKeypair == "" {
		return nil, errors.NewConfigurationError("[Identities] feepayer_keypair is not set")
	}

	if tSettings.Wallets.AuthKeypair == "" {
		return nil, errors.NewConfigurationError("[Identities] auth_keypair is not set")
	}

	feePayer, err := solana.LoadKeypairFile(tSettings.Wallets.FeePayerKeypair)
	if err != nil {
		return nil, errors.NewConfigurationError("[Identities] failed to load fee payer keypair", err)
	}

	auth, err := solana.LoadKeypairFile(tSettings.Wallets.AuthKeypair)
	if err != nil {
		return nil, errors.NewConfigurationError("[Identities] failed to load auth keypair", err)
	}

	miners, err := LoadMinerKeys(tSettings)
	if err != nil {
		return nil, err
	}

	return NewIdentities(feePayer, auth, miners)
}

// LoadMinerKeys reads the miner_keypair_N files, then the base58 keys file, without validating
// the resulting set.
func LoadMinerKeys(tSettings *settings.Settings) ([]*solana.Keypair, error) {
	miners := make([]*solana.Keypair, 0, settings.MaxMinerIdentities)

	for _, path := range tSettings.Wallets.MinerKeypairs {
		kp, err := solana.LoadKeypairFile(path)
		if err != nil {
			return nil, errors.NewConfigurationError("[Identities] failed to load miner keypair %s", path, err)
		}

		miners = append(miners, kp)
	}

	if tSettings.Wallets.KeysFile != "" {
		kps, err := solana.LoadBase58KeysFile(tSettings.Wallets.KeysFile)
		if err != nil {
			return nil, errors.NewConfigurationError("[Identities] failed to load miner keys file", err)
		}

		miners = append(miners, kps...)
	}

	return miners, nil
}

// NewIdentities validates a set of keys.
func NewIdentities(feePayer, auth *solana.Keypair, miners []*solana.Keypair) (*Identities, error) {
	if feePayer == nil || auth == nil {
		return nil, errors.NewConfigurationError("[Identities] fee payer and auth keypairs are required")
	}

	if len(miners) == 0 {
		return nil, errors.NewConfigurationError("[Identities] no miner keys configured")
	}

	if len(miners) > settings.MaxMinerIdentities {
		return nil, errors.NewConfigurationError("[Identities] %d miner keys configured, at most %d are supported", len(miners), settings.MaxMinerIdentities)
	}

	seen := make(map[solana.PublicKey]struct{}, len(miners))

	for _, kp := range miners {
		if _, ok := seen[kp.PublicKey()]; ok {
			return nil, errors.NewConfigurationError("[Identities] miner %s is configured twice", kp.PublicKey())
		}

		seen[kp.PublicKey()] = struct{}{}
	}

	return &Identities{
		FeePayer: feePayer,
		Auth:     auth,
		Miners:   append([]*solana.Keypair(nil), miners...),
	}, nil
}

func (i *Identities) MinerPublicKeys() []solana.PublicKey {
	keys := make([]solana.PublicKey, len(i.Miners))
	for idx, kp := range i.Miners {
		keys[idx] = kp.PublicKey()
	}

	return keys
}
