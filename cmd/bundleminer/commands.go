package bundleminer

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/model"
	"github.com/bundleminer/bundleminer/pkg/solana"
	"github.com/bundleminer/bundleminer/services/ledger"
	"github.com/bundleminer/bundleminer/services/miner"
	"github.com/bundleminer/bundleminer/services/miner/txbuilder"
	"github.com/bundleminer/bundleminer/stores/journal"
	"github.com/gocarina/gocsv"
	"github.com/urfave/cli/v2"
)

const lamportsPerSol = 1_000_000_000

func busses(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	client, err := s.Ledger()
	if err != nil {
		return err
	}

	return printBusses(c.Context, c.App.Writer, client)
}

func printBusses(ctx context.Context, w io.Writer, client ledger.ClientI) error {
	bs, err := client.GetBusses(ctx)
	if err != nil {
		return err
	}

	for _, bus := range bs {
		fmt.Fprintf(w, "Bus %d: %s ORE\n", bus.ID, model.FormatTokenAmount(bus.Rewards))
	}

	return nil
}

func treasury(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	client, err := s.Ledger()
	if err != nil {
		return err
	}

	return printTreasury(c.Context, c.App.Writer, client)
}

func printTreasury(ctx context.Context, w io.Writer, client ledger.ClientI) error {
	t, err := client.GetTreasury(ctx)
	if err != nil {
		return err
	}

	lastReset := time.Unix(t.LastResetAt, 0).UTC()

	fmt.Fprintf(w, "Admin: %s\n", t.Admin)
	fmt.Fprintf(w, "Difficulty: %s (%d leading zero bits)\n", t.Difficulty, t.Difficulty.LeadingZeroBits())
	fmt.Fprintf(w, "Last reset at: %s\n", lastReset.Format(time.RFC3339))
	fmt.Fprintf(w, "Next reset due: %s\n", lastReset.Add(model.EpochDuration).Format(time.RFC3339))
	fmt.Fprintf(w, "Reward rate: %s ORE\n", model.FormatTokenAmount(t.RewardRate))
	fmt.Fprintf(w, "Total claimed rewards: %s ORE\n", model.FormatTokenAmount(t.TotalClaimed))

	return nil
}

// rewards shows one address when given, otherwise every configured miner wallet.
func rewards(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}

	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	var addresses []solana.PublicKey

	if c.NArg() == 1 {
		pk, err := solana.PublicKeyFromBase58(c.Args().First())
		if err != nil {
			return errors.NewInvalidArgumentError("invalid address %q", c.Args().First(), err)
		}

		addresses = append(addresses, pk)
	} else {
		keys, err := miner.LoadMinerKeys(s.settings)
		if err != nil {
			return err
		}

		if len(keys) == 0 {
			return errors.NewConfigurationError("no miner keys configured and no address given")
		}

		for _, kp := range keys {
			addresses = append(addresses, kp.PublicKey())
		}
	}

	client, err := s.Ledger()
	if err != nil {
		return err
	}

	return printRewards(c.Context, c.App.Writer, client, addresses)
}

func printRewards(ctx context.Context, w io.Writer, client ledger.ClientI, addresses []solana.PublicKey) error {
	var total uint64

	for _, address := range addresses {
		proof, err := client.GetProof(ctx, address)

		switch {
		case errors.Is(err, errors.ErrNotFound):
			fmt.Fprintf(w, "%s: not registered\n", address)
			continue
		case err != nil:
			return err
		}

		total += proof.ClaimableRewards

		fmt.Fprintf(w, "%s: %s ORE claimable, %d hashes, %s ORE earned\n", address,
			model.FormatTokenAmount(proof.ClaimableRewards), proof.TotalHashes, model.FormatTokenAmount(proof.TotalRewards))
	}

	if len(addresses) > 1 {
		fmt.Fprintf(w, "Total claimable: %s ORE\n", model.FormatTokenAmount(total))
	}

	return nil
}

func balance(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.settings.Wallets.FeePayerKeypair == "" {
		return errors.NewConfigurationError("feepayer_keypair is not set")
	}

	feePayer, err := solana.LoadKeypairFile(s.settings.Wallets.FeePayerKeypair)
	if err != nil {
		return err
	}

	client, err := s.Ledger()
	if err != nil {
		return err
	}

	return printBalance(c.Context, c.App.Writer, client, feePayer.PublicKey())
}

func printBalance(ctx context.Context, w io.Writer, client ledger.ClientI, address solana.PublicKey) error {
	lamports, err := client.GetBalance(ctx, address)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s: %d.%09d SOL\n", address, lamports/lamportsPerSol, lamports%lamportsPerSol)

	return nil
}

func history(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	store, err := s.Journal()
	if err != nil {
		return err
	}

	if c.Bool("csv") {
		return writeHistoryCSV(c.Context, c.App.Writer, store, c.Int("limit"))
	}

	return printHistory(c.Context, c.App.Writer, store, c.Int("limit"))
}

// historyRecord is one CSV row of the history command.
type historyRecord struct {
	SubmittedAt string `csv:"submitted_at"`
	RoundID     string `csv:"round_id"`
	Kind        string `csv:"kind"`
	BusID       int64  `csv:"bus"`
	BusRewards  uint64 `csv:"bus_rewards"`
	RewardRate  uint64 `csv:"reward_rate"`
	Status      string `csv:"status"`
	BundleID    string `csv:"bundle_id"`
	Slot        uint64 `csv:"slot"`
	Wallets     string `csv:"wallets"`
	Error       string `csv:"error"`
}

func writeHistoryCSV(ctx context.Context, w io.Writer, store journal.Store, limit int) error {
	if limit < 1 {
		return errors.NewInvalidArgumentError("limit must be at least 1, got %d", limit)
	}

	entries, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}

	records := make([]*historyRecord, len(entries))

	for i, e := range entries {
		records[i] = &historyRecord{
			SubmittedAt: e.SubmittedAt.UTC().Format(time.RFC3339),
			RoundID:     e.RoundID,
			Kind:        string(e.Kind),
			BusID:       e.BusID,
			BusRewards:  e.BusRewards,
			RewardRate:  e.RewardRate,
			Status:      string(e.Status),
			BundleID:    e.BundleID,
			Slot:        e.Slot,
			Wallets:     e.WalletList(),
			Error:       e.Error,
		}
	}

	if err = gocsv.Marshal(records, w); err != nil {
		return errors.NewProcessingError("failed to write history csv", err)
	}

	return nil
}

func printHistory(ctx context.Context, w io.Writer, store journal.Store, limit int) error {
	if limit < 1 {
		return errors.NewInvalidArgumentError("limit must be at least 1, got %d", limit)
	}

	entries, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "no submissions recorded")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "TIME\tKIND\tBUS\tSTATUS\tBUNDLE\tWALLETS\tERROR")

	for _, e := range entries {
		bus := "-"
		if e.BusID != model.NoBus {
			bus = fmt.Sprintf("%d", e.BusID)
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n", e.SubmittedAt.UTC().Format(time.RFC3339), e.Kind, bus,
			e.Status, e.BundleID, len(e.Wallets), e.Error)
	}

	return tw.Flush()
}

func keygen(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.NewInvalidArgumentError("usage: %s keygen <path>", progname)
	}

	kp, err := solana.NewKeypair()
	if err != nil {
		return err
	}

	if err = solana.WriteKeypairFile(c.Args().First(), kp); err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Wrote keypair %s to %s\n", kp.PublicKey(), c.Args().First())

	return nil
}

func register(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	ids, err := s.Identities()
	if err != nil {
		return err
	}

	client, err := s.Ledger()
	if err != nil {
		return err
	}

	engine, err := s.Engine(c.Context)
	if err != nil {
		return err
	}

	store, err := s.Journal()
	if err != nil {
		return err
	}

	builder, err := txbuilder.NewBuilder(ids.FeePayer, s.settings)
	if err != nil {
		return err
	}

	registrar := miner.NewRegistrar(s.logger.New("miner"), s.settings, client, engine, builder, store)

	registered, err := registrar.EnsureRegistered(c.Context, ids.Miners)
	if err != nil {
		return err
	}

	if len(registered) == 0 {
		fmt.Fprintln(c.App.Writer, "All miner wallets are registered")
		return nil
	}

	for _, pk := range registered {
		fmt.Fprintf(c.App.Writer, "Registered %s\n", pk)
	}

	return nil
}
