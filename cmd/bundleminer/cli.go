// Package bundleminer is the command line entry point: the mining daemon plus a handful of
// read-only commands for inspecting pools, rewards and the submission journal.
package bundleminer

import (
	"fmt"
	"os"

	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/settings"
	"github.com/bundleminer/bundleminer/ulogger"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

const progname = "bundleminer"

var globalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"C"},
		Usage:   "ledger CLI config file supplying the default rpc url and fee payer keypair",
	},
	&cli.StringFlag{Name: "env-file", Usage: "dotenv file whose variables override settings.conf"},
	&cli.StringFlag{Name: "rpc", Usage: "ledger JSON-RPC url"},
	&cli.StringFlag{Name: "block-engine-url", Usage: "block engine gRPC endpoint"},
	&cli.StringFlag{Name: "feepayer", Usage: "fee payer keypair file"},
	&cli.StringFlag{Name: "auth", Usage: "block engine auth keypair file"},
	&cli.StringFlag{Name: "keys-file", Usage: "file with one base58 miner secret key per line"},
	&cli.StringFlag{Name: "miner1", Usage: "miner keypair file"},
	&cli.StringFlag{Name: "miner2", Usage: "miner keypair file"},
	&cli.StringFlag{Name: "miner3", Usage: "miner keypair file"},
	&cli.StringFlag{Name: "miner4", Usage: "miner keypair file"},
	&cli.StringFlag{Name: "miner5", Usage: "miner keypair file"},
	&cli.Uint64Flag{Name: "tip-lamports", Usage: "tip paid with every bundle"},
	&cli.BoolFlag{Name: "tip-enabled", Usage: "append the tip transfer to every bundle"},
	&cli.StringFlag{Name: "log-level", Usage: "DEBUG, INFO, WARN or ERROR"},
}

// NewApp builds the command tree. version and commit are injected at build time.
func NewApp(version, commit string) *cli.App {
	return &cli.App{
		Name:    progname,
		Usage:   "mine with up to five wallets and submit the solutions as block engine bundles",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		Flags:   globalFlags,
		Commands: []*cli.Command{
			{
				Name:  "mine",
				Usage: "run the mining loop until interrupted",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "threads", Aliases: []string{"t"}, Usage: "search goroutines per wallet"},
				},
				Action: func(c *cli.Context) error {
					return mine(c, version)
				},
			},
			{
				Name:   "register",
				Usage:  "create the proof accounts of miner wallets that have never mined",
				Action: register,
			},
			{
				Name:   "busses",
				Usage:  "show the balance of every reward pool",
				Action: busses,
			},
			{
				Name:   "treasury",
				Usage:  "show the treasury mining parameters",
				Action: treasury,
			},
			{
				Name:      "rewards",
				Usage:     "show claimable rewards of the miner wallets, or of one address",
				ArgsUsage: "[address]",
				Action:    rewards,
			},
			{
				Name:   "balance",
				Usage:  "show the lamport balance of the fee payer",
				Action: balance,
			},
			{
				Name:  "history",
				Usage: "list the most recent journal entries",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20},
					&cli.BoolFlag{Name: "csv", Usage: "write the entries as CSV"},
				},
				Action: history,
			},
			{
				Name:      "keygen",
				Usage:     "write a new keypair file",
				ArgsUsage: "<path>",
				Action:    keygen,
			},
		},
	}
}

func Start(args []string, version, commit string) {
	if err := NewApp(version, commit).Run(args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", progname, err)
		os.Exit(1)
	}
}

// loadSettings reads the settings files and environment, then the ledger CLI config, then the
// flags. Later sources win.
func loadSettings(c *cli.Context) (*settings.Settings, error) {
	if path := c.String("env-file"); path != "" {
		// variables already present in the environment are kept
		if err := godotenv.Load(path); err != nil {
			return nil, errors.NewConfigurationError("failed to load env file %s", path, err)
		}
	}

	tSettings := settings.NewSettings()

	rpcSet := c.IsSet("rpc")

	if path := c.String("config"); path != "" {
		cfg, err := settings.LoadCLIConfig(path)
		if err != nil {
			return nil, err
		}

		tSettings.ApplyCLIConfig(cfg, rpcSet)
	} else if path = settings.DefaultCLIConfigPath(); path != "" {
		// the implicit config only fills in a missing fee payer
		if cfg, err := settings.LoadCLIConfig(path); err == nil {
			tSettings.ApplyCLIConfig(cfg, true)
		}
	}

	applyFlags(c, tSettings)

	return tSettings, nil
}

func applyFlags(c *cli.Context, tSettings *settings.Settings) {
	if c.IsSet("rpc") {
		tSettings.RPC.URL = c.String("rpc")
	}

	if c.IsSet("block-engine-url") {
		tSettings.BlockEngine.URL = c.String("block-engine-url")
	}

	if c.IsSet("feepayer") {
		tSettings.Wallets.FeePayerKeypair = c.String("feepayer")
	}

	if c.IsSet("auth") {
		tSettings.Wallets.AuthKeypair = c.String("auth")
	}

	if c.IsSet("keys-file") {
		tSettings.Wallets.KeysFile = c.String("keys-file")
	}

	var miners []string

	for i := 1; i <= settings.MaxMinerIdentities; i++ {
		if path := c.String(fmt.Sprintf("miner%d", i)); path != "" {
			miners = append(miners, path)
		}
	}

	if len(miners) > 0 {
		tSettings.Wallets.MinerKeypairs = miners
	}

	if c.IsSet("tip-lamports") {
		tSettings.Tip.Lamports = c.Uint64("tip-lamports")
	}

	if c.IsSet("tip-enabled") {
		tSettings.Tip.Enabled = c.Bool("tip-enabled")
	}

	if c.IsSet("log-level") {
		tSettings.LogLevel = c.String("log-level")
	}
}

func newLogger(service string, tSettings *settings.Settings) ulogger.Logger {
	return ulogger.New(service, ulogger.WithLevel(tSettings.LogLevel), ulogger.WithLoggerType(tSettings.LoggerType))
}
