package bundleminer

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bundleminer/bundleminer/errors"
	"github.com/bundleminer/bundleminer/model"
	"github.com/bundleminer/bundleminer/pkg/ore"
	"github.com/bundleminer/bundleminer/pkg/solana"
	"github.com/bundleminer/bundleminer/services/ledger"
	"github.com/bundleminer/bundleminer/settings"
	"github.com/bundleminer/bundleminer/stores/journal"
	"github.com/bundleminer/bundleminer/ulogger"
	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func runWithSettings(t *testing.T, args ...string) (*settings.Settings, error) {
	t.Helper()

	// keep a real ledger CLI config in the user's home out of the test
	t.Setenv("HOME", t.TempDir())

	var got *settings.Settings

	app := &cli.App{
		Name:  progname,
		Flags: globalFlags,
		Action: func(c *cli.Context) error {
			var err error
			got, err = loadSettings(c)

			return err
		},
	}

	err := app.Run(append([]string{progname}, args...))

	return got, err
}

func TestFlagsOverrideSettings(t *testing.T) {
	got, err := runWithSettings(t,
		"--rpc", "http://localhost:8899",
		"--block-engine-url", "localhost:1003",
		"--feepayer", "/keys/payer.json",
		"--auth", "/keys/auth.json",
		"--keys-file", "/keys/miners.txt",
		"--miner1", "/keys/m1.json",
		"--miner3", "/keys/m3.json",
		"--tip-lamports", "5000",
		"--tip-enabled=false",
		"--log-level", "DEBUG",
	)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8899", got.RPC.URL)
	assert.Equal(t, "localhost:1003", got.BlockEngine.URL)
	assert.Equal(t, "/keys/payer.json", got.Wallets.FeePayerKeypair)
	assert.Equal(t, "/keys/auth.json", got.Wallets.AuthKeypair)
	assert.Equal(t, "/keys/miners.txt", got.Wallets.KeysFile)
	assert.Equal(t, []string{"/keys/m1.json", "/keys/m3.json"}, got.Wallets.MinerKeypairs)
	assert.Equal(t, uint64(5000), got.Tip.Lamports)
	assert.False(t, got.Tip.Enabled)
	assert.Equal(t, "DEBUG", got.LogLevel)
}

func TestConfigFileSuppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("json_rpc_url: http://rpc.from.config\nkeypair_path: /keys/id.json\n"), 0o600))

	got, err := runWithSettings(t, "--config", path)
	require.NoError(t, err)

	assert.Equal(t, "http://rpc.from.config", got.RPC.URL)
	assert.Equal(t, "/keys/id.json", got.Wallets.FeePayerKeypair)

	got, err = runWithSettings(t, "-C", path, "--rpc", "http://explicit", "--feepayer", "/keys/other.json")
	require.NoError(t, err)

	assert.Equal(t, "http://explicit", got.RPC.URL)
	assert.Equal(t, "/keys/other.json", got.Wallets.FeePayerKeypair)

	_, err = runWithSettings(t, "--config", filepath.Join(t.TempDir(), "missing.yml"))
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestPrintBusses(t *testing.T) {
	client := &ledger.Mock{}
	client.On("GetBusses", mock.Anything).Return([]*model.Bus{
		{ID: 0, Rewards: 1_500_000_000},
		{ID: 1, Rewards: 0},
	}, nil)

	var buf bytes.Buffer

	require.NoError(t, printBusses(context.Background(), &buf, client))
	assert.Equal(t, "Bus 0: 1.5 ORE\nBus 1: 0 ORE\n", buf.String())
}

func TestPrintTreasury(t *testing.T) {
	client := &ledger.Mock{}
	client.On("GetTreasury", mock.Anything).Return(&ore.Treasury{
		Difficulty:   model.Hash{0x00, 0x0f},
		LastResetAt:  1_700_000_000,
		RewardRate:   25_000_000,
		TotalClaimed: 3_000_000_000,
	}, nil)

	var buf bytes.Buffer

	require.NoError(t, printTreasury(context.Background(), &buf, client))

	out := buf.String()
	assert.Contains(t, out, "12 leading zero bits")
	assert.Contains(t, out, "Last reset at: 2023-11-14T22:13:20Z")
	assert.Contains(t, out, "Next reset due: 2023-11-14T22:14:20Z")
	assert.Contains(t, out, "Reward rate: 0.025 ORE")
	assert.Contains(t, out, "Total claimed rewards: 3 ORE")
}

func TestPrintRewards(t *testing.T) {
	registered, err := solana.NewKeypair()
	require.NoError(t, err)

	unregistered, err := solana.NewKeypair()
	require.NoError(t, err)

	client := &ledger.Mock{}
	client.On("GetProof", mock.Anything, registered.PublicKey()).Return(&model.Proof{
		Authority:        registered.PublicKey(),
		ClaimableRewards: 2_000_000_000,
		TotalHashes:      7,
		TotalRewards:     4_000_000_000,
	}, nil)
	client.On("GetProof", mock.Anything, unregistered.PublicKey()).Return(nil, errors.NewNotFoundError("not registered"))

	var buf bytes.Buffer

	require.NoError(t, printRewards(context.Background(), &buf, client,
		[]solana.PublicKey{registered.PublicKey(), unregistered.PublicKey()}))

	out := buf.String()
	assert.Contains(t, out, registered.PublicKey().String()+": 2 ORE claimable, 7 hashes, 4 ORE earned")
	assert.Contains(t, out, unregistered.PublicKey().String()+": not registered")
	assert.Contains(t, out, "Total claimable: 2 ORE")

	failing := &ledger.Mock{}
	failing.On("GetProof", mock.Anything, mock.Anything).Return(nil, errors.NewNetworkError("rpc down"))

	err = printRewards(context.Background(), &buf, failing, []solana.PublicKey{registered.PublicKey()})
	assert.True(t, errors.Is(err, errors.ErrNetwork))
}

func TestPrintBalance(t *testing.T) {
	kp, err := solana.NewKeypair()
	require.NoError(t, err)

	client := &ledger.Mock{}
	client.On("GetBalance", mock.Anything, kp.PublicKey()).Return(uint64(1_250_000_000), nil)

	var buf bytes.Buffer

	require.NoError(t, printBalance(context.Background(), &buf, client, kp.PublicKey()))
	assert.Equal(t, kp.PublicKey().String()+": 1.250000000 SOL\n", buf.String())
}

func TestPrintHistory(t *testing.T) {
	storeURL, err := url.Parse("sqlitememory:///history")
	require.NoError(t, err)

	store, err := journal.NewStore(ulogger.TestLogger{}, storeURL, t.TempDir())
	require.NoError(t, err)

	defer func() {
		_ = store.Close()
	}()

	var buf bytes.Buffer

	require.NoError(t, printHistory(context.Background(), &buf, store, 10))
	assert.Equal(t, "no submissions recorded\n", buf.String())

	_, err = store.RecordSubmission(context.Background(), &model.Submission{
		RoundID:     "round-1",
		Kind:        model.SubmissionMine,
		BundleID:    "bundle-1",
		BusID:       4,
		Wallets:     []string{"a", "b"},
		Status:      model.SubmissionSubmitted,
		SubmittedAt: time.Unix(1_700_000_000, 0),
	})
	require.NoError(t, err)

	_, err = store.RecordSubmission(context.Background(), &model.Submission{
		Kind:        model.SubmissionReset,
		BusID:       model.NoBus,
		Wallets:     []string{"a"},
		Status:      model.SubmissionRejected,
		Error:       "rpc down",
		SubmittedAt: time.Unix(1_700_000_060, 0),
	})
	require.NoError(t, err)

	buf.Reset()
	require.NoError(t, printHistory(context.Background(), &buf, store, 10))

	out := buf.String()
	assert.Contains(t, out, "bundle-1")
	assert.Contains(t, out, "rpc down")
	assert.Contains(t, out, "reset")

	err = printHistory(context.Background(), &buf, store, 0)
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	buf.Reset()
	require.NoError(t, writeHistoryCSV(context.Background(), &buf, store, 10))

	var records []*historyRecord
	require.NoError(t, gocsv.Unmarshal(bytes.NewReader(buf.Bytes()), &records))
	require.Len(t, records, 2)

	// newest first
	assert.Equal(t, "reset", records[0].Kind)
	assert.Equal(t, model.NoBus, records[0].BusID)
	assert.Equal(t, "rpc down", records[0].Error)
	assert.Equal(t, "round-1", records[1].RoundID)
	assert.Equal(t, int64(4), records[1].BusID)
	assert.Equal(t, "a,b", records[1].Wallets)
	assert.Equal(t, "2023-11-14T22:13:20Z", records[1].SubmittedAt)
}

func TestEnvFileOverridesSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "miner.env")
	require.NoError(t, os.WriteFile(path, []byte("block_engine_auth_token_margin_seconds=45\n"), 0o600))

	t.Cleanup(func() {
		_ = os.Unsetenv("block_engine_auth_token_margin_seconds")
	})

	got, err := runWithSettings(t, "--env-file", path)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, got.BlockEngine.AuthTokenMargin)

	_, err = runWithSettings(t, "--env-file", filepath.Join(t.TempDir(), "missing.env"))
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestKeygenWritesLoadableKeypair(t *testing.T) {
	path := filepath.Join(t.TempDir(), "miner.json")

	app := NewApp("test", "abc")

	var buf bytes.Buffer
	app.Writer = &buf

	require.NoError(t, app.Run([]string{progname, "keygen", path}))

	kp, err := solana.LoadKeypairFile(path)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), kp.PublicKey().String())

	err = NewApp("test", "abc").Run([]string{progname, "keygen"})
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
}

func TestHTTPServiceProbes(t *testing.T) {
	h := newHTTPService(ulogger.TestLogger{}, "127.0.0.1:0", func(_ context.Context, checkLiveness bool) (int, string, error) {
		if checkLiveness {
			return http.StatusOK, `{"status":"200"}`, nil
		}

		return http.StatusServiceUnavailable, `{"status":"503"}`, nil
	}, true)

	srv := httptest.NewServer(h.handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health/liveness")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/health/readiness")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/debug/fgprof?seconds=1")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTPServiceLifecycle(t *testing.T) {
	h := newHTTPService(ulogger.TestLogger{}, "127.0.0.1:0", func(context.Context, bool) (int, string, error) {
		return http.StatusOK, "{}", nil
	}, false)

	status, _, _ := h.Health(context.Background(), true)
	assert.Equal(t, http.StatusServiceUnavailable, status)

	require.NoError(t, h.Init(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	readyCh := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- h.Start(ctx, readyCh)
	}()

	<-readyCh

	resp, err := http.Get("http://" + h.ln.Addr().String() + "/health/liveness")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + h.ln.Addr().String() + "/debug/fgprof")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, h.Stop(context.Background()))
}
