package settings

import (
	"net/url"
	"time"
)

type RPCSettings struct {
	URL               string
	RequestsPerSecond float64
	Timeout           time.Duration
}

type BlockEngineSettings struct {
	URL               string
	StatusURL         string
	AuthTokenMargin   time.Duration
	MaxMessageSize    int
	RequestTimeout    time.Duration
	UsePrometheusGRPC bool
}

type WalletSettings struct {
	FeePayerKeypair string
	AuthKeypair     string
	KeysFile        string
	MinerKeypairs   []string
}

type TipSettings struct {
	Enabled  bool
	Lamports uint64
	Account  string
}

type MinerSettings struct {
	Threads             int
	BusMaxAttempts      int
	BusBackoff          time.Duration
	SubmitMaxAttempts   int
	SubmitBackoff       time.Duration
	RoundBackoff        time.Duration
	MaxRoundBackoff     time.Duration
	RegisterMaxAttempts int
	AuthFailureAlert    int
	ConfirmBundles      bool
	ConfirmInterval     time.Duration
	ProgressInterval    time.Duration
}

type Settings struct {
	ClientName           string
	DataFolder           string
	LogLevel             string
	LoggerType           string
	MetricsListenAddress string
	ProfilerEnabled      bool
	TracingEnabled       bool
	TracingCollectorURL  *url.URL
	JournalStore         *url.URL
	RPC                  RPCSettings
	BlockEngine          BlockEngineSettings
	Wallets              WalletSettings
	Tip                  TipSettings
	Miner                MinerSettings
}
