package settings

const (
	// MaxMinerIdentities is the number of independent miner keys a session accepts.
	MaxMinerIdentities = 5

	// DefaultTipAccount receives the priority tip appended to the last chunk of a bundle.
	DefaultTipAccount = "96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5"
)

func NewSettings() *Settings {
	return &Settings{
		ClientName:           getString("clientName", "bundleminer"),
		DataFolder:           getString("data_folder", "data"),
		LogLevel:             getString("logLevel", "INFO"),
		LoggerType:           getString("logger_type", "zerolog"),
		MetricsListenAddress: getString("metrics_listen_address", ""),
		ProfilerEnabled:      getBool("profiler_enabled", false),
		TracingEnabled:       getBool("tracing_enabled", false),
		TracingCollectorURL:  getURL("tracing_collector_url", "http://localhost:4318"),
		JournalStore:         getURL("journal_store", "null:///"),
		RPC: RPCSettings{
			URL:               getString("rpc_url", "https://api.mainnet-beta.solana.com"),
			RequestsPerSecond: getFloat64("rpc_requests_per_second", 10),
			Timeout:           getSeconds("rpc_timeout_seconds", 30),
		},
		BlockEngine: BlockEngineSettings{
			URL:               getString("block_engine_url", "https://mainnet.block-engine.jito.wtf"),
			StatusURL:         getString("block_engine_status_url", "https://mainnet.block-engine.jito.wtf/api/v1/bundles"),
			AuthTokenMargin:   getSeconds("block_engine_auth_token_margin_seconds", 30),
			MaxMessageSize:    getInt("block_engine_max_message_size", 4*1024*1024),
			RequestTimeout:    getSeconds("block_engine_request_timeout_seconds", 10),
			UsePrometheusGRPC: getBool("block_engine_grpc_metrics", true),
		},
		Wallets: WalletSettings{
			FeePayerKeypair: getString("feepayer_keypair", ""),
			AuthKeypair:     getString("auth_keypair", ""),
			KeysFile:        getString("miner_keys_file", ""),
			MinerKeypairs:   getMinerKeypairs(MaxMinerIdentities),
		},
		Tip: TipSettings{
			Enabled:  getBool("tip_enabled", true),
			Lamports: getUint64("tip_lamports", 1000),
			Account:  getString("tip_account", DefaultTipAccount),
		},
		Miner: MinerSettings{
			Threads:             getInt("miner_threads", 1),
			BusMaxAttempts:      getInt("miner_bus_max_attempts", 32),
			BusBackoff:          getMillis("miner_bus_backoff_ms", 100),
			SubmitMaxAttempts:   getInt("miner_submit_max_attempts", 3),
			SubmitBackoff:       getMillis("miner_submit_backoff_ms", 500),
			RoundBackoff:        getMillis("miner_round_backoff_ms", 1000),
			MaxRoundBackoff:     getMillis("miner_max_round_backoff_ms", 30000),
			RegisterMaxAttempts: getInt("miner_register_max_attempts", 5),
			AuthFailureAlert:    getInt("miner_auth_failure_alert", 3),
			ConfirmBundles:      getBool("miner_confirm_bundles", false),
			ConfirmInterval:     getSeconds("miner_confirm_interval_seconds", 15),
			ProgressInterval:    getSeconds("miner_progress_interval_seconds", 10),
		},
	}
}
