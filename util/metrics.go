package util

// MetricsBucketsMilliSeconds covers RPC and bundle submission latencies, 1ms to 4s.
var MetricsBucketsMilliSeconds = []float64{
	1e-3, 2e-3, 4e-3, 16e-3, 32e-3, 64e-3, 128e-3, 256e-3, 512e-3, 1024e-3, 2048e-3, 4096e-3,
}

// MetricsBucketsSeconds covers hash searches and whole rounds, 1s to ~34 minutes.
var MetricsBucketsSeconds = []float64{
	1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024, 2048,
}

// MetricsBucketsTransactionSize covers encoded chunk sizes up to the 1232 byte packet limit.
var MetricsBucketsTransactionSize = []float64{
	128, 256, 384, 512, 640, 768, 896, 1024, 1152, 1232,
}
