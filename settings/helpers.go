package settings

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/ordishs/gocore"
)

func getString(key, defaultValue string) string {
	value, found := gocore.Config().Get(key)
	if !found {
		return defaultValue
	}

	return value
}

func getMultiString(key, defaultValue string) []string {
	value, _ := gocore.Config().GetMulti(key, defaultValue)

	return value
}

func getInt(key string, defaultValue int) int {
	value, found := gocore.Config().GetInt(key)
	if !found {
		return defaultValue
	}

	return value
}

func getURL(key, defaultValue string) *url.URL {
	value, _, _ := gocore.Config().GetURL(key, defaultValue)

	return value
}

func getBool(key string, defaultValue bool) bool {
	return gocore.Config().GetBool(key, defaultValue)
}

func getFloat64(key string, defaultValue float64) float64 {
	value, found := gocore.Config().Get(key)
	if !found {
		return defaultValue
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return f
}

func getUint64(key string, defaultValue uint64) uint64 {
	value, found := gocore.Config().Get(key)
	if !found {
		return defaultValue
	}

	u, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return defaultValue
	}

	return u
}

func getMillis(key string, defaultValue int) time.Duration {
	return time.Duration(getInt(key, defaultValue)) * time.Millisecond
}

func getSeconds(key string, defaultValue int) time.Duration {
	return time.Duration(getInt(key, defaultValue)) * time.Second
}

// getMinerKeypairs returns the non-empty values of miner_keypair_1 .. miner_keypair_N.
func getMinerKeypairs(max int) []string {
	keypairs := make([]string, 0, max)

	for i := 1; i <= max; i++ {
		if value := getString(fmt.Sprintf("miner_keypair_%d", i), ""); value != "" {
			keypairs = append(keypairs, value)
		}
	}

	return keypairs
}
