package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	// DatadirKey is the local data directory to store the internal state of
	// the daemon.
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the
	// values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// NetworkKey selects the chain: mainnet, testnet or regtest.
	NetworkKey = "NETWORK"
	// ExplorerEndpointKey is the URL of the esplora API to fetch chain data
	// from.
	ExplorerEndpointKey = "EXPLORER_ENDPOINT"
	// ExplorerRequestTimeoutKey is the timeout in seconds of a single
	// explorer HTTP request.
	ExplorerRequestTimeoutKey = "EXPLORER_REQUEST_TIMEOUT"
	// ExplorerRequestsPerSecondKey caps the outbound request rate towards
	// the explorer.
	ExplorerRequestsPerSecondKey = "EXPLORER_REQUESTS_PER_SECOND"
	// FallbackFeeRateKey is the sats/vbyte rate used when the explorer has
	// no fee estimates, e.g. on a fresh regtest chain.
	FallbackFeeRateKey = "FALLBACK_FEE_RATE"
	// FeeTargetBlocksKey is the confirmation target used to pick a fee rate
	// from the explorer estimates.
	FeeTargetBlocksKey = "FEE_TARGET_BLOCKS"
	// CrawlIntervalKey is the interval in milliseconds between two polls of a
	// watched address or transaction.
	CrawlIntervalKey = "CRAWL_INTERVAL"
	// EscrowMnemonicKey is the backup mnemonic of the escrow co-signing
	// identity. Set only when the daemon runs its own local escrow signer,
	// typically on regtest.
	EscrowMnemonicKey = "ESCROW_MNEMONIC"
	// ContactsFileKey is the path of the JSON snapshot exported by the
	// contact-book subsystem, used to list heir candidates.
	ContactsFileKey = "CONTACTS_FILE"

	// DbLocation is the subdirectory of the datadir holding the database.
	DbLocation = "db"
)

var vip *viper.Viper
var defaultDatadir = btcutil.AppDataDir("heirvault-daemon", false)

// InitConfig loads the daemon configuration from HEIRVAULT_* environment
// variables with sane defaults.
func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("HEIRVAULT")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(NetworkKey, "regtest")
	vip.SetDefault(ExplorerEndpointKey, "http://127.0.0.1:3001")
	vip.SetDefault(ExplorerRequestTimeoutKey, 30)
	vip.SetDefault(ExplorerRequestsPerSecondKey, 10)
	vip.SetDefault(FallbackFeeRateKey, 1)
	vip.SetDefault(FeeTargetBlocksKey, 3)
	vip.SetDefault(CrawlIntervalKey, 5000)
	vip.SetDefault(ContactsFileKey, filepath.Join(defaultDatadir, "contacts.json"))

	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	if err := initDatadir(); err != nil {
		return fmt.Errorf("error while creating datadir: %s", err)
	}

	log.SetLevel(log.Level(GetInt(LogLevelKey)))
	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetDuration(key string) time.Duration {
	return vip.GetDuration(key)
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

// GetDbDir returns the directory holding the daemon database.
func GetDbDir() string {
	return filepath.Join(GetDatadir(), DbLocation)
}

// GetNetwork maps the configured network name to its chain parameters.
func GetNetwork() (*chaincfg.Params, error) {
	switch network := GetString(NetworkKey); network {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network '%s'", network)
	}
}

func validate() error {
	if _, err := GetNetwork(); err != nil {
		return err
	}
	if len(GetString(ExplorerEndpointKey)) <= 0 {
		return fmt.Errorf("explorer endpoint must not be empty")
	}
	if GetInt(ExplorerRequestsPerSecondKey) <= 0 {
		return fmt.Errorf("explorer requests per second must be positive")
	}
	if GetInt(FallbackFeeRateKey) <= 0 {
		return fmt.Errorf("fallback fee rate must be positive")
	}
	return nil
}

func initDatadir() error {
	return makeDirectoryIfNotExists(GetDbDir())
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
