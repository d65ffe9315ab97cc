package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rustaceanrob/coinline/pkg/explorer"
	"github.com/rustaceanrob/coinline/pkg/explorer/electrum"
	"github.com/rustaceanrob/coinline/pkg/explorer/esplora"
	"github.com/rustaceanrob/coinline/pkg/wallet"
	"github.com/spf13/viper"
)

const (
	// XpubKey is the account extended public key of the wallet, in any of the
	// xpub/ypub/zpub (tpub/upub/vpub for test networks) serializations
	XpubKey = "XPUB"
	// FingerprintKey is the hex encoded fingerprint of the master key the
	// account is derived from, as reported by the signing device
	FingerprintKey = "FINGERPRINT"
	// AccountPathKey overrides the account derivation path, default is
	// m/84'/0'/0' for mainnet and m/84'/1'/0' for the other networks
	AccountPathKey = "ACCOUNT_PATH"
	// NetworkKey is the network to use. One of mainnet, testnet, regtest or
	// signet
	NetworkKey = "NETWORK"
	// GapLimitKey is the number of consecutive unused addresses after which a
	// chain scan stops
	GapLimitKey = "GAP_LIMIT"
	// ProviderURLKey is the endpoint of the chain data provider. Either an
	// Esplora REST API (http:// or https://) or an Electrum server (tcp://
	// or ssl://). Defaults to the Blockstream Esplora for the network
	ProviderURLKey = "PROVIDER_URL"
	// ProviderRateLimitKey is the max number of requests per second sent to
	// the provider, 0 means unlimited
	ProviderRateLimitKey = "PROVIDER_RATE_LIMIT"
	// ProviderTimeoutKey is the timeout of a single provider request
	ProviderTimeoutKey = "PROVIDER_TIMEOUT"
	// DatadirKey is the local data directory where config.json is read from
	// and PSBT files are written to
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"

	PsbtLocation   = "psbt"
	ConfigFileName = "config"

	MinGapLimit = 1
	MaxGapLimit = 50
)

var (
	// ErrMissingXpub ...
	ErrMissingXpub = errors.New("xpub is not configured")
	// ErrMissingFingerprint ...
	ErrMissingFingerprint = errors.New("master key fingerprint is not configured")
)

var networks = map[string]*chaincfg.Params{
	"mainnet": &chaincfg.MainNetParams,
	"testnet": &chaincfg.TestNet3Params,
	"regtest": &chaincfg.RegressionNetParams,
	"signet":  &chaincfg.SigNetParams,
}

var defaultProviderURLs = map[string]string{
	"mainnet": "https://blockstream.info/api",
	"testnet": "https://blockstream.info/testnet/api",
	"regtest": "http://localhost:3000",
	"signet":  "https://mempool.space/signet/api",
}

var vip *viper.Viper
var defaultDatadir = btcutil.AppDataDir("coinline", false)

func init() {
	vip = newViper()
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("COINLINE")
	v.AutomaticEnv()

	v.SetDefault(NetworkKey, "mainnet")
	v.SetDefault(GapLimitKey, 20)
	v.SetDefault(ProviderRateLimitKey, 10)
	v.SetDefault(ProviderTimeoutKey, 30*time.Second)
	v.SetDefault(LogLevelKey, 4)
	v.SetDefault(DatadirKey, defaultDatadir)
	return v
}

// InitConfig loads the optional config.json file from the datadir and
// validates the resulting configuration. Environment variables take
// precedence over the file.
func InitConfig() error {
	vip.SetConfigName(ConfigFileName)
	vip.SetConfigType("json")
	vip.AddConfigPath(GetDatadir())
	if err := vip.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return validate()
}

//GetString ...
func GetString(key string) string {
	return vip.GetString(key)
}

//GetInt ...
func GetInt(key string) int {
	return vip.GetInt(key)
}

//GetDuration ...
func GetDuration(key string) time.Duration {
	return vip.GetDuration(key)
}

//GetNetwork ...
func GetNetwork() *chaincfg.Params {
	if net, ok := networks[strings.ToLower(GetString(NetworkKey))]; ok {
		return net
	}
	return &chaincfg.MainNetParams
}

// GetGapLimit ...
func GetGapLimit() uint32 {
	return uint32(GetInt(GapLimitKey))
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

// GetPsbtDir returns the directory PSBT files are written to by default.
func GetPsbtDir() (string, error) {
	dir := filepath.Join(GetDatadir(), PsbtLocation)
	if err := makeDirectoryIfNotExists(dir); err != nil {
		return "", err
	}
	return dir, nil
}

// GetProviderURL returns the configured provider endpoint or the default one
// for the network.
func GetProviderURL() string {
	if u := GetString(ProviderURLKey); u != "" {
		return u
	}
	return defaultProviderURLs[strings.ToLower(GetString(NetworkKey))]
}

//GetExplorer returns an Electrum service for tcp:// and ssl:// provider
//urls and an Esplora one otherwise. Esplora request metrics are registered
//on reg if not nil.
func GetExplorer(reg prometheus.Registerer) (explorer.Service, error) {
	endpoint := GetProviderURL()
	timeout := GetDuration(ProviderTimeoutKey)
	rateLimit := GetInt(ProviderRateLimitKey)

	if isElectrumURL(endpoint) {
		return electrum.NewService(electrum.ServiceOpts{
			URL:            endpoint,
			RequestTimeout: timeout,
			RateLimit:      rateLimit,
		})
	}
	return esplora.NewService(esplora.ServiceOpts{
		URL:            endpoint,
		Network:        GetNetwork(),
		RequestTimeout: timeout,
		RateLimit:      rateLimit,
		Registerer:     reg,
	})
}

// GetMasterKey parses the configured xpub for the configured network.
func GetMasterKey() (*wallet.MasterKey, error) {
	xpub := GetString(XpubKey)
	if xpub == "" {
		return nil, ErrMissingXpub
	}

	var accountPath wallet.DerivationPath
	if p := GetString(AccountPathKey); p != "" {
		path, err := wallet.ParseDerivationPath(p)
		if err != nil {
			return nil, err
		}
		accountPath = path
	}

	return wallet.NewMasterKey(wallet.NewMasterKeyOpts{
		ExtendedKey: xpub,
		Network:     GetNetwork(),
		AccountPath: accountPath,
	})
}

// GetFingerprint ...
func GetFingerprint() (wallet.Fingerprint, error) {
	fp := GetString(FingerprintKey)
	if fp == "" {
		return wallet.Fingerprint{}, ErrMissingFingerprint
	}
	return wallet.ParseFingerprint(fp)
}

// Set a value for the given key
func Set(key string, value interface{}) {
	vip.Set(key, value)
}

// IsSet returns whether the give key is set
func IsSet(key string) bool {
	return vip.IsSet(key)
}

// AllSettings returns the effective configuration.
func AllSettings() map[string]interface{} {
	settings := map[string]interface{}{
		XpubKey:              GetString(XpubKey),
		FingerprintKey:       GetString(FingerprintKey),
		AccountPathKey:       GetString(AccountPathKey),
		NetworkKey:           GetString(NetworkKey),
		GapLimitKey:          GetInt(GapLimitKey),
		ProviderURLKey:       GetProviderURL(),
		ProviderRateLimitKey: GetInt(ProviderRateLimitKey),
		ProviderTimeoutKey:   GetDuration(ProviderTimeoutKey).String(),
		DatadirKey:           GetDatadir(),
		LogLevelKey:          GetInt(LogLevelKey),
	}
	if f := vip.ConfigFileUsed(); f != "" {
		settings["CONFIG_FILE"] = f
	}
	return settings
}

func isElectrumURL(endpoint string) bool {
	u, err := url.Parse(endpoint)
	return err == nil && (u.Scheme == "tcp" || u.Scheme == "ssl")
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("datadir must not be null")
	}

	networkName := strings.ToLower(GetString(NetworkKey))
	if _, ok := networks[networkName]; !ok {
		return fmt.Errorf(
			"network must be one of 'mainnet', 'testnet', 'regtest' or 'signet'",
		)
	}

	gapLimit := GetInt(GapLimitKey)
	if gapLimit < MinGapLimit || gapLimit > MaxGapLimit {
		return fmt.Errorf(
			"gap limit must be in range [%d, %d]", MinGapLimit, MaxGapLimit,
		)
	}

	if GetInt(ProviderRateLimitKey) < 0 {
		return fmt.Errorf("provider rate limit must not be negative")
	}
	if GetDuration(ProviderTimeoutKey) <= 0 {
		return fmt.Errorf("provider timeout must be greater than zero")
	}

	endpoint := GetProviderURL()
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("provider url is not a valid url: %s", err)
	}
	switch u.Scheme {
	case "http", "https", "tcp", "ssl":
	default:
		return fmt.Errorf(
			"provider url scheme must be one of http, https, tcp or ssl, got %q",
			u.Scheme,
		)
	}

	if fp := GetString(FingerprintKey); fp != "" {
		if _, err := wallet.ParseFingerprint(fp); err != nil {
			return err
		}
	}
	if p := GetString(AccountPathKey); p != "" {
		if _, err := wallet.ParseDerivationPath(p); err != nil {
			return err
		}
	}
	return nil
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
