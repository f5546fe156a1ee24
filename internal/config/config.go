package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/spf13/viper"

	"github.com/0xfullStack/Cryptoless/pkg/cryptoless"
	"github.com/0xfullStack/Cryptoless/pkg/signer"
)

const (
	// APIURLKey is the base url of the cryptoless REST API
	APIURLKey = "API_URL"
	// SocketURLKey is the url of the cryptoless realtime channel
	SocketURLKey = "SOCKET_URL"
	// TokenKey is the identity (web3) token of the user
	TokenKey = "TOKEN"
	// APIKeyKey is the api key used to sign every request
	APIKeyKey = "API_KEY"
	// MnemonicKey is the BIP-39 mnemonic of the key co-signing transactions
	MnemonicKey = "MNEMONIC"
	// DerivationPathKey is the BIP-32 path of the co-signing key
	DerivationPathKey = "DERIVATION_PATH"
	// DatadirKey is the local data directory where synced data is stored
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// RequestTimeoutKey is the timeout of every HTTP request
	RequestTimeoutKey = "REQUEST_TIMEOUT"
	// RateLimitKey is the max number of HTTP requests per second, 0 disables
	// the limit
	RateLimitKey = "RATE_LIMIT"

	DbLocation = "db"
)

var vip *viper.Viper
var defaultDatadir = btcutil.AppDataDir("cryptoless", false)

func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("CRYPTOLESS")
	vip.AutomaticEnv()

	vip.SetDefault(APIURLKey, cryptoless.DefaultBaseURL)
	vip.SetDefault(SocketURLKey, cryptoless.DefaultSocketURL)
	vip.SetDefault(DerivationPathKey, signer.DefaultDerivationPath)
	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(RequestTimeoutKey, 20*time.Second)
	vip.SetDefault(RateLimitKey, 0)

	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	if err := initDatadir(); err != nil {
		return fmt.Errorf("error while creating datadir: %s", err)
	}

	return nil
}

// Set overrides the value of key, ie. with a command line flag.
func Set(key string, value interface{}) {
	vip.Set(key, value)
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

// AllSettings returns the effective configuration. Secrets are masked.
func AllSettings() map[string]interface{} {
	settings := map[string]interface{}{}
	for _, key := range []string{
		APIURLKey, SocketURLKey, TokenKey, APIKeyKey, MnemonicKey,
		DerivationPathKey, DatadirKey, LogLevelKey, RequestTimeoutKey, RateLimitKey,
	} {
		value := vip.Get(key)
		switch key {
		case TokenKey, APIKeyKey, MnemonicKey:
			if len(vip.GetString(key)) > 0 {
				value = "********"
			}
		case RequestTimeoutKey:
			value = GetDuration(key).String()
		}
		settings[key] = value
	}
	return settings
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	for _, key := range []string{APIURLKey, SocketURLKey} {
		u, err := url.Parse(GetString(key))
		if err != nil || len(u.Host) <= 0 {
			return fmt.Errorf("%s must be a valid url", key)
		}
	}

	if GetDuration(RequestTimeoutKey) <= 0 {
		return fmt.Errorf("%s must be a positive duration", RequestTimeoutKey)
	}
	if GetInt(RateLimitKey) < 0 {
		return fmt.Errorf("%s must not be negative", RateLimitKey)
	}

	if _, err := signer.ParseDerivationPath(GetString(DerivationPathKey)); err != nil {
		return fmt.Errorf("invalid %s: %s", DerivationPathKey, err)
	}

	return nil
}

func initDatadir() error {
	return makeDirectoryIfNotExists(filepath.Join(GetDatadir(), DbLocation))
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
