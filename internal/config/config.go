package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper). It is constructed
// once at startup and passed by reference into every component that needs it;
// there is no module-level singleton.
type Config struct {
	Env                  string
	Port                 string
	DatabaseURL          string
	RedisURL             string
	ProviderURL          string        // HARDHAT_PROVIDER_URL: JSON-RPC endpoint of the chain node
	PrivateKeys          []string      // HARDHAT_PRIVATE_KEYS: comma-separated hex keys; admin key selected by artifact address
	ContractArtifactPath string        // contract-address.json written by the deploy script
	ConfirmTimeout       time.Duration // upper bound on each on-chain confirmation wait
}

// Artifact paths probed when CONTRACT_ARTIFACT_PATH is not set. The docker
// image mounts the artifact at a fixed path; local dev reads the deploy
// output from the contract package.
const (
	dockerArtifactPath = "/app/contract-address.json"
	localArtifactPath  = "../packages/contract/contract-address.json"
)

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	port := viper.GetString("PORT")
	if port == "" {
		port = "3001"
	}
	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	var keys []string
	for _, k := range strings.Split(viper.GetString("HARDHAT_PRIVATE_KEYS"), ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}

	confirmTimeout := viper.GetInt("CHAIN_CONFIRM_TIMEOUT_SECONDS")
	if confirmTimeout <= 0 {
		confirmTimeout = 90
	}

	return &Config{
		Env:                  env,
		Port:                 port,
		DatabaseURL:          viper.GetString("DATABASE_URL"),
		RedisURL:             viper.GetString("REDIS_URL"),
		ProviderURL:          viper.GetString("HARDHAT_PROVIDER_URL"),
		PrivateKeys:          keys,
		ContractArtifactPath: artifactPath(viper.GetString("CONTRACT_ARTIFACT_PATH")),
		ConfirmTimeout:       time.Duration(confirmTimeout) * time.Second,
	}, nil
}

func artifactPath(s string) string {
	if s != "" {
		return s
	}
	if _, err := os.Stat(dockerArtifactPath); err == nil {
		return dockerArtifactPath
	}
	return localArtifactPath
}
