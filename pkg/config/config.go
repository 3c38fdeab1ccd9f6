package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// APIServerConfig represents the score middleware API server configuration
type APIServerConfig struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Contract       ContractConfig       `mapstructure:"contract"`
	ScoreAPI       ScoreAPIConfig       `mapstructure:"score_api"`
	Session        SessionConfig        `mapstructure:"session"`
	KeyManagement  KeyManagementConfig  `mapstructure:"key_management"`
	Reconciliation ReconciliationConfig `mapstructure:"reconciliation"`
	Logging        LoggingConfig        `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// ContractConfig contains the credit-score contract RPC settings.
// Contract identity (network passphrase + contract id) is fixed configuration,
// not runtime data.
type ContractConfig struct {
	RPCURL            string        `mapstructure:"rpc_url"`
	ContractID        string        `mapstructure:"contract_id"`
	NetworkPassphrase string        `mapstructure:"network_passphrase"`
	CallTimeout       time.Duration `mapstructure:"call_timeout"`
}

// ScoreAPIConfig contains settings for the REST scoring mirror used as the
// fallback path when the contract is unavailable.
type ScoreAPIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RetryCount     int           `mapstructure:"retry_count"`
}

// SessionConfig contains dashboard session settings
type SessionConfig struct {
	SigningKeyEnv string        `mapstructure:"signing_key_env"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	Issuer        string        `mapstructure:"issuer"`
	PromptTimeout time.Duration `mapstructure:"prompt_timeout"`
}

// KeyManagementConfig contains custodial key encryption settings
type KeyManagementConfig struct {
	MasterKeyEnv string `mapstructure:"master_key_env"`
}

// ReconciliationConfig contains settings for score mirror reconciliation
type ReconciliationConfig struct {
	InitialTimeout time.Duration `mapstructure:"initial_timeout"`
	Interval       time.Duration `mapstructure:"interval"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// LoadAPIServer loads API server configuration from file and environment variables
func LoadAPIServer(configPath string) (*APIServerConfig, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setAPIServerDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config APIServerConfig
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateAPIServer(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setAPIServerDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.database", "kredible")

	// Contract defaults. Testnet instability makes a generous budget necessary;
	// after the timeout the attempt counts as failed and the REST path runs.
	viper.SetDefault("contract.call_timeout", "30s")

	// Score API defaults
	viper.SetDefault("score_api.request_timeout", "15s")
	viper.SetDefault("score_api.retry_count", 3)

	// Session defaults
	viper.SetDefault("session.signing_key_env", "SESSION_SIGNING_KEY")
	viper.SetDefault("session.token_ttl", "24h")
	viper.SetDefault("session.issuer", "kredible-score-middleware")
	viper.SetDefault("session.prompt_timeout", "2m")

	// Key management defaults
	viper.SetDefault("key_management.master_key_env", "KEY_MASTER_KEY")

	// Reconciliation defaults
	viper.SetDefault("reconciliation.initial_timeout", "2m")
	viper.SetDefault("reconciliation.interval", "5m")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")
}

func validateAPIServer(config *APIServerConfig) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if config.Contract.RPCURL == "" {
		return fmt.Errorf("contract.rpc_url is required")
	}
	if config.Contract.ContractID == "" {
		return fmt.Errorf("contract.contract_id is required")
	}
	if config.ScoreAPI.BaseURL == "" {
		return fmt.Errorf("score_api.base_url is required")
	}
	return nil
}

// GetConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
