package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the screening service
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Data      DataConfig      `mapstructure:"data"`
	Sanctions SanctionsConfig `mapstructure:"sanctions"`
	Indexer   IndexerConfig   `mapstructure:"indexer"`
	Screening ScreeningConfig `mapstructure:"screening"`
	Audit     AuditConfig     `mapstructure:"audit"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Environment string `mapstructure:"environment"`
}

// DataConfig holds filesystem layout configuration
type DataConfig struct {
	DataDir            string `mapstructure:"data_dir"`
	SanctionsDir       string `mapstructure:"sanctions_dir"`
	RiskAssessmentsDir string `mapstructure:"risk_assessments_dir"`
	AuditLogsDir       string `mapstructure:"audit_logs_dir"`
	ConfigDir          string `mapstructure:"config_dir"`
}

// SanctionsConfig holds sanctions data configuration
type SanctionsConfig struct {
	FileName        string        `mapstructure:"file_name"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	FeedURLs        []string      `mapstructure:"feed_urls"`
}

// IndexerConfig holds blockchain indexer client configuration
type IndexerConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	APIRateLimit   int           `mapstructure:"api_rate_limit"` // requests per minute
}

// ScreeningConfig holds screening and walk configuration
type ScreeningConfig struct {
	DefaultMaxHops   int           `mapstructure:"default_max_hops"`
	RiskCacheTTL     time.Duration `mapstructure:"risk_cache_ttl"`
	BulkChunkSize    int           `mapstructure:"bulk_chunk_size"`
	BulkChunkPause   time.Duration `mapstructure:"bulk_chunk_pause"`
	WalkBatchSize    int           `mapstructure:"walk_batch_size"`
	WalkTxsPerHop    int           `mapstructure:"walk_txs_per_hop"`
	WalkAddrFanout   int           `mapstructure:"walk_addr_fanout"`
	WalkTxsPerTarget int           `mapstructure:"walk_txs_per_target"`
	WalkTxsPerAddr   int           `mapstructure:"walk_txs_per_addr"`
}

// AuditConfig holds audit log configuration
type AuditConfig struct {
	QueryWindowDays int `mapstructure:"query_window_days"`
}

// SanctionsFile returns the resolved path of the sanctions data file
func (c *Config) SanctionsFile() string {
	return filepath.Join(c.Data.SanctionsDir, c.Sanctions.FileName)
}

// Load loads configuration from environment and config files
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("BTC_SCREENING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/btc-screening")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Config file not found, use defaults + env
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8084)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.environment", "development")

	// Data layout defaults
	v.SetDefault("data.data_dir", "./data")
	v.SetDefault("data.sanctions_dir", "./data/sanctions")
	v.SetDefault("data.risk_assessments_dir", "./data/risk-assessments")
	v.SetDefault("data.audit_logs_dir", "./data/audit-logs")
	v.SetDefault("data.config_dir", "./data/config")

	// Sanctions defaults
	v.SetDefault("sanctions.file_name", "ofac_sdn_crypto.json")
	v.SetDefault("sanctions.refresh_interval", "1h")
	v.SetDefault("sanctions.feed_urls", []string{
		"https://www.treasury.gov/ofac/downloads/sdn.csv",
	})

	// Indexer defaults
	v.SetDefault("indexer.base_url", "https://blockstream.info/api")
	v.SetDefault("indexer.request_timeout", "15s")
	v.SetDefault("indexer.api_rate_limit", 60)

	// Screening defaults
	v.SetDefault("screening.default_max_hops", 5)
	v.SetDefault("screening.risk_cache_ttl", "30m")
	v.SetDefault("screening.bulk_chunk_size", 10)
	v.SetDefault("screening.bulk_chunk_pause", "100ms")
	v.SetDefault("screening.walk_batch_size", 5)
	v.SetDefault("screening.walk_txs_per_hop", 10)
	v.SetDefault("screening.walk_addr_fanout", 3)
	v.SetDefault("screening.walk_txs_per_target", 25)
	v.SetDefault("screening.walk_txs_per_addr", 5)

	// Audit defaults
	v.SetDefault("audit.query_window_days", 7)
}
