// Package config handles configuration loading and validation for the mining
// simulator.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/bawdyanarchist/minesim/internal/difficulty"
	"github.com/bawdyanarchist/minesim/internal/noise"
	"github.com/bawdyanarchist/minesim/internal/simerrors"
)

// Config holds all configuration for a simulator invocation (spec 6
// "Inputs").
type Config struct {
	Sim        SimConfig        `mapstructure:"sim"`
	Difficulty DifficultyConfig `mapstructure:"difficulty"`
	Network    NetworkConfig    `mapstructure:"network"`
	Paths      PathsConfig      `mapstructure:"paths"`
	Log        LogConfig        `mapstructure:"log"`
	API        APIConfig        `mapstructure:"api"`
	Registry   RegistryConfig   `mapstructure:"registry"`
	Profiling  ProfilingConfig  `mapstructure:"profiling"`
	NewRelic   NewRelicConfig   `mapstructure:"newrelic"`
	Notify     NotifyConfig     `mapstructure:"notify"`
}

// RegistryConfig controls the optional Redis mirror of round status (spec
// SPEC_FULL 2.7). An empty RedisAddr keeps the registry purely in-memory.
type RegistryConfig struct {
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// APIConfig controls the optional read-only status API (spec SPEC_FULL 2.8).
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Bind    string `mapstructure:"bind"`
}

// ProfilingConfig controls the optional pprof HTTP server (spec SPEC_FULL 2.11).
type ProfilingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Bind    string `mapstructure:"bind"`
}

// NewRelicConfig controls the optional APM wrapper (spec SPEC_FULL 2.9).
type NewRelicConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	LicenseKey string `mapstructure:"license_key"`
	AppName    string `mapstructure:"app_name"`
}

// NotifyConfig controls the optional anomaly-alerting webhooks (spec
// SPEC_FULL 2.10).
type NotifyConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	DiscordURL       string  `mapstructure:"discord_url"`
	TelegramBotToken string  `mapstructure:"telegram_bot_token"`
	TelegramChatID   string  `mapstructure:"telegram_chat_id"`
	OrphanRateMax    float64 `mapstructure:"orphan_rate_max"`
	ReorgRateMax     float64 `mapstructure:"reorg_rate_max"`
}

// SimConfig covers the environment table's run-shape knobs.
type SimConfig struct {
	DepthHours  float64 `mapstructure:"depth_hours"`   // SIM_DEPTH
	Rounds      string  `mapstructure:"rounds"`        // SIM_ROUNDS: integer literal or "sweep"
	Workers     int     `mapstructure:"workers"`       // WORKERS
	WorkerRAMMB int     `mapstructure:"worker_ram_mb"` // WORKER_RAM
	DataMode    string  `mapstructure:"data_mode"`     // DATA_MODE: simple|metrics|full
	Seed        uint32  `mapstructure:"seed"`          // SEED
}

// DifficultyConfig is the Monero-style retarget parameterization.
type DifficultyConfig struct {
	TargetSeconds int64 `mapstructure:"target_seconds"` // DIFFICULTY_TARGET_V2
	Window        int   `mapstructure:"window"`         // W
	Lag           int   `mapstructure:"lag"`            // L
	Cut           int   `mapstructure:"cut"`
}

// ToParams adapts DifficultyConfig to the difficulty engine's Params.
func (d DifficultyConfig) ToParams() difficulty.Params {
	return difficulty.Params{TargetSeconds: d.TargetSeconds, Window: d.Window, Lag: d.Lag, Cut: d.Cut}
}

// NetworkConfig parameterizes the noise samplers (spec 4.3).
type NetworkConfig struct {
	NetworkHashrate float64 `mapstructure:"network_hashrate"`
	PingMS          float64 `mapstructure:"ping_ms"`
	CV              float64 `mapstructure:"cv"`
	MBPS            float64 `mapstructure:"mbps"`
	NTPStdev        float64 `mapstructure:"ntp_stdev"`
	BlockSizeKB     float64 `mapstructure:"block_size_kb"`
}

// ToNoiseConfig adapts NetworkConfig to the sampler config.
func (n NetworkConfig) ToNoiseConfig() noise.Config {
	return noise.Config{PingMS: n.PingMS, CV: n.CV, MBPS: n.MBPS, BlockSizeKB: n.BlockSizeKB}
}

// PathsConfig names the input/output files of spec 6.
type PathsConfig struct {
	PoolsFile             string `mapstructure:"pools_file"`
	StrategyManifestFile  string `mapstructure:"strategy_manifest_file"`
	BootstrapFile         string `mapstructure:"bootstrap_file"`
	SweepFile             string `mapstructure:"sweep_file"`
	OutputDir             string `mapstructure:"output_dir"`
}

// LogConfig controls the optional narration logs (spec 6 "Logs").
type LogConfig struct {
	Modes []string `mapstructure:"modes"` // subset of info, probe, stats
	Dir   string   `mapstructure:"dir"`
}

var validDataModes = map[string]bool{"simple": true, "metrics": true, "full": true}
var validLogModes = map[string]bool{"info": true, "probe": true, "stats": true}

// Load reads configuration from file and environment.
func Load(configPath string) (*Config, error) {
	v, err := LoadViper(configPath)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// LoadViper builds the viper instance Load reads from, without unmarshaling
// or validating. Exposed so internal/sweep can overlay per-round values onto
// the same defaulted, file-and-env-backed instance before each permutation
// is unmarshaled (spec 6 "Optional sweeps file").
func LoadViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/minesim")
	}

	v.SetEnvPrefix("MINESIM")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}
	return v, nil
}

// FromViper unmarshals and validates a (possibly sweep-overlaid) viper
// instance into a Config.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sim.depth_hours", 24.0)
	v.SetDefault("sim.rounds", "1")
	v.SetDefault("sim.workers", 4)
	v.SetDefault("sim.worker_ram_mb", 2048)
	v.SetDefault("sim.data_mode", "metrics")
	v.SetDefault("sim.seed", 1)

	v.SetDefault("difficulty.target_seconds", 120)
	v.SetDefault("difficulty.window", 720)
	v.SetDefault("difficulty.lag", 15)
	v.SetDefault("difficulty.cut", 60)

	v.SetDefault("network.network_hashrate", 1_000_000.0)
	v.SetDefault("network.ping_ms", 70.0)
	v.SetDefault("network.cv", 0.5)
	v.SetDefault("network.mbps", 100.0)
	v.SetDefault("network.ntp_stdev", 2.0)
	v.SetDefault("network.block_size_kb", 20.0)

	v.SetDefault("paths.pools_file", "pools.csv")
	v.SetDefault("paths.strategy_manifest_file", "strategy_manifest.json")
	v.SetDefault("paths.bootstrap_file", "difficulty_bootstrap.csv")
	v.SetDefault("paths.output_dir", "./results")

	v.SetDefault("log.modes", []string{"info"})
	v.SetDefault("log.dir", "./logs")

	v.SetDefault("api.enabled", false)
	v.SetDefault("api.bind", ":8080")

	v.SetDefault("registry.redis_addr", "")
	v.SetDefault("registry.redis_db", 0)

	v.SetDefault("profiling.enabled", false)
	v.SetDefault("profiling.bind", ":6060")

	v.SetDefault("newrelic.enabled", false)
	v.SetDefault("newrelic.app_name", "minesim")

	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.orphan_rate_max", 0.05)
	v.SetDefault("notify.reorg_rate_max", 0.01)
}

// Validate checks configuration for errors (spec 7 "Config" errors fail
// fast before any round starts).
func (c *Config) Validate() error {
	if c.Sim.DepthHours <= 0 {
		return fmt.Errorf("%w: sim.depth_hours must be > 0", simerrors.ErrConfig)
	}
	if c.Sim.Rounds == "" {
		return fmt.Errorf("%w: sim.rounds is required (integer or \"sweep\")", simerrors.ErrConfig)
	}
	if c.Sim.Workers <= 0 {
		return fmt.Errorf("%w: sim.workers must be > 0", simerrors.ErrConfig)
	}
	if c.Sim.WorkerRAMMB <= 0 {
		return fmt.Errorf("%w: sim.worker_ram_mb must be > 0", simerrors.ErrConfig)
	}
	if !validDataModes[c.Sim.DataMode] {
		return fmt.Errorf("%w: sim.data_mode must be one of simple, metrics, full, got %q", simerrors.ErrConfig, c.Sim.DataMode)
	}
	if err := c.Difficulty.ToParams().Validate(); err != nil {
		return fmt.Errorf("%w: difficulty: %v", simerrors.ErrConfig, err)
	}
	if c.Network.NetworkHashrate <= 0 {
		return fmt.Errorf("%w: network.network_hashrate must be > 0", simerrors.ErrConfig)
	}
	if c.Network.PingMS < 0 {
		return fmt.Errorf("%w: network.ping_ms must be >= 0", simerrors.ErrConfig)
	}
	if c.Network.CV <= 0 {
		return fmt.Errorf("%w: network.cv must be > 0", simerrors.ErrConfig)
	}
	if c.Network.MBPS <= 0 {
		return fmt.Errorf("%w: network.mbps must be > 0", simerrors.ErrConfig)
	}
	if c.Network.NTPStdev < 0 {
		return fmt.Errorf("%w: network.ntp_stdev must be >= 0", simerrors.ErrConfig)
	}
	if c.Network.BlockSizeKB <= 0 {
		return fmt.Errorf("%w: network.block_size_kb must be > 0", simerrors.ErrConfig)
	}
	if c.Paths.PoolsFile == "" || c.Paths.StrategyManifestFile == "" || c.Paths.BootstrapFile == "" {
		return fmt.Errorf("%w: paths.pools_file, strategy_manifest_file and bootstrap_file are all required", simerrors.ErrConfig)
	}
	for _, m := range c.Log.Modes {
		if !validLogModes[m] {
			return fmt.Errorf("%w: log.modes: unknown mode %q, want subset of info, probe, stats", simerrors.ErrConfig, m)
		}
	}
	return nil
}

// DepthSeconds converts the configured sim depth to seconds.
func (c *Config) DepthSeconds() float64 {
	return c.Sim.DepthHours * 3600
}

// IsSweep reports whether sim.rounds requests a parameter sweep rather than
// a fixed round count.
func (c *Config) IsSweep() bool {
	return c.Sim.Rounds == "sweep"
}
