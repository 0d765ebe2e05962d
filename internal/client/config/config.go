// Package config loads the client configuration from an optional YAML file,
// FITSYNC_* environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/iudanet/fitsync/internal/client/cache"
	"github.com/iudanet/fitsync/internal/client/changelog"
	"github.com/iudanet/fitsync/internal/client/connectivity"
	"github.com/iudanet/fitsync/internal/client/syncer"
	"github.com/iudanet/fitsync/internal/models"
)

// EnvPrefix префикс переменных окружения
const EnvPrefix = "FITSYNC"

// Ключи конфигурации
const (
	KeyServerURL = "server_url"
	KeyToken     = "token"
	KeyOwnerID   = "owner_id"
	KeyDBPath    = "db_path"
	KeyInMemory  = "in_memory"

	KeySyncInterval      = "sync.interval"
	KeySyncRemoteTimeout = "sync.remote_timeout"
	KeySyncMaxRetries    = "sync.max_retries"
	KeySyncRetryBase     = "sync.retry_base"
	KeySyncRetryCap      = "sync.retry_cap"
	KeySyncStrategies    = "sync.strategies"

	KeyCacheMaxSize        = "cache.max_size"
	KeyCachePolicy         = "cache.policy"
	KeyCacheTTL            = "cache.ttl"
	KeyCacheSweepInterval  = "cache.sweep_interval"
	KeyCacheTargetFraction = "cache.target_fraction"

	KeyConnDebounce      = "connectivity.debounce"
	KeyConnProbeInterval = "connectivity.probe_interval"
	KeyConnProbeTimeout  = "connectivity.probe_timeout"

	KeyLogLevel      = "log.level"
	KeyLogFormat     = "log.format"
	KeyLogFile       = "log.file"
	KeyLogMaxSizeMB  = "log.max_size_mb"
	KeyLogMaxBackups = "log.max_backups"
)

// Миллисекундные ключи, совместимые с настройками мобильного клиента
const (
	legacySyncIntervalMs         = "syncIntervalMs"
	legacyMaxRetries             = "maxRetries"
	legacyRetryBaseMs            = "retryBaseMs"
	legacyRetryCapMs             = "retryCapMs"
	legacyMaxCacheSizeBytes      = "maxCacheSizeBytes"
	legacyCacheEvictionPolicy    = "cacheEvictionPolicy"
	legacyCacheTTLMs             = "cacheTtlMs"
	legacyConnectivityDebounceMs = "connectivityDebounceMs"
)

// SyncConfig настройки диспетчера
type SyncConfig struct {
	Strategies    map[string]string `json:"strategies,omitempty" yaml:"strategies,omitempty"`
	Interval      time.Duration     `json:"interval" yaml:"interval"`
	RemoteTimeout time.Duration     `json:"remote_timeout" yaml:"remote_timeout"`
	RetryBase     time.Duration     `json:"retry_base" yaml:"retry_base"`
	RetryCap      time.Duration     `json:"retry_cap" yaml:"retry_cap"`
	MaxRetries    int               `json:"max_retries" yaml:"max_retries"`
}

// CacheConfig настройки локального кеша
type CacheConfig struct {
	Policy         string        `json:"policy" yaml:"policy"`
	MaxSizeBytes   int64         `json:"max_size_bytes" yaml:"max_size_bytes"`
	TTL            time.Duration `json:"ttl" yaml:"ttl"`
	SweepInterval  time.Duration `json:"sweep_interval" yaml:"sweep_interval"`
	TargetFraction float64       `json:"target_fraction" yaml:"target_fraction"`
}

// ConnectivityConfig настройки монитора сети
type ConnectivityConfig struct {
	Debounce      time.Duration `json:"debounce" yaml:"debounce"`
	ProbeInterval time.Duration `json:"probe_interval" yaml:"probe_interval"`
	ProbeTimeout  time.Duration `json:"probe_timeout" yaml:"probe_timeout"`
}

// LogConfig настройки журналирования
type LogConfig struct {
	Level      string `json:"level" yaml:"level"`
	Format     string `json:"format" yaml:"format"`
	File       string `json:"file,omitempty" yaml:"file,omitempty"` // пусто - stderr
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
}

// Config конфигурация клиента
type Config struct {
	Sync         SyncConfig         `json:"sync" yaml:"sync"`
	Cache        CacheConfig        `json:"cache" yaml:"cache"`
	Log          LogConfig          `json:"log" yaml:"log"`
	Connectivity ConnectivityConfig `json:"connectivity" yaml:"connectivity"`
	ServerURL    string             `json:"server_url" yaml:"server_url"`
	Token        string             `json:"-" yaml:"-"`
	OwnerID      string             `json:"owner_id" yaml:"owner_id"`
	DBPath       string             `json:"db_path" yaml:"db_path"`
	File         string             `json:"-" yaml:"-"` // прочитанный файл конфигурации
	InMemory     bool               `json:"in_memory" yaml:"in_memory"`
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers the built-in defaults.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyServerURL, "http://localhost:8080")
	v.SetDefault(KeyToken, "")
	v.SetDefault(KeyOwnerID, "")
	v.SetDefault(KeyDBPath, defaultDBPath())
	v.SetDefault(KeyInMemory, false)

	v.SetDefault(KeySyncInterval, syncer.DefaultSyncInterval)
	v.SetDefault(KeySyncRemoteTimeout, syncer.DefaultRemoteTimeout)
	v.SetDefault(KeySyncMaxRetries, changelog.DefaultMaxRetries)
	v.SetDefault(KeySyncRetryBase, changelog.DefaultRetryBase)
	v.SetDefault(KeySyncRetryCap, changelog.DefaultRetryCap)
	v.SetDefault(KeySyncStrategies, map[string]string{})

	v.SetDefault(KeyCacheMaxSize, humanize.IBytes(uint64(cache.DefaultMaxSizeBytes)))
	v.SetDefault(KeyCachePolicy, string(cache.PolicyLRU))
	v.SetDefault(KeyCacheTTL, cache.DefaultTTL)
	v.SetDefault(KeyCacheSweepInterval, time.Minute)
	v.SetDefault(KeyCacheTargetFraction, cache.DefaultTargetFraction)

	v.SetDefault(KeyConnDebounce, connectivity.DefaultDebounce)
	v.SetDefault(KeyConnProbeInterval, connectivity.DefaultProbeInterval)
	v.SetDefault(KeyConnProbeTimeout, connectivity.DefaultProbeTimeout)

	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyLogMaxSizeMB, 10)
	v.SetDefault(KeyLogMaxBackups, 3)
}

// Load reads the configuration. An explicit path must exist; otherwise
// fitsync.yaml is looked up in the working directory and the user config
// directory, and its absence is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("fitsync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "fitsync"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg, err := FromViper(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromViper builds a Config from already loaded settings.
func FromViper(v *viper.Viper) (*Config, error) {
	maxSize, err := parseSize(v.GetString(KeyCacheMaxSize))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyCacheMaxSize, err)
	}

	cfg := &Config{
		ServerURL: strings.TrimRight(v.GetString(KeyServerURL), "/"),
		Token:     v.GetString(KeyToken),
		OwnerID:   v.GetString(KeyOwnerID),
		DBPath:    v.GetString(KeyDBPath),
		File:      v.ConfigFileUsed(),
		InMemory:  v.GetBool(KeyInMemory),
		Sync: SyncConfig{
			Strategies:    v.GetStringMapString(KeySyncStrategies),
			Interval:      v.GetDuration(KeySyncInterval),
			RemoteTimeout: v.GetDuration(KeySyncRemoteTimeout),
			RetryBase:     v.GetDuration(KeySyncRetryBase),
			RetryCap:      v.GetDuration(KeySyncRetryCap),
			MaxRetries:    v.GetInt(KeySyncMaxRetries),
		},
		Cache: CacheConfig{
			Policy:         v.GetString(KeyCachePolicy),
			MaxSizeBytes:   maxSize,
			TTL:            v.GetDuration(KeyCacheTTL),
			SweepInterval:  v.GetDuration(KeyCacheSweepInterval),
			TargetFraction: v.GetFloat64(KeyCacheTargetFraction),
		},
		Connectivity: ConnectivityConfig{
			Debounce:      v.GetDuration(KeyConnDebounce),
			ProbeInterval: v.GetDuration(KeyConnProbeInterval),
			ProbeTimeout:  v.GetDuration(KeyConnProbeTimeout),
		},
		Log: LogConfig{
			Level:      strings.ToLower(v.GetString(KeyLogLevel)),
			Format:     strings.ToLower(v.GetString(KeyLogFormat)),
			File:       v.GetString(KeyLogFile),
			MaxSizeMB:  v.GetInt(KeyLogMaxSizeMB),
			MaxBackups: v.GetInt(KeyLogMaxBackups),
		},
	}

	if err := applyLegacy(v, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyLegacy применяет миллисекундные ключи поверх новых
func applyLegacy(v *viper.Viper, cfg *Config) error {
	ms := func(key string, dst *time.Duration) {
		if v.IsSet(key) {
			*dst = time.Duration(v.GetInt64(key)) * time.Millisecond
		}
	}
	ms(legacySyncIntervalMs, &cfg.Sync.Interval)
	ms(legacyRetryBaseMs, &cfg.Sync.RetryBase)
	ms(legacyRetryCapMs, &cfg.Sync.RetryCap)
	ms(legacyCacheTTLMs, &cfg.Cache.TTL)
	ms(legacyConnectivityDebounceMs, &cfg.Connectivity.Debounce)

	if v.IsSet(legacyMaxRetries) {
		cfg.Sync.MaxRetries = v.GetInt(legacyMaxRetries)
	}
	if v.IsSet(legacyCacheEvictionPolicy) {
		cfg.Cache.Policy = v.GetString(legacyCacheEvictionPolicy)
	}
	if v.IsSet(legacyMaxCacheSizeBytes) {
		size, err := parseSize(v.GetString(legacyMaxCacheSizeBytes))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", legacyMaxCacheSizeBytes, err)
		}
		cfg.Cache.MaxSizeBytes = size
	}
	return nil
}

// parseSize принимает как число байт, так и "50MB", "64 MiB"
func parseSize(s string) (int64, error) {
	n, err := humanize.ParseBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n > 1<<62 {
		return 0, fmt.Errorf("size %s is too large", s)
	}
	return int64(n), nil
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error

	positive := map[string]time.Duration{
		KeySyncInterval:      c.Sync.Interval,
		KeySyncRemoteTimeout: c.Sync.RemoteTimeout,
		KeySyncRetryBase:     c.Sync.RetryBase,
		KeySyncRetryCap:      c.Sync.RetryCap,
		KeyConnProbeInterval: c.Connectivity.ProbeInterval,
		KeyConnProbeTimeout:  c.Connectivity.ProbeTimeout,
	}
	for _, key := range sortedKeys(positive) {
		if positive[key] <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", key))
		}
	}

	if c.Sync.RetryCap < c.Sync.RetryBase {
		errs = append(errs, fmt.Errorf("%s must not be less than %s", KeySyncRetryCap, KeySyncRetryBase))
	}
	if c.Sync.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1", KeySyncMaxRetries))
	}
	if _, err := c.Strategies(); err != nil {
		errs = append(errs, err)
	}

	if _, err := cache.ParsePolicy(c.Cache.Policy); err != nil {
		errs = append(errs, err)
	}
	if c.Cache.MaxSizeBytes <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyCacheMaxSize))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyCacheTTL))
	}
	if c.Cache.TargetFraction <= 0 || c.Cache.TargetFraction > 1 {
		errs = append(errs, fmt.Errorf("%s must be in (0, 1]", KeyCacheTargetFraction))
	}
	if c.Connectivity.Debounce < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyConnDebounce))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown %s %q", KeyLogLevel, c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown %s %q", KeyLogFormat, c.Log.Format))
	}

	if !c.InMemory && c.DBPath == "" {
		errs = append(errs, fmt.Errorf("%s is required unless %s is set", KeyDBPath, KeyInMemory))
	}
	if c.ServerURL == "" {
		errs = append(errs, fmt.Errorf("%s is required", KeyServerURL))
	}

	return errors.Join(errs...)
}

// Strategies returns the per-entity-type conflict strategy overrides.
func (c *Config) Strategies() (map[string]models.Strategy, error) {
	result := make(map[string]models.Strategy, len(c.Sync.Strategies))
	for entityType, name := range c.Sync.Strategies {
		s := models.Strategy(strings.ToLower(strings.TrimSpace(name)))
		switch s {
		case models.StrategyLastWriteWins, models.StrategyFieldMerge, models.StrategyManual:
		default:
			return nil, fmt.Errorf("%s.%s: unknown conflict strategy %q", KeySyncStrategies, entityType, name)
		}
		result[entityType] = s
	}
	return result, nil
}

// CacheOptions converts the cache section into cache.Config.
func (c *Config) CacheOptions() cache.Config {
	policy, err := cache.ParsePolicy(c.Cache.Policy)
	if err != nil {
		policy = cache.PolicyLRU
	}
	return cache.Config{
		Policy:         policy,
		MaxSizeBytes:   c.Cache.MaxSizeBytes,
		TTL:            c.Cache.TTL,
		SweepInterval:  c.Cache.SweepInterval,
		TargetFraction: c.Cache.TargetFraction,
	}
}

// LogOptions converts the retry settings into changelog.Config.
func (c *Config) LogOptions() changelog.Config {
	return changelog.Config{
		RetryBase:  c.Sync.RetryBase,
		RetryCap:   c.Sync.RetryCap,
		MaxRetries: c.Sync.MaxRetries,
	}
}

// EngineOptions converts the sync section into syncer.Config.
func (c *Config) EngineOptions() syncer.Config {
	return syncer.Config{
		SyncInterval:  c.Sync.Interval,
		RemoteTimeout: c.Sync.RemoteTimeout,
	}
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "fitsync.db"
	}
	return filepath.Join(dir, "fitsync", "fitsync.db")
}

func sortedKeys(m map[string]time.Duration) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
