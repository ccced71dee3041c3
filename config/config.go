// Package config loads dirt settings from flags, DIRT_* environment variables
// and an optional config file, and validates them once at startup.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// EnvPrefix is prepended to every setting name to form its environment variable.
const EnvPrefix = "DIRT"

const (
	KeyConfig           = "config"
	KeyBucket           = "bucket"
	KeyDBKey            = "db-key"
	KeyLockKey          = "lock-key"
	KeyLockTTL          = "lock-ttl"
	KeyRegion           = "region"
	KeyBackend          = "backend"
	KeyEndpoint         = "endpoint"
	KeyInsecure         = "insecure"
	KeyPathStyle        = "path-style"
	KeyAccessKey        = "access-key"
	KeySecretKey        = "secret-key"
	KeyWorkDir          = "work-dir"
	KeyLockRetries      = "lock-retries"
	KeyLockRetryBackoff = "lock-retry-backoff"
	KeyLogLevel         = "log-level"
)

const (
	BackendS3     = "s3"
	BackendMinio  = "minio"
	BackendMemory = "memory"
)

// Config is the validated runtime configuration.
type Config struct {
	Bucket  string
	DBKey   string
	LockKey string
	LockTTL time.Duration
	Region  string

	Backend   string
	Endpoint  string
	Insecure  bool
	PathStyle bool
	AccessKey string
	SecretKey string

	WorkDir          string
	LockRetries      int
	LockRetryBackoff time.Duration
	LogLevel         slog.Level
}

var requiredKeys = []string{KeyBucket, KeyDBKey, KeyLockKey, KeyLockTTL, KeyRegion}

// New returns a viper instance reading DIRT_* variables, with defaults set.
func New() *viper.Viper {
	var v = viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyBackend, BackendS3)
	v.SetDefault(KeyLockRetries, 0)
	v.SetDefault(KeyLockRetryBackoff, 2*time.Second)
	v.SetDefault(KeyLogLevel, "warn")
	return v
}

// RegisterFlags adds one flag per setting.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String(KeyConfig, "", "path to a YAML/TOML/JSON config file")
	flags.String(KeyBucket, "", "object storage bucket holding the database")
	flags.String(KeyDBKey, "", "object key of the canonical database")
	flags.String(KeyLockKey, "", "object key of the lease")
	flags.String(KeyLockTTL, "", "lease time-to-live, in seconds or as a duration (e.g. 10m)")
	flags.String(KeyRegion, "", "object storage region")
	flags.String(KeyBackend, BackendS3, "storage backend: s3, minio or memory")
	flags.String(KeyEndpoint, "", "custom S3 endpoint (required for minio)")
	flags.Bool(KeyInsecure, false, "use plain HTTP for the endpoint")
	flags.Bool(KeyPathStyle, false, "use path-style bucket addressing")
	flags.String(KeyAccessKey, "", "static access key (default credential chain when empty)")
	flags.String(KeySecretKey, "", "static secret key")
	flags.String(KeyWorkDir, "", "directory for local replicas (default OS temp dir)")
	flags.Int(KeyLockRetries, 0, "extra lease acquisition attempts when the lease is held")
	flags.Duration(KeyLockRetryBackoff, 2*time.Second, "pause between lease acquisition attempts")
	flags.String(KeyLogLevel, "warn", "log level: debug, info, warn or error")
}

// BindFlags binds every registered flag in flags to v.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var names = []string{
		KeyConfig, KeyBucket, KeyDBKey, KeyLockKey, KeyLockTTL, KeyRegion,
		KeyBackend, KeyEndpoint, KeyInsecure, KeyPathStyle, KeyAccessKey, KeySecretKey,
		KeyWorkDir, KeyLockRetries, KeyLockRetryBackoff, KeyLogLevel,
	}
	for _, name := range names {
		var flag = flags.Lookup(name)
		if flag == nil {
			return fmt.Errorf("flag %q not registered", name)
		}
		if err := v.BindPFlag(name, flag); err != nil {
			return fmt.Errorf("failed to bind flag %q: %w", name, err)
		}
	}
	return nil
}

// ReadFile loads the config file named by the config setting, if any.
// It returns the path read.
func ReadFile(v *viper.Viper) (string, error) {
	var path = strings.TrimSpace(v.GetString(KeyConfig))
	if path == "" {
		return "", nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: config file %q: %w", ErrInvalid, path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: config file %q is a directory", ErrInvalid, path)
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return "", fmt.Errorf("%w: read config file %q: %w", ErrInvalid, path, err)
	}
	return path, nil
}

// Load validates the settings in v. Missing required settings are reported together.
func Load(v *viper.Viper) (*Config, error) {
	var missing []string
	for _, key := range requiredKeys {
		if strings.TrimSpace(v.GetString(key)) == "" {
			missing = append(missing, fmt.Sprintf("%s (%s)", key, EnvName(key)))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required settings: %s", ErrInvalid, strings.Join(missing, ", "))
	}

	ttl, err := ParseTTL(v.GetString(KeyLockTTL))
	if err != nil {
		return nil, err
	}

	var cfg = &Config{
		Bucket:           strings.TrimSpace(v.GetString(KeyBucket)),
		DBKey:            strings.TrimSpace(v.GetString(KeyDBKey)),
		LockKey:          strings.TrimSpace(v.GetString(KeyLockKey)),
		LockTTL:          ttl,
		Region:           strings.TrimSpace(v.GetString(KeyRegion)),
		Backend:          strings.ToLower(strings.TrimSpace(v.GetString(KeyBackend))),
		Endpoint:         strings.TrimSpace(v.GetString(KeyEndpoint)),
		Insecure:         v.GetBool(KeyInsecure),
		PathStyle:        v.GetBool(KeyPathStyle),
		AccessKey:        v.GetString(KeyAccessKey),
		SecretKey:        v.GetString(KeySecretKey),
		WorkDir:          strings.TrimSpace(v.GetString(KeyWorkDir)),
		LockRetries:      v.GetInt(KeyLockRetries),
		LockRetryBackoff: v.GetDuration(KeyLockRetryBackoff),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString(KeyLogLevel))); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalid, KeyLogLevel, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Backend {
	case BackendS3, BackendMemory:
	case BackendMinio:
		if c.Endpoint == "" {
			return fmt.Errorf("%w: %s is required for the %s backend", ErrInvalid, KeyEndpoint, BackendMinio)
		}
	default:
		return fmt.Errorf("%w: unknown %s %q", ErrInvalid, KeyBackend, c.Backend)
	}

	if c.DBKey == c.LockKey {
		return fmt.Errorf("%w: %s and %s must differ", ErrInvalid, KeyDBKey, KeyLockKey)
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return fmt.Errorf("%w: %s and %s must be set together", ErrInvalid, KeyAccessKey, KeySecretKey)
	}
	if c.LockRetries < 0 {
		return fmt.Errorf("%w: %s must not be negative", ErrInvalid, KeyLockRetries)
	}
	if c.LockRetryBackoff < 0 {
		return fmt.Errorf("%w: %s must not be negative", ErrInvalid, KeyLockRetryBackoff)
	}
	return nil
}

// AcquireAttempts is the total number of acquisition attempts.
func (c *Config) AcquireAttempts() int {
	return c.LockRetries + 1
}

// ParseTTL accepts whole seconds ("600") or a Go duration ("10m").
func ParseTTL(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)

	var ttl time.Duration
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		ttl = time.Duration(secs) * time.Second
	} else if d, err := time.ParseDuration(raw); err == nil {
		ttl = d
	} else {
		return 0, fmt.Errorf("%w: %s %q is neither seconds nor a duration", ErrInvalid, KeyLockTTL, raw)
	}

	if ttl <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive", ErrInvalid, KeyLockTTL)
	}
	return ttl, nil
}

// EnvName returns the environment variable for a setting.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}
