// Package config loads clinicdesk settings from an optional YAML file,
// CLINICDESK_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. CLINICDESK_STORAGE_DRIVER.
const EnvPrefix = "CLINICDESK"

type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Actor   string        `mapstructure:"actor"`
}

// MetricsConfig names a Prometheus textfile written when a command exits.
// Empty disables metrics.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

type StorageConfig struct {
	Driver      string   `mapstructure:"driver"`
	Dir         string   `mapstructure:"dir"`
	Document    string   `mapstructure:"document"`
	SQLitePath  string   `mapstructure:"sqlite_path"`
	PostgresDSN string   `mapstructure:"postgres_dsn"`
	S3          S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	PathStyle       bool   `mapstructure:"path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var defaults = map[string]any{
	"storage.driver":               "file",
	"storage.dir":                  ".",
	"storage.document":             "hms_data.json",
	"storage.sqlite_path":          "clinicdesk.db",
	"storage.postgres_dsn":         "",
	"storage.s3.bucket":            "",
	"storage.s3.region":            "us-east-1",
	"storage.s3.endpoint":          "",
	"storage.s3.path_style":        false,
	"storage.s3.access_key_id":     "",
	"storage.s3.secret_access_key": "",
	"log.level":                    "info",
	"log.format":                   "console",
	"metrics.textfile":             "",
	"actor":                        "System",
}

// flagKeys maps flag names registered by RegisterFlags to config keys.
var flagKeys = map[string]string{
	"storage-driver": "storage.driver",
	"data-dir":       "storage.dir",
	"sqlite-path":    "storage.sqlite_path",
	"postgres-dsn":   "storage.postgres_dsn",
	"s3-bucket":      "storage.s3.bucket",
	"log-level":      "log.level",
	"log-format":     "log.format",
	"metrics-file":   "metrics.textfile",
	"actor":          "actor",
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a clinicdesk.yaml config file")
	fs.String("storage-driver", "", "storage backend: file, s3, memory, sqlite or postgres")
	fs.String("data-dir", "", "directory holding the document for the file driver")
	fs.String("sqlite-path", "", "database file for the sqlite driver")
	fs.String("postgres-dsn", "", "connection string for the postgres driver")
	fs.String("s3-bucket", "", "bucket for the s3 driver")
	fs.String("log-level", "", "debug, info, warn or error")
	fs.String("log-format", "", "console or json")
	fs.String("metrics-file", "", "write Prometheus metrics to this textfile on exit")
	fs.String("actor", "", "user name recorded on notes and charges")
}

// Load resolves the configuration. fs may be nil; only flags the user set
// override file and environment values.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if flag := fs.Lookup(name); flag != nil && flag.Changed {
				if err := v.BindPFlag(key, flag); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	path := ""
	if fs != nil {
		if flag := fs.Lookup("config"); flag != nil {
			path = flag.Value.String()
		}
	}
	if err := readConfigFile(v, path); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}
	v.SetConfigName("clinicdesk")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}
