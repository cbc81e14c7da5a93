package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Eventual-Inc/modelfn/pkg/objectstorage"
)

// EnvPrefix is prepended to every configuration key when read from the environment,
// e.g. MODELFN_MODEL_BUCKET
const EnvPrefix = "MODELFN"

// Config is everything the handler needs to locate, cache and load its model
type Config struct {
	ModelSource   string        `mapstructure:"model_source"`
	ModelBucket   string        `mapstructure:"model_bucket"`
	ModelKey      string        `mapstructure:"model_key"`
	ModelDir      string        `mapstructure:"model_dir"`
	AWSRegion     string        `mapstructure:"aws_region"`
	CacheDir      string        `mapstructure:"cache_dir"`
	ModelFormat   string        `mapstructure:"model_format"`
	BridgeCommand string        `mapstructure:"bridge_command"`
	ReuseModel    bool          `mapstructure:"reuse_model"`
	InvokeTimeout time.Duration `mapstructure:"invoke_timeout"`
	LogLevel      string        `mapstructure:"log_level"`
	LogFormat     string        `mapstructure:"log_format"`
	ListenAddr    string        `mapstructure:"listen_addr"`
}

var defaults = map[string]interface{}{
	"model_source":   objectstorage.LocationKindAWSS3,
	"model_bucket":   "",
	"model_key":      "up-lambda-iris-model/model.pkl",
	"model_dir":      "",
	"aws_region":     "us-east-1",
	"cache_dir":      "/tmp/model",
	"model_format":   "auto",
	"bridge_command": "",
	"reuse_model":    true,
	"invoke_timeout": time.Duration(0),
	"log_level":      "info",
	"log_format":     "json",
	"listen_addr":    ":8080",
}

// NewViper returns a viper instance with defaults and environment binding applied
func NewViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration from the environment and, when present, from configFile
// (a dotenv file by default)
func Load(configFile string) (Config, error) {
	v := NewViper()
	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			v.SetConfigFile(configFile)
			if strings.HasSuffix(configFile, ".env") {
				v.SetConfigType("env")
			}
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("error reading config file: %w", err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return FromViper(v)
}

func FromViper(v *viper.Viper) (Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("error decoding environment into config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (config *Config) Validate() error {
	if config.ModelKey == "" {
		return errors.New("model_key must be set")
	}
	if config.CacheDir == "" {
		return errors.New("cache_dir must be set")
	}
	switch config.ModelSource {
	case objectstorage.LocationKindAWSS3:
		if config.ModelBucket == "" {
			return errors.New("model_bucket must be set when model_source is aws_s3")
		}
	case objectstorage.LocationKindLocalDir:
		if config.ModelDir == "" {
			return errors.New("model_dir must be set when model_source is local_dir")
		}
	default:
		return fmt.Errorf("unsupported model_source %q", config.ModelSource)
	}
	if config.InvokeTimeout < 0 {
		return errors.New("invoke_timeout must not be negative")
	}
	return nil
}

// Location returns where the model artifact is stored
func (config *Config) Location() objectstorage.LocationConfig {
	if config.ModelSource == objectstorage.LocationKindLocalDir {
		return &objectstorage.LocalDirLocationConfig{Dir: config.ModelDir}
	}
	return &objectstorage.AWSS3LocationConfig{Bucket: config.ModelBucket, Region: config.AWSRegion}
}

// ModelPath is the fully qualified object path of the model artifact
func (config *Config) ModelPath() string {
	return config.Location().ObjectPath(config.ModelKey)
}
