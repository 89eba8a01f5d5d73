package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/tanq16/fget/internal/utils"
)

const envVarPrefix = "FGET"

// ByteSize is a byte count that reads "10MB"-style strings from YAML and the environment.
type ByteSize int64

func (b *ByteSize) Decode(value string) error {
	size, err := utils.ParseByteSize(value)
	if err != nil {
		return err
	}
	*b = ByteSize(size)
	return nil
}

func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	if n, err := strconv.ParseInt(node.Value, 10, 64); err == nil && n >= 0 {
		*b = ByteSize(n)
		return nil
	}
	return b.Decode(node.Value)
}

// Config holds every setting that can come from a file, the environment or flags.
type Config struct {
	Connections      int               `envconfig:"CONNECTIONS"        yaml:"connections"`
	Chunks           int               `envconfig:"CHUNKS"             yaml:"chunks"`
	Dir              string            `envconfig:"DIR"                yaml:"dir"`
	Retries          int               `envconfig:"RETRIES"            yaml:"retries"`
	RateLimit        ByteSize          `envconfig:"LIMIT"              yaml:"limit"`
	Workers          int               `envconfig:"WORKERS"            yaml:"workers"`
	Timeout          time.Duration     `envconfig:"TIMEOUT"            yaml:"timeout"`
	KATimeout        time.Duration     `envconfig:"KEEP_ALIVE_TIMEOUT" yaml:"keep_alive_timeout"`
	MaxSockets       int               `envconfig:"MAX_SOCKETS"        yaml:"max_sockets"`
	Proxy            string            `envconfig:"PROXY"              yaml:"proxy"`
	ProxyUsername    string            `envconfig:"PROXY_USERNAME"     yaml:"proxy_username"`
	ProxyPassword    string            `envconfig:"PROXY_PASSWORD"     yaml:"proxy_password"`
	UserAgent        string            `envconfig:"USER_AGENT"         yaml:"user_agent"`
	Token            string            `envconfig:"TOKEN"              yaml:"token"`
	Headers          map[string]string `envconfig:"HEADERS"            yaml:"headers"`
	Debug            bool              `envconfig:"DEBUG"              yaml:"debug"`
	LogFile          bool              `envconfig:"LOG_FILE"           yaml:"log_file"`
	S3Profile        string            `envconfig:"S3_PROFILE"         yaml:"s3_profile"`
	S3PresignExpires time.Duration     `envconfig:"S3_PRESIGN_EXPIRES" yaml:"s3_presign_expires"`
}

func Default() Config {
	return Config{
		Connections:      8,
		Dir:              ".",
		Workers:          1,
		Timeout:          3 * time.Minute,
		KATimeout:        90 * time.Second,
		MaxSockets:       utils.DefaultMaxSocketsPerHost,
		S3PresignExpires: 15 * time.Minute,
	}
}

// LoadFromFile returns the defaults overlaid with the YAML file at path.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}
	return Default().Merge(fileCfg), nil
}

// LoadFromEnv overlays FGET_* variables onto c. Unset variables leave fields alone.
func (c *Config) LoadFromEnv() error {
	var envCfg Config
	if err := envconfig.Process(envVarPrefix, &envCfg); err != nil {
		return fmt.Errorf("parsing environment variables: %w", err)
	}
	*c = c.Merge(envCfg)
	return nil
}

// Load layers defaults, the optional config file and the environment, in that order.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = fileCfg
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Connections <= 0 {
		return errors.New("config: connections must be positive")
	}
	if c.Chunks < 0 {
		return errors.New("config: chunks must not be negative")
	}
	if c.Retries < 0 {
		return errors.New("config: retries must not be negative")
	}
	if c.RateLimit < 0 {
		return errors.New("config: limit must not be negative")
	}
	if c.Workers <= 0 {
		return errors.New("config: workers must be positive")
	}
	if c.MaxSockets <= 0 {
		return errors.New("config: max_sockets must be positive")
	}
	if c.Dir == "" {
		return errors.New("config: dir is required")
	}
	if (c.ProxyUsername == "") != (c.ProxyPassword == "") {
		return errors.New("config: proxy_username and proxy_password go together")
	}
	return nil
}

// Merge returns c with every non-zero field of override applied. Headers merge by key.
func (c Config) Merge(override Config) Config {
	if override.Connections != 0 {
		c.Connections = override.Connections
	}
	if override.Chunks != 0 {
		c.Chunks = override.Chunks
	}
	if override.Dir != "" {
		c.Dir = override.Dir
	}
	if override.Retries != 0 {
		c.Retries = override.Retries
	}
	if override.RateLimit != 0 {
		c.RateLimit = override.RateLimit
	}
	if override.Workers != 0 {
		c.Workers = override.Workers
	}
	if override.Timeout != 0 {
		c.Timeout = override.Timeout
	}
	if override.KATimeout != 0 {
		c.KATimeout = override.KATimeout
	}
	if override.MaxSockets != 0 {
		c.MaxSockets = override.MaxSockets
	}
	if override.Proxy != "" {
		c.Proxy = override.Proxy
	}
	if override.ProxyUsername != "" {
		c.ProxyUsername = override.ProxyUsername
	}
	if override.ProxyPassword != "" {
		c.ProxyPassword = override.ProxyPassword
	}
	if override.UserAgent != "" {
		c.UserAgent = override.UserAgent
	}
	if override.Token != "" {
		c.Token = override.Token
	}
	if len(override.Headers) > 0 {
		headers := maps.Clone(c.Headers)
		if headers == nil {
			headers = make(map[string]string, len(override.Headers))
		}
		maps.Copy(headers, override.Headers)
		c.Headers = headers
	}
	if override.Debug {
		c.Debug = true
	}
	if override.LogFile {
		c.LogFile = true
	}
	if override.S3Profile != "" {
		c.S3Profile = override.S3Profile
	}
	if override.S3PresignExpires != 0 {
		c.S3PresignExpires = override.S3PresignExpires
	}
	return c
}

// HTTPClientConfig maps the transport settings onto the shared client config.
func (c Config) HTTPClientConfig() utils.HTTPClientConfig {
	return utils.HTTPClientConfig{
		Timeout:           c.Timeout,
		KATimeout:         c.KATimeout,
		ProxyURL:          c.Proxy,
		ProxyUsername:     c.ProxyUsername,
		ProxyPassword:     c.ProxyPassword,
		UserAgent:         c.UserAgent,
		Headers:           c.Headers,
		Token:             c.Token,
		MaxSocketsPerHost: c.MaxSockets,
	}
}
