package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hay-kot/criterio"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	FileName     = "marketplace.yml"
	TOMLFileName = "marketplace.toml"

	BackendGemini = "gemini"
	BackendRemote = "remote"
	BackendNone   = "none"
)

// Config models marketplace.yml (or marketplace.toml).
type Config struct {
	Generation Generation `yaml:"generation" toml:"generation"`
	Escrow     Escrow     `yaml:"escrow" toml:"escrow"`
	Reviews    struct {
		DefaultRating int `yaml:"default_rating" toml:"default_rating"`
	} `yaml:"reviews" toml:"reviews"`
	Categories []string `yaml:"categories" toml:"categories"`
	Server     Server   `yaml:"server" toml:"server"`
	Redis      Redis    `yaml:"redis" toml:"redis"`
	Log        struct {
		Level  string `yaml:"level" toml:"level"`
		Pretty bool   `yaml:"pretty" toml:"pretty"`
	} `yaml:"log" toml:"log"`
}

type Generation struct {
	Backend  string `yaml:"backend" toml:"backend"`
	Model    string `yaml:"model" toml:"model"`
	Endpoint string `yaml:"endpoint" toml:"endpoint"`
	APIKey   string `yaml:"api_key" toml:"api_key"`
	// APIKeySecret names a Secrets Manager secret holding the key.
	APIKeySecret string        `yaml:"api_key_secret" toml:"api_key_secret"`
	SecretRegion string        `yaml:"secret_region" toml:"secret_region"`
	Timeout      time.Duration `yaml:"timeout" toml:"timeout"`
}

type Escrow struct {
	SettleDelay        time.Duration `yaml:"settle_delay" toml:"settle_delay"`
	ReservationTimeout time.Duration `yaml:"reservation_timeout" toml:"reservation_timeout"`
	CommissionRate     string        `yaml:"commission_rate" toml:"commission_rate"`
}

// Rate parses CommissionRate; Validate has already rejected bad values.
func (e Escrow) Rate() decimal.Decimal {
	d, err := decimal.NewFromString(e.CommissionRate)
	if err != nil {
		return decimal.Zero
	}
	return d
}

type Server struct {
	Addr              string `yaml:"addr" toml:"addr"`
	BasePath          string `yaml:"base_path" toml:"base_path"`
	JWTSecret         string `yaml:"jwt_secret" toml:"jwt_secret"`
	AllowClientHeader bool   `yaml:"allow_client_header" toml:"allow_client_header"`
}

type Redis struct {
	Address  string `yaml:"address" toml:"address"`
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`
}

// Path returns the yaml config path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	if err := yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg); err != nil {
		panic(fmt.Sprintf("default config: %v", err))
	}
	return &cfg
}

// GenerateDefault returns the default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Load reads the workspace config, preferring marketplace.yml over
// marketplace.toml. A workspace with neither gets the defaults.
func Load(workspace string) (*Config, error) {
	if workspace == "" {
		workspace = "."
	}
	for _, name := range []string{FileName, TOMLFileName} {
		path := filepath.Join(workspace, name)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		return FromFile(path)
	}
	cfg := Default()
	return cfg, cfg.Validate()
}

// FromFile reads config from path, picking the decoder by extension.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FromTOML(data)
	}
	return FromYAML(data)
}

// FromYAML parses YAML over the defaults and validates the result.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromTOML parses TOML over the defaults and validates the result.
func FromTOML(data []byte) (*Config, error) {
	cfg := Default()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("invalid config toml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section and reports all failing fields at once.
func (c *Config) Validate() error {
	var errs criterio.FieldErrorsBuilder

	switch c.Generation.Backend {
	case BackendGemini, BackendNone:
	case BackendRemote:
		if strings.TrimSpace(c.Generation.Endpoint) == "" {
			errs = errs.Append("generation.endpoint", errors.New("required for the remote backend"))
		}
	default:
		errs = errs.Append("generation.backend", fmt.Errorf("unknown backend %q, want gemini, remote or none", c.Generation.Backend))
	}
	if c.Generation.Timeout <= 0 {
		errs = errs.Append("generation.timeout", errors.New("must be positive"))
	}
	if c.Generation.APIKeySecret != "" && c.Generation.SecretRegion == "" {
		errs = errs.Append("generation.secret_region", errors.New("required with api_key_secret"))
	}

	if c.Escrow.SettleDelay < 0 {
		errs = errs.Append("escrow.settle_delay", errors.New("must not be negative"))
	}
	if c.Escrow.ReservationTimeout <= 0 {
		errs = errs.Append("escrow.reservation_timeout", errors.New("must be positive"))
	}
	rate, err := decimal.NewFromString(c.Escrow.CommissionRate)
	switch {
	case err != nil:
		errs = errs.Append("escrow.commission_rate", fmt.Errorf("not a decimal: %w", err))
	case rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)):
		errs = errs.Append("escrow.commission_rate", errors.New("must be in [0, 1)"))
	}

	if r := c.Reviews.DefaultRating; r < 1 || r > 5 {
		errs = errs.Append("reviews.default_rating", errors.New("must be between 1 and 5"))
	}

	if len(c.Categories) == 0 {
		errs = errs.Append("categories", errors.New("at least one category is required"))
	}
	for i, cat := range c.Categories {
		if strings.TrimSpace(cat) == "" {
			errs = errs.Append(fmt.Sprintf("categories[%d]", i), errors.New("empty category"))
		}
	}

	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		errs = errs.Append("server.base_path", errors.New("must start with /"))
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "trace", "debug", "info", "warn", "error", "disabled":
	default:
		errs = errs.Append("log.level", fmt.Errorf("unknown level %q", c.Log.Level))
	}

	return errs.ToError()
}

const defaultTemplate = `generation:
  backend: gemini
  model: gemini-2.5-flash
  timeout: 30s

escrow:
  settle_delay: 1500ms
  reservation_timeout: 30s
  commission_rate: "0.10"

reviews:
  default_rating: 5

categories:
  - Ремонт
  - Сантехника
  - Уборка
  - Репетиторы
  - Красота
  - Перевозки
  - IT

server:
  addr: 127.0.0.1:8080
  base_path: /v1
  allow_client_header: false

log:
  level: info
  pretty: false
`
