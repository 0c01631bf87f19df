package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vvka-141/roachtx/pkg/roachtx"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

const ConfigFileName = "roachtx.yaml"

// Supported values for BankConfig.Driver.
const (
	DriverPgx = "pgx"
	DriverPq  = "pq"
)

type ConnectionConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Database       string `yaml:"database"`
	SSLMode        string `yaml:"sslmode"`
	AuthMethod     string `yaml:"auth_method,omitempty"`
	AzureTenantID  string `yaml:"azure_tenant_id,omitempty"`
	AzureClientID  string `yaml:"azure_client_id,omitempty"`
	AWSRegion      string `yaml:"aws_region,omitempty"`
	GoogleInstance string `yaml:"google_instance,omitempty"`
}

// BankConfig configures the bank transfer workload.
type BankConfig struct {
	Accounts       int      `yaml:"accounts"`
	InitialBalance int64    `yaml:"initial_balance"`
	MaxTransfer    int64    `yaml:"max_transfer"`
	Concurrency    int      `yaml:"concurrency"`
	Transfers      int      `yaml:"transfers"`
	Duration       Duration `yaml:"duration"`
	VerifyInterval Duration `yaml:"verify_interval"`
	Driver         string   `yaml:"driver"`
}

type ProjectConfig struct {
	Connection ConnectionConfig `yaml:"connection"`
	Bank       BankConfig       `yaml:"bank"`
	Timeout    Duration         `yaml:"timeout"`
}

// Duration is a time.Duration written as a Go duration string ("30s", "5m").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// DefaultBankConfig mirrors the classic sql_bank example: 999 accounts of
// 1000 each, transfers of up to 999 by 5 concurrent workers.
func DefaultBankConfig() BankConfig {
	return BankConfig{
		Accounts:       999,
		InitialBalance: 1000,
		MaxTransfer:    999,
		Concurrency:    5,
		Duration:       Duration(30 * time.Second),
		VerifyInterval: Duration(time.Second),
		Driver:         DriverPgx,
	}
}

// WithDefaults fills zero fields of b from DefaultBankConfig.
func (b BankConfig) WithDefaults() BankConfig {
	d := DefaultBankConfig()
	if b.Accounts == 0 {
		b.Accounts = d.Accounts
	}
	if b.InitialBalance == 0 {
		b.InitialBalance = d.InitialBalance
	}
	if b.MaxTransfer == 0 {
		b.MaxTransfer = d.MaxTransfer
	}
	if b.Concurrency == 0 {
		b.Concurrency = d.Concurrency
	}
	if b.Duration == 0 && b.Transfers == 0 {
		b.Duration = d.Duration
	}
	if b.VerifyInterval == 0 {
		b.VerifyInterval = d.VerifyInterval
	}
	if b.Driver == "" {
		b.Driver = d.Driver
	}
	return b
}

// Validate reports every problem with b at once. The result wraps
// roachtx.ErrInvalidConfig.
func (b BankConfig) Validate() error {
	var errs []error
	if b.Accounts < 2 {
		errs = append(errs, fmt.Errorf("accounts must be at least 2, got %d", b.Accounts))
	}
	if b.InitialBalance < 0 {
		errs = append(errs, fmt.Errorf("initial_balance must not be negative, got %d", b.InitialBalance))
	}
	if b.MaxTransfer < 1 {
		errs = append(errs, fmt.Errorf("max_transfer must be positive, got %d", b.MaxTransfer))
	}
	if b.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be positive, got %d", b.Concurrency))
	}
	if b.Transfers < 0 {
		errs = append(errs, fmt.Errorf("transfers must not be negative, got %d", b.Transfers))
	}
	if b.Duration < 0 {
		errs = append(errs, fmt.Errorf("duration must not be negative, got %s", time.Duration(b.Duration)))
	}
	if b.Transfers == 0 && b.Duration == 0 {
		errs = append(errs, errors.New("one of transfers or duration must be set"))
	}
	if b.VerifyInterval <= 0 {
		errs = append(errs, fmt.Errorf("verify_interval must be positive, got %s", time.Duration(b.VerifyInterval)))
	}
	if b.Driver != DriverPgx && b.Driver != DriverPq {
		errs = append(errs, fmt.Errorf("driver must be %q or %q, got %q", DriverPgx, DriverPq, b.Driver))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", roachtx.ErrInvalidConfig, errors.Join(errs...))
}

// Load reads roachtx.yaml from dir. Returns ErrConfigNotFound when the file
// does not exist.
func Load(dir string) (*ProjectConfig, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", roachtx.ErrInvalidConfig, ConfigFileName, err)
	}
	return &cfg, nil
}
