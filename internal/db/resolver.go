package db

import (
	"fmt"
	"os"
	"strconv"

	"github.com/vvka-141/roachtx/internal/config"
	"github.com/vvka-141/roachtx/pkg/roachtx"
)

// GranularConnFlags represents connection parameters from CLI flags.
// These follow PostgreSQL standard flag conventions (-h, -p, -U, -d).
//
// Password is not a flag. Use $PGPASSWORD or a connection string.
type GranularConnFlags struct {
	Host     string
	Port     int
	Username string
	Database string
	SSLMode  string
}

// IsEmpty returns true if no connection-related granular flags were provided by the user.
// Database is excluded because it may override the database of a connection string.
func (g *GranularConnFlags) IsEmpty() bool {
	return g.Host == "" && g.Port == 0 && g.Username == "" && g.SSLMode == ""
}

// CloudFlags selects and parameterizes cloud IAM authentication.
// Client secrets are never flags; Azure reads AZURE_CLIENT_SECRET.
type CloudFlags struct {
	AuthMethod     string
	AzureTenantID  string // Overrides AZURE_TENANT_ID
	AzureClientID  string // Overrides AZURE_CLIENT_ID
	AWSRegion      string // Overrides AWS_REGION
	GoogleInstance string
}

// EnvVars represents PostgreSQL standard environment variables plus the
// cloud SDK variables the IAM connectors read.
// See: https://www.postgresql.org/docs/current/libpq-envars.html
type EnvVars struct {
	PGHOST       string
	PGPORT       string
	PGUSER       string
	PGPASSWORD   string
	PGDATABASE   string
	PGSSLMODE    string
	DATABASE_URL string

	AZURE_TENANT_ID     string
	AZURE_CLIENT_ID     string
	AZURE_CLIENT_SECRET string
	AWS_REGION          string
}

// LoadFromEnvironment loads PostgreSQL and cloud provider environment variables.
func LoadFromEnvironment() *EnvVars {
	return &EnvVars{
		PGHOST:              os.Getenv("PGHOST"),
		PGPORT:              os.Getenv("PGPORT"),
		PGUSER:              os.Getenv("PGUSER"),
		PGPASSWORD:          os.Getenv("PGPASSWORD"),
		PGDATABASE:          os.Getenv("PGDATABASE"),
		PGSSLMODE:           os.Getenv("PGSSLMODE"),
		DATABASE_URL:        os.Getenv("DATABASE_URL"),
		AZURE_TENANT_ID:     os.Getenv("AZURE_TENANT_ID"),
		AZURE_CLIENT_ID:     os.Getenv("AZURE_CLIENT_ID"),
		AZURE_CLIENT_SECRET: os.Getenv("AZURE_CLIENT_SECRET"),
		AWS_REGION:          os.Getenv("AWS_REGION"),
	}
}

// ResolveConnectionParams resolves connection parameters using PostgreSQL-standard precedence:
//
//  1. Connection string flag (--connection)
//  2. DATABASE_URL, when no granular flag is set
//  3. Granular flags (-h, -p, -U, -d), then PG* environment variables,
//     then roachtx.yaml, then defaults (localhost:26257, user root)
//
// Returns the resolved config and the maintenance database, which is the
// database to connect to for CREATE DATABASE. All errors wrap
// roachtx.ErrInvalidConfig.
func ResolveConnectionParams(
	connStringFlag string,
	granularFlags *GranularConnFlags,
	cloudFlags *CloudFlags,
	envVars *EnvVars,
	projectConfig *config.ProjectConfig,
) (*ConnectionConfig, string, error) {
	if granularFlags == nil {
		granularFlags = &GranularConnFlags{}
	}
	if cloudFlags == nil {
		cloudFlags = &CloudFlags{}
	}
	if envVars == nil {
		envVars = &EnvVars{}
	}

	if connStringFlag != "" && !granularFlags.IsEmpty() {
		return nil, "", fmt.Errorf("%w: cannot specify both --connection and granular flags (-h, -p, -U, --sslmode)", roachtx.ErrInvalidConfig)
	}

	var (
		cfg           *ConnectionConfig
		maintenanceDB string
		err           error
	)

	switch {
	case connStringFlag != "":
		cfg, maintenanceDB, err = resolveFromConnectionString(connStringFlag, envVars)
	case granularFlags.IsEmpty() && envVars.DATABASE_URL != "":
		cfg, maintenanceDB, err = resolveFromConnectionString(envVars.DATABASE_URL, envVars)
	default:
		cfg, maintenanceDB, err = resolveFromGranularParams(granularFlags, envVars, projectConfig)
	}
	if err != nil {
		return nil, "", err
	}

	if granularFlags.Database != "" {
		cfg.Database = granularFlags.Database
	}

	if err := applyCloudAuth(cfg, cloudFlags, envVars, projectConfig); err != nil {
		return nil, "", err
	}

	return cfg, maintenanceDB, nil
}

// applyCloudAuth selects the auth method: flag > roachtx.yaml > Azure
// credentials in the environment > standard.
func applyCloudAuth(cfg *ConnectionConfig, flags *CloudFlags, env *EnvVars, projectConfig *config.ProjectConfig) error {
	var pc config.ConnectionConfig
	if projectConfig != nil {
		pc = projectConfig.Connection
	}

	name := firstNonEmpty(flags.AuthMethod, pc.AuthMethod)
	method, err := ParseAuthMethod(name)
	if err != nil {
		return fmt.Errorf("%w: %w", roachtx.ErrInvalidConfig, err)
	}

	tenantID := firstNonEmpty(flags.AzureTenantID, env.AZURE_TENANT_ID, pc.AzureTenantID)
	clientID := firstNonEmpty(flags.AzureClientID, env.AZURE_CLIENT_ID, pc.AzureClientID)
	if name == "" && (tenantID != "" || clientID != "") {
		method = AuthMethodAzureEntraID
	}

	cfg.AuthMethod = method
	switch method {
	case AuthMethodAzureEntraID:
		cfg.AzureTenantID = tenantID
		cfg.AzureClientID = clientID
		cfg.AzureClientSecret = env.AZURE_CLIENT_SECRET
	case AuthMethodAWSIAM:
		cfg.AWSRegion = firstNonEmpty(flags.AWSRegion, env.AWS_REGION, pc.AWSRegion)
	case AuthMethodGoogleIAM:
		cfg.GoogleInstance = firstNonEmpty(flags.GoogleInstance, pc.GoogleInstance)
	}
	return nil
}

// resolveFromConnectionString parses connStr. Its database doubles as the
// maintenance database. PGSSLMODE fills in a missing sslmode.
func resolveFromConnectionString(connStr string, envVars *EnvVars) (*ConnectionConfig, string, error) {
	cfg, err := ParseConnectionString(connStr)
	if err != nil {
		return nil, "", fmt.Errorf("%w: invalid connection string: %w", roachtx.ErrInvalidConfig, err)
	}

	if cfg.SSLMode == "" {
		cfg.SSLMode = firstNonEmpty(envVars.PGSSLMODE, DefaultSSLMode)
	}
	if cfg.Username == "" {
		cfg.Username = firstNonEmpty(envVars.PGUSER, DefaultUser)
	}
	if cfg.Password == "" {
		cfg.Password = envVars.PGPASSWORD
	}

	return cfg, cfg.Database, nil
}

// resolveFromGranularParams builds a ConnectionConfig parameter by parameter:
// CLI flag > environment variable > roachtx.yaml > default.
func resolveFromGranularParams(
	flags *GranularConnFlags,
	envVars *EnvVars,
	projectConfig *config.ProjectConfig,
) (*ConnectionConfig, string, error) {
	var pc config.ConnectionConfig
	if projectConfig != nil {
		pc = projectConfig.Connection
	}

	cfg := &ConnectionConfig{
		Host:             firstNonEmpty(flags.Host, envVars.PGHOST, pc.Host, DefaultHost),
		Username:         firstNonEmpty(flags.Username, envVars.PGUSER, pc.Username, DefaultUser),
		Password:         envVars.PGPASSWORD,
		Database:         firstNonEmpty(envVars.PGDATABASE, pc.Database, roachtx.DefaultDatabase),
		SSLMode:          firstNonEmpty(flags.SSLMode, envVars.PGSSLMODE, pc.SSLMode, DefaultSSLMode),
		AuthMethod:       AuthMethodStandard,
		AdditionalParams: make(map[string]string),
	}

	switch {
	case flags.Port != 0:
		cfg.Port = flags.Port
	case envVars.PGPORT != "":
		port, err := strconv.Atoi(envVars.PGPORT)
		if err != nil {
			return nil, "", fmt.Errorf("%w: invalid $PGPORT value '%s': must be an integer", roachtx.ErrInvalidConfig, envVars.PGPORT)
		}
		cfg.Port = port
	case pc.Port != 0:
		cfg.Port = pc.Port
	default:
		cfg.Port = roachtx.DefaultPort
	}

	return cfg, roachtx.DefaultDatabase, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
