package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/vvka-141/roachtx/internal/config"
	"github.com/vvka-141/roachtx/internal/db"
	"github.com/vvka-141/roachtx/internal/db/manager"
	"github.com/vvka-141/roachtx/pkg/roachtx"
)

// ConnectionStringEnvVar holds a connection string that is used when
// --connection is not given. DATABASE_URL is honoured by the resolver.
const ConnectionStringEnvVar = "ROACHTX_CONNECTION_STRING"

// connectionFlags holds the common connection-related flag values.
type connectionFlags struct {
	connection     string
	host           string
	port           int
	username       string
	database       string
	sslMode        string
	authMethod     string
	azureTenantID  string
	azureClientID  string
	awsRegion      string
	googleInstance string
}

func registerConnectionFlags(cmd *cobra.Command, f *connectionFlags) {
	cmd.Flags().StringVar(&f.connection, "connection", "",
		"Connection string (URI, key=value or ADO.NET format).\n"+
			"Mutually exclusive with granular flags (--host, --port, --username, --sslmode).\n"+
			"Alternative: $"+ConnectionStringEnvVar+" or $DATABASE_URL\n"+
			"Example: postgresql://root@localhost:26257/bank?sslmode=disable")

	// Precedence: flag > environment variable > roachtx.yaml > default
	cmd.Flags().StringVarP(&f.host, "host", "h", "",
		"Server host\nPrecedence: --host > $PGHOST > roachtx.yaml > localhost")
	cmd.Flags().IntVarP(&f.port, "port", "p", 0,
		"Server port\nPrecedence: --port > $PGPORT > roachtx.yaml > 26257")
	cmd.Flags().StringVarP(&f.username, "username", "U", "",
		"Database user (default: $PGUSER or root)")
	cmd.Flags().StringVarP(&f.database, "database", "d", "",
		"Bank database name (overrides the connection string database)")
	cmd.Flags().StringVar(&f.sslMode, "sslmode", "",
		"SSL mode: disable|allow|prefer|require|verify-ca|verify-full\n(default: prefer, or $PGSSLMODE)")

	cmd.Flags().StringVar(&f.authMethod, "auth-method", "",
		"Authentication: standard|aws|google|azure (default: standard)")
	cmd.Flags().StringVar(&f.azureTenantID, "azure-tenant-id", "",
		"Azure AD tenant/directory ID (overrides $AZURE_TENANT_ID)")
	cmd.Flags().StringVar(&f.azureClientID, "azure-client-id", "",
		"Azure AD application/client ID (overrides $AZURE_CLIENT_ID)")
	cmd.Flags().StringVar(&f.awsRegion, "aws-region", "",
		"AWS region for RDS IAM tokens (overrides $AWS_REGION)")
	cmd.Flags().StringVar(&f.googleInstance, "google-instance", "",
		"Cloud SQL instance connection name (project:region:instance)")
}

// resolveConnection builds the connection config from flags, the
// environment and roachtx.yaml. It returns the config and the maintenance
// database used for CREATE DATABASE.
func resolveConnection(f connectionFlags, projectCfg *config.ProjectConfig) (*db.ConnectionConfig, string, error) {
	connString := f.connection
	if connString == "" {
		connString = os.Getenv(ConnectionStringEnvVar)
	}

	granular := &db.GranularConnFlags{
		Host:     f.host,
		Port:     f.port,
		Username: f.username,
		Database: f.database,
		SSLMode:  f.sslMode,
	}
	cloud := &db.CloudFlags{
		AuthMethod:     f.authMethod,
		AzureTenantID:  f.azureTenantID,
		AzureClientID:  f.azureClientID,
		AWSRegion:      f.awsRegion,
		GoogleInstance: f.googleInstance,
	}

	return db.ResolveConnectionParams(connString, granular, cloud, db.LoadFromEnvironment(), projectCfg)
}

// ensureDatabase creates cfg.Database through the maintenance database when
// it does not exist yet.
func ensureDatabase(ctx context.Context, cfg *db.ConnectionConfig, maintenanceDB string, logger roachtx.Logger) error {
	if maintenanceDB == "" || maintenanceDB == cfg.Database {
		return nil
	}

	maintenanceCfg := *cfg
	maintenanceCfg.Database = maintenanceDB
	maintenanceCfg.MaxConns = 1

	pool, release, err := db.OpenPool(ctx, &maintenanceCfg, logger)
	if err != nil {
		return err
	}
	defer release()

	created, err := manager.New().Ensure(ctx, pool, cfg.Database)
	if err != nil {
		return err
	}
	if created {
		logger.Info("Created database %q", cfg.Database)
	} else {
		logger.Verbose("Database %q already exists", cfg.Database)
	}
	return nil
}
