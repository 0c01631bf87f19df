package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuthMethod selects how the client authenticates to the cluster.
type AuthMethod int

const (
	AuthMethodStandard     AuthMethod = iota // Username/Password
	AuthMethodAWSIAM                         // AWS IAM Database Authentication
	AuthMethodGoogleIAM                      // Google Cloud SQL IAM
	AuthMethodAzureEntraID                   // Azure Active Directory (Entra ID)
)

func (m AuthMethod) String() string {
	switch m {
	case AuthMethodStandard:
		return "standard"
	case AuthMethodAWSIAM:
		return "aws-iam"
	case AuthMethodGoogleIAM:
		return "google-iam"
	case AuthMethodAzureEntraID:
		return "azure-entra-id"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseAuthMethod parses the names produced by AuthMethod.String.
// An empty string means AuthMethodStandard.
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard":
		return AuthMethodStandard, nil
	case "aws-iam", "aws":
		return AuthMethodAWSIAM, nil
	case "google-iam", "google":
		return AuthMethodGoogleIAM, nil
	case "azure-entra-id", "azure":
		return AuthMethodAzureEntraID, nil
	default:
		return AuthMethodStandard, fmt.Errorf("unknown auth method %q", s)
	}
}

// ConnectionConfig represents parsed connection parameters.
type ConnectionConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	// AuthMethod indicates the authentication mechanism to use
	AuthMethod AuthMethod

	// Additional connection parameters
	AppName          string
	ConnectTimeout   time.Duration
	AdditionalParams map[string]string

	// MaxConns caps the pgx pool size; 0 means DefaultMaxConns.
	MaxConns int32

	// Azure Entra ID authentication parameters (used when AuthMethod is AuthMethodAzureEntraID)
	// If all three are provided, Service Principal authentication is used.
	// If none are provided, DefaultAzureCredential chain is used (env vars, managed identity, CLI, etc.)
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string

	// AWSRegion is required for AuthMethodAWSIAM.
	AWSRegion string

	// GoogleInstance is the project:region:instance name for AuthMethodGoogleIAM.
	GoogleInstance string
}

// Connector establishes a pgx connection pool to the cluster.
type Connector interface {
	// Connect establishes a connection pool to the database.
	// The returned pool should be closed by the caller when done.
	Connect(ctx context.Context) (*pgxpool.Pool, error)
}

const (
	DefaultHost    = "localhost"
	DefaultUser    = "root"
	DefaultSSLMode = "prefer"
)
