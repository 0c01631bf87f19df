package db

import (
	"context"
	"time"
)

// TokenProvider supplies short-lived credentials that stand in for a
// password when the cluster sits behind a cloud identity service.
type TokenProvider interface {
	GetToken(ctx context.Context) (token string, expiresOn time.Time, err error)

	// String names the provider for logs and must not reveal secrets.
	String() string
}

// AzurePostgreSQLScope is the Entra ID scope for database tokens.
const AzurePostgreSQLScope = "https://ossrdbms-aad.database.windows.net/.default"
