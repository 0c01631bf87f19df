package db

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vvka-141/roachtx/pkg/roachtx"
)

// ParseConnectionString parses a connection string in PostgreSQL URI,
// libpq keyword/value or ADO.NET format and returns a ConnectionConfig.
//
// Supported formats:
//   - URI: postgresql://root@localhost:26257/bank?sslmode=disable
//   - keyword/value: host=localhost port=26257 dbname=bank user=root
//   - ADO.NET: Host=localhost;Port=26257;Database=bank;Username=root
func ParseConnectionString(connStr string) (*ConnectionConfig, error) {
	connStr = strings.TrimSpace(connStr)
	if connStr == "" {
		return nil, fmt.Errorf("connection string is empty")
	}

	switch {
	case strings.HasPrefix(connStr, "postgresql://") || strings.HasPrefix(connStr, "postgres://"):
		return parseURI(connStr)
	case strings.Contains(connStr, "=") && strings.Contains(connStr, ";"):
		return parseADONET(connStr)
	case strings.Contains(connStr, "="):
		return parseKeywordValue(connStr)
	}

	return nil, fmt.Errorf("unrecognized connection string format")
}

func newDefaultConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Host:             DefaultHost,
		Port:             roachtx.DefaultPort,
		Database:         roachtx.DefaultDatabase,
		AuthMethod:       AuthMethodStandard,
		AdditionalParams: make(map[string]string),
	}
}

// parseURI parses postgresql://[user[:password]@][host][:port][/dbname][?param1=value1&...]
func parseURI(connStr string) (*ConnectionConfig, error) {
	u, err := url.Parse(connStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PostgreSQL URI: %w", err)
	}

	config := newDefaultConfig()

	if u.Hostname() != "" {
		config.Host = u.Hostname()
	}
	if u.Port() != "" {
		port, err := strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid port: %w", err)
		}
		config.Port = port
	}

	if u.User != nil {
		config.Username = u.User.Username()
		if pass, ok := u.User.Password(); ok {
			config.Password = pass
		}
	}

	if len(u.Path) > 1 {
		config.Database = strings.TrimPrefix(u.Path, "/")
	}

	for key, values := range u.Query() {
		if len(values) == 0 {
			continue
		}
		if err := config.setParam(key, values[0]); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// parseKeywordValue parses the libpq form: host=localhost port=26257 user='my user'
func parseKeywordValue(connStr string) (*ConnectionConfig, error) {
	config := newDefaultConfig()

	pairs, err := splitKeywordValue(connStr)
	if err != nil {
		return nil, err
	}
	for _, kv := range pairs {
		if err := config.setParam(kv[0], kv[1]); err != nil {
			return nil, err
		}
	}
	return config, nil
}

// splitKeywordValue tokenizes key=value pairs separated by whitespace.
// Values may be single-quoted; \' and \\ escape inside quotes.
func splitKeywordValue(s string) ([][2]string, error) {
	var pairs [][2]string
	i := 0
	for {
		for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i >= len(s) {
			return pairs, nil
		}

		eq := strings.IndexByte(s[i:], '=')
		if eq < 0 {
			return nil, fmt.Errorf("missing \"=\" after %q in connection string", s[i:])
		}
		key := strings.TrimSpace(s[i : i+eq])
		i += eq + 1
		for i < len(s) && s[i] == ' ' {
			i++
		}

		var val strings.Builder
		if i < len(s) && s[i] == '\'' {
			i++
			closed := false
			for i < len(s) {
				c := s[i]
				if c == '\\' && i+1 < len(s) {
					val.WriteByte(s[i+1])
					i += 2
					continue
				}
				i++
				if c == '\'' {
					closed = true
					break
				}
				val.WriteByte(c)
			}
			if !closed {
				return nil, fmt.Errorf("unterminated quoted value for %q", key)
			}
		} else {
			for i < len(s) && s[i] != ' ' && s[i] != '\t' {
				val.WriteByte(s[i])
				i++
			}
		}
		pairs = append(pairs, [2]string{key, val.String()})
	}
}

// parseADONET parses Host=localhost;Port=26257;Database=bank;Username=root;...
func parseADONET(connStr string) (*ConnectionConfig, error) {
	config := newDefaultConfig()

	for _, part := range strings.Split(connStr, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		if err := config.setParam(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// setParam applies one parameter under any of the spellings used by the
// three supported formats. Unknown keys are kept in AdditionalParams.
func (c *ConnectionConfig) setParam(key, value string) error {
	switch strings.ToLower(key) {
	case "host", "server":
		c.Host = value
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", value, err)
		}
		c.Port = port
	case "dbname", "database", "initial catalog":
		c.Database = value
	case "user", "username", "user id", "uid":
		c.Username = value
	case "password", "pwd":
		c.Password = value
	case "sslmode", "ssl mode":
		c.SSLMode = value
	case "application_name", "application name", "applicationname":
		c.AppName = value
	case "connect_timeout", "connecttimeout", "connect timeout", "timeout":
		if timeout, err := strconv.Atoi(value); err == nil {
			c.ConnectTimeout = time.Duration(timeout) * time.Second
		}
	default:
		c.AdditionalParams[key] = value
	}
	return nil
}

// BuildConnectionString converts a ConnectionConfig back to a PostgreSQL URI.
// Both pgx and lib/pq accept the result.
func BuildConnectionString(config *ConnectionConfig) string {
	u := &url.URL{
		Scheme: "postgresql",
		Host:   fmt.Sprintf("%s:%d", config.Host, config.Port),
		Path:   "/" + config.Database,
	}

	if config.Username != "" {
		if config.Password != "" {
			u.User = url.UserPassword(config.Username, config.Password)
		} else {
			u.User = url.User(config.Username)
		}
	}

	query := url.Values{}
	if config.SSLMode != "" {
		query.Set("sslmode", config.SSLMode)
	}
	if config.AppName != "" {
		query.Set("application_name", config.AppName)
	}
	if config.ConnectTimeout > 0 {
		query.Set("connect_timeout", strconv.Itoa(int(config.ConnectTimeout.Seconds())))
	}

	for key, value := range config.AdditionalParams {
		query.Set(key, value)
	}

	u.RawQuery = query.Encode()
	return u.String()
}
