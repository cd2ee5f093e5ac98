// Package database opens connections to the local SQL Server and to the
// SQL Server instance running on each field machine.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/denisenkom/go-mssqldb"
	"github.com/sirupsen/logrus"

	"github.com/abelzeko/onemine/internal/config"
)

const driverName = "sqlserver"

// OpenFunc opens a database handle. sql.Open by default, replaced in tests.
type OpenFunc func(driverName, dsn string) (*sql.DB, error)

// Connector builds connections for the two profiles
type Connector struct {
	cfg    *config.Config
	log    logrus.FieldLogger
	open   OpenFunc
	policy func() backoff.BackOff
}

// NewConnector creates a connector from the loaded configuration
func NewConnector(cfg *config.Config, log logrus.FieldLogger) *Connector {
	return &Connector{
		cfg:  cfg,
		log:  log,
		open: sql.Open,
		policy: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewConstantBackOff(cfg.RetryBackoff), uint64(cfg.Retries-1))
		},
	}
}

// WithOpener replaces the function used to open handles
func (c *Connector) WithOpener(open OpenFunc) *Connector {
	c.open = open
	return c
}

// Local connects to the fixed local server
func (c *Connector) Local(ctx context.Context) (*sql.DB, error) {
	if err := c.cfg.ValidateLocal(); err != nil {
		return nil, err
	}
	return c.connect(ctx, c.cfg.Local)
}

// Remote connects to the SQL Server instance of the machine at ip
func (c *Connector) Remote(ctx context.Context, ip string) (*sql.DB, error) {
	profile, err := c.cfg.RemoteFor(SanitizeHost(ip))
	if err != nil {
		return nil, err
	}
	return c.connect(ctx, profile)
}

func (c *Connector) connect(ctx context.Context, profile config.Database) (*sql.DB, error) {
	dsn := DSN(profile, c.cfg.LoginTimeout)
	host := SanitizeHost(profile.Server)
	log := c.log.WithFields(logrus.Fields{"host": host, "database": profile.Database})

	var db *sql.DB
	attempt := 0
	operation := func() error {
		attempt++
		log.Debugf("Opening connection (attempt %d/%d)", attempt, c.cfg.Retries)

		handle, err := c.open(driverName, dsn)
		if err != nil {
			return err
		}
		pingCtx, cancel := context.WithTimeout(ctx, c.loginTimeout())
		defer cancel()
		if err := handle.PingContext(pingCtx); err != nil {
			handle.Close()
			return err
		}
		db = handle
		return nil
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(c.policy(), ctx), func(err error, wait time.Duration) {
		log.Warnf("Connection attempt %d/%d failed, retrying in %s: %v", attempt, c.cfg.Retries, wait, err)
	})
	if err != nil {
		log.Errorf("Connection failed after %d attempts: %v", attempt, err)
		return nil, fmt.Errorf("failed to connect to %s/%s: %w", host, profile.Database, err)
	}

	log.Debugf("Connection established")
	return db, nil
}

func (c *Connector) loginTimeout() time.Duration {
	if c.cfg.LoginTimeout <= 0 {
		return 8 * time.Second
	}
	return c.cfg.LoginTimeout
}

// QueryTimeout bounds each repository call made on a connection from c
func (c *Connector) QueryTimeout() time.Duration {
	if c.cfg.QueryTimeout <= 0 {
		return 30 * time.Second
	}
	return c.cfg.QueryTimeout
}

// SanitizeHost removes every space from a host or IP as typed in the Computer table
func SanitizeHost(h string) string {
	return strings.ReplaceAll(h, " ", "")
}

// DSN builds a sqlserver:// URL for the profile. Encryption is disabled and
// the server certificate trusted, as the field machines use self-signed setups.
func DSN(profile config.Database, loginTimeout time.Duration) string {
	query := url.Values{}
	query.Add("database", profile.Database)
	query.Add("encrypt", "disable")
	query.Add("TrustServerCertificate", "true")
	// No "connection timeout": it re-arms a deadline on every read.
	// Login and queries are bounded by their contexts.
	if loginTimeout > 0 {
		query.Add("dial timeout", strconv.Itoa(int(loginTimeout/time.Second)))
	}

	port := profile.Port
	if port <= 0 {
		port = 1433
	}
	u := &url.URL{
		Scheme:   driverName,
		User:     url.UserPassword(profile.User, profile.Password),
		Host:     net.JoinHostPort(SanitizeHost(profile.Server), strconv.Itoa(port)),
		RawQuery: query.Encode(),
	}
	return u.String()
}
