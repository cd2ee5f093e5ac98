package database

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelzeko/onemine/internal/config"
	"github.com/abelzeko/onemine/internal/logging"
)

func testConfig() *config.Config {
	return &config.Config{
		Local:        config.Database{Server: "srv01", Port: 1433, Database: "MTOnemine", User: "app", Password: "p@ss;word"},
		Remote:       config.Database{Port: 1433, Database: "MTOnemineClient", User: "sa", Password: "x"},
		Retries:      3,
		RetryBackoff: time.Millisecond,
		LoginTimeout: 8 * time.Second,
	}
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.Database{Server: " 10.0.0. 5", Port: 1533, Database: "MTOnemine", User: "sa", Password: "p@ss;word"}, 8*time.Second)

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "sqlserver", u.Scheme)
	assert.Equal(t, "10.0.0.5:1533", u.Host)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss;word", pw)

	q := u.Query()
	assert.Equal(t, "MTOnemine", q.Get("database"))
	assert.Equal(t, "disable", q.Get("encrypt"))
	assert.Equal(t, "true", q.Get("TrustServerCertificate"))
	assert.Equal(t, "8", q.Get("dial timeout"))
	_, ok := q["connection timeout"]
	assert.False(t, ok, "connection timeout must not be set")
}

func TestQueryTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.QueryTimeout = 45 * time.Second
	assert.Equal(t, 45*time.Second, NewConnector(cfg, logging.Discard()).QueryTimeout())

	cfg.QueryTimeout = 0
	assert.Equal(t, 30*time.Second, NewConnector(cfg, logging.Discard()).QueryTimeout())
}

func TestLocalRetriesUntilReachable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	calls := 0
	c := NewConnector(testConfig(), logging.Discard()).WithOpener(func(driver, dsn string) (*sql.DB, error) {
		calls++
		assert.Equal(t, "sqlserver", driver)
		if calls < 3 {
			return nil, errors.New("connection refused")
		}
		return db, nil
	})

	got, err := c.Local(context.Background())
	require.NoError(t, err)
	assert.Same(t, db, got)
	assert.Equal(t, 3, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoteGivesUpAfterRetries(t *testing.T) {
	calls := 0
	c := NewConnector(testConfig(), logging.Discard()).WithOpener(func(driver, dsn string) (*sql.DB, error) {
		calls++
		u, err := url.Parse(dsn)
		require.NoError(t, err)
		assert.Equal(t, "192.168.1.20:1433", u.Host)
		return nil, errors.New("timeout")
	})

	_, err := c.Remote(context.Background(), "192.168.1. 20")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "192.168.1.20/MTOnemineClient")
	assert.Equal(t, 3, calls)
}

func TestLocalRequiresSettings(t *testing.T) {
	cfg := testConfig()
	cfg.Local.Server = ""
	_, err := NewConnector(cfg, logging.Discard()).Local(context.Background())
	assert.ErrorIs(t, err, config.ErrMissingLocal)
}

func TestConnectStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	c := NewConnector(testConfig(), logging.Discard()).WithOpener(func(string, string) (*sql.DB, error) {
		calls++
		return nil, errors.New("unreachable")
	})

	_, err := c.Remote(ctx, "10.0.0.1")
	require.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}
