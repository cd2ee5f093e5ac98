package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConnector struct {
	db      *sql.DB
	err     error
	gotIP   string
	timeout time.Duration
}

func (c *stubConnector) Local(context.Context) (*sql.DB, error) {
	return c.db, c.err
}

func (c *stubConnector) Remote(_ context.Context, ip string) (*sql.DB, error) {
	c.gotIP = ip
	return c.db, c.err
}

func (c *stubConnector) QueryTimeout() time.Duration {
	return c.timeout
}

func TestOpenerBundlesShareConnection(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	conn := &stubConnector{db: db}
	local, err := NewSQLServerOpener(conn).OpenLocal(context.Background())
	require.NoError(t, err)

	assert.NotNil(t, local.Machines)
	assert.NotNil(t, local.Cartirs)
	assert.NotNil(t, local.Reports)
	assert.NotNil(t, local.Operators)
	assert.NotNil(t, local.Streets)
	require.NoError(t, local.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenerRemote(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	conn := &stubConnector{db: db}
	remote, err := NewSQLServerOpener(conn).OpenRemote(context.Background(), "10.0.0.7")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7", conn.gotIP)
	assert.NotNil(t, remote.Tags)
	require.NoError(t, remote.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenerPropagatesConnectError(t *testing.T) {
	conn := &stubConnector{err: errors.New("connection refused")}
	_, err := NewSQLServerOpener(conn).OpenRemote(context.Background(), "10.0.0.7")
	assert.EqualError(t, err, "connection refused")

	var nilLocal *Local
	assert.NoError(t, nilLocal.Close())
	assert.NoError(t, NewRemote(Remote{}, nil).Close())
}

func TestOpenerBoundsEachCallByQueryTimeout(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("SELECT").WillDelayFor(5 * time.Second).
		WillReturnRows(sqlmock.NewRows([]string{"MachineId", "Name", "IpAddress"}))

	conn := &stubConnector{db: db, timeout: 50 * time.Millisecond}
	local, err := NewSQLServerOpener(conn).OpenLocal(context.Background())
	require.NoError(t, err)

	start := time.Now()
	_, err = local.Machines.ListMachines(context.Background())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestBound(t *testing.T) {
	ctx, cancel := sqlServer{}.bound(context.Background())
	defer cancel()
	_, ok := ctx.Deadline()
	assert.False(t, ok, "a zero timeout leaves the context unbounded")

	ctx, cancel = sqlServer{timeout: time.Minute}.bound(context.Background())
	defer cancel()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}
