package repository

import (
	"context"
	"database/sql"
	"time"
)

// Connector opens SQL Server handles for the local and per-machine profiles
type Connector interface {
	Local(ctx context.Context) (*sql.DB, error)
	Remote(ctx context.Context, ip string) (*sql.DB, error)
	QueryTimeout() time.Duration
}

// Local groups the repositories backed by the local database. Close
// releases the underlying connection.
type Local struct {
	Machines  MachineRepository
	Cartirs   CartirRepository
	Reports   ReportRepository
	Operators OperatorRepository
	Streets   StreetRepository

	closer func() error
}

// Close releases the connection
func (l *Local) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer()
}

// Remote groups the repositories backed by one machine's database
type Remote struct {
	Cartirs   RemoteCartirRepository
	Operators RemoteOperatorRepository
	Tags      TagRepository
	Status    MachineStatusRepository

	closer func() error
}

// Close releases the connection
func (r *Remote) Close() error {
	if r == nil || r.closer == nil {
		return nil
	}
	return r.closer()
}

// NewLocal bundles repositories that share one closer. Used by tests and
// by alternative backends.
func NewLocal(l Local, closer func() error) *Local {
	l.closer = closer
	return &l
}

// NewRemote is NewLocal for the remote bundle
func NewRemote(r Remote, closer func() error) *Remote {
	r.closer = closer
	return &r
}

// Opener hands out repository bundles for a single action
type Opener interface {
	OpenLocal(ctx context.Context) (*Local, error)
	OpenRemote(ctx context.Context, ip string) (*Remote, error)
}

// SQLServerOpener builds SQL Server repositories on connections from a Connector
type SQLServerOpener struct {
	connector Connector
}

// NewSQLServerOpener creates an opener over connector
func NewSQLServerOpener(connector Connector) *SQLServerOpener {
	return &SQLServerOpener{connector: connector}
}

// OpenLocal connects to the local database
func (o *SQLServerOpener) OpenLocal(ctx context.Context) (*Local, error) {
	db, err := o.connector.Local(ctx)
	if err != nil {
		return nil, err
	}
	timeout := o.connector.QueryTimeout()
	return &Local{
		Machines:  NewSQLServerMachineRepository(db, timeout),
		Cartirs:   NewSQLServerCartirRepository(db, timeout),
		Reports:   NewSQLServerReportRepository(db, timeout),
		Operators: NewSQLServerOperatorRepository(db, timeout),
		Streets:   NewSQLServerStreetRepository(db, timeout),
		closer:    db.Close,
	}, nil
}

// OpenRemote connects to the database of the machine at ip
func (o *SQLServerOpener) OpenRemote(ctx context.Context, ip string) (*Remote, error) {
	db, err := o.connector.Remote(ctx, ip)
	if err != nil {
		return nil, err
	}
	timeout := o.connector.QueryTimeout()
	return &Remote{
		Cartirs:   NewSQLServerRemoteCartirRepository(db, timeout),
		Operators: NewSQLServerRemoteOperatorRepository(db, timeout),
		Tags:      NewSQLServerTagRepository(db, timeout),
		Status:    NewSQLServerMachineStatusRepository(db, timeout),
		closer:    db.Close,
	}, nil
}
