package db

import (
	"database/sql/driver"
	"errors"
	"io"
	"net"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrPoolClosed         = errors.New("db pool closed")
	ErrQueueLimitReached  = errors.New("db pool queue limit reached")
	ErrDiagnosticsOffline = errors.New("diagnostic connection not established")
	ErrRecreateThrottled  = errors.New("db pool recreation throttled")
)

// MySQL server error numbers that mean the session is gone.
const (
	erServerShutdown = 1053
	erConnKilled     = 1927
	crServerGone     = 2006
	crServerLost     = 2013
	erClientInteract = 4031 // disconnected by the server because of inactivity
)

// IsConnectionLost reports whether err means the protocol connection to the
// server was severed, as opposed to a statement-level failure.
func IsConnectionLost(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case erServerShutdown, erConnKilled, crServerGone, crServerLost, erClientInteract:
			return true
		}
		return false
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}
