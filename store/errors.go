package store

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

// Kind classifies errors raised while using a connection.
type Kind uint8

const (
	// KindNone is the kind of a nil error.
	KindNone Kind = iota
	// KindBusy means the database was temporarily locked by another
	// connection. The operation can be retried after a reset.
	KindBusy
	// KindFatal is every other failure.
	KindFatal
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBusy:
		return "busy"
	default:
		return "fatal"
	}
}

// ErrBusy can be returned (or wrapped) by workloads whose resource reports
// transient contention outside of SQLite.
var ErrBusy = errors.New("store: resource busy")

// KindOf classifies err by its SQLite result code, never by message text.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}

	if errors.Is(err, ErrBusy) {
		return KindBusy
	}

	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return KindBusy
		}
	}

	return KindFatal
}

// SQLiteVersion returns the version of the linked SQLite library.
func SQLiteVersion() string {
	v, _, _ := sqlite3.Version()

	return v
}
