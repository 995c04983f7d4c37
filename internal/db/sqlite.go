// Package db provides SQLite connectivity, migrations, and test helpers for
// the diff task store.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
)

// SQLite DSN parameters.
const (
	defaultBusyTimeout = "5000" // 5 seconds
	defaultSynchronous = "NORMAL"
	defaultJournalMode = "WAL"
	defaultReadConns   = 4
)

// Mode selects write-safety and pool sizing for a SQLite handle.
type Mode string

// Pool modes.
const (
	// ModeWrite serializes writers on a single connection with immediate
	// transactions so concurrent mutations never interleave.
	ModeWrite Mode = "write"
	// ModeRead allows several concurrent readers on the WAL snapshot.
	ModeRead Mode = "read"
)

// Pools is a write/read pool pair for one SQLite file. Mutations go to
// Write; listings and aggregates may use Read.
type Pools struct {
	Write *sql.DB
	Read  *sql.DB
}

// Close closes both pools.
func (p *Pools) Close() error {
	return errors.Join(p.Read.Close(), p.Write.Close())
}

// Open opens a SQLite handle for path in the given mode. maxOpen applies to
// ModeRead only (0 uses the default of 4).
//
// Both modes set WAL journal, busy_timeout=5000ms, synchronous=NORMAL and
// foreign_keys=on; the latter is required for cascading task removal.
func Open(path string, mode Mode, maxOpen int) (*sql.DB, error) {
	if mode != ModeRead && mode != ModeWrite {
		return nil, fmt.Errorf("invalid SQLite mode %q: must be %q or %q", mode, ModeRead, ModeWrite)
	}

	db, err := sql.Open("sqlite3", buildDSN(path, mode))
	if err != nil {
		return nil, fmt.Errorf("open sqlite (%s): %w", mode, err)
	}

	switch mode {
	case ModeWrite:
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	case ModeRead:
		if maxOpen <= 0 {
			maxOpen = defaultReadConns
		}
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen)
	}
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite (%s): %w", mode, err)
	}

	return db, nil
}

// OpenPools opens the write pool and a read pool of readMaxOpen connections
// for the same file.
func OpenPools(path string, readMaxOpen int) (*Pools, error) {
	writeDB, err := Open(path, ModeWrite, 0)
	if err != nil {
		return nil, err
	}

	readDB, err := Open(path, ModeRead, readMaxOpen)
	if err != nil {
		_ = writeDB.Close()
		return nil, err
	}

	return &Pools{Write: writeDB, Read: readDB}, nil
}

func buildDSN(path string, mode Mode) string {
	params := url.Values{}
	params.Set("_journal_mode", defaultJournalMode)
	params.Set("_busy_timeout", defaultBusyTimeout)
	params.Set("_synchronous", defaultSynchronous)
	params.Set("_foreign_keys", "on")

	if mode == ModeWrite {
		params.Set("_txlock", "immediate")
	}

	return "file:" + path + "?" + params.Encode()
}
