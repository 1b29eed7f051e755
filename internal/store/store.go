// Package store is the single relational home for schedules, activations and
// movements. Every writing daemon opens one Store, runs one transaction per
// broker frame or per bulk file, and commits before acknowledging upstream.
package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq" // Postgres driver
)

// Store wraps the one persistent connection a daemon holds. MaxOpenConns is
// pinned to 1 so BEGIN/COMMIT always delimit the same session; the driver's
// own retry behaviour is not relied on, reconnection is explicit here.
type Store struct {
	db     *sql.DB
	conn   string
	logger *log.Logger
}

// Open connects and verifies the connection.
func Open(connString string) (*Store, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Store{
		db:     db,
		conn:   connString,
		logger: log.New(log.Writer(), "[STORE] ", log.LstdFlags),
	}, nil
}

// Close releases the connection.
func (s *Store) Close() error { return s.db.Close() }

// Exec runs a statement outside any transaction, reconnecting once on a
// connection-level failure and retrying the statement.
func (s *Store) Exec(query string, args ...interface{}) (sql.Result, error) {
	res, err := s.db.Exec(query, args...)
	if err != nil && s.reconnect() {
		res, err = s.db.Exec(query, args...)
	}
	return res, err
}

// QueryRow runs a single-row query outside any transaction.
func (s *Store) QueryRow(query string, args ...interface{}) *sql.Row {
	return s.db.QueryRow(query, args...)
}

func (s *Store) reconnect() bool {
	if err := s.db.Ping(); err != nil {
		s.logger.Printf("connection lost, reconnecting: %v", err)
		time.Sleep(2 * time.Second)
		if err := s.db.Ping(); err != nil {
			s.logger.Printf("reconnect failed: %v", err)
			return false
		}
	}
	return true
}

// Begin opens the per-frame transaction.
func (s *Store) Begin() (*Tx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		// One reconnect attempt, mirroring Exec.
		if !s.reconnect() {
			return nil, fmt.Errorf("store: begin: %w", err)
		}
		tx, err = s.db.Begin()
		if err != nil {
			return nil, fmt.Errorf("store: begin: %w", err)
		}
	}
	return &Tx{tx: tx}, nil
}

// Transact runs fn in a transaction, rolling back on error.
func (s *Store) Transact(fn func(*Tx) error) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Tx carries all domain operations. One Tx covers one broker frame or one
// whole bulk file.
type Tx struct {
	tx *sql.Tx
}

// Commit commits the frame.
func (t *Tx) Commit() error { return t.tx.Commit() }

// Rollback abandons the frame. Safe to call after Commit.
func (t *Tx) Rollback() { _ = t.tx.Rollback() }

func (t *Tx) exec(query string, args ...interface{}) (sql.Result, error) {
	return t.tx.Exec(query, args...)
}

func (t *Tx) query(query string, args ...interface{}) (*sql.Rows, error) {
	return t.tx.Query(query, args...)
}

func (t *Tx) queryRow(query string, args ...interface{}) *sql.Row {
	return t.tx.QueryRow(query, args...)
}
