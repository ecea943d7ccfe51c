// Package distlock provides a PostgreSQL advisory lock for serializing
// work across processes, such as concurrent migration runs against the
// same database.
package distlock

import (
	"context"
	"database/sql"
	"errors"
	"hash/fnv"
)

// PGAdvisoryLock is a non-blocking, session-scoped advisory lock.
// Advisory locks belong to one database session, so Acquire pins a
// dedicated connection from the pool and Release returns it. The lock
// is released automatically if the connection drops.
type PGAdvisoryLock struct {
	db     *sql.DB
	conn   *sql.Conn
	lockID int64
}

// NewPGAdvisoryLock creates an advisory lock with a deterministic lock ID
// derived from the given key string. The same key always maps to the same
// lock ID, across processes and restarts.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Acquire tries to take the lock without blocking. It returns true on
// success and false if another session holds it.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	if l.conn != nil {
		return false, errors.New("distlock: lock already acquired")
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}

	l.conn = conn
	return true, nil
}

// Release unlocks and returns the pinned connection to the pool. Calling
// Release without a held lock is a no-op.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}

	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	closeErr := l.conn.Close()
	l.conn = nil

	if err != nil {
		return err
	}
	return closeErr
}
