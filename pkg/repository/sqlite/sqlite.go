package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kazanshin/website/pkg/domain/interfaces"
	"github.com/kazanshin/website/pkg/domain/model/errs"
	"github.com/kazanshin/website/pkg/domain/model/logentry"
	"github.com/kazanshin/website/pkg/domain/types"
	"github.com/kazanshin/website/pkg/repository/listindex"
	"github.com/kazanshin/website/pkg/utils/clock"
	"github.com/kazanshin/website/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite"
)

// SQLite keeps every list in one table ordered by a per-list sequence.
// Swaps and trims run in a single transaction, so unlike the remote stores
// they are atomic.
type SQLite struct {
	db *sql.DB
	eb *goerr.Builder
}

var _ interfaces.Store = &SQLite{}

const schema = `
CREATE TABLE IF NOT EXISTS log_entries (
	list_key TEXT    NOT NULL,
	seq      INTEGER NOT NULL,
	entry_id TEXT    NOT NULL,
	data     TEXT    NOT NULL,
	PRIMARY KEY (list_key, seq)
);
CREATE INDEX IF NOT EXISTS idx_log_entries_id ON log_entries(list_key, entry_id);

CREATE TABLE IF NOT EXISTS locks (
	lock_key   TEXT    PRIMARY KEY,
	token      TEXT    NOT NULL,
	expires_at INTEGER NOT NULL
);
`

// New opens or creates the database file at path.
func New(ctx context.Context, path string) (*SQLite, error) {
	eb := goerr.NewBuilder(goerr.TV(errs.RepositoryKey, "sqlite"), goerr.V("path", path))

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, eb.Wrap(err, "failed to create database directory")
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, eb.Wrap(err, "failed to open sqlite database", goerr.T(errs.TagStoreUnavailable))
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, eb.Wrap(err, "failed to migrate sqlite database", goerr.T(errs.TagStoreUnavailable))
	}

	return &SQLite{db: db, eb: eb}, nil
}

func (r *SQLite) Close() error {
	return r.db.Close()
}

func (r *SQLite) unavailable(err error, msg, key string) error {
	return r.eb.Wrap(err, msg, goerr.TV(errs.LogKeyKey, key), goerr.T(errs.TagStoreUnavailable))
}

func (r *SQLite) withTx(ctx context.Context, key string, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return r.unavailable(err, "failed to begin transaction", key)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return r.unavailable(err, "failed to commit transaction", key)
	}
	return nil
}

func count(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, key string) (int64, error) {
	var n int64
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM log_entries WHERE list_key = ?`, key).Scan(&n)
	return n, err
}

func (r *SQLite) Append(ctx context.Context, key string, entries ...logentry.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	return r.withTx(ctx, key, func(tx *sql.Tx) error {
		var next int64
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq), -1) + 1 FROM log_entries WHERE list_key = ?`, key,
		).Scan(&next); err != nil {
			return r.unavailable(err, "failed to read sequence", key)
		}

		for i, e := range entries {
			raw, err := logentry.Marshal(e)
			if err != nil {
				return r.eb.Wrap(err, "failed to encode log entry", goerr.TV(errs.LogKeyKey, key))
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO log_entries (list_key, seq, entry_id, data) VALUES (?, ?, ?, ?)`,
				key, next+int64(i), e.Identity().String(), raw,
			); err != nil {
				return r.unavailable(err, "failed to insert log entry", key)
			}
		}
		return nil
	})
}

func (r *SQLite) Range(ctx context.Context, key string, start, end int64) ([]logentry.Entry, error) {
	var raws []string
	err := r.withTx(ctx, key, func(tx *sql.Tx) error {
		n, err := count(ctx, tx, key)
		if err != nil {
			return r.unavailable(err, "failed to count log entries", key)
		}
		from, to, ok := listindex.Bounds(start, end, n)
		if !ok {
			return nil
		}

		rows, err := tx.QueryContext(ctx,
			`SELECT data FROM log_entries WHERE list_key = ? ORDER BY seq LIMIT ? OFFSET ?`,
			key, to-from, from)
		if err != nil {
			return r.unavailable(err, "failed to query log entries", key)
		}
		defer rows.Close()

		for rows.Next() {
			var raw string
			if err := rows.Scan(&raw); err != nil {
				return r.unavailable(err, "failed to scan log entry", key)
			}
			raws = append(raws, raw)
		}
		if err := rows.Err(); err != nil {
			return r.unavailable(err, "failed to iterate log entries", key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	entries := make([]logentry.Entry, 0, len(raws))
	for _, raw := range raws {
		e, err := logentry.Parse(raw)
		if err != nil {
			logging.From(ctx).Warn("skip corrupt log entry", "log_key", key, logging.ErrAttr(err))
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *SQLite) Len(ctx context.Context, key string) (int64, error) {
	n, err := count(ctx, r.db, key)
	if err != nil {
		return 0, r.unavailable(err, "failed to count log entries", key)
	}
	return n, nil
}

func (r *SQLite) TrimTo(ctx context.Context, key string, start, end int64) error {
	return r.withTx(ctx, key, func(tx *sql.Tx) error {
		n, err := count(ctx, tx, key)
		if err != nil {
			return r.unavailable(err, "failed to count log entries", key)
		}

		from, to, ok := listindex.Bounds(start, end, n)
		if !ok {
			if _, err := tx.ExecContext(ctx, `DELETE FROM log_entries WHERE list_key = ?`, key); err != nil {
				return r.unavailable(err, "failed to delete log entries", key)
			}
			return nil
		}

		var first, last int64
		if err := tx.QueryRowContext(ctx,
			`SELECT seq FROM log_entries WHERE list_key = ? ORDER BY seq LIMIT 1 OFFSET ?`, key, from,
		).Scan(&first); err != nil {
			return r.unavailable(err, "failed to locate trim start", key)
		}
		if err := tx.QueryRowContext(ctx,
			`SELECT seq FROM log_entries WHERE list_key = ? ORDER BY seq LIMIT 1 OFFSET ?`, key, to-1,
		).Scan(&last); err != nil {
			return r.unavailable(err, "failed to locate trim end", key)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM log_entries WHERE list_key = ? AND (seq < ? OR seq > ?)`, key, first, last,
		); err != nil {
			return r.unavailable(err, "failed to trim log entries", key)
		}
		return nil
	})
}

func (r *SQLite) Remove(ctx context.Context, key string, ids ...types.EntryID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, key)
	for _, id := range ids {
		args = append(args, id.String())
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM log_entries WHERE list_key = ? AND entry_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, r.unavailable(err, "failed to remove log entries", key)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, r.unavailable(err, "failed to read removed count", key)
	}
	return int(n), nil
}

func (r *SQLite) DeleteAll(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM log_entries WHERE list_key = ?`, key); err != nil {
		return r.unavailable(err, "failed to delete log entries", key)
	}
	return nil
}

func (r *SQLite) SwapFrom(ctx context.Context, tempKey, liveKey string) error {
	return r.withTx(ctx, liveKey, func(tx *sql.Tx) error {
		n, err := count(ctx, tx, tempKey)
		if err != nil {
			return r.unavailable(err, "failed to count temp entries", liveKey)
		}
		if n == 0 {
			return r.eb.New("swap source does not exist",
				goerr.V("temp_key", tempKey), goerr.TV(errs.LogKeyKey, liveKey))
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM log_entries WHERE list_key = ?`, liveKey); err != nil {
			return r.unavailable(err, "failed to clear live list", liveKey)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE log_entries SET list_key = ? WHERE list_key = ?`, liveKey, tempKey,
		); err != nil {
			return r.unavailable(err, "failed to move temp list", liveKey)
		}
		return nil
	})
}

func (r *SQLite) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	acquired := false
	err := r.withTx(ctx, key, func(tx *sql.Tx) error {
		now := clock.Now(ctx)

		var expiresAt int64
		err := tx.QueryRowContext(ctx, `SELECT expires_at FROM locks WHERE lock_key = ?`, key).Scan(&expiresAt)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return r.unavailable(err, "failed to read lock", key)
		case now.Before(time.UnixMilli(expiresAt)):
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO locks (lock_key, token, expires_at) VALUES (?, ?, ?)
			 ON CONFLICT(lock_key) DO UPDATE SET token = excluded.token, expires_at = excluded.expires_at`,
			key, uuid.NewString(), now.Add(ttl).UnixMilli(),
		); err != nil {
			return r.unavailable(err, "failed to write lock", key)
		}
		acquired = true
		return nil
	})
	return acquired, err
}

func (r *SQLite) Release(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM locks WHERE lock_key = ?`, key); err != nil {
		return r.unavailable(err, "failed to delete lock", key)
	}
	return nil
}
