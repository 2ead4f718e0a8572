package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dm/pmon/internal/model"
)

// SQLiteSink mirrors records into a SQLite database so a run survives a
// restart of the process.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and migrates it.
func OpenSQLite(path string, log *slog.Logger) (*SQLiteSink, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on&_synchronous=NORMAL", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database not responding: %w", err)
	}

	// a single writer avoids SQLITE_BUSY between the page loops
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := runMigration(db); err != nil {
		db.Close()
		return nil, err
	}

	if log != nil {
		log.Info("sqlite record mirror ready", "path", path)
	}
	return &SQLiteSink{db: db}, nil
}

func runMigration(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS records (
		page TEXT NOT NULL,
		id INTEGER NOT NULL,
		at TEXT NOT NULL,
		total_watts REAL NOT NULL,
		PRIMARY KEY (page, id)
	);
	CREATE TABLE IF NOT EXISTS record_values (
		page TEXT NOT NULL,
		id INTEGER NOT NULL,
		host TEXT NOT NULL,
		watts REAL,
		PRIMARY KEY (page, id, host),
		FOREIGN KEY (page, id) REFERENCES records (page, id) ON DELETE CASCADE
	);
	`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to migrate records tables: %w", err)
	}
	return nil
}

// Insert implements Sink.
func (s *SQLiteSink) Insert(ctx context.Context, page string, rec model.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO records (page, id, at, total_watts) VALUES (?, ?, ?, ?)`,
		page, rec.ID, rec.At.Format(time.RFC3339Nano), rec.TotalWatts); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	for i, h := range rec.Hosts {
		var w sql.NullFloat64
		if rec.Values[i] != nil {
			w = sql.NullFloat64{Float64: *rec.Values[i], Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO record_values (page, id, host, watts) VALUES (?, ?, ?, ?)`,
			page, rec.ID, h, w); err != nil {
			return fmt.Errorf("insert value %s: %w", h, err)
		}
	}
	return tx.Commit()
}

// Clear implements Sink.
func (s *SQLiteSink) Clear(ctx context.Context, page string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE page = ?`, page); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	return nil
}

// Load returns the mirrored records of page in id order.
func (s *SQLiteSink) Load(ctx context.Context, page string) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.at, r.total_watts, v.host, v.watts
		FROM records r JOIN record_values v ON v.page = r.page AND v.id = r.id
		WHERE r.page = ?
		ORDER BY r.id, v.rowid`, page)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		var (
			id    int64
			at    string
			total float64
			host  string
			watts sql.NullFloat64
		)
		if err := rows.Scan(&id, &at, &total, &host, &watts); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].ID != id {
			ts, err := time.Parse(time.RFC3339Nano, at)
			if err != nil {
				return nil, fmt.Errorf("parse record time %q: %w", at, err)
			}
			out = append(out, model.Record{ID: id, At: ts, TotalWatts: total})
		}
		last := &out[len(out)-1]
		last.Hosts = append(last.Hosts, host)
		if watts.Valid {
			w := watts.Float64
			last.Values = append(last.Values, &w)
		} else {
			last.Values = append(last.Values, nil)
		}
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
