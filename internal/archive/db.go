// internal/archive/db.go
package archive

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"

	"github.com/signalnine/ipaugur/internal/protocol"
)

// DB is a write-mostly archive of past reports. Analysis never reads it.
type DB struct {
	db *sql.DB
}

// Open opens or creates the SQLite database
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		invocation_id TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		bucket TEXT NOT NULL,
		object_key TEXT NOT NULL,
		lines INTEGER,
		unique_ips INTEGER,
		findings TEXT,
		created_at TEXT DEFAULT (datetime('now'))
	);
	CREATE INDEX IF NOT EXISTS idx_reports_key ON reports(bucket, object_key);
	CREATE INDEX IF NOT EXISTS idx_reports_timestamp ON reports(timestamp);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db: db}, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// Insert stores one invocation's report
func (d *DB) Insert(r *protocol.ArchivedReport) error {
	findingsJSON, err := json.Marshal(r.Findings)
	if err != nil {
		return err
	}

	_, err = d.db.Exec(`
		INSERT INTO reports (invocation_id, timestamp, bucket, object_key, lines, unique_ips, findings)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.InvocationID, r.Timestamp.UTC().Format(time.RFC3339), r.Bucket, r.Key, r.Lines, r.UniqueIPs, string(findingsJSON))

	return err
}

// Recent returns the latest reports, newest first
func (d *DB) Recent(limit int) ([]protocol.ArchivedReport, error) {
	rows, err := d.db.Query(`
		SELECT id, invocation_id, timestamp, bucket, object_key, lines, unique_ips, findings, created_at
		FROM reports
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReports(rows)
}

// ByKey returns reports for one log object, newest first
func (d *DB) ByKey(bucket, key string, limit int) ([]protocol.ArchivedReport, error) {
	rows, err := d.db.Query(`
		SELECT id, invocation_id, timestamp, bucket, object_key, lines, unique_ips, findings, created_at
		FROM reports
		WHERE bucket = ? AND object_key = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, bucket, key, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReports(rows)
}

func scanReports(rows *sql.Rows) ([]protocol.ArchivedReport, error) {
	var reports []protocol.ArchivedReport
	for rows.Next() {
		var r protocol.ArchivedReport
		var tsStr, createdStr string
		var findingsJSON sql.NullString
		var lines, uniqueIPs sql.NullInt64

		err := rows.Scan(&r.ID, &r.InvocationID, &tsStr, &r.Bucket, &r.Key, &lines, &uniqueIPs, &findingsJSON, &createdStr)
		if err != nil {
			return nil, err
		}

		r.Timestamp, _ = time.Parse(time.RFC3339, tsStr)
		r.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", createdStr)
		if findingsJSON.Valid {
			json.Unmarshal([]byte(findingsJSON.String), &r.Findings)
		}
		r.Lines = int(lines.Int64)
		r.UniqueIPs = int(uniqueIPs.Int64)

		reports = append(reports, r)
	}
	return reports, rows.Err()
}
