// Package db persists dataset snapshots: the upload-history entry plus the
// exact records of each upload, so selecting a past upload restores the
// original data rather than a regenerated approximation.
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/tphummel/insight_hub/internal/models"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite connection.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at path, enables WAL mode, and runs migrations.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := migrate(conn); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &DB{conn: conn}, nil
}

func migrate(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS datasets (
			id           TEXT PRIMARY KEY,
			filename     TEXT NOT NULL,
			uploaded_at  TEXT NOT NULL,
			record_count INTEGER NOT NULL,
			summary      TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS dataset_records (
			dataset_id TEXT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
			seq        INTEGER NOT NULL,
			status     TEXT NOT NULL DEFAULT '',
			payload    TEXT NOT NULL,
			PRIMARY KEY (dataset_id, seq)
		);
		CREATE INDEX IF NOT EXISTS idx_datasets_uploaded_at ON datasets(uploaded_at);
	`)
	return err
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Ping verifies the database connection is alive.
func (d *DB) Ping() error {
	return d.conn.Ping()
}

// SaveDataset stores a history entry and its records atomically. Record
// order is preserved via the seq column.
func (d *DB) SaveDataset(entry models.UploadHistory, records []models.EquipmentRecord) error {
	summaryJSON, err := json.Marshal(entry.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO datasets (id, filename, uploaded_at, record_count, summary)
		VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.Filename, entry.UploadedAt, entry.RecordCount, string(summaryJSON),
	); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO dataset_records (dataset_id, seq, status, payload)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range records {
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode record %d: %w", i, err)
		}
		if _, err := stmt.Exec(entry.ID, i, r.Status, string(payload)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetDataset returns the history entry with the given ID, or sql.ErrNoRows
// if not found.
func (d *DB) GetDataset(id string) (models.UploadHistory, error) {
	row := d.conn.QueryRow(`
		SELECT id, filename, uploaded_at, record_count, summary
		FROM datasets WHERE id = ?`, id)
	return scanDataset(row)
}

// GetRecords returns the records of a dataset in upload order. Returns
// sql.ErrNoRows if the dataset does not exist.
func (d *DB) GetRecords(id string) ([]models.EquipmentRecord, error) {
	if _, err := d.GetDataset(id); err != nil {
		return nil, err
	}

	rows, err := d.conn.Query(`
		SELECT payload FROM dataset_records
		WHERE dataset_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.EquipmentRecord{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var r models.EquipmentRecord
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("decode record payload: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// History returns up to limit history entries, newest first.
func (d *DB) History(limit int) ([]models.UploadHistory, error) {
	rows, err := d.conn.Query(`
		SELECT id, filename, uploaded_at, record_count, summary
		FROM datasets ORDER BY uploaded_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.UploadHistory
	for rows.Next() {
		e, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes all but the keep newest datasets and their records, keeping
// disk in step with the bounded history view.
func (d *DB) Prune(keep int) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM dataset_records WHERE dataset_id NOT IN (
			SELECT id FROM datasets ORDER BY uploaded_at DESC, rowid DESC LIMIT ?
		)`, keep); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		DELETE FROM datasets WHERE id NOT IN (
			SELECT id FROM datasets ORDER BY uploaded_at DESC, rowid DESC LIMIT ?
		)`, keep); err != nil {
		return err
	}

	return tx.Commit()
}

// CountByStatus returns the number of records in the newest dataset broken
// down by status. An empty database yields an empty map.
func (d *DB) CountByStatus() (map[string]int, error) {
	rows, err := d.conn.Query(`
		SELECT status, COUNT(*) FROM dataset_records
		WHERE dataset_id = (
			SELECT id FROM datasets ORDER BY uploaded_at DESC, rowid DESC LIMIT 1
		)
		GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// DatasetCount returns the number of stored datasets.
func (d *DB) DatasetCount() (int, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM datasets`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDataset(row rowScanner) (models.UploadHistory, error) {
	var e models.UploadHistory
	var summaryJSON string
	if err := row.Scan(&e.ID, &e.Filename, &e.UploadedAt, &e.RecordCount, &summaryJSON); err != nil {
		return models.UploadHistory{}, err
	}
	if err := json.Unmarshal([]byte(summaryJSON), &e.Summary); err != nil {
		return models.UploadHistory{}, fmt.Errorf("decode summary: %w", err)
	}
	return e, nil
}
