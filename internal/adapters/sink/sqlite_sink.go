package sink

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/oofurkan/CncMachineTracker/internal/domain"
	"github.com/oofurkan/CncMachineTracker/internal/ports"
)

// SQLiteSink archives samples into a local SQLite file for cells that run
// without a central historian.
type SQLiteSink struct {
	db        *sql.DB
	tableName string
}

// OpenSQLiteSink opens or creates the database at path and its sample table.
func OpenSQLiteSink(path, table string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS ` + table + ` (
		machine_id TEXT NOT NULL,
		ts TEXT NOT NULL,
		status TEXT NOT NULL,
		production_count INTEGER NOT NULL,
		cycle_time_seconds REAL NOT NULL,
		PRIMARY KEY (machine_id, ts)
	)`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteSink{db: db, tableName: table}, nil
}

func (s *SQLiteSink) Name() string { return "sqlite" }

func (s *SQLiteSink) WriteBatch(samples []domain.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO ` + s.tableName +
		` (machine_id, ts, status, production_count, cycle_time_seconds) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, smp := range samples {
		if _, err := stmt.Exec(
			smp.MachineID,
			smp.Timestamp.UTC().Format("2006-01-02T15:04:05.000000000Z07:00"),
			string(smp.Status),
			smp.ProductionCount,
			smp.CycleTimeSeconds,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert sample %s: %w", smp.MachineID, err)
		}
	}
	return tx.Commit()
}

// Count returns how many samples are archived for machineID.
func (s *SQLiteSink) Count(machineID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM `+s.tableName+` WHERE machine_id = ?`, machineID).Scan(&n)
	return n, err
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

var _ ports.Sink = (*SQLiteSink)(nil)
