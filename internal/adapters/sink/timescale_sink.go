package sink

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/oofurkan/CncMachineTracker/internal/domain"
	"github.com/oofurkan/CncMachineTracker/internal/ports"
)

type TimescaleSink struct {
	db        *sql.DB
	tableName string
}

func NewTimescaleSink(db *sql.DB, table string) *TimescaleSink {
	return &TimescaleSink{db: db, tableName: table}
}

func (t *TimescaleSink) Name() string { return "timescaledb" }

// EnsureTable creates the sample table when it does not exist yet.
func (t *TimescaleSink) EnsureTable() error {
	_, err := t.db.Exec("CREATE TABLE IF NOT EXISTS " + t.tableName + ` (
		machine_id TEXT NOT NULL,
		ts TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL,
		production_count BIGINT NOT NULL,
		cycle_time_seconds DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (machine_id, ts)
	)`)
	if err != nil {
		return fmt.Errorf("create table %s: %w", t.tableName, err)
	}
	return nil
}

func (t *TimescaleSink) WriteBatch(samples []domain.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	// idempotent via (machine_id, ts) primary key
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(t.tableName)
	b.WriteString(" (machine_id, ts, status, production_count, cycle_time_seconds) VALUES ")

	args := make([]any, 0, len(samples)*5)
	for i, s := range samples {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d)",
			len(args)+1, len(args)+2, len(args)+3, len(args)+4, len(args)+5))

		args = append(args,
			s.MachineID,
			s.Timestamp,
			string(s.Status),
			s.ProductionCount,
			s.CycleTimeSeconds,
		)
	}

	b.WriteString(" ON CONFLICT (machine_id, ts) DO NOTHING")

	_, err := t.db.Exec(b.String(), args...)
	return err
}

var _ ports.Sink = (*TimescaleSink)(nil)
