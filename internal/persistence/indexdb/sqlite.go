package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"toolcore.dev/internal/protocol"
	"toolcore.dev/internal/sim/tuning"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropReport atomic.Uint64
	written    atomic.Uint64
}

type req struct {
	report protocol.TickReport
}

// Stats describes the write queue.
type Stats struct {
	QueueDepth      int
	QueueCapacity   int
	DropReportTotal uint64
	WrittenTotal    uint64
}

// ToolStat aggregates the indexed reports of one tool.
type ToolStat struct {
	ToolID   string
	Ticks    int
	Worked   int
	Errors   int
	LastTick uint64
}

// OutcomeRow is one indexed outcome.
type OutcomeRow struct {
	Tick   uint64
	ToolID string
	Reason string
	Short  string
	Layer  int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS configs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tool_ticks (
			tick INTEGER NOT NULL,
			tool_id TEXT NOT NULL,
			mode TEXT NOT NULL,
			budget INTEGER NOT NULL,
			worked INTEGER NOT NULL,
			hits INTEGER NOT NULL,
			retained INTEGER NOT NULL,
			predicted INTEGER NOT NULL,
			error TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, tool_id)
		);`,
		`CREATE TABLE IF NOT EXISTS tool_outcomes (
			tick INTEGER NOT NULL,
			tool_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			grid TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			layer INTEGER NOT NULL,
			reason TEXT NOT NULL,
			short TEXT,
			PRIMARY KEY (tick, tool_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_cell_tick ON tool_outcomes(grid, x, z, y, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_reason ON tool_outcomes(reason, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Publish queues a report. It never blocks; reports are dropped when the writer falls
// behind, the compressed tick log stays the source of truth.
func (s *SQLiteIndex) Publish(rep protocol.TickReport) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{report: rep}:
	default:
		s.dropReport.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:      len(s.ch),
		QueueCapacity:   cap(s.ch),
		DropReportTotal: s.dropReport.Load(),
		WrittenTotal:    s.written.Load(),
	}
}

// UpsertTuning stores the tuning actually applied, keyed by its digest.
func (s *SQLiteIndex) UpsertTuning(tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	digest, b, err := tune.Digest()
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO configs(name,digest,json,updated_at) VALUES(?,?,?,?)`, "tuning", digest, string(b), now); err != nil {
		return err
	}
	return tx.Commit()
}

// TuningDigest returns the digest of the stored tuning, "" if none.
func (s *SQLiteIndex) TuningDigest(ctx context.Context) (string, error) {
	var d string
	err := s.db.QueryRowContext(ctx, `SELECT digest FROM configs WHERE name='tuning'`).Scan(&d)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return d, err
}

// ToolStats summarises the committed reports per tool, ordered by tool id.
func (s *SQLiteIndex) ToolStats(ctx context.Context) ([]ToolStat, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tool_id, COUNT(*), SUM(worked), SUM(CASE WHEN error IS NOT NULL AND error != '' THEN 1 ELSE 0 END), MAX(tick)
		FROM tool_ticks GROUP BY tool_id ORDER BY tool_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ToolStat
	for rows.Next() {
		var st ToolStat
		var last int64
		if err := rows.Scan(&st.ToolID, &st.Ticks, &st.Worked, &st.Errors, &last); err != nil {
			return nil, err
		}
		st.LastTick = uint64(last)
		out = append(out, st)
	}
	return out, rows.Err()
}

// CellHistory lists the committed outcomes recorded for one cell, oldest first.
func (s *SQLiteIndex) CellHistory(ctx context.Context, grid string, cell [3]int) ([]OutcomeRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tick, tool_id, reason, COALESCE(short,''), layer FROM tool_outcomes
		WHERE grid=? AND x=? AND y=? AND z=? ORDER BY tick, tool_id, seq`, grid, cell[0], cell[1], cell[2])
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OutcomeRow
	for rows.Next() {
		var r OutcomeRow
		var tick int64
		if err := rows.Scan(&tick, &r.ToolID, &r.Reason, &r.Short, &r.Layer); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO tool_ticks(tick,tool_id,mode,budget,worked,hits,retained,predicted,error,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertOutcome, _ := s.db.Prepare(`INSERT OR REPLACE INTO tool_outcomes(tick,tool_id,seq,grid,x,y,z,layer,reason,short) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertTick != nil {
			_ = insertTick.Close()
		}
		if insertOutcome != nil {
			_ = insertOutcome.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil || insertTick == nil || insertOutcome == nil {
			continue
		}
		rep := r.report
		raw, _ := json.Marshal(rep)
		var errText any
		if rep.Error != "" {
			errText = rep.Error
		}
		if _, err := tx.Stmt(insertTick).Exec(
			int64(rep.Tick),
			rep.ToolID,
			rep.Mode,
			rep.Budget,
			rep.Worked,
			rep.Hits,
			rep.Retained,
			len(rep.Predicted),
			errText,
			string(raw),
		); err != nil {
			rollback()
			continue
		}
		opCount++
		ok := true
		for i, o := range rep.Outcomes {
			if _, err := tx.Stmt(insertOutcome).Exec(
				int64(rep.Tick), rep.ToolID, i, o.Grid,
				o.Cell[0], o.Cell[1], o.Cell[2],
				o.Layer, o.Reason, o.Short,
			); err != nil {
				rollback()
				ok = false
				break
			}
			opCount++
		}
		if ok {
			s.written.Add(1)
		}
		flushIfNeeded()
	}

	commit()
}
