// Package flightlog records estimator snapshots to SQLite for post-flight
// review.
package flightlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"navcore/internal/fusion"
)

// queueLen bounds how far the writer may fall behind the heartbeat.
const queueLen = 256

// Session is one power-on run.
type Session struct {
	ID          int64
	StartTime   time.Time
	HeartbeatHz int
	Config      *string
}

// Row is one recorded snapshot. Position and barometer columns are NULL
// until those values become valid.
type Row struct {
	Tick      uint64
	State     string
	Roll      int8
	Pitch     int8
	Heading   uint8
	Bias      [3]int16
	PosX      sql.NullInt64
	PosY      sql.NullInt64
	PosZ      sql.NullInt64
	BaroAltCm sql.NullInt64
	Errors    uint64
}

type Stats struct {
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
	Failed  uint64 `json:"failed"`
}

// Recorder keeps every Nth snapshot. Record is called from the heartbeat
// and never blocks; inserts happen on a writer goroutine.
type Recorder struct {
	dbPath string
	every  uint64

	db     *sql.DB
	dbOnce sync.Once
	dbErr  error

	session int64
	queue   chan fusion.Snapshot
	wg      sync.WaitGroup

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64

	closeOnce sync.Once
	closeErr  error
}

func New(dbPath string, every int) *Recorder {
	if every <= 0 {
		every = 1
	}
	return &Recorder{dbPath: dbPath, every: uint64(every)}
}

func (r *Recorder) Path() string { return r.dbPath }

func (r *Recorder) getDB() (*sql.DB, error) {
	r.dbOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", r.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			r.dbErr = fmt.Errorf("opening database: %w", err)
			return
		}
		if _, err = db.Exec(schemaSQL); err != nil {
			_ = db.Close()
			r.dbErr = fmt.Errorf("initializing schema: %w", err)
			return
		}
		r.db = db
	})
	return r.db, r.dbErr
}

// Start opens a session and the writer. config is stored as JSON unless
// it is already a string or byte slice.
func (r *Recorder) Start(ctx context.Context, heartbeatHz int, config any) (err error) {
	if r.queue != nil {
		return errors.New("flightlog: already started")
	}
	var configData sql.NullString
	switch c := config.(type) {
	case nil:
	case string:
		configData = sql.NullString{String: c, Valid: true}
	case []byte:
		configData = sql.NullString{String: string(c), Valid: true}
	default:
		p, mErr := json.Marshal(c)
		if mErr != nil {
			return fmt.Errorf("flightlog: marshaling config: %w", mErr)
		}
		configData = sql.NullString{String: string(p), Valid: true}
	}

	db, err := r.getDB()
	if err != nil {
		return fmt.Errorf("flightlog: %w", err)
	}
	res, err := db.ExecContext(ctx, insertSessionSQL, time.Now().UTC(), heartbeatHz, configData)
	if err != nil {
		return fmt.Errorf("flightlog: inserting session: %w", err)
	}
	if r.session, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("flightlog: getting session ID: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, insertSnapshotSQL)
	if err != nil {
		return fmt.Errorf("flightlog: preparing statement: %w", err)
	}

	r.queue = make(chan fusion.Snapshot, queueLen)
	r.wg.Add(1)
	go r.writer(stmt)
	log.Printf("flightlog enabled path=%s session=%d every=%d", r.dbPath, r.session, r.every)
	return nil
}

func (r *Recorder) SessionID() int64 { return r.session }

// Record queues s if its tick is due.
func (r *Recorder) Record(s fusion.Snapshot) {
	if r == nil || r.queue == nil || s.Tick%r.every != 0 {
		return
	}
	select {
	case r.queue <- s:
	default:
		r.dropped.Add(1)
	}
}

func (r *Recorder) writer(stmt *sql.Stmt) {
	defer r.wg.Done()
	defer func() { _ = stmt.Close() }()

	var lastLog time.Time
	for s := range r.queue {
		if _, err := stmt.Exec(snapshotArgs(r.session, s)...); err != nil {
			r.failed.Add(1)
			if time.Since(lastLog) > 5*time.Second {
				lastLog = time.Now()
				log.Printf("flightlog insert failed tick=%d: %v", s.Tick, err)
			}
			continue
		}
		r.written.Add(1)
	}
}

func snapshotArgs(session int64, s fusion.Snapshot) []any {
	var posX, posY, posZ, baro sql.NullInt64
	if s.PositionValid {
		posX = sql.NullInt64{Int64: int64(s.Position.X), Valid: true}
		posY = sql.NullInt64{Int64: int64(s.Position.Y), Valid: true}
		posZ = sql.NullInt64{Int64: int64(s.Position.Z), Valid: true}
	}
	if s.BaroAltValid {
		baro = sql.NullInt64{Int64: int64(s.BaroAltCm), Valid: true}
	}
	return []any{
		session,
		int64(s.Tick),
		s.State.String(),
		s.Roll,
		s.Pitch,
		s.Heading,
		s.Bias[0],
		s.Bias[1],
		s.Bias[2],
		posX,
		posY,
		posZ,
		baro,
		int64(s.Errors),
	}
}

func (r *Recorder) Stats() Stats {
	return Stats{Written: r.written.Load(), Dropped: r.dropped.Load(), Failed: r.failed.Load()}
}

// Close drains queued snapshots and closes the database.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		if r.queue != nil {
			close(r.queue)
			r.wg.Wait()
		}
		if r.db != nil {
			r.closeErr = r.db.Close()
		}
	})
	return r.closeErr
}
