package flightlog

import (
	"context"
	"database/sql"
	"fmt"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func openReadOnly(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", dbPath, "mode=ro"))
	if err != nil {
		return nil, fmt.Errorf("flightlog: opening read connection: %w", err)
	}
	return db, nil
}

// Sessions lists the runs recorded in dbPath.
func Sessions(ctx context.Context, dbPath string) (sessions []Session, err error) {
	db, err := openReadOnly(dbPath)
	if err != nil {
		return nil, err
	}
	defer closeWithError(db, &err)

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("flightlog: querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var sess Session
		var config sql.NullString
		if err = rows.Scan(&sess.ID, &sess.StartTime, &sess.HeartbeatHz, &config); err != nil {
			err = fmt.Errorf("flightlog: scanning session: %w", err)
			return
		}
		if config.Valid {
			sess.Config = &config.String
		}
		sessions = append(sessions, sess)
	}
	err = rows.Err()
	return
}

// Snapshots returns the rows of one session in tick order.
func Snapshots(ctx context.Context, dbPath string, sessionID int64) (out []Row, err error) {
	db, err := openReadOnly(dbPath)
	if err != nil {
		return nil, err
	}
	defer closeWithError(db, &err)

	rows, err := db.QueryContext(ctx, selectSnapshotsSQL, sessionID)
	if err != nil {
		err = fmt.Errorf("flightlog: querying snapshots: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var row Row
		var tick, errs int64
		if err = rows.Scan(&tick, &row.State, &row.Roll, &row.Pitch, &row.Heading,
			&row.Bias[0], &row.Bias[1], &row.Bias[2],
			&row.PosX, &row.PosY, &row.PosZ, &row.BaroAltCm, &errs); err != nil {
			err = fmt.Errorf("flightlog: scanning snapshot: %w", err)
			return
		}
		row.Tick = uint64(tick)
		row.Errors = uint64(errs)
		out = append(out, row)
	}
	err = rows.Err()
	return
}
