package flightlog

import (
	_ "embed"
)

const (
	insertSessionSQL = `
INSERT INTO sessions (
                      start_time,
                      heartbeat_hz,
                      config)
VALUES (?, ?, ?)`

	insertSnapshotSQL = `
INSERT INTO snapshots (session_id,
                       tick,
                       state,
                       roll,
                       pitch,
                       heading,
                       bias_x,
                       bias_y,
                       bias_z,
                       pos_x,
                       pos_y,
                       pos_z,
                       baro_alt_cm,
                       errors)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectSessionsSQL = `
SELECT
    id,
    start_time,
    heartbeat_hz,
    config
FROM sessions
ORDER BY id`

	selectSnapshotsSQL = `
SELECT
    tick,
    state,
    roll,
    pitch,
    heading,
    bias_x,
    bias_y,
    bias_z,
    pos_x,
    pos_y,
    pos_z,
    baro_alt_cm,
    errors
FROM snapshots
WHERE
    session_id = ?
ORDER BY tick`
)

//go:embed schema.sql
var schemaSQL string
