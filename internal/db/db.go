package db

import (
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/occupancy.report/internal/monitoring"
)

type DB struct {
	*sql.DB
}

// OpenDB opens the database without running migrations. Callers that need
// the schema in place should use NewDB.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &DB{sqlDB}, nil
}

// NewDB opens the database and applies any pending embedded migrations.
func NewDB(path string) (*DB, error) {
	database, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := database.MigrateUp(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return database, nil
}

// TargetObservation is one tracked target from one decoded frame.
type TargetObservation struct {
	FrameNumber uint32  `json:"frame_number"`
	Timestamp   float64 `json:"timestamp"`
	DeviceID    string  `json:"device_id"`
	TargetID    uint32  `json:"target_id"`
	PosX        float64 `json:"pos_x"`
	PosY        float64 `json:"pos_y"`
	VelX        float64 `json:"vel_x"`
	VelY        float64 `json:"vel_y"`
}

func (o *TargetObservation) String() string {
	return fmt.Sprintf(
		"Frame: %d, Device: %s, Target: %d, Pos: (%.2f, %.2f), Vel: (%.2f, %.2f)",
		o.FrameNumber, o.DeviceID, o.TargetID, o.PosX, o.PosY, o.VelX, o.VelY,
	)
}

// OccupancySnapshot is the per-frame summary row: how many targets the
// tracker reported and the cumulative entry/exit counts at that frame.
type OccupancySnapshot struct {
	FrameNumber  uint32  `json:"frame_number"`
	Timestamp    float64 `json:"timestamp"`
	DeviceID     string  `json:"device_id"`
	TargetCount  int     `json:"target_count"`
	EnteredCount uint64  `json:"entered_count"`
	ExitedCount  uint64  `json:"exited_count"`
}

// RecordTargetFrame stores the per-target rows and the frame's occupancy
// snapshot in a single transaction so a frame is never half-written.
func (db *DB) RecordTargetFrame(targets []TargetObservation, snapshot OccupancySnapshot) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, target := range targets {
		if _, err := tx.Exec(
			`INSERT INTO targets (
				frame_number, timestamp, device_id, target_id, pos_x, pos_y, vel_x, vel_y
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			target.FrameNumber, target.Timestamp, target.DeviceID, target.TargetID,
			target.PosX, target.PosY, target.VelX, target.VelY,
		); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO occupancy (
			frame_number, timestamp, device_id, target_count, entered_count, exited_count
		) VALUES (?, ?, ?, ?, ?, ?)`,
		snapshot.FrameNumber, snapshot.Timestamp, snapshot.DeviceID,
		snapshot.TargetCount, snapshot.EnteredCount, snapshot.ExitedCount,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// RecentTargets returns the most recently recorded target observations,
// newest first.
func (db *DB) RecentTargets(limit int) ([]TargetObservation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(
		`SELECT frame_number, timestamp, device_id, target_id, pos_x, pos_y, vel_x, vel_y
		FROM targets ORDER BY recorded_at DESC, frame_number DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []TargetObservation
	for rows.Next() {
		var o TargetObservation
		if err := rows.Scan(
			&o.FrameNumber, &o.Timestamp, &o.DeviceID, &o.TargetID,
			&o.PosX, &o.PosY, &o.VelX, &o.VelY,
		); err != nil {
			return nil, err
		}
		targets = append(targets, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return targets, nil
}

// LatestCounts returns the most recent occupancy snapshot for the given
// device, or sql.ErrNoRows if nothing has been recorded yet.
func (db *DB) LatestCounts(deviceID string) (OccupancySnapshot, error) {
	var s OccupancySnapshot
	err := db.QueryRow(
		`SELECT frame_number, timestamp, device_id, target_count, entered_count, exited_count
		FROM occupancy WHERE device_id = ? ORDER BY recorded_at DESC, frame_number DESC LIMIT 1`,
		deviceID,
	).Scan(&s.FrameNumber, &s.Timestamp, &s.DeviceID, &s.TargetCount, &s.EnteredCount, &s.ExitedCount)
	return s, err
}

// CountHistory returns occupancy snapshots for the device, oldest first,
// limited to the most recent n rows.
func (db *DB) CountHistory(deviceID string, n int) ([]OccupancySnapshot, error) {
	if n <= 0 {
		n = 500
	}
	rows, err := db.Query(
		`SELECT frame_number, timestamp, device_id, target_count, entered_count, exited_count
		FROM (
			SELECT * FROM occupancy WHERE device_id = ?
			ORDER BY recorded_at DESC, frame_number DESC LIMIT ?
		) ORDER BY frame_number ASC`,
		deviceID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []OccupancySnapshot
	for rows.Next() {
		var s OccupancySnapshot
		if err := rows.Scan(
			&s.FrameNumber, &s.Timestamp, &s.DeviceID,
			&s.TargetCount, &s.EnteredCount, &s.ExitedCount,
		); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return snapshots, nil
}

func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	// create a tailSQL instance and point it to our DB
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		monitoring.Logf("failed to create tailsql server: %v", err)
		return
	}
	tsql.SetDB("sqlite://occupancy.db", db.DB, &tailsql.DBOptions{
		Label: "Occupancy DB",
	})

	// mount the tailSQL server on the debug /tailsql path
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		unixTime := time.Now().Unix()
		backupPath := fmt.Sprintf("backup-%d.db", unixTime)
		if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}

		// close the backup file after sending it
		// and remove it from the filesystem
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				monitoring.Logf("Failed to remove backup file: %v", err)
			}
		}()

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()

		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			http.Error(w, fmt.Sprintf("Failed to write backup file: %v", err), http.StatusInternalServerError)
			return
		}
	}))
}
