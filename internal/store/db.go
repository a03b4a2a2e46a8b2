package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"trip-pipeline/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

var db *sql.DB

// InitDB opens the tracking database and creates the schema. An empty
// path disables tracking; every Save/Update below becomes a no-op.
func InitDB(dbPath string) error {
	if dbPath == "" {
		db = nil
		return nil
	}

	var err error
	db, err = sql.Open("sqlite3", dbPath)
	if err != nil {
		return err
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			spec TEXT,
			status TEXT,
			summary TEXT,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS run_errors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			stage TEXT,
			error_message TEXT,
			created_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS stage_progress (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			stage TEXT,
			status TEXT,
			records INTEGER,
			started_at DATETIME,
			ended_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS run_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			stage TEXT,
			level TEXT,
			message TEXT,
			fields TEXT,
			created_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS rejected_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			source TEXT,
			line INTEGER,
			reason TEXT,
			detail TEXT,
			raw TEXT,
			created_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS aggregate_rows (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			date TEXT,
			grouping TEXT,
			row TEXT,
			created_at DATETIME
		);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun stores a new pipeline run.
func SaveRun(runID string, spec model.RunSpec) error {
	if db == nil {
		return nil
	}
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = db.Exec(`INSERT INTO runs (id, spec, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		runID, specJSON, model.StateInit, now, now)
	return err
}

// UpdateRunStatus moves a run to a new pipeline state.
func UpdateRunStatus(runID, status string) error {
	if db == nil {
		return nil
	}
	now := time.Now().UTC()
	_, err := db.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, now, runID)
	return err
}

// SaveRunError records a fatal error for a run.
func SaveRunError(runID, stage string, err error) error {
	if db == nil || err == nil {
		return nil
	}
	now := time.Now().UTC()
	_, e := db.Exec(`INSERT INTO run_errors (run_id, stage, error_message, created_at) VALUES (?, ?, ?, ?)`,
		runID, stage, err.Error(), now)
	return e
}

// SaveStageProgress records a stage transition with its record count.
func SaveStageProgress(runID, stage, status string, startedAt, endedAt *time.Time, records int64) error {
	if db == nil {
		return nil
	}
	_, err := db.Exec(`INSERT INTO stage_progress (run_id, stage, status, records, started_at, ended_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, stage, status, records, startedAt, endedAt)
	return err
}

// SaveRunLog stores one structured log line for a run.
func SaveRunLog(runID, stage, level, message string, fields map[string]interface{}) error {
	if db == nil {
		return nil
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = db.Exec(`INSERT INTO run_logs (run_id, stage, level, message, fields, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, stage, level, message, fieldsJSON, now)
	return err
}

// SaveRejectedRecords persists the quarantined rows of a run.
func SaveRejectedRecords(runID string, rejects []model.RejectedRecord) error {
	if db == nil || len(rejects) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO rejected_records (run_id, source, line, reason, detail, raw, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range rejects {
		rawJSON, err := json.Marshal(r.Raw)
		if err != nil {
			tx.Rollback()
			return err
		}
		if _, err := stmt.Exec(runID, r.Source, r.Line, r.Reason, r.Detail, rawJSON, now); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// SaveAggregateRow stores one aggregate output row for a run.
func SaveAggregateRow(runID, date, grouping string, row interface{}) error {
	if db == nil {
		return nil
	}
	rowJSON, err := json.Marshal(row)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = db.Exec(`INSERT INTO aggregate_rows (run_id, date, grouping, row, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID, date, grouping, rowJSON, now)
	return err
}

// SaveRunSummary stores the final summary JSON on the run row.
func SaveRunSummary(runID string, summary model.RunSummary) error {
	if db == nil {
		return nil
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = db.Exec(`UPDATE runs SET summary = ?, updated_at = ? WHERE id = ?`, summaryJSON, now, runID)
	return err
}

// ListRuns returns all runs with basic info, newest first.
func ListRuns() ([]map[string]interface{}, error) {
	if db == nil {
		return nil, nil
	}
	rows, err := db.Query(`SELECT id, status, created_at, updated_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []map[string]interface{}
	for rows.Next() {
		var id, status string
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&id, &status, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, map[string]interface{}{
			"id":        id,
			"status":    status,
			"createdAt": createdAt,
			"updatedAt": updatedAt,
		})
	}
	return runs, rows.Err()
}

// GetRun fetches full run spec, status, and summary when present.
func GetRun(runID string) (map[string]interface{}, error) {
	if db == nil {
		return nil, sql.ErrNoRows
	}
	var specJSON, status string
	var summaryJSON sql.NullString
	var createdAt, updatedAt time.Time

	err := db.QueryRow(`SELECT spec, status, summary, created_at, updated_at FROM runs WHERE id = ?`, runID).
		Scan(&specJSON, &status, &summaryJSON, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	var spec model.RunSpec
	if err := json.Unmarshal([]byte(specJSON), &spec); err != nil {
		return nil, err
	}

	run := map[string]interface{}{
		"id":        runID,
		"spec":      spec,
		"status":    status,
		"createdAt": createdAt,
		"updatedAt": updatedAt,
	}
	if summaryJSON.Valid && summaryJSON.String != "" {
		var summary model.RunSummary
		if err := json.Unmarshal([]byte(summaryJSON.String), &summary); err == nil {
			run["summary"] = summary
		}
	}
	return run, nil
}

// GetRunSummary fetches only the stored summary of a run.
func GetRunSummary(runID string) (*model.RunSummary, error) {
	if db == nil {
		return nil, sql.ErrNoRows
	}
	var summaryJSON sql.NullString
	err := db.QueryRow(`SELECT summary FROM runs WHERE id = ?`, runID).Scan(&summaryJSON)
	if err != nil {
		return nil, err
	}
	if !summaryJSON.Valid || summaryJSON.String == "" {
		return nil, nil
	}
	var summary model.RunSummary
	if err := json.Unmarshal([]byte(summaryJSON.String), &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// GetRejectedRecords returns the quarantined rows of a run.
func GetRejectedRecords(runID string) ([]model.RejectedRecord, error) {
	if db == nil {
		return nil, nil
	}
	rows, err := db.Query(`SELECT source, line, reason, detail, raw FROM rejected_records WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rejects []model.RejectedRecord
	for rows.Next() {
		var r model.RejectedRecord
		var rawJSON string
		if err := rows.Scan(&r.Source, &r.Line, &r.Reason, &r.Detail, &rawJSON); err != nil {
			return nil, err
		}
		if rawJSON != "" && rawJSON != "null" {
			json.Unmarshal([]byte(rawJSON), &r.Raw)
		}
		rejects = append(rejects, r)
	}
	return rejects, rows.Err()
}

// GetRunErrors returns the fatal errors recorded for a run.
func GetRunErrors(runID string) ([]map[string]interface{}, error) {
	if db == nil {
		return nil, nil
	}
	rows, err := db.Query(`SELECT stage, error_message, created_at FROM run_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var errs []map[string]interface{}
	for rows.Next() {
		var stage, message string
		var createdAt time.Time
		if err := rows.Scan(&stage, &message, &createdAt); err != nil {
			return nil, err
		}
		errs = append(errs, map[string]interface{}{
			"stage":     stage,
			"error":     message,
			"createdAt": createdAt,
		})
	}
	return errs, rows.Err()
}
