package ledger

import (
	"fmt"
	"time"
)

// StartRun inserts a running row for a new run.
func (l *Ledger) StartRun(id, mode, configPath, artifact, outdir string) error {
	_, err := l.db.Exec(
		`INSERT INTO runs (id, mode, config_path, artifact, outdir, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, mode, configPath, artifact, outdir, string(RunRunning), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// FinishRun marks a run finished with the given status.
func (l *Ledger) FinishRun(id string, status RunStatus) error {
	_, err := l.db.Exec(
		`UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`,
		string(status), time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// RecordJob records the outcome of one inversion job.
func (l *Ledger) RecordJob(runID, stage, volume string, status Status, jobErr error) error {
	msg := ""
	if jobErr != nil {
		msg = jobErr.Error()
	}
	_, err := l.db.Exec(
		`INSERT INTO jobs (run_id, stage, volume, status, error, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, stage, volume, string(status), msg, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record job: %w", err)
	}
	return nil
}

// RecordStage records the outcome of one stage application.
func (l *Ledger) RecordStage(runID, stage, volume, variant, outputDir string, status Status, stageErr error) error {
	msg := ""
	if stageErr != nil {
		msg = stageErr.Error()
	}
	_, err := l.db.Exec(
		`INSERT INTO stage_applications (run_id, stage, volume, variant, output_dir, status, error, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, stage, volume, variant, outputDir, string(status), msg, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record stage application: %w", err)
	}
	return nil
}

// HasCompletedJob reports whether any run recorded a completed inversion
// for the stage/volume pair. Strict resume accepts a no-clobber skip only
// when this holds.
func (l *Ledger) HasCompletedJob(stage, volume string) (bool, error) {
	var count int
	err := l.db.QueryRow(
		`SELECT COUNT(*) FROM jobs WHERE stage = ? AND volume = ? AND status = ?`,
		stage, volume, string(StatusCompleted),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query jobs: %w", err)
	}
	return count > 0, nil
}

// HasCompletedStage reports whether any run recorded a completed stage
// application for the stage/volume/variant triple.
func (l *Ledger) HasCompletedStage(stage, volume, variant string) (bool, error) {
	var count int
	err := l.db.QueryRow(
		`SELECT COUNT(*) FROM stage_applications WHERE stage = ? AND volume = ? AND variant = ? AND status = ?`,
		stage, volume, variant, string(StatusCompleted),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query stage applications: %w", err)
	}
	return count > 0, nil
}

// Run is one row of the runs table. JSON tags shape the output of the
// runs listing command.
type Run struct {
	ID         string    `json:"id"`
	Mode       string    `json:"mode"`
	ConfigPath string    `json:"config_path"`
	Artifact   string    `json:"artifact,omitempty"`
	Outdir     string    `json:"outdir"`
	Status     RunStatus `json:"status"`
	StartedAt  int64     `json:"started_at"`
	FinishedAt *int64    `json:"finished_at,omitempty"`
}

// Runs lists recorded runs, newest first.
func (l *Ledger) Runs() ([]Run, error) {
	rows, err := l.db.Query(
		`SELECT id, mode, config_path, artifact, outdir, status, started_at, finished_at
		 FROM runs ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var r Run
		var status string
		if err := rows.Scan(&r.ID, &r.Mode, &r.ConfigPath, &r.Artifact, &r.Outdir, &status, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		r.Status = RunStatus(status)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return runs, nil
}
