package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Run outcomes.
const (
	OutcomeRunning   = "running"
	OutcomeCompleted = "completed"
	OutcomeStopped   = "stopped"
	OutcomeFailed    = "failed"
)

// TrainingRun represents one simulated training job recorded in the database.
type TrainingRun struct {
	ID            string
	Type          string
	TotalEpochs   int
	Outcome       string
	FinalLoss     float64
	FinalAccuracy float64
	Message       string
	StartedAt     time.Time
	FinishedAt    *time.Time
}

// RunRepository provides CRUD operations for training runs.
type RunRepository struct {
	db *sql.DB
}

// Runs returns the training-run repository for this store.
func (s *Store) Runs() *RunRepository {
	return &RunRepository{db: s.db}
}

// Create inserts a new run in the running state.
func (r *RunRepository) Create(run *TrainingRun) error {
	if run.Outcome == "" {
		run.Outcome = OutcomeRunning
	}
	run.StartedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO training_runs (id, type, total_epochs, outcome, message, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Type, run.TotalEpochs, run.Outcome, run.Message, run.StartedAt,
	)
	return err
}

// Finish records the terminal state of a run.
func (r *RunRepository) Finish(id, outcome string, loss, accuracy float64, message string) error {
	now := time.Now()
	res, err := r.db.Exec(
		`UPDATE training_runs
		 SET outcome = ?, final_loss = ?, final_accuracy = ?, message = ?, finished_at = ?
		 WHERE id = ?`,
		outcome, loss, accuracy, message, now, id,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a run by its ID.
func (r *RunRepository) GetByID(id string) (*TrainingRun, error) {
	run := &TrainingRun{}
	var finishedAt sql.NullTime

	err := r.db.QueryRow(
		`SELECT id, type, total_epochs, outcome, final_loss, final_accuracy, message, started_at, finished_at
		 FROM training_runs WHERE id = ?`,
		id,
	).Scan(&run.ID, &run.Type, &run.TotalEpochs, &run.Outcome,
		&run.FinalLoss, &run.FinalAccuracy, &run.Message, &run.StartedAt, &finishedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return run, nil
}

// List returns all runs, most recent first.
func (r *RunRepository) List() ([]*TrainingRun, error) {
	rows, err := r.db.Query(
		`SELECT id, type, total_epochs, outcome, final_loss, final_accuracy, message, started_at, finished_at
		 FROM training_runs ORDER BY started_at DESC, id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*TrainingRun
	for rows.Next() {
		run := &TrainingRun{}
		var finishedAt sql.NullTime

		if err := rows.Scan(&run.ID, &run.Type, &run.TotalEpochs, &run.Outcome,
			&run.FinalLoss, &run.FinalAccuracy, &run.Message, &run.StartedAt, &finishedAt); err != nil {
			return nil, err
		}
		if finishedAt.Valid {
			run.FinishedAt = &finishedAt.Time
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}
