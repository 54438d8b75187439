package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Training runs table - one row per simulated training job
		`CREATE TABLE IF NOT EXISTS training_runs (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			total_epochs INTEGER NOT NULL,
			outcome TEXT NOT NULL DEFAULT 'running',
			final_loss REAL NOT NULL DEFAULT 0,
			final_accuracy REAL NOT NULL DEFAULT 0,
			message TEXT NOT NULL DEFAULT '',
			started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			finished_at DATETIME
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
