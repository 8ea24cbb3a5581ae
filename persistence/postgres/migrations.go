package postgres

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS govflow_runs (
		id          TEXT PRIMARY KEY,
		subject_id  TEXT NOT NULL,
		status      TEXT NOT NULL,
		data        BYTEA NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_govflow_runs_status ON govflow_runs (status, created_at)`,
	`CREATE TABLE IF NOT EXISTS govflow_checkpoints (
		run_id      TEXT NOT NULL REFERENCES govflow_runs (id),
		seq         BIGINT NOT NULL,
		data        BYTEA NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (run_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS govflow_subjects (
		id          TEXT PRIMARY KEY,
		data        BYTEA NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS govflow_artifacts (
		subject_id  TEXT NOT NULL,
		type        TEXT NOT NULL,
		data        BYTEA NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (subject_id, type)
	)`,
}
