package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mohitkumar/govflow/model"
	"github.com/mohitkumar/govflow/persistence"
	"github.com/mohitkumar/govflow/util"
)

var _ persistence.Storage = new(postgresStorage)

type Config struct {
	URL      string
	MaxConns int32
}

type Codecs struct {
	Run        util.EncoderDecoder[model.Run]
	Checkpoint util.EncoderDecoder[model.Checkpoint]
	Subject    util.EncoderDecoder[model.Subject]
	Artifact   util.EncoderDecoder[model.GeneratedArtifact]
}

type postgresStorage struct {
	pool   *pgxpool.Pool
	codecs Codecs
}

func NewPostgresStorage(ctx context.Context, conf Config, codecs Codecs) (*postgresStorage, error) {
	cfg, err := pgxpool.ParseConfig(conf.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if conf.MaxConns > 0 {
		cfg.MaxConns = conf.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &postgresStorage{pool: pool, codecs: codecs}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *postgresStorage) migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
	}
	return nil
}

func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func (s *postgresStorage) CreateRun(ctx context.Context, run *model.Run) error {
	data, err := s.codecs.Run.Encode(*run)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO govflow_runs (id, subject_id, status, data, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		run.Id, run.SubjectId, string(run.Status), data, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return persistence.StorageLayerError{Message: "run " + run.Id + " already exists"}
		}
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (s *postgresStorage) UpdateRun(ctx context.Context, run *model.Run) error {
	data, err := s.codecs.Run.Encode(*run)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE govflow_runs SET status = $2, data = $3, updated_at = $4 WHERE id = $1`,
		run.Id, string(run.Status), data, run.UpdatedAt)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	if tag.RowsAffected() == 0 {
		return persistence.NotFoundError{Entity: "run", Id: run.Id}
	}
	return nil
}

func (s *postgresStorage) GetRun(ctx context.Context, runId string) (*model.Run, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM govflow_runs WHERE id = $1`, runId).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, persistence.NotFoundError{Entity: "run", Id: runId}
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return s.codecs.Run.Decode(data)
}

func (s *postgresStorage) ListRuns(ctx context.Context, status model.RunStatus) ([]*model.Run, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM govflow_runs WHERE ($1 = '' OR status = $1) ORDER BY created_at ASC`, string(status))
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	defer rows.Close()
	var runs []*model.Run
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, persistence.StorageLayerError{Message: err.Error()}
		}
		run, err := s.codecs.Run.Decode(data)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return runs, nil
}

// PutCheckpoint locks the run row so concurrent writers for one run are
// serialized, then checks the sequence before inserting.
func (s *postgresStorage) PutCheckpoint(ctx context.Context, cp *model.Checkpoint) error {
	data, err := s.codecs.Checkpoint.Encode(*cp)
	if err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	defer tx.Rollback(ctx)

	var runId string
	if err := tx.QueryRow(ctx, `SELECT id FROM govflow_runs WHERE id = $1 FOR UPDATE`, cp.RunId).Scan(&runId); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return persistence.NotFoundError{Entity: "run", Id: cp.RunId}
		}
		return persistence.StorageLayerError{Message: err.Error()}
	}
	var latest int64
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM govflow_checkpoints WHERE run_id = $1`, cp.RunId).Scan(&latest); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	if cp.Sequence != latest+1 {
		return persistence.SequenceConflictError{RunId: cp.RunId, Expected: latest + 1, Got: cp.Sequence}
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO govflow_checkpoints (run_id, seq, data, created_at) VALUES ($1, $2, $3, $4)`,
		cp.RunId, cp.Sequence, data, cp.CreatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return persistence.SequenceConflictError{RunId: cp.RunId, Expected: latest + 1, Got: cp.Sequence}
		}
		return persistence.StorageLayerError{Message: err.Error()}
	}
	if err := tx.Commit(ctx); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (s *postgresStorage) GetLatestCheckpoint(ctx context.Context, runId string) (*model.Checkpoint, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM govflow_checkpoints WHERE run_id = $1 ORDER BY seq DESC LIMIT 1`, runId).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return s.codecs.Checkpoint.Decode(data)
}

func (s *postgresStorage) ListCheckpoints(ctx context.Context, runId string) ([]*model.Checkpoint, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM govflow_checkpoints WHERE run_id = $1 ORDER BY seq ASC`, runId)
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	defer rows.Close()
	var out []*model.Checkpoint
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, persistence.StorageLayerError{Message: err.Error()}
		}
		cp, err := s.codecs.Checkpoint.Decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return out, nil
}

func (s *postgresStorage) SaveSubject(ctx context.Context, subject *model.Subject) error {
	data, err := s.codecs.Subject.Encode(*subject)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO govflow_subjects (id, data, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		subject.Id, data)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (s *postgresStorage) GetSubject(ctx context.Context, subjectId string) (*model.Subject, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM govflow_subjects WHERE id = $1`, subjectId).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, persistence.NotFoundError{Entity: "subject", Id: subjectId}
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return s.codecs.Subject.Decode(data)
}

func (s *postgresStorage) UpsertArtifact(ctx context.Context, subjectId string, artifact model.GeneratedArtifact) error {
	data, err := s.codecs.Artifact.Encode(artifact)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO govflow_artifacts (subject_id, type, data, updated_at) VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (subject_id, type) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		subjectId, artifact.Type, data)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (s *postgresStorage) ListArtifacts(ctx context.Context, subjectId string) ([]model.GeneratedArtifact, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM govflow_artifacts WHERE subject_id = $1 ORDER BY type`, subjectId)
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	defer rows.Close()
	out := []model.GeneratedArtifact{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, persistence.StorageLayerError{Message: err.Error()}
		}
		a, err := s.codecs.Artifact.Decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return out, nil
}

func (s *postgresStorage) Close() error {
	s.pool.Close()
	return nil
}
