package redis

import (
	"context"
	"errors"
	"sort"
	"strconv"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/govflow/model"
	"github.com/mohitkumar/govflow/persistence"
	"github.com/mohitkumar/govflow/util"
)

const RUN_KEY string = "RUN"
const CHECKPOINT_KEY string = "CHECKPOINT"
const CHECKPOINT_SEQ_KEY string = "CHECKPOINT_SEQ"
const SUBJECT_KEY string = "SUBJECT"
const ARTIFACT_KEY string = "ARTIFACT"

var _ persistence.Storage = new(redisStorage)

type Codecs struct {
	Run        util.EncoderDecoder[model.Run]
	Checkpoint util.EncoderDecoder[model.Checkpoint]
	Subject    util.EncoderDecoder[model.Subject]
	Artifact   util.EncoderDecoder[model.GeneratedArtifact]
}

type redisStorage struct {
	*baseDao
	codecs Codecs
}

func NewRedisStorage(conf Config, codecs Codecs) *redisStorage {
	return &redisStorage{
		baseDao: newBaseDao(conf),
		codecs:  codecs,
	}
}

func (r *redisStorage) runKey(runId string) string {
	return r.getNamespaceKey(RUN_KEY, r.getPartition(runId))
}

func (r *redisStorage) CreateRun(ctx context.Context, run *model.Run) error {
	data, err := r.codecs.Run.Encode(*run)
	if err != nil {
		return err
	}
	created, err := r.redisClient.HSetNX(ctx, r.runKey(run.Id), run.Id, string(data)).Result()
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	if !created {
		return persistence.StorageLayerError{Message: "run " + run.Id + " already exists"}
	}
	return nil
}

func (r *redisStorage) UpdateRun(ctx context.Context, run *model.Run) error {
	key := r.runKey(run.Id)
	exists, err := r.redisClient.HExists(ctx, key, run.Id).Result()
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	if !exists {
		return persistence.NotFoundError{Entity: "run", Id: run.Id}
	}
	data, err := r.codecs.Run.Encode(*run)
	if err != nil {
		return err
	}
	if err := r.redisClient.HSet(ctx, key, []string{run.Id, string(data)}).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisStorage) GetRun(ctx context.Context, runId string) (*model.Run, error) {
	data, err := r.redisClient.HGet(ctx, r.runKey(runId), runId).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, persistence.NotFoundError{Entity: "run", Id: runId}
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return r.codecs.Run.Decode([]byte(data))
}

func (r *redisStorage) ListRuns(ctx context.Context, status model.RunStatus) ([]*model.Run, error) {
	var runs []*model.Run
	for p := 0; p < r.partitionCount; p++ {
		values, err := r.redisClient.HGetAll(ctx, r.getNamespaceKey(RUN_KEY, strconv.Itoa(p))).Result()
		if err != nil {
			if errors.Is(err, rd.Nil) {
				continue
			}
			return nil, persistence.StorageLayerError{Message: err.Error()}
		}
		for _, data := range values {
			run, err := r.codecs.Run.Decode([]byte(data))
			if err != nil {
				return nil, err
			}
			if status == "" || run.Status == status {
				runs = append(runs, run)
			}
		}
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.Before(runs[j].CreatedAt) })
	return runs, nil
}

// PutCheckpoint watches the run's sequence key so that two writers racing on
// the same run cannot both commit the same sequence number.
func (r *redisStorage) PutCheckpoint(ctx context.Context, cp *model.Checkpoint) error {
	data, err := r.codecs.Checkpoint.Encode(*cp)
	if err != nil {
		return err
	}
	cpKey := r.getNamespaceKey(CHECKPOINT_KEY, hashTag(cp.RunId))
	seqKey := r.getNamespaceKey(CHECKPOINT_SEQ_KEY, hashTag(cp.RunId))
	err = r.redisClient.Watch(ctx, func(tx *rd.Tx) error {
		latest, err := tx.Get(ctx, seqKey).Int64()
		if err != nil && !errors.Is(err, rd.Nil) {
			return err
		}
		if cp.Sequence != latest+1 {
			return persistence.SequenceConflictError{RunId: cp.RunId, Expected: latest + 1, Got: cp.Sequence}
		}
		_, err = tx.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
			pipe.HSet(ctx, cpKey, []string{strconv.FormatInt(cp.Sequence, 10), string(data)})
			pipe.Set(ctx, seqKey, cp.Sequence, 0)
			return nil
		})
		return err
	}, seqKey)
	if err == nil {
		return nil
	}
	var conflict persistence.SequenceConflictError
	if errors.As(err, &conflict) {
		return conflict
	}
	if errors.Is(err, rd.TxFailedErr) {
		return persistence.SequenceConflictError{RunId: cp.RunId, Got: cp.Sequence}
	}
	return persistence.StorageLayerError{Message: err.Error()}
}

func (r *redisStorage) GetLatestCheckpoint(ctx context.Context, runId string) (*model.Checkpoint, error) {
	seqKey := r.getNamespaceKey(CHECKPOINT_SEQ_KEY, hashTag(runId))
	seq, err := r.redisClient.Get(ctx, seqKey).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	data, err := r.redisClient.HGet(ctx, r.getNamespaceKey(CHECKPOINT_KEY, hashTag(runId)), seq).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return r.codecs.Checkpoint.Decode([]byte(data))
}

func (r *redisStorage) ListCheckpoints(ctx context.Context, runId string) ([]*model.Checkpoint, error) {
	values, err := r.redisClient.HGetAll(ctx, r.getNamespaceKey(CHECKPOINT_KEY, hashTag(runId))).Result()
	if err != nil && !errors.Is(err, rd.Nil) {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	out := make([]*model.Checkpoint, 0, len(values))
	for _, data := range values {
		cp, err := r.codecs.Checkpoint.Decode([]byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (r *redisStorage) SaveSubject(ctx context.Context, subject *model.Subject) error {
	data, err := r.codecs.Subject.Encode(*subject)
	if err != nil {
		return err
	}
	if err := r.redisClient.HSet(ctx, r.getNamespaceKey(SUBJECT_KEY), []string{subject.Id, string(data)}).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisStorage) GetSubject(ctx context.Context, subjectId string) (*model.Subject, error) {
	data, err := r.redisClient.HGet(ctx, r.getNamespaceKey(SUBJECT_KEY), subjectId).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, persistence.NotFoundError{Entity: "subject", Id: subjectId}
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return r.codecs.Subject.Decode([]byte(data))
}

func (r *redisStorage) UpsertArtifact(ctx context.Context, subjectId string, artifact model.GeneratedArtifact) error {
	data, err := r.codecs.Artifact.Encode(artifact)
	if err != nil {
		return err
	}
	key := r.getNamespaceKey(ARTIFACT_KEY, subjectId)
	if err := r.redisClient.HSet(ctx, key, []string{artifact.Type, string(data)}).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisStorage) ListArtifacts(ctx context.Context, subjectId string) ([]model.GeneratedArtifact, error) {
	values, err := r.redisClient.HGetAll(ctx, r.getNamespaceKey(ARTIFACT_KEY, subjectId)).Result()
	if err != nil && !errors.Is(err, rd.Nil) {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	out := make([]model.GeneratedArtifact, 0, len(values))
	for _, data := range values {
		a, err := r.codecs.Artifact.Decode([]byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

func (r *redisStorage) Close() error {
	return r.redisClient.Close()
}
