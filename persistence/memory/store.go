package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mohitkumar/govflow/model"
	"github.com/mohitkumar/govflow/persistence"
	"github.com/mohitkumar/govflow/util"
)

var _ persistence.Storage = new(memoryStorage)

// memoryStorage keeps encoded copies so callers never share memory with the store.
type memoryStorage struct {
	mu          sync.RWMutex
	runs        map[string][]byte
	checkpoints map[string][][]byte
	subjects    map[string][]byte
	artifacts   map[string]map[string][]byte

	runEncDec        util.EncoderDecoder[model.Run]
	checkpointEncDec util.EncoderDecoder[model.Checkpoint]
	subjectEncDec    util.EncoderDecoder[model.Subject]
	artifactEncDec   util.EncoderDecoder[model.GeneratedArtifact]
}

func NewMemoryStorage() *memoryStorage {
	return &memoryStorage{
		runs:             make(map[string][]byte),
		checkpoints:      make(map[string][][]byte),
		subjects:         make(map[string][]byte),
		artifacts:        make(map[string]map[string][]byte),
		runEncDec:        util.NewJsonEncoderDecoder[model.Run](),
		checkpointEncDec: util.NewJsonEncoderDecoder[model.Checkpoint](),
		subjectEncDec:    util.NewJsonEncoderDecoder[model.Subject](),
		artifactEncDec:   util.NewJsonEncoderDecoder[model.GeneratedArtifact](),
	}
}

func (m *memoryStorage) CreateRun(ctx context.Context, run *model.Run) error {
	data, err := m.runEncDec.Encode(*run)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.Id]; ok {
		return persistence.StorageLayerError{Message: "run " + run.Id + " already exists"}
	}
	m.runs[run.Id] = data
	return nil
}

func (m *memoryStorage) UpdateRun(ctx context.Context, run *model.Run) error {
	data, err := m.runEncDec.Encode(*run)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.Id]; !ok {
		return persistence.NotFoundError{Entity: "run", Id: run.Id}
	}
	m.runs[run.Id] = data
	return nil
}

func (m *memoryStorage) GetRun(ctx context.Context, runId string) (*model.Run, error) {
	m.mu.RLock()
	data, ok := m.runs[runId]
	m.mu.RUnlock()
	if !ok {
		return nil, persistence.NotFoundError{Entity: "run", Id: runId}
	}
	return m.runEncDec.Decode(data)
}

func (m *memoryStorage) ListRuns(ctx context.Context, status model.RunStatus) ([]*model.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var runs []*model.Run
	for _, data := range m.runs {
		run, err := m.runEncDec.Decode(data)
		if err != nil {
			return nil, err
		}
		if status == "" || run.Status == status {
			runs = append(runs, run)
		}
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.Before(runs[j].CreatedAt) })
	return runs, nil
}

func (m *memoryStorage) PutCheckpoint(ctx context.Context, cp *model.Checkpoint) error {
	data, err := m.checkpointEncDec.Encode(*cp)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing := m.checkpoints[cp.RunId]
	expected := int64(len(existing)) + 1
	if cp.Sequence != expected {
		return persistence.SequenceConflictError{RunId: cp.RunId, Expected: expected, Got: cp.Sequence}
	}
	m.checkpoints[cp.RunId] = append(existing, data)
	return nil
}

func (m *memoryStorage) GetLatestCheckpoint(ctx context.Context, runId string) (*model.Checkpoint, error) {
	m.mu.RLock()
	cps := m.checkpoints[runId]
	m.mu.RUnlock()
	if len(cps) == 0 {
		return nil, nil
	}
	return m.checkpointEncDec.Decode(cps[len(cps)-1])
}

func (m *memoryStorage) ListCheckpoints(ctx context.Context, runId string) ([]*model.Checkpoint, error) {
	m.mu.RLock()
	cps := append([][]byte(nil), m.checkpoints[runId]...)
	m.mu.RUnlock()
	out := make([]*model.Checkpoint, 0, len(cps))
	for _, data := range cps {
		cp, err := m.checkpointEncDec.Decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

func (m *memoryStorage) SaveSubject(ctx context.Context, subject *model.Subject) error {
	data, err := m.subjectEncDec.Encode(*subject)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.subjects[subject.Id] = data
	m.mu.Unlock()
	return nil
}

func (m *memoryStorage) GetSubject(ctx context.Context, subjectId string) (*model.Subject, error) {
	m.mu.RLock()
	data, ok := m.subjects[subjectId]
	m.mu.RUnlock()
	if !ok {
		return nil, persistence.NotFoundError{Entity: "subject", Id: subjectId}
	}
	return m.subjectEncDec.Decode(data)
}

func (m *memoryStorage) UpsertArtifact(ctx context.Context, subjectId string, artifact model.GeneratedArtifact) error {
	data, err := m.artifactEncDec.Encode(artifact)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	byType, ok := m.artifacts[subjectId]
	if !ok {
		byType = make(map[string][]byte)
		m.artifacts[subjectId] = byType
	}
	byType[artifact.Type] = data
	return nil
}

func (m *memoryStorage) ListArtifacts(ctx context.Context, subjectId string) ([]model.GeneratedArtifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.GeneratedArtifact, 0, len(m.artifacts[subjectId]))
	for _, data := range m.artifacts[subjectId] {
		a, err := m.artifactEncDec.Decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

func (m *memoryStorage) Close() error {
	return nil
}
