package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	api "github.com/mohitkumar/govflow/api/v1"
	"github.com/mohitkumar/govflow/logger"
	"github.com/mohitkumar/govflow/model"
	"github.com/mohitkumar/govflow/persistence"
	"go.uber.org/zap"
)

type MetadataService interface {
	RegisterSubject(ctx context.Context, req model.SubmissionRequest, owner string) (*model.Subject, error)
	GetSubject(ctx context.Context, subjectId string) (*model.Subject, error)
	ListArtifacts(ctx context.Context, subjectId string) ([]model.GeneratedArtifact, error)
	ValidateSubmission(sub model.Submission) error
	GetMetadataStorage() MetadataStorage
}

type MetadataServiceImpl struct {
	storage MetadataStorage
}

func NewMetadataService(storage MetadataStorage) MetadataService {
	return &MetadataServiceImpl{
		storage: storage,
	}
}

// RegisterSubject stores the submission under the requested id, or under a
// new one when none is given. Registering an existing subject replaces its
// submission and keeps its governance snapshot.
func (s *MetadataServiceImpl) RegisterSubject(ctx context.Context, req model.SubmissionRequest, owner string) (*model.Subject, error) {
	if err := s.ValidateSubmission(req.Submission); err != nil {
		return nil, err
	}
	subjectId := strings.TrimSpace(req.SubjectId)
	if strings.ContainsAny(subjectId, "/ ") {
		return nil, api.ValidationError{Message: fmt.Sprintf("subject id %q may not contain spaces or slashes", subjectId)}
	}
	now := time.Now().UTC()
	subject := &model.Subject{
		Id:         subjectId,
		Owner:      owner,
		Submission: req.Submission.Normalized(),
		CreatedAt:  now,
	}
	if subject.Id == "" {
		subject.Id = uuid.New().String()
	} else {
		existing, err := s.storage.GetSubject(ctx, subject.Id)
		var nf persistence.NotFoundError
		switch {
		case err == nil:
			subject.CreatedAt = existing.CreatedAt
			subject.ExternalId = existing.ExternalId
			subject.Governance = existing.Governance
			if subject.Owner == "" {
				subject.Owner = existing.Owner
			}
		case !errors.As(err, &nf):
			logger.Error("error loading subject", zap.String("subject", subject.Id), zap.Error(err))
			return nil, api.StorageLayerError{}
		}
	}
	if subject.ExternalId == "" {
		subject.ExternalId = externalIdOf(subject.Id)
	}
	subject.UpdatedAt = now
	if err := s.storage.SaveSubject(ctx, subject); err != nil {
		logger.Error("error saving subject", zap.String("subject", subject.Id), zap.Error(err))
		return nil, api.StorageLayerError{}
	}
	logger.Info("subject registered", zap.String("subject", subject.Id), zap.String("owner", subject.Owner))
	return subject, nil
}

func (s *MetadataServiceImpl) GetSubject(ctx context.Context, subjectId string) (*model.Subject, error) {
	subject, err := s.storage.GetSubject(ctx, subjectId)
	if err != nil {
		var nf persistence.NotFoundError
		if errors.As(err, &nf) {
			return nil, api.SubjectNotFoundError{SubjectId: subjectId}
		}
		logger.Error("error loading subject", zap.String("subject", subjectId), zap.Error(err))
		return nil, api.StorageLayerError{}
	}
	return subject, nil
}

func (s *MetadataServiceImpl) ListArtifacts(ctx context.Context, subjectId string) ([]model.GeneratedArtifact, error) {
	if _, err := s.GetSubject(ctx, subjectId); err != nil {
		return nil, err
	}
	artifacts, err := s.storage.ListArtifacts(ctx, subjectId)
	if err != nil {
		logger.Error("error listing artifacts", zap.String("subject", subjectId), zap.Error(err))
		return nil, api.StorageLayerError{}
	}
	if artifacts == nil {
		artifacts = []model.GeneratedArtifact{}
	}
	return artifacts, nil
}

// ValidateSubmission applies the checks the entry node applies, so a bad
// submission is refused before a run is created for it.
func (s *MetadataServiceImpl) ValidateSubmission(sub model.Submission) error {
	if strings.TrimSpace(sub.DataClassification) == "" {
		return api.ValidationError{Message: "data_classification is required"}
	}
	if strings.TrimSpace(sub.ModelProvider) == "" {
		return api.ValidationError{Message: "model_provider is required"}
	}
	return nil
}

func (s *MetadataServiceImpl) GetMetadataStorage() MetadataStorage {
	return s.storage
}

// externalIdOf derives the registry reference of a subject, UC- followed by
// the first eight characters of its id.
func externalIdOf(subjectId string) string {
	id := strings.ToUpper(strings.ReplaceAll(subjectId, "-", ""))
	if len(id) > 8 {
		id = id[:8]
	}
	return "UC-" + id
}
