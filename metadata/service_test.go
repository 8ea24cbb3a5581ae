package metadata

import (
	"context"
	"testing"

	api "github.com/mohitkumar/govflow/api/v1"
	"github.com/mohitkumar/govflow/model"
	"github.com/mohitkumar/govflow/persistence/memory"
	"github.com/stretchr/testify/require"
)

var submission = model.Submission{Name: "faq bot", DataClassification: "NON_PCI", ModelProvider: "INTERNAL"}

func TestMetadataService(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, s MetadataService){
		"generates id when none is given":       testGeneratedId,
		"re-register keeps governance snapshot": testReRegister,
		"invalid submission is refused":         testInvalidSubmission,
		"unknown subject is not found":          testUnknownSubject,
		"artifacts of registered subject":       testArtifacts,
		"submission is stored normalized":       testNormalizedOnRegister,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, NewMetadataService(memory.NewMemoryStorage()))
		})
	}
}

func testGeneratedId(t *testing.T, s MetadataService) {
	subject, err := s.RegisterSubject(context.Background(), model.SubmissionRequest{Submission: submission}, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, subject.Id)
	require.Equal(t, "alice", subject.Owner)
	require.Len(t, subject.ExternalId, len("UC-")+8)

	got, err := s.GetSubject(context.Background(), subject.Id)
	require.NoError(t, err)
	require.Equal(t, submission.Normalized(), got.Submission)
	require.Equal(t, model.DEPLOYMENT_UNKNOWN, got.Submission.DeploymentTarget)
}

func testNormalizedOnRegister(t *testing.T, s MetadataService) {
	ctx := context.Background()
	mixed := model.Submission{Name: "card assistant", DataClassification: " pci", DeploymentTarget: "on-prem", ModelProvider: "External"}
	subject, err := s.RegisterSubject(ctx, model.SubmissionRequest{SubjectId: "uc-3", Submission: mixed}, "")
	require.NoError(t, err)

	got, err := s.GetSubject(ctx, subject.Id)
	require.NoError(t, err)
	require.Equal(t, model.Submission{
		Name:               "card assistant",
		DataClassification: "PCI",
		DeploymentTarget:   "ON_PREM",
		ModelProvider:      "EXTERNAL",
	}, got.Submission)
}

func testReRegister(t *testing.T, s MetadataService) {
	ctx := context.Background()
	first, err := s.RegisterSubject(ctx, model.SubmissionRequest{SubjectId: "uc-1", Submission: submission}, "alice")
	require.NoError(t, err)
	require.Equal(t, "UC-UC1", first.ExternalId)

	first.Governance = model.GovernanceSnapshot{LastRunId: "run-1", LastStatus: model.RUN_APPROVAL_READY}
	require.NoError(t, s.GetMetadataStorage().SaveSubject(ctx, first))

	changed := submission
	changed.DeploymentTarget = "CLOUD"
	second, err := s.RegisterSubject(ctx, model.SubmissionRequest{SubjectId: "uc-1", Submission: changed}, "")
	require.NoError(t, err)
	require.Equal(t, "alice", second.Owner)
	require.Equal(t, "CLOUD", second.Submission.DeploymentTarget)
	require.Equal(t, "run-1", second.Governance.LastRunId)
	require.Equal(t, first.CreatedAt.Unix(), second.CreatedAt.Unix())
}

func testInvalidSubmission(t *testing.T, s MetadataService) {
	for _, sub := range []model.Submission{
		{ModelProvider: "INTERNAL"},
		{DataClassification: "PCI", ModelProvider: "  "},
	} {
		_, err := s.RegisterSubject(context.Background(), model.SubmissionRequest{Submission: sub}, "")
		require.ErrorAs(t, err, &api.ValidationError{})
	}
	_, err := s.RegisterSubject(context.Background(), model.SubmissionRequest{SubjectId: "a/b", Submission: submission}, "")
	require.ErrorAs(t, err, &api.ValidationError{})
}

func testUnknownSubject(t *testing.T, s MetadataService) {
	_, err := s.GetSubject(context.Background(), "missing")
	require.ErrorAs(t, err, &api.SubjectNotFoundError{})
	_, err = s.ListArtifacts(context.Background(), "missing")
	require.ErrorAs(t, err, &api.SubjectNotFoundError{})
}

func testArtifacts(t *testing.T, s MetadataService) {
	ctx := context.Background()
	subject, err := s.RegisterSubject(ctx, model.SubmissionRequest{SubjectId: "uc-2", Submission: submission}, "")
	require.NoError(t, err)

	artifacts, err := s.ListArtifacts(ctx, subject.Id)
	require.NoError(t, err)
	require.Empty(t, artifacts)

	require.NoError(t, s.GetMetadataStorage().UpsertArtifact(ctx, subject.Id, model.GeneratedArtifact{Type: "MODEL_CARD", Content: "card"}))
	artifacts, err = s.ListArtifacts(ctx, subject.Id)
	require.NoError(t, err)
	require.Equal(t, []model.GeneratedArtifact{{Type: "MODEL_CARD", Content: "card"}}, artifacts)
}
