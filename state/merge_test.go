package state

import (
	"testing"
	"time"

	"github.com/mohitkumar/govflow/model"
	"github.com/stretchr/testify/require"
)

func baseState() model.WorkflowState {
	return model.WorkflowState{
		SubjectId:      "uc-1",
		Submission:     model.Submission{DataClassification: "PCI", ModelProvider: "EXTERNAL"},
		Classification: map[string]string{"data_classification": "PCI"},
		EvalMetrics:    map[string]any{"toxicity": 0.01},
		Audit:          []model.AuditEntry{{Event: "ENTRY", Details: map[string]any{"subject_id": "uc-1"}}},
	}
}

func TestMerge(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"last writer wins replaces value":     testLastWriterWins,
		"shallow merge unions keys":           testShallowMerge,
		"append only concatenates":            testAppendOnly,
		"absent fields are untouched":         testAbsentFields,
		"current state is never mutated":      testNoMutation,
		"result does not alias delta":         testNoDeltaAlias,
		"fan in is independent of completion": testMergeAllDeterministic,
		"fan in ties resolve by declaration":  testMergeAllTies,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t)
		})
	}
}

func testLastWriterWins(t *testing.T) {
	next := Merge(baseState(), model.Delta{
		RiskLevel:           model.Ptr(model.RISK_HIGH),
		MissingArtifacts:    model.Ptr([]string{"THREAT_MODEL"}),
		RemediationAttempts: model.Ptr(2),
	})
	require.Equal(t, model.RISK_HIGH, next.RiskLevel)
	require.Equal(t, []string{"THREAT_MODEL"}, next.MissingArtifacts)
	require.Equal(t, 2, next.RemediationAttempts)

	next = Merge(next, model.Delta{MissingArtifacts: model.Ptr([]string{})})
	require.Empty(t, next.MissingArtifacts)
}

func testShallowMerge(t *testing.T) {
	next := Merge(baseState(), model.Delta{
		Classification: map[string]string{"provider_type": "EXTERNAL"},
		EvalMetrics:    map[string]any{"toxicity": 0.2, "redactability": 0.9},
	})
	require.Equal(t, map[string]string{"data_classification": "PCI", "provider_type": "EXTERNAL"}, next.Classification)
	require.Equal(t, 0.2, next.EvalMetrics["toxicity"])
	require.Equal(t, 0.9, next.EvalMetrics["redactability"])
}

func testAppendOnly(t *testing.T) {
	next := Merge(baseState(), model.Delta{Audit: []model.AuditEntry{{Event: "CLASSIFY"}}})
	require.Len(t, next.Audit, 2)
	require.Equal(t, "ENTRY", next.Audit[0].Event)
	require.Equal(t, "CLASSIFY", next.Audit[1].Event)
}

func testAbsentFields(t *testing.T) {
	current := baseState()
	next := Merge(current, model.Delta{})
	require.Equal(t, current, next)
}

func testNoMutation(t *testing.T) {
	current := baseState()
	snapshot := current.Clone()
	_ = Merge(current, model.Delta{
		Classification: map[string]string{"deployment_type": "CLOUD"},
		EvalMetrics:    map[string]any{"toxicity": 0.9},
		Audit:          []model.AuditEntry{{Event: "X"}},
	})
	require.Equal(t, snapshot, current)
}

func testNoDeltaAlias(t *testing.T) {
	details := map[string]any{"k": "v"}
	missing := []string{"A"}
	next := Merge(baseState(), model.Delta{
		MissingArtifacts: &missing,
		Audit:            []model.AuditEntry{{Event: "X", Details: details}},
	})
	missing[0] = "B"
	details["k"] = "changed"
	require.Equal(t, []string{"A"}, next.MissingArtifacts)
	require.Equal(t, "v", next.Audit[1].Details["k"])
}

func testMergeAllDeterministic(t *testing.T) {
	order := []string{"fetch_registration", "fetch_policy", "fetch_approvals", "fetch_evaluations", "fetch_artifacts"}
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	deltas := []NodeDelta{
		{Node: "fetch_artifacts", Delta: model.Delta{PresentArtifacts: model.Ptr([]string{"THREAT_MODEL"}), Audit: []model.AuditEntry{{Event: "FETCH_ARTIFACT_STATUS", At: at}}}},
		{Node: "fetch_policy", Delta: model.Delta{RequiredArtifacts: model.Ptr([]string{"THREAT_MODEL"}), Audit: []model.AuditEntry{{Event: "FETCH_POLICY", At: at}}}},
		{Node: "fetch_approvals", Delta: model.Delta{ApprovalStatus: map[string]model.ApprovalDecision{"RISK": {State: "PENDING"}}, Audit: []model.AuditEntry{{Event: "FETCH_APPROVALS", At: at}}}},
		{Node: "fetch_registration", Delta: model.Delta{Registration: map[string]any{"registered": true}, Audit: []model.AuditEntry{{Event: "FETCH_REGISTRATION", At: at}}}},
		{Node: "fetch_evaluations", Delta: model.Delta{EvalMetrics: map[string]any{"toxicity": 0.03}, Audit: []model.AuditEntry{{Event: "FETCH_EVAL_STATUS", At: at}}}},
	}
	expected := MergeAll(baseState(), deltas, order)
	permutations := [][]int{{0, 1, 2, 3, 4}, {4, 3, 2, 1, 0}, {2, 0, 4, 1, 3}, {1, 4, 0, 3, 2}}
	for _, perm := range permutations {
		shuffled := make([]NodeDelta, len(deltas))
		for i, idx := range perm {
			shuffled[i] = deltas[idx]
		}
		require.Equal(t, expected, MergeAll(baseState(), shuffled, order))
	}
	var events []string
	for _, e := range expected.Audit {
		events = append(events, e.Event)
	}
	require.Equal(t, []string{"ENTRY", "FETCH_REGISTRATION", "FETCH_POLICY", "FETCH_APPROVALS", "FETCH_EVAL_STATUS", "FETCH_ARTIFACT_STATUS"}, events)
}

func testMergeAllTies(t *testing.T) {
	order := []string{"a", "b"}
	deltas := []NodeDelta{
		{Node: "b", Delta: model.Delta{RiskLevel: model.Ptr(model.RISK_LOW), EvalMetrics: map[string]any{"toxicity": 0.5}}},
		{Node: "a", Delta: model.Delta{RiskLevel: model.Ptr(model.RISK_HIGH), EvalMetrics: map[string]any{"toxicity": 0.1}}},
	}
	next := MergeAll(baseState(), deltas, order)
	require.Equal(t, model.RISK_LOW, next.RiskLevel)
	require.Equal(t, 0.5, next.EvalMetrics["toxicity"])
}

func TestPolicyTable(t *testing.T) {
	require.NoError(t, validatePolicies())
	p, ok := Policy("Audit")
	require.True(t, ok)
	require.Equal(t, APPEND_ONLY, p)
	p, ok = Policy("ApprovalStatus")
	require.True(t, ok)
	require.Equal(t, SHALLOW_MERGE, p)
	p, ok = Policy("RiskLevel")
	require.True(t, ok)
	require.Equal(t, LAST_WRITER_WINS, p)
	_, ok = Policy("Unknown")
	require.False(t, ok)

	require.Equal(t, []string{"RiskLevel", "Audit"}, Fields(model.Delta{RiskLevel: model.Ptr(model.RISK_LOW), Audit: []model.AuditEntry{}}))
}
